package handler // circuit management and public catalogue endpoints

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/atlasvoyages/gir-availability/internal/model"
	"github.com/atlasvoyages/gir-availability/internal/repository"
)

// CircuitHandler bundles the repositories behind circuit CRUD, the
// public catalogue, the availability history feed and source
// configuration.
type CircuitHandler struct {
	Circuits *repository.CircuitRepo
	History  *repository.HistoryRepo
	Sources  *repository.SourceRepo
}

// NewCircuitHandler constructs a CircuitHandler.
func NewCircuitHandler(c *repository.CircuitRepo, h *repository.HistoryRepo, s *repository.SourceRepo) *CircuitHandler {
	return &CircuitHandler{Circuits: c, History: h, Sources: s}
}

// circuitResp is the wire shape of a circuit for both public and
// operator callers.
type circuitResp struct {
	ID                  uint64     `json:"id"`
	Slug                string     `json:"slug"`
	Title               string     `json:"title"`
	DepartureDate       *string    `json:"departure_date"`
	PlacesTotal         int        `json:"places_total"`
	PlacesAvailable     int        `json:"places_available"`
	UseTieredCommission bool       `json:"use_tiered_commission"`
	IsPublished         bool       `json:"is_published"`
	IsArchived          bool       `json:"is_archived"`
	LastSyncedAt        *time.Time `json:"last_synced_at,omitempty"`
}

func toCircuitResp(c model.Circuit) circuitResp {
	out := circuitResp{
		ID:                  c.ID,
		Slug:                c.Slug,
		Title:               c.Title,
		PlacesTotal:         c.PlacesTotal,
		PlacesAvailable:     c.PlacesAvailable,
		UseTieredCommission: c.UseTieredCommission,
		IsPublished:         c.IsPublished,
		IsArchived:          c.IsArchived,
		LastSyncedAt:        c.LastSyncedAt,
	}
	if c.DepartureDate != nil {
		d := c.DepartureDate.Format("2006-01-02")
		out.DepartureDate = &d
	}
	return out
}

type circuitReq struct {
	Slug               string   `json:"slug"`
	Title              string   `json:"title"`
	DepartureDate      string   `json:"departure_date"` // YYYY-MM-DD
	PlacesTotal        int      `json:"places_total"`
	BaseCommissionRate *float64 `json:"base_commission_rate"`
	IsPublished        bool     `json:"is_published"`
	IsArchived         bool     `json:"is_archived"`
}

func parseDeparture(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateCircuit handles POST /v1/circuits.  Capacity is fixed here:
// the available count starts at places_total and is only moved by
// booking accounting and the reconciler afterwards.
func (h *CircuitHandler) CreateCircuit(c echo.Context) error {
	var req circuitReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	req.Slug = strings.TrimSpace(req.Slug)
	req.Title = strings.TrimSpace(req.Title)
	if req.Slug == "" || req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "slug and title are required"})
	}
	if req.PlacesTotal <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "places_total must be positive"})
	}
	departure, err := parseDeparture(req.DepartureDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid departure_date format, want YYYY-MM-DD"})
	}
	baseRate := model.DefaultBaseCommissionRate
	if req.BaseCommissionRate != nil {
		baseRate = *req.BaseCommissionRate
	}

	circuit := &model.Circuit{
		Slug:               req.Slug,
		Title:              req.Title,
		DepartureDate:      departure,
		BaseCommissionRate: baseRate,
		PlacesTotal:        req.PlacesTotal,
		PlacesAvailable:    req.PlacesTotal,
		IsPublished:        req.IsPublished,
	}
	if err := h.Circuits.Create(c.Request().Context(), circuit); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return c.JSON(http.StatusConflict, echo.Map{"error": "slug already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create circuit"})
	}
	return c.JSON(http.StatusCreated, toCircuitResp(*circuit))
}

// UpdateCircuit handles PUT /v1/circuits/:id for the operator-editable
// fields.  Capacity and commission settings have their own endpoints.
func (h *CircuitHandler) UpdateCircuit(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid circuit id"})
	}
	var req circuitReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	ctx := c.Request().Context()
	circuit, err := h.Circuits.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCircuitNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "circuit not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load circuit"})
	}

	if s := strings.TrimSpace(req.Slug); s != "" {
		circuit.Slug = s
	}
	if t := strings.TrimSpace(req.Title); t != "" {
		circuit.Title = t
	}
	if req.DepartureDate != "" {
		departure, err := parseDeparture(req.DepartureDate)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid departure_date format, want YYYY-MM-DD"})
		}
		circuit.DepartureDate = departure
	}
	circuit.IsPublished = req.IsPublished
	circuit.IsArchived = req.IsArchived

	if err := h.Circuits.Update(ctx, circuit); err != nil {
		if errors.Is(err, repository.ErrCircuitNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "circuit not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not update circuit"})
	}
	return c.JSON(http.StatusOK, toCircuitResp(*circuit))
}

// ArchiveCircuit handles DELETE /v1/circuits/:id.  Circuits are never
// hard-deleted: bookings and history keep a valid parent, the circuit
// just disappears from the catalogue.
func (h *CircuitHandler) ArchiveCircuit(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid circuit id"})
	}
	if err := h.Circuits.Archive(c.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrCircuitNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "circuit not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not archive circuit"})
	}
	return c.NoContent(http.StatusNoContent)
}

// ListPublicCircuits handles GET /v1/circuits, the public catalogue
// of published, non-archived circuits.
func (h *CircuitHandler) ListPublicCircuits(c echo.Context) error {
	circuits, err := h.Circuits.ListPublished(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load circuits"})
	}
	out := make([]circuitResp, 0, len(circuits))
	for _, circuit := range circuits {
		out = append(out, toCircuitResp(circuit))
	}
	return c.JSON(http.StatusOK, echo.Map{"circuits": out})
}

// GetPublicCircuit handles GET /v1/circuits/:id, the public circuit
// page.  The parameter is a numeric ID or, for the site's pretty URLs,
// the circuit's slug.  Unpublished and archived circuits stay hidden.
func (h *CircuitHandler) GetPublicCircuit(c echo.Context) error {
	param := strings.TrimSpace(c.Param("id"))
	if param == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid circuit id"})
	}

	ctx := c.Request().Context()
	var (
		circuit *model.Circuit
		err     error
	)
	if id, perr := strconv.ParseUint(param, 10, 64); perr == nil && id > 0 {
		circuit, err = h.Circuits.GetByID(ctx, id)
	} else {
		circuit, err = h.Circuits.GetBySlug(ctx, param)
	}
	if err != nil {
		if errors.Is(err, repository.ErrCircuitNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "circuit not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load circuit"})
	}
	if !circuit.IsPublished || circuit.IsArchived {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "circuit not found"})
	}
	return c.JSON(http.StatusOK, toCircuitResp(*circuit))
}

// GetHistory handles GET /v1/circuits/:id/availability/history, the
// feed behind the back-office availability chart.  Records are
// immutable snapshots, newest first.
func (h *CircuitHandler) GetHistory(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid circuit id"})
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	ctx := c.Request().Context()
	if _, err := h.Circuits.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrCircuitNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "circuit not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load circuit"})
	}
	records, err := h.History.ListByCircuit(ctx, id, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load history"})
	}

	type historyResp struct {
		PlacesAvailable int       `json:"places_available"`
		PlacesBooked    int       `json:"places_booked"`
		Source          string    `json:"source"`
		SyncedFromURL   *string   `json:"synced_from_url,omitempty"`
		CreatedAt       time.Time `json:"created_at"`
	}
	out := make([]historyResp, 0, len(records))
	for _, rec := range records {
		out = append(out, historyResp{
			PlacesAvailable: rec.PlacesAvailable,
			PlacesBooked:    rec.PlacesBooked,
			Source:          rec.Source,
			SyncedFromURL:   rec.SyncedFromURL,
			CreatedAt:       rec.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"circuit_id": id, "history": out})
}

type sourceReq struct {
	URL                     string  `json:"url"`
	PlacesAvailableSelector *string `json:"places_available_selector"`
	PlacesTotalSelector     *string `json:"places_total_selector"`
	DepartureDatesSelector  *string `json:"departure_dates_selector"`
	StatusSelector          *string `json:"status_selector"`
	SyncFrequency           string  `json:"sync_frequency"`
	IsActive                bool    `json:"is_active"`
}

// CreateSource handles POST /v1/circuits/:id/sources, registering an
// external page the batch reconciler should scrape for this circuit.
func (h *CircuitHandler) CreateSource(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid circuit id"})
	}
	var req sourceReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.URL) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "url is required"})
	}
	frequency := strings.ToLower(strings.TrimSpace(req.SyncFrequency))
	switch frequency {
	case model.SyncFrequencyHourly, model.SyncFrequencyDaily, model.SyncFrequencyWeekly:
	case "":
		frequency = model.SyncFrequencyDaily
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "sync_frequency must be hourly, daily or weekly"})
	}

	ctx := c.Request().Context()
	if _, err := h.Circuits.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrCircuitNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "circuit not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load circuit"})
	}

	src := &model.ExternalSource{
		CircuitID:               id,
		URL:                     strings.TrimSpace(req.URL),
		PlacesAvailableSelector: req.PlacesAvailableSelector,
		PlacesTotalSelector:     req.PlacesTotalSelector,
		DepartureDatesSelector:  req.DepartureDatesSelector,
		StatusSelector:          req.StatusSelector,
		SyncFrequency:           frequency,
		IsActive:                req.IsActive,
	}
	if err := h.Sources.Create(ctx, src); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create source"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": src.ID, "circuit_id": id, "url": src.URL})
}
