package handler // agency booking endpoints and operator status transitions

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/atlasvoyages/gir-availability/internal/model"
	"github.com/atlasvoyages/gir-availability/internal/repository"
)

// BookingHandler bundles the repositories behind agency bookings.
// Confirmation is the one write that touches three tables at once:
// the booking row, the circuit's availability and the history log.
type BookingHandler struct {
	Bookings *repository.BookingRepo
	Circuits *repository.CircuitRepo
	History  *repository.HistoryRepo
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(b *repository.BookingRepo, c *repository.CircuitRepo, h *repository.HistoryRepo) *BookingHandler {
	return &BookingHandler{Bookings: b, Circuits: c, History: h}
}

// getUserID extracts the authenticated user's ID from the context.
// JWT numeric claims decode as float64; some clients send the subject
// as a string.
func getUserID(c echo.Context) (uint64, error) {
	switch v := c.Get("user_id").(type) {
	case float64:
		return uint64(v), nil
	case string:
		return strconv.ParseUint(v, 10, 64)
	case uint64:
		return v, nil
	}
	return 0, errors.New("missing user id")
}

type bookingReq struct {
	PlacesBooked int `json:"places_booked"`
}

type bookingResp struct {
	ID           uint64    `json:"id"`
	CircuitID    uint64    `json:"circuit_id"`
	AgencyID     *uint64   `json:"agency_id,omitempty"`
	PlacesBooked int       `json:"places_booked"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

func toBookingResp(b model.Booking) bookingResp {
	return bookingResp{
		ID:           b.ID,
		CircuitID:    b.CircuitID,
		AgencyID:     b.AgencyID,
		PlacesBooked: b.PlacesBooked,
		Status:       b.Status,
		CreatedAt:    b.CreatedAt,
	}
}

// CreateBooking handles POST /v1/circuits/:id/bookings.  An agency
// requests seats; the booking starts pending and does not move the
// circuit's availability until an operator confirms it.
func (h *BookingHandler) CreateBooking(c echo.Context) error {
	agencyID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	circuitID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || circuitID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid circuit id"})
	}
	var req bookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.PlacesBooked <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "places_booked must be positive"})
	}

	ctx := c.Request().Context()
	circuit, err := h.Circuits.GetByID(ctx, circuitID)
	if err != nil {
		if errors.Is(err, repository.ErrCircuitNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "circuit not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load circuit"})
	}
	if circuit.IsArchived || !circuit.IsPublished {
		return c.JSON(http.StatusConflict, echo.Map{"error": "circuit is not open for booking"})
	}
	if req.PlacesBooked > circuit.PlacesAvailable {
		return c.JSON(http.StatusConflict, echo.Map{"error": "not enough places available"})
	}

	booking := &model.Booking{
		CircuitID:    circuitID,
		AgencyID:     &agencyID,
		PlacesBooked: req.PlacesBooked,
		Status:       model.BookingStatusPending,
	}
	if err := h.Bookings.Create(ctx, booking); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create booking"})
	}
	return c.JSON(http.StatusCreated, toBookingResp(*booking))
}

// ListBookings handles GET /v1/circuits/:id/bookings for operators
// reviewing a circuit's pipeline.
func (h *BookingHandler) ListBookings(c echo.Context) error {
	circuitID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || circuitID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid circuit id"})
	}
	bookings, err := h.Bookings.ListByCircuit(c.Request().Context(), circuitID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load bookings"})
	}
	out := make([]bookingResp, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingResp(b))
	}
	return c.JSON(http.StatusOK, echo.Map{"circuit_id": circuitID, "bookings": out})
}

type statusReq struct {
	Status string `json:"status"`
}

// UpdateBookingStatus handles PUT /v1/bookings/:id/status.  Confirming
// a pending booking decrements the circuit's availability and appends
// a history snapshot; cancelling a confirmed one restores the seats
// the same way.  All three writes commit in a single transaction.
func (h *BookingHandler) UpdateBookingStatus(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	target := req.Status
	if target != model.BookingStatusConfirmed && target != model.BookingStatusCancelled {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be confirmed or cancelled"})
	}

	ctx := c.Request().Context()
	booking, err := h.Bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load booking"})
	}
	if booking.Status == target {
		return c.JSON(http.StatusOK, toBookingResp(*booking))
	}
	if booking.Status == model.BookingStatusCancelled {
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking is cancelled"})
	}

	// Seats only move on transitions through the confirmed state.
	delta := 0
	switch {
	case target == model.BookingStatusConfirmed:
		delta = booking.PlacesBooked
	case booking.Status == model.BookingStatusConfirmed && target == model.BookingStatusCancelled:
		delta = -booking.PlacesBooked
	}

	tx, err := h.Circuits.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not start transaction"})
	}
	defer func() { _ = tx.Rollback() }()

	if err := h.Bookings.UpdateStatusTx(ctx, tx, id, target); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not update booking"})
	}
	if delta != 0 {
		if err := h.Circuits.AdjustAvailabilityTx(ctx, tx, booking.CircuitID, delta); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return c.JSON(http.StatusConflict, echo.Map{"error": "not enough places available"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not adjust availability"})
		}
		available, total, err := h.Circuits.GetAvailabilityTx(ctx, tx, booking.CircuitID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not read availability"})
		}
		record := &model.AvailabilityHistory{
			CircuitID:       booking.CircuitID,
			PlacesAvailable: available,
			PlacesBooked:    total - available,
			Source:          model.HistorySourceBooking,
		}
		if err := h.History.AppendTx(ctx, tx, record); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not record history"})
		}
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not commit"})
	}

	booking.Status = target
	return c.JSON(http.StatusOK, toBookingResp(*booking))
}
