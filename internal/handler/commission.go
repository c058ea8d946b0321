package handler // commission endpoints for the back-office and agency portal

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/atlasvoyages/gir-availability/internal/commission"
	"github.com/atlasvoyages/gir-availability/internal/model"
	"github.com/atlasvoyages/gir-availability/internal/repository"
)

// CommissionHandler exposes the commission resolver over HTTP.
type CommissionHandler struct {
	Resolver *commission.Service
}

// NewCommissionHandler constructs a CommissionHandler.
func NewCommissionHandler(s *commission.Service) *CommissionHandler {
	return &CommissionHandler{Resolver: s}
}

// GetCommission handles GET /v1/availability/commission?circuit_id=ID.
// It returns the full commission snapshot: effective rate, confirmed
// pax, the tier schedule and the next tier to reach.  The operation is
// a pure read; agencies poll it from the portal.
func (h *CommissionHandler) GetCommission(c echo.Context) error {
	raw := c.QueryParam("circuit_id")
	if raw == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "circuit_id is required"})
	}
	circuitID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || circuitID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid circuit_id"})
	}

	snap, err := h.Resolver.Resolve(c.Request().Context(), circuitID)
	if err != nil {
		if errors.Is(err, repository.ErrCircuitNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "circuit not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, snap)
}

type tierReq struct {
	MinParticipants int     `json:"min_participants"`
	MaxParticipants *int    `json:"max_participants"`
	CommissionRate  float64 `json:"commission_rate"`
}

type configureReq struct {
	CircuitID           uint64    `json:"circuit_id"`
	BaseCommissionRate  *float64  `json:"base_commission_rate"`
	UseTieredCommission *bool     `json:"use_tiered_commission"`
	Tiers               []tierReq `json:"tiers"`
}

// ConfigureCommission handles POST /v1/availability/commission.  The
// base rate defaults to 10 when omitted and tiering defaults to off.
// When tiering is on, the submitted tier list replaces the schedule
// wholesale; the operator UI always sends the full list.
func (h *CommissionHandler) ConfigureCommission(c echo.Context) error {
	var req configureReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.CircuitID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "circuit_id is required"})
	}

	baseRate := model.DefaultBaseCommissionRate
	if req.BaseCommissionRate != nil {
		baseRate = *req.BaseCommissionRate
	}
	useTiered := false
	if req.UseTieredCommission != nil {
		useTiered = *req.UseTieredCommission
	}
	tiers := make([]model.CommissionTier, 0, len(req.Tiers))
	for _, t := range req.Tiers {
		tiers = append(tiers, model.CommissionTier{
			CircuitID:       req.CircuitID,
			MinParticipants: t.MinParticipants,
			MaxParticipants: t.MaxParticipants,
			CommissionRate:  t.CommissionRate,
		})
	}

	err := h.Resolver.Configure(c.Request().Context(), req.CircuitID, baseRate, useTiered, tiers)
	if err != nil {
		if errors.Is(err, repository.ErrCircuitNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "circuit not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "commission configuration saved",
	})
}
