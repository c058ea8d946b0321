package handler // availability sync endpoints

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/atlasvoyages/gir-availability/internal/model"
	"github.com/atlasvoyages/gir-availability/internal/repository"
	"github.com/atlasvoyages/gir-availability/internal/scraper"
	"github.com/atlasvoyages/gir-availability/internal/syncer"
)

// SyncHandler exposes manual and batch availability reconciliation.
// The batch endpoint is called by the cron scheduler with the
// frequency tag of the slot that just fired.
type SyncHandler struct {
	Reconciler *syncer.Reconciler
}

// NewSyncHandler constructs a SyncHandler.
func NewSyncHandler(r *syncer.Reconciler) *SyncHandler {
	return &SyncHandler{Reconciler: r}
}

type syncReq struct {
	CircuitID      uint64                  `json:"circuit_id"`
	SourceURL      string                  `json:"source_url"`
	SelectorConfig *scraper.SelectorConfig `json:"selector_config"`
}

// TriggerSync handles POST /v1/availability/sync, an operator
// manually refreshing one circuit from a source page, typically to
// test a selector configuration before saving it.
func (h *SyncHandler) TriggerSync(c echo.Context) error {
	var req syncReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.CircuitID == 0 || strings.TrimSpace(req.SourceURL) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "circuit_id and source_url are required"})
	}
	cfg := scraper.SelectorConfig{}
	if req.SelectorConfig != nil {
		cfg = *req.SelectorConfig
	}

	extracted, err := h.Reconciler.ReconcileOne(c.Request().Context(), req.CircuitID, req.SourceURL, cfg)
	if err != nil {
		switch {
		case errors.Is(err, syncer.ErrSyncInProgress):
			return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
		case errors.Is(err, repository.ErrCircuitNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "circuit not found"})
		}
		// Fetch/parse/datastore failure; the source row already holds
		// the error for operators.
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    extracted,
	})
}

// RunBatch handles GET /v1/availability/sync?frequency=daily, the
// scheduled reconciliation of every active source configured for the
// given frequency.  The batch itself never fails over one broken
// source; per-source outcomes are in the results list.
func (h *SyncHandler) RunBatch(c echo.Context) error {
	frequency := strings.TrimSpace(c.QueryParam("frequency"))
	if frequency == "" {
		frequency = model.SyncFrequencyDaily
	}

	result, err := h.Reconciler.ReconcileAll(c.Request().Context(), frequency)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}
