package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasvoyages/gir-availability/internal/commission"
	"github.com/atlasvoyages/gir-availability/internal/model"
	"github.com/atlasvoyages/gir-availability/internal/repository"
)

// commissionCircuits fakes the circuit store behind the resolver.
type commissionCircuits struct {
	db      *sql.DB
	circuit *model.Circuit
	updates int
}

func (f *commissionCircuits) GetByID(ctx context.Context, id uint64) (*model.Circuit, error) {
	if f.circuit == nil || f.circuit.ID != id {
		return nil, repository.ErrCircuitNotFound
	}
	return f.circuit, nil
}

func (f *commissionCircuits) UpdateCommissionTx(ctx context.Context, tx *sql.Tx, id uint64, baseRate float64, useTiered bool) error {
	if f.circuit == nil || f.circuit.ID != id {
		return repository.ErrCircuitNotFound
	}
	f.updates++
	return nil
}

func (f *commissionCircuits) DB() *sql.DB { return f.db }

type commissionTiers struct {
	tiers    []model.CommissionTier
	replaced [][]model.CommissionTier
}

func (f *commissionTiers) ListByCircuit(ctx context.Context, circuitID uint64) ([]model.CommissionTier, error) {
	return f.tiers, nil
}

func (f *commissionTiers) ReplaceTx(ctx context.Context, tx *sql.Tx, circuitID uint64, tiers []model.CommissionTier) error {
	f.replaced = append(f.replaced, tiers)
	return nil
}

type commissionBookings struct {
	pax int
}

func (f *commissionBookings) SumConfirmedPax(ctx context.Context, circuitID uint64) (int, error) {
	return f.pax, nil
}

func intPtr(v int) *int { return &v }

func newCommissionHandler(t *testing.T, c *model.Circuit, tiers []model.CommissionTier, pax int) (*CommissionHandler, *commissionCircuits, *commissionTiers, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	circuits := &commissionCircuits{db: db, circuit: c}
	tierStore := &commissionTiers{tiers: tiers}
	svc := commission.NewService(circuits, tierStore, &commissionBookings{pax: pax})
	return NewCommissionHandler(svc), circuits, tierStore, mock
}

func doJSON(h echo.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	_ = h(c)
	return rec
}

func TestGetCommissionRequiresCircuitID(t *testing.T) {
	h, _, _, _ := newCommissionHandler(t, nil, nil, 0)

	rec := doJSON(h.GetCommission, http.MethodGet, "/v1/availability/commission", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(h.GetCommission, http.MethodGet, "/v1/availability/commission?circuit_id=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(h.GetCommission, http.MethodGet, "/v1/availability/commission?circuit_id=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCommissionUnknownCircuit(t *testing.T) {
	h, _, _, _ := newCommissionHandler(t, nil, nil, 0)

	rec := doJSON(h.GetCommission, http.MethodGet, "/v1/availability/commission?circuit_id=99", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetCommissionSnapshot(t *testing.T) {
	c := &model.Circuit{ID: 7, Title: "Circuit Sud Marocain", BaseCommissionRate: 8, UseTieredCommission: true, PlacesTotal: 40, PlacesAvailable: 25}
	tiers := []model.CommissionTier{
		{MinParticipants: 1, MaxParticipants: intPtr(10), CommissionRate: 8},
		{MinParticipants: 11, MaxParticipants: intPtr(20), CommissionRate: 10},
		{MinParticipants: 21, CommissionRate: 12},
	}
	h, _, _, _ := newCommissionHandler(t, c, tiers, 16)

	rec := doJSON(h.GetCommission, http.MethodGet, "/v1/availability/commission?circuit_id=7", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap commission.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, uint64(7), snap.CircuitID)
	assert.Equal(t, 16, snap.CurrentPax)
	assert.Equal(t, 10.0, snap.CurrentCommission)
	require.NotNil(t, snap.NextTier)
	assert.Equal(t, 21, snap.NextTier.MinParticipants)
	assert.Equal(t, 5, snap.NextTier.PaxNeeded)
	assert.Len(t, snap.Tiers, 3)
}

func TestConfigureCommissionRequiresCircuitID(t *testing.T) {
	h, _, _, _ := newCommissionHandler(t, nil, nil, 0)

	rec := doJSON(h.ConfigureCommission, http.MethodPost, "/v1/availability/commission", `{"base_commission_rate": 9}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfigureCommissionReplacesSchedule(t *testing.T) {
	c := &model.Circuit{ID: 7, Title: "Circuit Sud Marocain"}
	h, circuits, tierStore, mock := newCommissionHandler(t, c, nil, 0)
	mock.ExpectBegin()
	mock.ExpectCommit()

	body := `{"circuit_id": 7, "use_tiered_commission": true, "tiers": [
	  {"min_participants": 1, "max_participants": 10, "commission_rate": 8},
	  {"min_participants": 11, "commission_rate": 10}
	]}`
	rec := doJSON(h.ConfigureCommission, http.MethodPost, "/v1/availability/commission", body)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1, circuits.updates)
	require.Len(t, tierStore.replaced, 1)
	require.Len(t, tierStore.replaced[0], 2)
	// Omitted base rate falls back to the default before hitting storage.
	assert.Equal(t, uint64(7), tierStore.replaced[0][0].CircuitID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigureCommissionFlatSkipsTierReplace(t *testing.T) {
	c := &model.Circuit{ID: 7}
	h, circuits, tierStore, mock := newCommissionHandler(t, c, nil, 0)
	mock.ExpectBegin()
	mock.ExpectCommit()

	rec := doJSON(h.ConfigureCommission, http.MethodPost, "/v1/availability/commission", `{"circuit_id": 7, "base_commission_rate": 9}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1, circuits.updates)
	// Tiering stayed off: the schedule must not be touched.
	assert.Empty(t, tierStore.replaced)
}

func TestConfigureCommissionUnknownCircuit(t *testing.T) {
	h, _, _, mock := newCommissionHandler(t, nil, nil, 0)
	mock.ExpectBegin()
	mock.ExpectRollback()

	rec := doJSON(h.ConfigureCommission, http.MethodPost, "/v1/availability/commission", `{"circuit_id": 99}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
