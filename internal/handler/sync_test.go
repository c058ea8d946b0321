package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasvoyages/gir-availability/internal/model"
	"github.com/atlasvoyages/gir-availability/internal/repository"
	"github.com/atlasvoyages/gir-availability/internal/syncer"
)

// syncCircuits fakes the circuit store behind the reconciler.
type syncCircuits struct {
	db      *sql.DB
	circuit *model.Circuit
}

func (f *syncCircuits) GetByID(ctx context.Context, id uint64) (*model.Circuit, error) {
	if f.circuit == nil || f.circuit.ID != id {
		return nil, repository.ErrCircuitNotFound
	}
	return f.circuit, nil
}

func (f *syncCircuits) ApplySyncTx(ctx context.Context, tx *sql.Tx, id uint64, placesAvailable int, syncedAt time.Time) error {
	return nil
}

func (f *syncCircuits) DB() *sql.DB { return f.db }

type syncHistory struct{}

func (f *syncHistory) AppendTx(ctx context.Context, tx *sql.Tx, h *model.AvailabilityHistory) error {
	return nil
}

type syncSources struct{}

func (f *syncSources) ListActiveByFrequency(ctx context.Context, frequency string) ([]model.ExternalSource, error) {
	return nil, nil
}

func (f *syncSources) GetByCircuitAndURL(ctx context.Context, circuitID uint64, url string) (*model.ExternalSource, error) {
	return nil, repository.ErrSourceNotFound
}

func (f *syncSources) RecordOutcome(ctx context.Context, circuitID uint64, url, status, syncErr string, at time.Time) error {
	return nil
}

type syncFetcher struct {
	pages map[string]string
}

func (f *syncFetcher) FetchPage(ctx context.Context, url string) ([]byte, error) {
	body, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("fetch %s: connection refused", url)
	}
	return []byte(body), nil
}

func newSyncHandler(t *testing.T, circuit *model.Circuit, pages map[string]string) (*SyncHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	r := syncer.NewReconciler(
		&syncCircuits{db: db, circuit: circuit},
		&syncHistory{},
		&syncSources{},
		&syncFetcher{pages: pages},
		nil, nil,
	)
	return NewSyncHandler(r), mock
}

func TestTriggerSyncRequiresInputs(t *testing.T) {
	h, _ := newSyncHandler(t, nil, nil)

	rec := doJSON(h.TriggerSync, http.MethodPost, "/v1/availability/sync", `{"source_url": "https://partner.example/gir"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(h.TriggerSync, http.MethodPost, "/v1/availability/sync", `{"circuit_id": 7}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(h.TriggerSync, http.MethodPost, "/v1/availability/sync", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerSyncUnknownCircuit(t *testing.T) {
	h, _ := newSyncHandler(t, nil, nil)

	rec := doJSON(h.TriggerSync, http.MethodPost, "/v1/availability/sync",
		`{"circuit_id": 99, "source_url": "https://partner.example/gir"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTriggerSyncFetchFailure(t *testing.T) {
	circuit := &model.Circuit{ID: 7, PlacesTotal: 40}
	h, _ := newSyncHandler(t, circuit, nil)

	rec := doJSON(h.TriggerSync, http.MethodPost, "/v1/availability/sync",
		`{"circuit_id": 7, "source_url": "https://dead.example/gir"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "connection refused")
}

func TestTriggerSyncSuccess(t *testing.T) {
	circuit := &model.Circuit{ID: 7, Slug: "circuit-sud-marocain", PlacesTotal: 40}
	pages := map[string]string{
		"https://partner.example/gir": `<html><body><div class="places-disponibles">7</div></body></html>`,
	}
	h, mock := newSyncHandler(t, circuit, pages)
	mock.ExpectBegin()
	mock.ExpectCommit()

	rec := doJSON(h.TriggerSync, http.MethodPost, "/v1/availability/sync",
		`{"circuit_id": 7, "source_url": "https://partner.example/gir"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			PlacesAvailable *int `json:"places_available"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.NotNil(t, body.Data.PlacesAvailable)
	assert.Equal(t, 7, *body.Data.PlacesAvailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTriggerSyncCustomSelectors(t *testing.T) {
	circuit := &model.Circuit{ID: 7, PlacesTotal: 40}
	pages := map[string]string{
		"https://partner.example/gir": `<html><body><td id="left">12</td></body></html>`,
	}
	h, mock := newSyncHandler(t, circuit, pages)
	mock.ExpectBegin()
	mock.ExpectCommit()

	body := `{"circuit_id": 7, "source_url": "https://partner.example/gir",
	  "selector_config": {"places_available": "#left"}}`
	rec := doJSON(h.TriggerSync, http.MethodPost, "/v1/availability/sync", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			PlacesAvailable *int `json:"places_available"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Data.PlacesAvailable)
	assert.Equal(t, 12, *resp.Data.PlacesAvailable)
}

func TestRunBatchEmpty(t *testing.T) {
	h, _ := newSyncHandler(t, nil, nil)

	rec := doJSON(h.RunBatch, http.MethodGet, "/v1/availability/sync?frequency=daily", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res syncer.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Zero(t, res.Synced)
	assert.Zero(t, res.Failed)
	assert.Empty(t, res.Results)
}
