package syncer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasvoyages/gir-availability/internal/model"
	"github.com/atlasvoyages/gir-availability/internal/queue"
	"github.com/atlasvoyages/gir-availability/internal/repository"
	"github.com/atlasvoyages/gir-availability/internal/scraper"
)

type appliedSync struct {
	circuitID uint64
	available int
}

// fakeCircuitStore serves circuits from a map and records sync writes.
// DB() hands out a sqlmock-backed pool so BeginTx/Commit work without
// a MySQL server; the Tx itself is opaque to the fakes.
type fakeCircuitStore struct {
	db       *sql.DB
	circuits map[uint64]*model.Circuit
	applied  []appliedSync
}

func (f *fakeCircuitStore) GetByID(ctx context.Context, id uint64) (*model.Circuit, error) {
	c, ok := f.circuits[id]
	if !ok {
		return nil, repository.ErrCircuitNotFound
	}
	return c, nil
}

func (f *fakeCircuitStore) ApplySyncTx(ctx context.Context, tx *sql.Tx, id uint64, placesAvailable int, syncedAt time.Time) error {
	f.applied = append(f.applied, appliedSync{circuitID: id, available: placesAvailable})
	return nil
}

func (f *fakeCircuitStore) DB() *sql.DB { return f.db }

type fakeHistoryStore struct {
	appended []*model.AvailabilityHistory
}

func (f *fakeHistoryStore) AppendTx(ctx context.Context, tx *sql.Tx, h *model.AvailabilityHistory) error {
	f.appended = append(f.appended, h)
	return nil
}

type recordedOutcome struct {
	circuitID uint64
	url       string
	status    string
	syncErr   string
}

type fakeSourceStore struct {
	sources  []model.ExternalSource
	outcomes []recordedOutcome
}

func (f *fakeSourceStore) ListActiveByFrequency(ctx context.Context, frequency string) ([]model.ExternalSource, error) {
	return f.sources, nil
}

func (f *fakeSourceStore) GetByCircuitAndURL(ctx context.Context, circuitID uint64, url string) (*model.ExternalSource, error) {
	for i := range f.sources {
		if f.sources[i].CircuitID == circuitID && f.sources[i].URL == url {
			return &f.sources[i], nil
		}
	}
	return nil, repository.ErrSourceNotFound
}

func (f *fakeSourceStore) RecordOutcome(ctx context.Context, circuitID uint64, url, status, syncErr string, at time.Time) error {
	f.outcomes = append(f.outcomes, recordedOutcome{circuitID: circuitID, url: url, status: status, syncErr: syncErr})
	return nil
}

// fakeFetcher serves canned pages per URL.
type fakeFetcher struct {
	pages map[string]string
}

func (f *fakeFetcher) FetchPage(ctx context.Context, url string) ([]byte, error) {
	body, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("fetch %s: connection refused", url)
	}
	return []byte(body), nil
}

type testEnv struct {
	circuits   *fakeCircuitStore
	history    *fakeHistoryStore
	sources    *fakeSourceStore
	fetcher    *fakeFetcher
	published  []queue.AvailabilitySyncedEvent
	reconciler *Reconciler
	mock       sqlmock.Sqlmock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	env := &testEnv{
		circuits: &fakeCircuitStore{
			db: db,
			circuits: map[uint64]*model.Circuit{
				7: {ID: 7, Slug: "circuit-sud-marocain", Title: "Circuit Sud Marocain", PlacesTotal: 40, PlacesAvailable: 25},
			},
		},
		history: &fakeHistoryStore{},
		sources: &fakeSourceStore{},
		fetcher: &fakeFetcher{pages: map[string]string{}},
		mock:    mock,
	}
	publish := func(ctx context.Context, ev queue.AvailabilitySyncedEvent) error {
		env.published = append(env.published, ev)
		return nil
	}
	env.reconciler = NewReconciler(env.circuits, env.history, env.sources, env.fetcher, nil, publish)
	return env
}

func TestReconcileOneMissingInput(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.reconciler.ReconcileOne(context.Background(), 0, "https://partner.example/gir", scraper.SelectorConfig{})
	assert.ErrorIs(t, err, ErrMissingInput)

	_, err = env.reconciler.ReconcileOne(context.Background(), 7, "   ", scraper.SelectorConfig{})
	assert.ErrorIs(t, err, ErrMissingInput)
}

func TestReconcileOneSuccess(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.pages["https://partner.example/gir"] = `<html><body>
	  <div class="places-disponibles">7 places restantes</div>
	  <div class="places-total">40</div>
	</body></html>`
	env.mock.ExpectBegin()
	env.mock.ExpectCommit()

	extracted, err := env.reconciler.ReconcileOne(context.Background(), 7, "https://partner.example/gir", scraper.SelectorConfig{})
	require.NoError(t, err)
	require.NotNil(t, extracted)
	require.NotNil(t, extracted.PlacesAvailable)
	assert.Equal(t, 7, *extracted.PlacesAvailable)

	// Circuit write and history append went through the same commit.
	require.Len(t, env.circuits.applied, 1)
	assert.Equal(t, appliedSync{circuitID: 7, available: 7}, env.circuits.applied[0])
	require.Len(t, env.history.appended, 1)
	rec := env.history.appended[0]
	assert.Equal(t, uint64(7), rec.CircuitID)
	assert.Equal(t, 7, rec.PlacesAvailable)
	assert.Equal(t, 33, rec.PlacesBooked)
	assert.Equal(t, model.HistorySourceSync, rec.Source)
	require.NotNil(t, rec.SyncedFromURL)
	assert.Equal(t, "https://partner.example/gir", *rec.SyncedFromURL)

	require.Len(t, env.sources.outcomes, 1)
	assert.Equal(t, model.SyncStatusSuccess, env.sources.outcomes[0].status)
	assert.Empty(t, env.sources.outcomes[0].syncErr)

	require.Len(t, env.published, 1)
	assert.Equal(t, uint64(7), env.published[0].CircuitID)
	assert.Equal(t, 7, env.published[0].PlacesAvailable)
	assert.Equal(t, 40, env.published[0].PlacesTotal)

	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestReconcileOneFullStatusZeroesAvailability(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.pages["https://partner.example/gir"] = `<html><body>
	  <div class="places-disponibles">5</div>
	  <div class="statut">COMPLET</div>
	</body></html>`
	env.mock.ExpectBegin()
	env.mock.ExpectCommit()

	extracted, err := env.reconciler.ReconcileOne(context.Background(), 7, "https://partner.example/gir", scraper.SelectorConfig{})
	require.NoError(t, err)
	require.NotNil(t, extracted.PlacesAvailable)
	assert.Equal(t, 0, *extracted.PlacesAvailable)

	require.Len(t, env.circuits.applied, 1)
	assert.Equal(t, 0, env.circuits.applied[0].available)
	// No total on the page: the circuit's own capacity fills the gap.
	require.Len(t, env.history.appended, 1)
	assert.Equal(t, 40, env.history.appended[0].PlacesBooked)
}

func TestReconcileOneNoFigureLeavesCircuitUntouched(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.pages["https://partner.example/gir"] = `<html><body>
	  <span class="date-depart">15/10/2026</span>
	</body></html>`

	extracted, err := env.reconciler.ReconcileOne(context.Background(), 7, "https://partner.example/gir", scraper.SelectorConfig{})
	require.NoError(t, err)
	require.NotNil(t, extracted)
	assert.Nil(t, extracted.PlacesAvailable)
	assert.Equal(t, []string{"15/10/2026"}, extracted.DepartureDates)

	// No figure, no write: neither the circuit nor the history moved.
	assert.Empty(t, env.circuits.applied)
	assert.Empty(t, env.history.appended)
	assert.Empty(t, env.published)
}

func TestReconcileTwiceAppendsTwoHistoryRows(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.pages["https://partner.example/gir"] = `<html><body>
	  <div class="places-disponibles">7</div>
	</body></html>`
	env.mock.ExpectBegin()
	env.mock.ExpectCommit()
	env.mock.ExpectBegin()
	env.mock.ExpectCommit()

	_, err := env.reconciler.ReconcileOne(context.Background(), 7, "https://partner.example/gir", scraper.SelectorConfig{})
	require.NoError(t, err)

	// The page moved between runs; the second snapshot must land as a
	// new row, never as an update of the first.
	env.fetcher.pages["https://partner.example/gir"] = `<html><body>
	  <div class="places-disponibles">5</div>
	</body></html>`
	_, err = env.reconciler.ReconcileOne(context.Background(), 7, "https://partner.example/gir", scraper.SelectorConfig{})
	require.NoError(t, err)

	require.Len(t, env.history.appended, 2)
	assert.Equal(t, 7, env.history.appended[0].PlacesAvailable)
	assert.Equal(t, 5, env.history.appended[1].PlacesAvailable)
	require.Len(t, env.circuits.applied, 2)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestReconcileOneFetchFailure(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.reconciler.ReconcileOne(context.Background(), 7, "https://dead.example/gir", scraper.SelectorConfig{})
	require.Error(t, err)

	var serr *SyncError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, uint64(7), serr.CircuitID)
	assert.Equal(t, "https://dead.example/gir", serr.SourceURL)

	// The failure lands on the source row for operators to see.
	require.Len(t, env.sources.outcomes, 1)
	assert.Equal(t, model.SyncStatusError, env.sources.outcomes[0].status)
	assert.Contains(t, env.sources.outcomes[0].syncErr, "connection refused")

	assert.Empty(t, env.circuits.applied)
	assert.Empty(t, env.history.appended)
}

func TestReconcileOneUnknownCircuit(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.reconciler.ReconcileOne(context.Background(), 99, "https://partner.example/gir", scraper.SelectorConfig{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, repository.ErrCircuitNotFound))

	// Unknown circuit means no external_sources row; nothing recorded.
	assert.Empty(t, env.sources.outcomes)
}

func TestReconcileAllIsolatesFailures(t *testing.T) {
	env := newTestEnv(t)
	env.circuits.circuits[8] = &model.Circuit{ID: 8, Slug: "kasbahs-et-dunes", Title: "Kasbahs et Dunes", PlacesTotal: 20, PlacesAvailable: 20}
	env.sources.sources = []model.ExternalSource{
		{CircuitID: 7, URL: "https://dead.example/gir", SyncFrequency: model.SyncFrequencyDaily, IsActive: true},
		{CircuitID: 8, URL: "https://partner.example/dunes", SyncFrequency: model.SyncFrequencyDaily, IsActive: true},
	}
	env.fetcher.pages["https://partner.example/dunes"] = `<html><body>
	  <div class="places-disponibles">12</div>
	</body></html>`
	env.mock.ExpectBegin()
	env.mock.ExpectCommit()

	res, err := env.reconciler.ReconcileAll(context.Background(), model.SyncFrequencyDaily)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Synced)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Results, 2)

	// First source failed, second still ran to completion.
	assert.False(t, res.Results[0].Success)
	assert.Contains(t, res.Results[0].Error, "connection refused")
	assert.True(t, res.Results[1].Success)
	require.NotNil(t, res.Results[1].PlacesAvailable)
	assert.Equal(t, 12, *res.Results[1].PlacesAvailable)

	require.Len(t, env.circuits.applied, 1)
	assert.Equal(t, uint64(8), env.circuits.applied[0].circuitID)
}

func TestReconcileOneUsesStoredSelectors(t *testing.T) {
	env := newTestEnv(t)
	avail := "#left"
	env.sources.sources = []model.ExternalSource{
		{CircuitID: 7, URL: "https://partner.example/gir", PlacesAvailableSelector: &avail},
	}
	env.fetcher.pages["https://partner.example/gir"] = `<html><body>
	  <td id="left">9</td>
	</body></html>`
	env.mock.ExpectBegin()
	env.mock.ExpectCommit()

	// No selectors passed: the ones stored on the source row apply.
	extracted, err := env.reconciler.ReconcileOne(context.Background(), 7, "https://partner.example/gir", scraper.SelectorConfig{})
	require.NoError(t, err)
	require.NotNil(t, extracted.PlacesAvailable)
	assert.Equal(t, 9, *extracted.PlacesAvailable)
}

func TestSelectorsForOverrides(t *testing.T) {
	avail := "#left"
	status := ".etat"
	src := model.ExternalSource{PlacesAvailableSelector: &avail, StatusSelector: &status}

	cfg := selectorsFor(src)
	assert.Equal(t, "#left", cfg.PlacesAvailable)
	assert.Equal(t, ".etat", cfg.Status)
	assert.Empty(t, cfg.PlacesTotal)
	assert.Empty(t, cfg.DepartureDates)
}
