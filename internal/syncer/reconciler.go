// Package syncer reconciles a circuit's authoritative seat
// availability against what its external source page currently shows.
// A single reconciliation fetches the page, runs the extraction rules,
// and, when a figure was found, writes the circuit update and an
// immutable history snapshot in one transaction, then records the
// outcome on the source row and publishes an event, both best-effort.
package syncer

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atlasvoyages/gir-availability/internal/model"
	"github.com/atlasvoyages/gir-availability/internal/queue"
	"github.com/atlasvoyages/gir-availability/internal/repository"
	"github.com/atlasvoyages/gir-availability/internal/scraper"
)

// CircuitStore is the slice of the circuit repository the reconciler
// writes through.
type CircuitStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Circuit, error)
	ApplySyncTx(ctx context.Context, tx *sql.Tx, id uint64, placesAvailable int, syncedAt time.Time) error
	DB() *sql.DB
}

// HistoryStore appends availability snapshots.
type HistoryStore interface {
	AppendTx(ctx context.Context, tx *sql.Tx, h *model.AvailabilityHistory) error
}

// SourceStore lists sources for batch runs, looks up stored selector
// configuration and records attempt outcomes.
type SourceStore interface {
	ListActiveByFrequency(ctx context.Context, frequency string) ([]model.ExternalSource, error)
	GetByCircuitAndURL(ctx context.Context, circuitID uint64, url string) (*model.ExternalSource, error)
	RecordOutcome(ctx context.Context, circuitID uint64, url, status string, syncErr string, at time.Time) error
}

// PageFetcher downloads a source page.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) ([]byte, error)
}

// PublishFunc sends an availability event to the broker. Failures are
// logged and swallowed; publishing is observability, not correctness.
type PublishFunc func(ctx context.Context, ev queue.AvailabilitySyncedEvent) error

// lockTTL caps how long a stuck reconciliation can hold a circuit's
// sync lock before it expires on its own.
const lockTTL = 60 * time.Second

// Reconciler coordinates single and batch reconciliations.  The redis
// client serializes concurrent reconciliations of the same circuit; a
// nil client (redis down at startup) degrades to unguarded syncs, like
// the response cache does.
type Reconciler struct {
	circuits CircuitStore
	history  HistoryStore
	sources  SourceStore
	fetcher  PageFetcher
	rdb      *redis.Client
	publish  PublishFunc
}

// NewReconciler wires a reconciler. rdb and publish may be nil.
func NewReconciler(c CircuitStore, h HistoryStore, s SourceStore, f PageFetcher, rdb *redis.Client, publish PublishFunc) *Reconciler {
	return &Reconciler{circuits: c, history: h, sources: s, fetcher: f, rdb: rdb, publish: publish}
}

// ReconcileOne refreshes one circuit from one source page.  The
// returned extraction is non-nil whenever the fetch and parse
// succeeded, even if no field could be extracted; in that case the
// circuit is left untouched and no history row is written.  Fetch,
// parse and datastore failures come back as *SyncError and are also
// recorded on the external_sources row so operators can see which
// sources are broken.
func (r *Reconciler) ReconcileOne(ctx context.Context, circuitID uint64, sourceURL string, cfg scraper.SelectorConfig) (*scraper.Extracted, error) {
	if circuitID == 0 || strings.TrimSpace(sourceURL) == "" {
		return nil, ErrMissingInput
	}

	// No explicit selectors: reuse the ones stored on the configured
	// source row, if this URL has one.
	if cfg == (scraper.SelectorConfig{}) {
		if src, err := r.sources.GetByCircuitAndURL(ctx, circuitID, sourceURL); err == nil {
			cfg = selectorsFor(*src)
		}
	}

	unlock, err := r.lockCircuit(ctx, circuitID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	extracted, err := r.reconcileLocked(ctx, circuitID, sourceURL, cfg)
	if err != nil {
		serr := &SyncError{CircuitID: circuitID, SourceURL: sourceURL, Err: err}
		// An unknown circuit has no source row to annotate.
		if !errors.Is(err, repository.ErrCircuitNotFound) {
			if rerr := r.sources.RecordOutcome(ctx, circuitID, sourceURL,
				model.SyncStatusError, err.Error(), time.Now().UTC()); rerr != nil {
				log.Printf("syncer: record error outcome failed for circuit %d: %v", circuitID, rerr)
			}
		}
		return nil, serr
	}
	return extracted, nil
}

func (r *Reconciler) reconcileLocked(ctx context.Context, circuitID uint64, sourceURL string, cfg scraper.SelectorConfig) (*scraper.Extracted, error) {
	circuit, err := r.circuits.GetByID(ctx, circuitID)
	if err != nil {
		return nil, err
	}

	body, err := r.fetcher.FetchPage(ctx, sourceURL)
	if err != nil {
		return nil, err
	}
	extracted, err := scraper.Extract(body, cfg)
	if err != nil {
		return nil, err
	}

	// No availability figure on the page is not an error: return the
	// partial extraction and leave the circuit exactly as it was.
	if extracted.PlacesAvailable == nil {
		return extracted, nil
	}

	available := *extracted.PlacesAvailable
	total := circuit.PlacesTotal
	if extracted.PlacesTotal != nil {
		total = *extracted.PlacesTotal
	}
	now := time.Now().UTC()

	// Circuit update and history append commit together; a crash
	// between them can no longer leave a figure without its snapshot.
	tx, err := r.circuits.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := r.circuits.ApplySyncTx(ctx, tx, circuitID, available, now); err != nil {
		return nil, err
	}
	url := sourceURL
	record := &model.AvailabilityHistory{
		CircuitID:       circuitID,
		PlacesAvailable: available,
		PlacesBooked:    total - available,
		Source:          model.HistorySourceSync,
		SyncedFromURL:   &url,
	}
	if err := r.history.AppendTx(ctx, tx, record); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	// From here on everything is observability: failures are logged
	// but the reconciliation already succeeded.
	if err := r.sources.RecordOutcome(ctx, circuitID, sourceURL,
		model.SyncStatusSuccess, "", now); err != nil {
		log.Printf("syncer: record success outcome failed for circuit %d: %v", circuitID, err)
	}
	if r.publish != nil {
		ev := queue.AvailabilitySyncedEvent{
			CircuitID:       circuitID,
			Slug:            circuit.Slug,
			Title:           circuit.Title,
			PlacesAvailable: available,
			PlacesTotal:     total,
			SourceURL:       sourceURL,
			SyncedAt:        now.Format(time.RFC3339),
		}
		if err := r.publish(ctx, ev); err != nil {
			log.Printf("syncer: publish availability.synced failed for circuit %d: %v", circuitID, err)
		}
	}
	return extracted, nil
}

// SourceResult is the per-source outcome of a batch run.
type SourceResult struct {
	Success         bool     `json:"success"`
	CircuitID       uint64   `json:"circuit_id"`
	SourceURL       string   `json:"source_url"`
	PlacesAvailable *int     `json:"places_available,omitempty"`
	PlacesTotal     *int     `json:"places_total,omitempty"`
	DepartureDates  []string `json:"departure_dates,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// BatchResult aggregates a full batch run.
type BatchResult struct {
	Synced  int            `json:"synced"`
	Failed  int            `json:"failed"`
	Results []SourceResult `json:"results"`
}

// ReconcileAll runs every active source configured for the given
// frequency, sequentially and independently: one source's failure is
// collected into the result and never aborts the rest of the batch.
func (r *Reconciler) ReconcileAll(ctx context.Context, frequency string) (*BatchResult, error) {
	srcs, err := r.sources.ListActiveByFrequency(ctx, frequency)
	if err != nil {
		return nil, err
	}

	out := &BatchResult{Results: []SourceResult{}}
	for _, src := range srcs {
		res := SourceResult{CircuitID: src.CircuitID, SourceURL: src.URL}
		extracted, err := r.ReconcileOne(ctx, src.CircuitID, src.URL, selectorsFor(src))
		if err != nil {
			res.Error = err.Error()
			out.Failed++
		} else {
			res.Success = true
			res.PlacesAvailable = extracted.PlacesAvailable
			res.PlacesTotal = extracted.PlacesTotal
			res.DepartureDates = extracted.DepartureDates
			out.Synced++
		}
		out.Results = append(out.Results, res)
	}
	return out, nil
}

// selectorsFor builds the extraction config from a source row's
// selector overrides; unset columns keep the default rules.
func selectorsFor(src model.ExternalSource) scraper.SelectorConfig {
	cfg := scraper.SelectorConfig{}
	if src.PlacesAvailableSelector != nil {
		cfg.PlacesAvailable = *src.PlacesAvailableSelector
	}
	if src.PlacesTotalSelector != nil {
		cfg.PlacesTotal = *src.PlacesTotalSelector
	}
	if src.DepartureDatesSelector != nil {
		cfg.DepartureDates = *src.DepartureDatesSelector
	}
	if src.StatusSelector != nil {
		cfg.Status = *src.StatusSelector
	}
	return cfg
}

// lockCircuit takes the per-circuit sync lock via SETNX.  The returned
// function releases it.  With no redis client the lock is a no-op and
// concurrent syncs race, which is tolerable: history is append-only
// and places_available follows last-write-wins.
func (r *Reconciler) lockCircuit(ctx context.Context, circuitID uint64) (func(), error) {
	if r.rdb == nil {
		return func() {}, nil
	}
	key := lockKey(circuitID)
	ok, err := r.rdb.SetNX(ctx, key, "1", lockTTL).Result()
	if err != nil {
		// Redis being down should not block reconciliation.
		log.Printf("syncer: redis lock unavailable for circuit %d: %v", circuitID, err)
		return func() {}, nil
	}
	if !ok {
		return nil, ErrSyncInProgress
	}
	return func() {
		if err := r.rdb.Del(context.Background(), key).Err(); err != nil {
			log.Printf("syncer: release lock failed for circuit %d: %v", circuitID, err)
		}
	}, nil
}

func lockKey(circuitID uint64) string {
	return "sync:lock:" + strconv.FormatUint(circuitID, 10)
}
