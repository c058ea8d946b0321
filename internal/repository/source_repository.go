package repository // repository for external availability source configuration

import (
	"context"
	"database/sql"
	"time"

	"github.com/atlasvoyages/gir-availability/internal/model"
)

// SourceRepo encapsulates database operations for external_sources.
// Rows describe where to scrape availability for a circuit and carry
// the outcome bookkeeping of the last attempt, which only the
// reconciler writes.
type SourceRepo struct {
	db *sql.DB
}

// NewSourceRepo constructs a SourceRepo given a DB handle.
func NewSourceRepo(db *sql.DB) *SourceRepo { return &SourceRepo{db: db} }

const sourceColumns = `id, circuit_id, url, places_available_selector, places_total_selector,
	departure_dates_selector, status_selector, sync_frequency, is_active,
	last_sync_at, last_sync_status, last_sync_error, created_at, updated_at`

func scanSource(row interface{ Scan(...any) error }) (*model.ExternalSource, error) {
	var (
		s                                  model.ExternalSource
		availSel, totalSel, dateSel, stSel sql.NullString
		syncAt                             sql.NullTime
		syncStatus, syncErr                sql.NullString
	)
	err := row.Scan(&s.ID, &s.CircuitID, &s.URL, &availSel, &totalSel, &dateSel, &stSel,
		&s.SyncFrequency, &s.IsActive, &syncAt, &syncStatus, &syncErr,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	assign := func(ns sql.NullString, dst **string) {
		if ns.Valid {
			v := ns.String
			*dst = &v
		}
	}
	assign(availSel, &s.PlacesAvailableSelector)
	assign(totalSel, &s.PlacesTotalSelector)
	assign(dateSel, &s.DepartureDatesSelector)
	assign(stSel, &s.StatusSelector)
	assign(syncStatus, &s.LastSyncStatus)
	assign(syncErr, &s.LastSyncError)
	if syncAt.Valid {
		t := syncAt.Time
		s.LastSyncAt = &t
	}
	return &s, nil
}

// ListActiveByFrequency returns every active source whose configured
// frequency matches the batch tag.  The batch reconciler iterates the
// result sequentially.
func (r *SourceRepo) ListActiveByFrequency(ctx context.Context, frequency string) ([]model.ExternalSource, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sourceColumns+` FROM external_sources
		 WHERE is_active = TRUE AND sync_frequency = ? ORDER BY id ASC`, frequency)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ExternalSource{}
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// GetByCircuitAndURL fetches the source row matching a circuit and
// page URL, if one is configured.
func (r *SourceRepo) GetByCircuitAndURL(ctx context.Context, circuitID uint64, url string) (*model.ExternalSource, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM external_sources WHERE circuit_id = ? AND url = ? LIMIT 1`,
		circuitID, url)
	s, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, ErrSourceNotFound
	}
	return s, err
}

// RecordOutcome upserts the sync bookkeeping for a (circuit, url)
// pair.  Manual syncs may target a URL with no configured row yet; the
// upsert creates one (inactive, manual frequency) so the attempt and
// its outcome stay visible to operators.  On success the previous
// error is cleared.
func (r *SourceRepo) RecordOutcome(ctx context.Context, circuitID uint64, url, status string, syncErr string, at time.Time) error {
	var errVal interface{}
	if status == model.SyncStatusError {
		errVal = syncErr
	}
	const q = `INSERT INTO external_sources
		(circuit_id, url, sync_frequency, is_active, last_sync_at, last_sync_status, last_sync_error)
		VALUES (?, ?, 'manual', FALSE, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			last_sync_at = VALUES(last_sync_at),
			last_sync_status = VALUES(last_sync_status),
			last_sync_error = VALUES(last_sync_error)`
	_, err := r.db.ExecContext(ctx, q, circuitID, url, at.UTC(), status, errVal)
	return err
}

// Create inserts a new source configuration and populates its ID.
func (r *SourceRepo) Create(ctx context.Context, s *model.ExternalSource) error {
	const q = `INSERT INTO external_sources
		(circuit_id, url, places_available_selector, places_total_selector,
		 departure_dates_selector, status_selector, sync_frequency, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	strOrNil := func(p *string) interface{} {
		if p != nil {
			return *p
		}
		return nil
	}
	res, err := r.db.ExecContext(ctx, q, s.CircuitID, s.URL,
		strOrNil(s.PlacesAvailableSelector), strOrNil(s.PlacesTotalSelector),
		strOrNil(s.DepartureDatesSelector), strOrNil(s.StatusSelector),
		s.SyncFrequency, s.IsActive)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}
