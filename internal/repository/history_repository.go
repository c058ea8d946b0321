package repository // repository for availability history persistence

import (
	"context"
	"database/sql"

	"github.com/atlasvoyages/gir-availability/internal/model"
)

// HistoryRepo encapsulates access to circuit_availability_history.
// The table is append-only: this repository deliberately exposes no
// update or delete, so every reconciliation and booking event leaves a
// distinct, immutable row.
type HistoryRepo struct {
	db *sql.DB
}

// NewHistoryRepo constructs a HistoryRepo given a DB handle.
func NewHistoryRepo(db *sql.DB) *HistoryRepo { return &HistoryRepo{db: db} }

const historyInsert = `INSERT INTO circuit_availability_history
	(circuit_id, places_available, places_booked, source, synced_from_url)
	VALUES (?, ?, ?, ?, ?)`

// Append inserts a snapshot row and populates its generated ID.
func (r *HistoryRepo) Append(ctx context.Context, h *model.AvailabilityHistory) error {
	return r.append(ctx, r.db.ExecContext, h)
}

// AppendTx is Append inside the caller's transaction; reconciliation
// uses it so the circuit update and its snapshot commit together.
func (r *HistoryRepo) AppendTx(ctx context.Context, tx *sql.Tx, h *model.AvailabilityHistory) error {
	return r.append(ctx, tx.ExecContext, h)
}

type execFunc func(ctx context.Context, query string, args ...any) (sql.Result, error)

func (r *HistoryRepo) append(ctx context.Context, exec execFunc, h *model.AvailabilityHistory) error {
	var url interface{}
	if h.SyncedFromURL != nil {
		url = *h.SyncedFromURL
	}
	res, err := exec(ctx, historyInsert,
		h.CircuitID, h.PlacesAvailable, h.PlacesBooked, h.Source, url)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	h.ID = uint64(id)
	return nil
}

// ListByCircuit returns the newest snapshots for a circuit, most
// recent first.  A limit of 0 falls back to 50, which is what the
// back-office availability chart requests.
func (r *HistoryRepo) ListByCircuit(ctx context.Context, circuitID uint64, limit int) ([]model.AvailabilityHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT id, circuit_id, places_available, places_booked, source, synced_from_url, created_at
		FROM circuit_availability_history
		WHERE circuit_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, circuitID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.AvailabilityHistory{}
	for rows.Next() {
		var (
			h   model.AvailabilityHistory
			url sql.NullString
		)
		if err := rows.Scan(&h.ID, &h.CircuitID, &h.PlacesAvailable, &h.PlacesBooked,
			&h.Source, &url, &h.CreatedAt); err != nil {
			return nil, err
		}
		if url.Valid {
			s := url.String
			h.SyncedFromURL = &s
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
