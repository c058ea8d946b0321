package repository // repository for commission tier persistence

import (
	"context"
	"database/sql"

	"github.com/atlasvoyages/gir-availability/internal/model"
)

// TierRepo encapsulates database operations for commission_tiers.
// Schedules are only ever replaced wholesale: the operator UI re-saves
// the whole list, so there is no per-tier update path.
type TierRepo struct {
	db *sql.DB
}

// NewTierRepo constructs a TierRepo given a DB handle.
func NewTierRepo(db *sql.DB) *TierRepo { return &TierRepo{db: db} }

// ListByCircuit returns all tiers of a circuit ordered by ascending
// min_participants.  The resolver depends on this ordering for its
// last-matching-tier scan.
func (r *TierRepo) ListByCircuit(ctx context.Context, circuitID uint64) ([]model.CommissionTier, error) {
	const q = `SELECT id, circuit_id, min_participants, max_participants, commission_rate
		FROM commission_tiers WHERE circuit_id = ?
		ORDER BY min_participants ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, circuitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.CommissionTier{}
	for rows.Next() {
		var (
			t  model.CommissionTier
			mx sql.NullInt64
		)
		if err := rows.Scan(&t.ID, &t.CircuitID, &t.MinParticipants, &mx, &t.CommissionRate); err != nil {
			return nil, err
		}
		if mx.Valid {
			v := int(mx.Int64)
			t.MaxParticipants = &v
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ReplaceTx deletes every tier of the circuit and inserts the provided
// list verbatim, inside the caller's transaction.  Running both steps
// in one transaction closes the window where a reader could observe a
// circuit flagged as tiered but carrying zero tiers.  Ranges are not
// validated; overlapping operator input is resolved at read time.
func (r *TierRepo) ReplaceTx(ctx context.Context, tx *sql.Tx, circuitID uint64, tiers []model.CommissionTier) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM commission_tiers WHERE circuit_id = ?`, circuitID); err != nil {
		return err
	}
	if len(tiers) == 0 {
		return nil
	}
	query := `INSERT INTO commission_tiers (circuit_id, min_participants, max_participants, commission_rate) VALUES `
	args := make([]interface{}, 0, len(tiers)*4)
	for i, t := range tiers {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		var mx interface{}
		if t.MaxParticipants != nil {
			mx = *t.MaxParticipants
		}
		args = append(args, circuitID, t.MinParticipants, mx, t.CommissionRate)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
