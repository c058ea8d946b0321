package repository // repository for circuit persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/atlasvoyages/gir-availability/internal/model"
)

// CircuitRepo encapsulates database operations for the circuits table.
// All timestamps are stored in UTC.  Circuits are never hard-deleted;
// Archive flips the is_archived flag instead.
type CircuitRepo struct {
	db *sql.DB
}

// NewCircuitRepo constructs a CircuitRepo bound to the given DB handle.
func NewCircuitRepo(db *sql.DB) *CircuitRepo { return &CircuitRepo{db: db} }

// DB exposes the underlying handle so services can open transactions
// that span this repository and others (tier replacement, sync apply).
func (r *CircuitRepo) DB() *sql.DB { return r.db }

const circuitColumns = `id, slug, title, departure_date, base_commission_rate,
	use_tiered_commission, places_total, places_available, is_published,
	is_archived, last_synced_at, created_at, updated_at`

// scanCircuit reads one circuit row from any row scanner, unwrapping
// the nullable columns into pointer fields.
func scanCircuit(row interface{ Scan(...any) error }) (*model.Circuit, error) {
	var (
		c         model.Circuit
		departure sql.NullTime
		synced    sql.NullTime
	)
	err := row.Scan(&c.ID, &c.Slug, &c.Title, &departure, &c.BaseCommissionRate,
		&c.UseTieredCommission, &c.PlacesTotal, &c.PlacesAvailable, &c.IsPublished,
		&c.IsArchived, &synced, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if departure.Valid {
		t := departure.Time
		c.DepartureDate = &t
	}
	if synced.Valid {
		t := synced.Time
		c.LastSyncedAt = &t
	}
	return &c, nil
}

// Create inserts a new circuit and populates its generated ID.  The
// available count starts equal to the total capacity.
func (r *CircuitRepo) Create(ctx context.Context, c *model.Circuit) error {
	const q = `INSERT INTO circuits
		(slug, title, departure_date, base_commission_rate, use_tiered_commission,
		 places_total, places_available, is_published)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	var departure interface{}
	if c.DepartureDate != nil {
		departure = c.DepartureDate.UTC()
	}
	res, err := r.db.ExecContext(ctx, q, c.Slug, c.Title, departure,
		c.BaseCommissionRate, c.UseTieredCommission,
		c.PlacesTotal, c.PlacesAvailable, c.IsPublished)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

// GetByID fetches a circuit by primary key.  Missing rows are mapped
// to ErrCircuitNotFound so handlers can answer 404 without inspecting
// sql.ErrNoRows themselves.
func (r *CircuitRepo) GetByID(ctx context.Context, id uint64) (*model.Circuit, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+circuitColumns+` FROM circuits WHERE id = ?`, id)
	c, err := scanCircuit(row)
	if err == sql.ErrNoRows {
		return nil, ErrCircuitNotFound
	}
	return c, err
}

// GetBySlug fetches a circuit by its unique slug.
func (r *CircuitRepo) GetBySlug(ctx context.Context, slug string) (*model.Circuit, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+circuitColumns+` FROM circuits WHERE slug = ?`, slug)
	c, err := scanCircuit(row)
	if err == sql.ErrNoRows {
		return nil, ErrCircuitNotFound
	}
	return c, err
}

// ListPublished returns all published, non-archived circuits ordered
// by departure date.  Used by the public catalogue endpoint.
func (r *CircuitRepo) ListPublished(ctx context.Context) ([]model.Circuit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+circuitColumns+` FROM circuits
		 WHERE is_published = TRUE AND is_archived = FALSE
		 ORDER BY departure_date IS NULL, departure_date ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Circuit{}
	for rows.Next() {
		c, err := scanCircuit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Update rewrites the operator-editable fields of a circuit.  Capacity
// (places_total) is fixed at creation and intentionally absent here.
func (r *CircuitRepo) Update(ctx context.Context, c *model.Circuit) error {
	const q = `UPDATE circuits
		SET slug = ?, title = ?, departure_date = ?, is_published = ?, is_archived = ?
		WHERE id = ?`
	var departure interface{}
	if c.DepartureDate != nil {
		departure = c.DepartureDate.UTC()
	}
	res, err := r.db.ExecContext(ctx, q, c.Slug, c.Title, departure,
		c.IsPublished, c.IsArchived, c.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		// RowsAffected is 0 both for a missing row and for a no-op
		// update; distinguish by probing for existence.
		if _, gerr := r.GetByID(ctx, c.ID); gerr != nil {
			return gerr
		}
	}
	return err
}

// Archive marks a circuit as archived and unpublished.  Circuits are
// never deleted so history and bookings keep a valid parent.
func (r *CircuitRepo) Archive(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE circuits SET is_archived = TRUE, is_published = FALSE WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, gerr := r.GetByID(ctx, id); gerr != nil {
			return gerr
		}
	}
	return nil
}

// UpdateCommissionTx updates the commission switches on a circuit
// within an existing transaction, so the tier replacement that follows
// commits or rolls back together with it.
func (r *CircuitRepo) UpdateCommissionTx(ctx context.Context, tx *sql.Tx, id uint64, baseRate float64, useTiered bool) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE circuits SET base_commission_rate = ?, use_tiered_commission = ? WHERE id = ?`,
		baseRate, useTiered, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM circuits WHERE id = ?)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrCircuitNotFound
		}
	}
	return nil
}

// ApplySyncTx writes a reconciled availability figure and stamps the
// sync time, within an existing transaction so the history append in
// the same reconciliation cannot be observed without it.
func (r *CircuitRepo) ApplySyncTx(ctx context.Context, tx *sql.Tx, id uint64, placesAvailable int, syncedAt time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE circuits SET places_available = ?, last_synced_at = ? WHERE id = ?`,
		placesAvailable, syncedAt.UTC(), id)
	return err
}

// GetAvailabilityTx reads the current seat counters inside the
// caller's transaction, so booking accounting snapshots the value it
// just wrote rather than a concurrently updated one.
func (r *CircuitRepo) GetAvailabilityTx(ctx context.Context, tx *sql.Tx, id uint64) (available, total int, err error) {
	err = tx.QueryRowContext(ctx,
		`SELECT places_available, places_total FROM circuits WHERE id = ?`, id).
		Scan(&available, &total)
	if err == sql.ErrNoRows {
		err = ErrCircuitNotFound
	}
	return available, total, err
}

// AdjustAvailabilityTx decrements (or restores, with a negative delta)
// available seats as part of confirmed-booking accounting.  The guard
// in the WHERE clause refuses to take the count below zero; in that
// case ErrConflict is returned and the caller should roll back.
func (r *CircuitRepo) AdjustAvailabilityTx(ctx context.Context, tx *sql.Tx, id uint64, delta int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE circuits SET places_available = places_available - ?
		 WHERE id = ? AND places_available - ? >= 0`, delta, id, delta)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}
