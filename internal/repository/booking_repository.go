package repository // repository for booking persistence

import (
	"context"
	"database/sql"

	"github.com/atlasvoyages/gir-availability/internal/model"
)

// BookingRepo encapsulates database operations for bookings.  The
// commission resolver only reads from this table (aggregating
// confirmed pax); writes happen through the agency and operator
// booking endpoints.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo constructs a BookingRepo given a DB handle.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// Create inserts a booking and populates its generated ID.  New
// bookings always start in the pending state; confirmation is an
// operator action.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	const q = `INSERT INTO bookings (circuit_id, agency_id, places_booked, status) VALUES (?, ?, ?, ?)`
	var agency interface{}
	if b.AgencyID != nil {
		agency = *b.AgencyID
	}
	res, err := r.db.ExecContext(ctx, q, b.CircuitID, agency, b.PlacesBooked, b.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// GetByID fetches a booking by primary key.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	const q = `SELECT id, circuit_id, agency_id, places_booked, status, created_at, updated_at
		FROM bookings WHERE id = ?`
	var (
		b      model.Booking
		agency sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(&b.ID, &b.CircuitID, &agency,
		&b.PlacesBooked, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	if agency.Valid {
		v := uint64(agency.Int64)
		b.AgencyID = &v
	}
	return &b, nil
}

// ListByCircuit returns all bookings for a circuit, newest first.
func (r *BookingRepo) ListByCircuit(ctx context.Context, circuitID uint64) ([]model.Booking, error) {
	const q = `SELECT id, circuit_id, agency_id, places_booked, status, created_at, updated_at
		FROM bookings WHERE circuit_id = ? ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, circuitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Booking{}
	for rows.Next() {
		var (
			b      model.Booking
			agency sql.NullInt64
		)
		if err := rows.Scan(&b.ID, &b.CircuitID, &agency, &b.PlacesBooked,
			&b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		if agency.Valid {
			v := uint64(agency.Int64)
			b.AgencyID = &v
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SumConfirmedPax aggregates places_booked over confirmed bookings of
// a circuit.  Missing rows yield zero, never an error, so a circuit
// with no bookings resolves against the first tier bracket.
func (r *BookingRepo) SumConfirmedPax(ctx context.Context, circuitID uint64) (int, error) {
	const q = `SELECT COALESCE(SUM(places_booked), 0) FROM bookings
		WHERE circuit_id = ? AND status = ?`
	var pax int
	err := r.db.QueryRowContext(ctx, q, circuitID, model.BookingStatusConfirmed).Scan(&pax)
	return pax, err
}

// UpdateStatusTx transitions a booking's status inside the caller's
// transaction, so the availability adjustment that accompanies a
// confirmation commits atomically with it.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM bookings WHERE id = ?)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrBookingNotFound
		}
	}
	return nil
}
