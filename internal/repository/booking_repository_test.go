package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasvoyages/gir-availability/internal/model"
)

const sumConfirmedQuery = `SELECT COALESCE(SUM(places_booked), 0) FROM bookings WHERE circuit_id = ? AND status = ?`

func newBookingRepo(t *testing.T) (*BookingRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewBookingRepo(db), mock
}

func TestSumConfirmedPaxCountsOnlyConfirmed(t *testing.T) {
	repo, mock := newBookingRepo(t)

	// Pending and cancelled rows must never reach the aggregate: the
	// query has to filter on the confirmed status, bound as the second
	// argument.
	mock.ExpectQuery(regexp.QuoteMeta(sumConfirmedQuery)).
		WithArgs(uint64(7), model.BookingStatusConfirmed).
		WillReturnRows(sqlmock.NewRows([]string{"pax"}).AddRow(33))

	pax, err := repo.SumConfirmedPax(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 33, pax)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSumConfirmedPaxZeroWithoutBookings(t *testing.T) {
	repo, mock := newBookingRepo(t)

	// COALESCE turns the empty aggregate into 0, never NULL, so a
	// circuit with no bookings resolves without error.
	mock.ExpectQuery(regexp.QuoteMeta(sumConfirmedQuery)).
		WithArgs(uint64(7), model.BookingStatusConfirmed).
		WillReturnRows(sqlmock.NewRows([]string{"pax"}).AddRow(0))

	pax, err := repo.SumConfirmedPax(context.Background(), 7)
	require.NoError(t, err)
	assert.Zero(t, pax)
	assert.NoError(t, mock.ExpectationsWereMet())
}
