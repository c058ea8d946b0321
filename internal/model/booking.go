package model

import "time"

// Booking statuses.  Only confirmed bookings count toward commission
// tier thresholds; pending and cancelled ones are ignored by the
// resolver's pax aggregation.
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
)

// Booking represents an agency's seat reservation on a circuit as
// stored in the `bookings` table.  The commission core only reads
// bookings (summing PlacesBooked over confirmed rows); creation and
// status transitions happen in the booking handlers.
//
// Fields:
//  ID           – primary key identifier.
//  CircuitID    – circuit the seats are booked on.
//  AgencyID     – user (AGENCY role) who placed the booking, nullable
//                 for bookings imported from the legacy back-office.
//  PlacesBooked – number of seats reserved.
//  Status       – pending, confirmed or cancelled.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last status change.
type Booking struct {
	ID           uint64    // bookings.id
	CircuitID    uint64    // bookings.circuit_id
	AgencyID     *uint64   // bookings.agency_id (nullable)
	PlacesBooked int       // bookings.places_booked
	Status       string    // bookings.status
	CreatedAt    time.Time // bookings.created_at
	UpdatedAt    time.Time // bookings.updated_at
}
