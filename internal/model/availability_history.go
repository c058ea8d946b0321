package model

import "time"

// History record provenance tags.
const (
	HistorySourceSync    = "sync"    // written by the availability reconciler
	HistorySourceBooking = "booking" // written by confirmed-booking accounting
	HistorySourceManual  = "manual"  // written by an operator edit
)

// AvailabilityHistory is an immutable, append-only snapshot of a
// circuit's seat situation at a point in time, stored in the
// `circuit_availability_history` table.  Rows are only ever inserted;
// the repository exposes no update or delete for them.
//
// Fields:
//  ID              – primary key identifier.
//  CircuitID       – circuit the snapshot belongs to.
//  PlacesAvailable – available seats at snapshot time.
//  PlacesBooked    – derived as places_total - places_available at write time.
//  Source          – provenance tag (sync, booking, manual).
//  SyncedFromURL   – source page URL when Source is "sync" (nullable).
//  CreatedAt       – snapshot timestamp.
type AvailabilityHistory struct {
	ID              uint64    // circuit_availability_history.id
	CircuitID       uint64    // circuit_availability_history.circuit_id
	PlacesAvailable int       // circuit_availability_history.places_available
	PlacesBooked    int       // circuit_availability_history.places_booked
	Source          string    // circuit_availability_history.source
	SyncedFromURL   *string   // circuit_availability_history.synced_from_url (nullable)
	CreatedAt       time.Time // circuit_availability_history.created_at
}
