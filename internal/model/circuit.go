package model

import "time"

// Circuit represents a sellable shared-departure (GIR) tour as stored
// in the `circuits` table.  A circuit has a fixed seat capacity set at
// creation and a mutable available-seat count that is updated either by
// confirmed-booking accounting or by the availability reconciler when
// an external source is synced.  Circuits are never deleted; operators
// archive or unpublish them instead.
//
// Fields:
//  ID                 – primary key identifier.
//  Slug               – unique human-readable identifier used in URLs.
//  Title              – display title of the circuit.
//  DepartureDate      – scheduled departure (nullable while in draft).
//  BaseCommissionRate – flat commission percentage used when tiering is off
//                       or no tier matches (defaults to 10).
//  UseTieredCommission – whether the tier schedule applies.
//  PlacesTotal        – seat capacity, fixed at creation.
//  PlacesAvailable    – authoritative current seat count.
//  IsPublished        – visible on the public catalogue.
//  IsArchived         – soft-delete flag.
//  LastSyncedAt       – when the reconciler last wrote PlacesAvailable.
//  CreatedAt          – timestamp of creation.
//  UpdatedAt          – timestamp of last update.
type Circuit struct {
	ID                  uint64     // circuits.id
	Slug                string     // circuits.slug
	Title               string     // circuits.title
	DepartureDate       *time.Time // circuits.departure_date (nullable)
	BaseCommissionRate  float64    // circuits.base_commission_rate
	UseTieredCommission bool       // circuits.use_tiered_commission
	PlacesTotal         int        // circuits.places_total
	PlacesAvailable     int        // circuits.places_available
	IsPublished         bool       // circuits.is_published
	IsArchived          bool       // circuits.is_archived
	LastSyncedAt        *time.Time // circuits.last_synced_at (nullable)
	CreatedAt           time.Time  // circuits.created_at
	UpdatedAt           time.Time  // circuits.updated_at
}

// DefaultBaseCommissionRate is applied when a circuit's base rate was
// never configured by an operator.
const DefaultBaseCommissionRate = 10.0
