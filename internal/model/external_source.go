package model

import "time"

// Sync outcome values recorded on external_sources.last_sync_status.
const (
	SyncStatusSuccess = "success"
	SyncStatusError   = "error"
)

// Sync frequency tags matched by the batch reconciler.
const (
	SyncFrequencyHourly = "hourly"
	SyncFrequencyDaily  = "daily"
	SyncFrequencyWeekly = "weekly"
)

// ExternalSource describes where and how to fetch availability for a
// circuit, as stored in the `external_sources` table.  The selector
// columns override the built-in extraction rules when set; a NULL
// selector falls back to the default rule for that field.  The
// last_sync_* columns are mutated only by the reconciler as a side
// effect of each attempt, so operators can see which sources are
// broken.
//
// Fields:
//  ID                      – primary key identifier.
//  CircuitID               – circuit this source feeds.
//  URL                     – page to fetch.
//  PlacesAvailableSelector – CSS selector for the available-seat figure.
//  PlacesTotalSelector     – CSS selector for the capacity figure.
//  DepartureDatesSelector  – CSS selector matching departure date nodes.
//  StatusSelector          – CSS selector for the textual status badge.
//  SyncFrequency           – hourly, daily or weekly.
//  IsActive                – whether the batch reconciler picks it up.
//  LastSyncAt              – when the last attempt finished.
//  LastSyncStatus          – success or error (nil before first attempt).
//  LastSyncError           – message of the last failure (nil on success).
//  CreatedAt               – timestamp of creation.
//  UpdatedAt               – timestamp of last update.
type ExternalSource struct {
	ID                      uint64     // external_sources.id
	CircuitID               uint64     // external_sources.circuit_id
	URL                     string     // external_sources.url
	PlacesAvailableSelector *string    // external_sources.places_available_selector (nullable)
	PlacesTotalSelector     *string    // external_sources.places_total_selector (nullable)
	DepartureDatesSelector  *string    // external_sources.departure_dates_selector (nullable)
	StatusSelector          *string    // external_sources.status_selector (nullable)
	SyncFrequency           string     // external_sources.sync_frequency
	IsActive                bool       // external_sources.is_active
	LastSyncAt              *time.Time // external_sources.last_sync_at (nullable)
	LastSyncStatus          *string    // external_sources.last_sync_status (nullable)
	LastSyncError           *string    // external_sources.last_sync_error (nullable)
	CreatedAt               time.Time  // external_sources.created_at
	UpdatedAt               time.Time  // external_sources.updated_at
}
