// Package queue defines message payloads exchanged over the message broker.
package queue

// AvailabilitySyncedEvent is published after a reconciliation has
// successfully written a circuit's availability.  It carries enough
// information for downstream consumers (sales dashboards, the partner
// notification mailer) to react without querying the primary database.
type AvailabilitySyncedEvent struct {
	CircuitID       uint64 `json:"circuit_id"`
	Slug            string `json:"slug"`
	Title           string `json:"title"`
	PlacesAvailable int    `json:"places_available"`
	PlacesTotal     int    `json:"places_total"`
	SourceURL       string `json:"source_url"`
	SyncedAt        string `json:"synced_at"`
}
