// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrCircuitNotFound indicates that a referenced circuit does
// not exist and should surface as an HTTP 404, while ErrConflict
// signals that an operation cannot proceed because of existing state
// (e.g. confirming a booking for more seats than remain available).
package repository

import "errors"

// ErrCircuitNotFound is returned when a referenced circuit does not
// exist. Handlers should translate this into an HTTP 404 response.
var ErrCircuitNotFound = errors.New("circuit not found")

// ErrBookingNotFound is returned when a referenced booking does not
// exist. Handlers should translate this into an HTTP 404 response.
var ErrBookingNotFound = errors.New("booking not found")

// ErrSourceNotFound is returned when no external source row matches
// the given circuit and URL.
var ErrSourceNotFound = errors.New("external source not found")

// ErrConflict is returned when an update cannot be performed because
// of conflicting state, such as confirming a booking that would push
// places_available below zero. Handlers should translate this into an
// HTTP 409 response.
var ErrConflict = errors.New("conflict")
