package syncer

import (
	"errors"
	"fmt"
)

// ErrMissingInput is returned when a reconciliation is requested
// without a circuit id or source URL. Handlers translate it into an
// HTTP 400 response; it is never retried automatically.
var ErrMissingInput = errors.New("circuit_id and source_url are required")

// ErrSyncInProgress is returned when another reconciliation currently
// holds the per-circuit lock (a manual trigger racing the scheduled
// batch). Handlers translate it into an HTTP 409 response.
var ErrSyncInProgress = errors.New("sync already in progress for circuit")

// SyncError wraps a fetch, parse or datastore failure together with
// the identifiers of the source being reconciled, so error bookkeeping
// on the external_sources row never needs to re-read the original
// request.
type SyncError struct {
	CircuitID uint64
	SourceURL string
	Err       error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync circuit %d from %s: %v", e.CircuitID, e.SourceURL, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }
