package model

// CommissionTier is one step of a volume-based commission schedule.
// Each tier belongs to exactly one circuit and maps an inclusive
// participant-count range to a commission percentage.  A nil
// MaxParticipants means the range is unbounded above.
//
// Tier schedules are replaced wholesale when an operator re-saves
// them; there is no per-tier update path and no tier history.  Ranges
// are not validated for overlap; when operator input overlaps, the
// resolver takes the last matching tier in ascending min order.
//
// Fields:
//  ID              – primary key identifier.
//  CircuitID       – owning circuit.
//  MinParticipants – inclusive lower bound of the range.
//  MaxParticipants – inclusive upper bound (nil = unbounded).
//  CommissionRate  – percentage applied inside the range.
type CommissionTier struct {
	ID              uint64  // commission_tiers.id
	CircuitID       uint64  // commission_tiers.circuit_id
	MinParticipants int     // commission_tiers.min_participants
	MaxParticipants *int    // commission_tiers.max_participants (nullable)
	CommissionRate  float64 // commission_tiers.commission_rate
}

// Contains reports whether pax falls inside the tier's inclusive range.
func (t CommissionTier) Contains(pax int) bool {
	if pax < t.MinParticipants {
		return false
	}
	return t.MaxParticipants == nil || pax <= *t.MaxParticipants
}
