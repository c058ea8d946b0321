// Package commission computes the commission terms in effect for a
// GIR circuit.  A circuit either carries a flat base rate or a
// volume-based tier schedule; the effective rate depends on how many
// confirmed participants the circuit has accumulated across agency
// bookings.
package commission

import (
	"context"
	"database/sql"
	"time"

	"github.com/atlasvoyages/gir-availability/internal/model"
)

// CircuitStore is the slice of the circuit repository the resolver
// needs.  Accepting an interface keeps the tier arithmetic testable
// without a database.
type CircuitStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Circuit, error)
	UpdateCommissionTx(ctx context.Context, tx *sql.Tx, id uint64, baseRate float64, useTiered bool) error
	DB() *sql.DB
}

// TierStore lists and replaces a circuit's tier schedule.
type TierStore interface {
	ListByCircuit(ctx context.Context, circuitID uint64) ([]model.CommissionTier, error)
	ReplaceTx(ctx context.Context, tx *sql.Tx, circuitID uint64, tiers []model.CommissionTier) error
}

// BookingStore aggregates confirmed participants.
type BookingStore interface {
	SumConfirmedPax(ctx context.Context, circuitID uint64) (int, error)
}

// Service resolves and configures commission schedules.
type Service struct {
	circuits CircuitStore
	tiers    TierStore
	bookings BookingStore
}

// NewService wires the resolver to its stores.
func NewService(c CircuitStore, t TierStore, b BookingStore) *Service {
	return &Service{circuits: c, tiers: t, bookings: b}
}

// NextTier describes the first tier above the current participant
// count and how many more confirmed pax are needed to reach it.
type NextTier struct {
	MinParticipants int     `json:"min_participants"`
	CommissionRate  float64 `json:"commission_rate"`
	PaxNeeded       int     `json:"pax_needed"`
}

// TierInfo is the wire shape of one schedule step.
type TierInfo struct {
	MinParticipants int     `json:"min_participants"`
	MaxParticipants *int    `json:"max_participants"`
	CommissionRate  float64 `json:"commission_rate"`
}

// Snapshot is the full commission picture for one circuit, as served
// to the back-office and the agency portal.
type Snapshot struct {
	CircuitID           uint64     `json:"circuit_id"`
	CircuitTitle        string     `json:"circuit_title"`
	DepartureDate       *time.Time `json:"departure_date"`
	PlacesTotal         int        `json:"places_total"`
	PlacesAvailable     int        `json:"places_available"`
	CurrentPax          int        `json:"current_pax"`
	CurrentCommission   float64    `json:"current_commission"`
	UseTieredCommission bool       `json:"use_tiered_commission"`
	Tiers               []TierInfo `json:"tiers"`
	NextTier            *NextTier  `json:"next_tier"`
}

// Resolve computes the commission snapshot for a circuit.  The
// operation is a pure read and safe to retry unconditionally.
func (s *Service) Resolve(ctx context.Context, circuitID uint64) (*Snapshot, error) {
	c, err := s.circuits.GetByID(ctx, circuitID)
	if err != nil {
		return nil, err
	}

	pax, err := s.bookings.SumConfirmedPax(ctx, circuitID)
	if err != nil {
		return nil, err
	}

	base := c.BaseCommissionRate
	if base == 0 {
		base = model.DefaultBaseCommissionRate
	}

	snap := &Snapshot{
		CircuitID:           c.ID,
		CircuitTitle:        c.Title,
		DepartureDate:       c.DepartureDate,
		PlacesTotal:         c.PlacesTotal,
		PlacesAvailable:     c.PlacesAvailable,
		CurrentPax:          pax,
		CurrentCommission:   base,
		UseTieredCommission: c.UseTieredCommission,
		Tiers:               []TierInfo{},
	}
	if !c.UseTieredCommission {
		return snap, nil
	}

	tiers, err := s.tiers.ListByCircuit(ctx, circuitID)
	if err != nil {
		return nil, err
	}
	for _, t := range tiers {
		snap.Tiers = append(snap.Tiers, TierInfo{
			MinParticipants: t.MinParticipants,
			MaxParticipants: t.MaxParticipants,
			CommissionRate:  t.CommissionRate,
		})
	}
	if len(tiers) == 0 {
		// Tiering switched on but no schedule saved; degrade to the
		// flat rate at read time.
		return snap, nil
	}

	snap.CurrentCommission = effectiveRate(tiers, base, pax)
	snap.NextTier = nextTier(tiers, pax)
	return snap, nil
}

// effectiveRate scans tiers in ascending min order and keeps the rate
// of the last tier whose range contains pax.  Operator input is not
// validated for overlaps, so with overlapping ranges the later tier
// wins; with no match the flat base rate applies.
func effectiveRate(tiers []model.CommissionTier, base float64, pax int) float64 {
	rate := base
	for _, t := range tiers {
		if t.Contains(pax) {
			rate = t.CommissionRate
		}
	}
	return rate
}

// nextTier returns the first tier strictly above pax, or nil when pax
// already sits in (or beyond) the top bracket.
func nextTier(tiers []model.CommissionTier, pax int) *NextTier {
	for _, t := range tiers {
		if t.MinParticipants > pax {
			return &NextTier{
				MinParticipants: t.MinParticipants,
				CommissionRate:  t.CommissionRate,
				PaxNeeded:       t.MinParticipants - pax,
			}
		}
	}
	return nil
}

// Configure updates a circuit's commission switches and, when tiering
// is enabled, replaces the whole schedule.  Circuit update and tier
// replacement run in a single transaction so a reader can never
// observe a circuit flagged tiered with the old schedule half gone.
func (s *Service) Configure(ctx context.Context, circuitID uint64, baseRate float64, useTiered bool, tiers []model.CommissionTier) error {
	tx, err := s.circuits.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.circuits.UpdateCommissionTx(ctx, tx, circuitID, baseRate, useTiered); err != nil {
		return err
	}
	if useTiered {
		// Wholesale replacement; an empty list leaves the circuit with
		// no tiers, which Resolve degrades to the flat rate.
		if err := s.tiers.ReplaceTx(ctx, tx, circuitID, tiers); err != nil {
			return err
		}
	}
	return tx.Commit()
}
