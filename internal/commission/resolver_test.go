package commission

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasvoyages/gir-availability/internal/model"
	"github.com/atlasvoyages/gir-availability/internal/repository"
)

// fakeCircuits serves a single circuit by ID.
type fakeCircuits struct {
	circuit *model.Circuit
}

func (f *fakeCircuits) GetByID(ctx context.Context, id uint64) (*model.Circuit, error) {
	if f.circuit == nil || f.circuit.ID != id {
		return nil, repository.ErrCircuitNotFound
	}
	return f.circuit, nil
}

func (f *fakeCircuits) UpdateCommissionTx(ctx context.Context, tx *sql.Tx, id uint64, baseRate float64, useTiered bool) error {
	return nil
}

func (f *fakeCircuits) DB() *sql.DB { return nil }

type fakeTiers struct {
	tiers []model.CommissionTier
}

func (f *fakeTiers) ListByCircuit(ctx context.Context, circuitID uint64) ([]model.CommissionTier, error) {
	return f.tiers, nil
}

func (f *fakeTiers) ReplaceTx(ctx context.Context, tx *sql.Tx, circuitID uint64, tiers []model.CommissionTier) error {
	return nil
}

type fakeBookings struct {
	pax int
}

func (f *fakeBookings) SumConfirmedPax(ctx context.Context, circuitID uint64) (int, error) {
	return f.pax, nil
}

func intPtr(v int) *int { return &v }

func newTestService(c *model.Circuit, tiers []model.CommissionTier, pax int) *Service {
	return NewService(&fakeCircuits{circuit: c}, &fakeTiers{tiers: tiers}, &fakeBookings{pax: pax})
}

// marrakechTiers is a typical schedule: 8% up to 10 pax, 10% from 11
// to 20, 12% from 21 with no upper bound.
func marrakechTiers() []model.CommissionTier {
	return []model.CommissionTier{
		{ID: 1, CircuitID: 7, MinParticipants: 1, MaxParticipants: intPtr(10), CommissionRate: 8},
		{ID: 2, CircuitID: 7, MinParticipants: 11, MaxParticipants: intPtr(20), CommissionRate: 10},
		{ID: 3, CircuitID: 7, MinParticipants: 21, MaxParticipants: nil, CommissionRate: 12},
	}
}

func TestResolveFlatRate(t *testing.T) {
	c := &model.Circuit{ID: 7, Title: "Circuit Sud Marocain", BaseCommissionRate: 9, PlacesTotal: 40, PlacesAvailable: 25}
	svc := newTestService(c, marrakechTiers(), 16)

	snap, err := svc.Resolve(context.Background(), 7)
	require.NoError(t, err)

	// Tiering disabled: the schedule must not be consulted at all.
	assert.Equal(t, 9.0, snap.CurrentCommission)
	assert.False(t, snap.UseTieredCommission)
	assert.Empty(t, snap.Tiers)
	assert.Nil(t, snap.NextTier)
	assert.Equal(t, 16, snap.CurrentPax)
}

func TestResolveZeroBaseFallsBackToDefault(t *testing.T) {
	c := &model.Circuit{ID: 7, Title: "Circuit Sud Marocain"}
	svc := newTestService(c, nil, 0)

	snap, err := svc.Resolve(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultBaseCommissionRate, snap.CurrentCommission)
}

func TestResolveTieredRates(t *testing.T) {
	cases := []struct {
		name string
		pax  int
		rate float64
	}{
		{"bottom bracket", 5, 8},
		{"middle bracket lower edge", 11, 10},
		{"middle bracket", 16, 10},
		{"middle bracket upper edge", 20, 10},
		{"open-ended top bracket", 21, 12},
		{"far beyond top bracket", 55, 12},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := &model.Circuit{ID: 7, BaseCommissionRate: 8, UseTieredCommission: true}
			svc := newTestService(c, marrakechTiers(), tc.pax)

			snap, err := svc.Resolve(context.Background(), 7)
			require.NoError(t, err)
			assert.Equal(t, tc.rate, snap.CurrentCommission)
		})
	}
}

func TestResolveNextTierDistance(t *testing.T) {
	c := &model.Circuit{ID: 7, BaseCommissionRate: 8, UseTieredCommission: true}
	svc := newTestService(c, marrakechTiers(), 6)

	snap, err := svc.Resolve(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, snap.NextTier)
	assert.Equal(t, 11, snap.NextTier.MinParticipants)
	assert.Equal(t, 10.0, snap.NextTier.CommissionRate)
	assert.Equal(t, 5, snap.NextTier.PaxNeeded)
}

func TestResolveNoNextTierAtTop(t *testing.T) {
	c := &model.Circuit{ID: 7, BaseCommissionRate: 8, UseTieredCommission: true}
	svc := newTestService(c, marrakechTiers(), 30)

	snap, err := svc.Resolve(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, snap.NextTier)
	assert.Equal(t, 12.0, snap.CurrentCommission)
}

func TestResolveOverlappingTiersLastMatchWins(t *testing.T) {
	// Operators are free to save overlapping ranges; the tier listed
	// later in min order takes precedence for pax inside the overlap.
	tiers := []model.CommissionTier{
		{MinParticipants: 10, MaxParticipants: intPtr(20), CommissionRate: 8},
		{MinParticipants: 15, MaxParticipants: nil, CommissionRate: 9},
	}
	c := &model.Circuit{ID: 7, BaseCommissionRate: 5, UseTieredCommission: true}
	svc := newTestService(c, tiers, 16)

	snap, err := svc.Resolve(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 9.0, snap.CurrentCommission)
}

func TestResolveTieredWithEmptySchedule(t *testing.T) {
	c := &model.Circuit{ID: 7, BaseCommissionRate: 8, UseTieredCommission: true}
	svc := newTestService(c, nil, 16)

	snap, err := svc.Resolve(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 8.0, snap.CurrentCommission)
	assert.True(t, snap.UseTieredCommission)
	assert.Empty(t, snap.Tiers)
	assert.Nil(t, snap.NextTier)
}

func TestResolveUnknownCircuit(t *testing.T) {
	svc := newTestService(&model.Circuit{ID: 7}, nil, 0)

	_, err := svc.Resolve(context.Background(), 99)
	assert.ErrorIs(t, err, repository.ErrCircuitNotFound)
}

func TestEffectiveRateBelowAllTiers(t *testing.T) {
	tiers := []model.CommissionTier{
		{MinParticipants: 11, MaxParticipants: intPtr(20), CommissionRate: 10},
	}
	assert.Equal(t, 7.5, effectiveRate(tiers, 7.5, 4))
}

func TestTierContainsBounds(t *testing.T) {
	bounded := model.CommissionTier{MinParticipants: 11, MaxParticipants: intPtr(20)}
	assert.False(t, bounded.Contains(10))
	assert.True(t, bounded.Contains(11))
	assert.True(t, bounded.Contains(20))
	assert.False(t, bounded.Contains(21))

	open := model.CommissionTier{MinParticipants: 21}
	assert.True(t, open.Contains(21))
	assert.True(t, open.Contains(500))
	assert.False(t, open.Contains(20))
}
