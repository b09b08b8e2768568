package housing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/rent-market/internal/entropy"
	"github.com/talgya/rent-market/internal/tuning"
)

// --- fakes ---

type fakeTenant struct {
	income, wealth, satisfaction float64
	paid                         float64
}

func (f *fakeTenant) MonthlyIncome() float64     { return f.income }
func (f *fakeTenant) Savings() float64           { return f.wealth }
func (f *fakeTenant) SatisfactionScore() float64 { return f.satisfaction }
func (f *fakeTenant) PayRent(amount float64) float64 {
	paid := math.Min(amount, f.wealth)
	f.wealth -= paid
	f.paid += paid
	return paid
}

type fakeRules struct {
	caps      bool
	maxInc    float64
	capRatio  float64
	prevented float64
}

func (r *fakeRules) CapsIncreases() bool      { return r.caps }
func (r *fakeRules) MaxIncreaseRate() float64 { return r.maxInc }
func (r *fakeRules) MaxRentForIncome(income float64) float64 {
	if r.capRatio <= 0 {
		return math.Inf(1)
	}
	return r.capRatio * income
}
func (r *fakeRules) NotePrevented(amount float64) { r.prevented += amount }

func lookup(tenants map[HouseholdID]*fakeTenant) TenantLookup {
	return func(id HouseholdID) Tenant {
		if t, ok := tenants[id]; ok {
			return t
		}
		return nil
	}
}

// --- unit ---

func TestUnit_OccupancyExclusivity(t *testing.T) {
	u := NewUnit(1, 0.7, 1200, 2, 0.5, 0)
	assert.Equal(t, OccupancyVacant, u.Occupancy())

	require.NoError(t, u.AddTenant(10))
	assert.Equal(t, OccupancySingle, u.Occupancy())
	assert.ErrorIs(t, u.AddTenant(10), ErrAlreadyTenant)

	require.NoError(t, u.AddTenant(11))
	assert.Equal(t, OccupancyShared, u.Occupancy())
	assert.ErrorIs(t, u.AddTenant(12), ErrUnitFull)
	assert.InDelta(t, 600, u.RentShare(), 1e-9)

	assert.True(t, u.RemoveTenant(10))
	assert.False(t, u.RemoveTenant(10))
	assert.True(t, u.RemoveTenant(11))
	assert.True(t, u.IsVacant())
}

func TestTransfers_AreAtomic(t *testing.T) {
	l := NewLandlord(1, 0.5, 0.5, 0.5, true)
	u := NewUnit(1, 0.7, 1200, 2, 0.5, 0)
	l.Own(u)

	require.NoError(t, u.AddTenant(5))
	assert.ErrorIs(t, TransferToHousehold(u, l, 9), ErrHasTenants)
	u.RemoveTenant(5)

	require.NoError(t, TransferToHousehold(u, l, 9))
	assert.Nil(t, u.Landlord)
	require.NotNil(t, u.Owner)
	assert.Equal(t, HouseholdID(9), *u.Owner)
	assert.Empty(t, l.Units)
	assert.Equal(t, OccupancyOwner, u.Occupancy())
	assert.ErrorIs(t, u.AddTenant(3), ErrOwnerOccupied)

	other := NewLandlord(2, 0.5, 0.5, 0.5, true)
	assert.ErrorIs(t, TransferToLandlord(u, 8, other), ErrNotOwner)
	require.NoError(t, TransferToLandlord(u, 9, other))
	assert.Nil(t, u.Owner)
	require.NotNil(t, u.Landlord)
	assert.Equal(t, LandlordID(2), *u.Landlord)
	assert.Equal(t, []UnitID{1}, other.Units)
}

func TestUnit_ValuationAndRenovation(t *testing.T) {
	u := NewUnit(1, 0.4, 1000, 2, 0.5, AmenitySet(0).With(AmenityGarden).With(AmenityTransit))
	assert.Equal(t, 2, u.Amenities.Count())
	assert.InDelta(t, 2.0/NumAmenities, u.Amenities.Score(), 1e-9)

	before := u.MarketValue()
	u.Renovate(0.3)
	u.UpdateValuation(1)
	assert.InDelta(t, 0.7, u.Quality, 1e-9)
	assert.Greater(t, u.MarketValue(), before)

	u.Depreciate(1)
	assert.InDelta(t, 0.05, u.Quality, 1e-9)
}

func TestRegistry_CloneIsDeep(t *testing.T) {
	reg := NewRegistry(NewUnit(1, 0.5, 1000, 1, 0.5, 0), NewUnit(2, 0.5, 1000, 1, 0.5, 0))
	require.NoError(t, reg.Get(1).AddTenant(4))

	c := reg.Clone()
	c.Get(1).RemoveTenant(4)
	c.Get(2).Rent = 5

	assert.True(t, reg.Get(1).HasTenant(4))
	assert.InDelta(t, 1000, reg.Get(2).Rent, 1e-9)
	assert.Equal(t, 2, c.Len())
	assert.Nil(t, reg.Get(99))
}

// --- contract ---

func TestContract_Lifecycle(t *testing.T) {
	c := NewContract(1, 2, 1000, 1, 1)
	c.Update(6, 1000, 0.6)
	assert.False(t, c.IsLongTerm())
	c.Update(6, 1100, 0.5)
	assert.True(t, c.IsLongTerm())
	assert.Equal(t, 12, c.Duration())
	assert.InDelta(t, 0.1, c.RentChange(1100), 1e-9)
	assert.Len(t, c.History(), 2)
	assert.Equal(t, 12, c.History()[1].Month)
}

// --- landlord rent-setting ---

func TestVacancyMarkdown_MonotoneAndFloored(t *testing.T) {
	l := NewLandlord(1, 0.3, 0.5, 0.5, true)
	u := NewUnit(1, 0.1, 1000, 2, 0.1, 0)
	l.Own(u)
	reg := NewRegistry(u)
	sig := MarketSignal{VacancyRate: 0.3, Demand: 0.5, PriceIndex: 1}

	prev := u.Rent
	for period := 0; period < 30; period++ {
		l.UpdateRents(reg, nil, sig, lookup(nil), period)
		assert.LessOrEqual(t, u.Rent, prev, "period %d", period)
		assert.GreaterOrEqual(t, u.Rent, 0.6*u.BaseRent-1e-9)
		assert.GreaterOrEqual(t, u.Rent, prev*(1-tuning.MaxVacancyStep)-1e-9, "at most one step per period")
		prev = u.Rent
	}
	assert.InDelta(t, 0.6*u.BaseRent, u.Rent, 1e-6)
	assert.NotEmpty(t, u.Markdowns())
	assert.Equal(t, 30, u.VacancyDuration)
}

func TestVacancyRent_NeverRaises(t *testing.T) {
	assert.InDelta(t, 500.0, VacancyRent(500, 1000, 0.1), 1e-9)
	assert.InDelta(t, 900.0, VacancyRent(1000, 1000, 0.4), 1e-9)
	assert.InDelta(t, 600.0, VacancyRent(620, 1000, 0.4), 1e-9)
}

func TestOccupiedRent_Bounds(t *testing.T) {
	rng := entropy.NewSource(21)
	for i := 0; i < 500; i++ {
		l := NewLandlord(1, rng.Float(), rng.Float(), rng.Float(), rng.Chance(0.5))
		u := NewUnit(1, rng.Float(), 1000, 2, rng.Float(), 0)
		u.Rent = rng.Uniform(400, 2500)
		tenants := map[HouseholdID]*fakeTenant{
			7: {income: rng.Uniform(500, 9000), wealth: rng.Uniform(0, 50000), satisfaction: rng.Float()},
		}
		require.NoError(t, u.AddTenant(7))
		sig := MarketSignal{VacancyRate: rng.Float(), Demand: rng.Uniform(0, 1.5), PriceIndex: rng.Uniform(0.5, 2)}

		rent := l.OccupiedRent(u, nil, sig, lookup(tenants))
		assert.GreaterOrEqual(t, rent, 400.0-1e-9)
		assert.LessOrEqual(t, rent, 2500.0+1e-9)
	}
}

func TestOccupiedRent_CompliantCapsIncrease(t *testing.T) {
	rules := &fakeRules{caps: true, maxInc: 0.05}
	l := NewLandlord(1, 1, 1, 0.5, true)
	u := NewUnit(1, 0.8, 1000, 2, 0.8, 0)
	require.NoError(t, u.AddTenant(1))
	tenants := map[HouseholdID]*fakeTenant{1: {income: 10000, wealth: 1e6, satisfaction: 0.6}}
	hot := MarketSignal{VacancyRate: 0, Demand: 1.4, PriceIndex: 1.5}

	for i := 0; i < 10; i++ {
		prev := u.Rent
		u.Rent = l.OccupiedRent(u, rules, hot, lookup(tenants))
		assert.LessOrEqual(t, u.Rent, prev*1.05+1e-9)
		assert.Greater(t, u.Rent, prev)
	}
	assert.Greater(t, rules.prevented, 0.0)

	// Non-compliant landlords ignore the cap.
	rogue := NewLandlord(2, 1, 1, 0.5, false)
	u.Rent = 1000
	assert.Greater(t, rogue.OccupiedRent(u, rules, hot, lookup(tenants)), 1050.0)
}

func TestOccupiedRent_DefaultCeilingWithoutPolicy(t *testing.T) {
	l := NewLandlord(1, 1, 1, 0.5, true)
	u := NewUnit(1, 0.8, 1000, 2, 0.8, 0)
	require.NoError(t, u.AddTenant(1))
	tenants := map[HouseholdID]*fakeTenant{1: {income: 10000, wealth: 1e6, satisfaction: 0.6}}
	hot := MarketSignal{VacancyRate: 0, Demand: 1.4, PriceIndex: 1.5}

	rent := l.OccupiedRent(u, &fakeRules{}, hot, lookup(tenants))
	assert.InDelta(t, 1100, rent, 1e-9)
}

func TestOccupiedRent_IncomeCapNeverForcesDecrease(t *testing.T) {
	rules := &fakeRules{caps: true, maxInc: 0.1, capRatio: 0.3}
	l := NewLandlord(1, 1, 1, 0.5, true)
	u := NewUnit(1, 0.8, 1000, 2, 0.8, 0)
	require.NoError(t, u.AddTenant(1))
	tenants := map[HouseholdID]*fakeTenant{1: {income: 2000, wealth: 1e6, satisfaction: 0.6}}
	hot := MarketSignal{VacancyRate: 0, Demand: 1.4, PriceIndex: 1.5}

	// Cap is 600 but the rent is already 1000: it stays put rather than rising.
	assert.InDelta(t, 1000, l.OccupiedRent(u, rules, hot, lookup(tenants)), 1e-9)
}

func TestOccupiedRent_RetentionLowersRent(t *testing.T) {
	l := NewLandlord(1, 0.5, 0.5, 0.5, false)
	u := NewUnit(1, 0.8, 1000, 2, 0.8, 0)
	require.NoError(t, u.AddTenant(1))
	unhappy := map[HouseholdID]*fakeTenant{1: {income: 5000, wealth: 1e6, satisfaction: 0.1}}
	sig := MarketSignal{VacancyRate: 0.05, Demand: 1, PriceIndex: 1}

	assert.Less(t, l.OccupiedRent(u, nil, sig, lookup(unhappy)), 1000.0)

	broke := map[HouseholdID]*fakeTenant{1: {income: 5000, wealth: 100, satisfaction: 0.6}}
	assert.LessOrEqual(t, l.OccupiedRent(u, nil, sig, lookup(broke)), 1000.0)
}

func TestCollectRent_SplitsAcrossCoTenants(t *testing.T) {
	l := NewLandlord(1, 0.5, 0.5, 0.5, true)
	u := NewUnit(1, 1, 1000, 2, 0.5, 0)
	l.Own(u)
	reg := NewRegistry(u)
	require.NoError(t, u.AddTenant(1))
	require.NoError(t, u.AddTenant(2))
	tenants := map[HouseholdID]*fakeTenant{
		1: {wealth: 10000},
		2: {wealth: 10000},
	}

	collected := l.CollectRent(reg, lookup(tenants), 6)
	assert.InDelta(t, 6000, collected, 1e-9)
	assert.InDelta(t, 3000, tenants[1].paid, 1e-9)
	assert.InDelta(t, 3000, tenants[2].paid, 1e-9)

	upkeep := u.MaintenanceCost() * 6
	assert.InDelta(t, 6000-upkeep, l.Profit, 1e-9)
	assert.InDelta(t, l.Profit, l.Wealth, 1e-9)
}

func TestMaintainPortfolio_OrderedImprovementAlwaysDone(t *testing.T) {
	l := NewLandlord(1, 0.5, 0.5, 0, true)
	u := NewUnit(1, 0.3, 1000, 2, 0.5, 0)
	l.Own(u)
	u.ImprovementOrdered = true

	n := l.MaintainPortfolio(NewRegistry(u), entropy.NewSource(1))
	assert.Equal(t, 1, n)
	assert.False(t, u.ImprovementOrdered)
	assert.Less(t, l.Profit, 0.0)
	assert.Equal(t, 0, u.LastRenovation)
}

func TestWealthTrend(t *testing.T) {
	l := NewLandlord(1, 0.5, 0.5, 0.5, true)
	assert.Zero(t, l.WealthTrend())
	l.Wealth = 1000
	l.RecordWealth()
	l.Wealth = 500
	l.RecordWealth()
	assert.InDelta(t, -0.5, l.WealthTrend(), 1e-9)

	st := l.Stats(NewRegistry())
	assert.Equal(t, 0, st.Units)
	assert.InDelta(t, -0.5, st.WealthTrend, 1e-9)
}
