package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/rent-market/internal/agents"
	"github.com/talgya/rent-market/internal/housing"
	"github.com/talgya/rent-market/internal/policy"
	"github.com/talgya/rent-market/internal/tuning"
)

func testParams(seed int64) Params {
	return Params{
		Households:     60,
		Units:          50,
		Landlords:      5,
		Years:          5,
		MigrationRate:  0.05,
		Seed:           seed,
		CompliantShare: 0.7,
	}
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		want   error
	}{
		{"no households", func(p *Params) { p.Households = 0 }, ErrInvalidHouseholdCount},
		{"no units", func(p *Params) { p.Units = -1 }, ErrInvalidUnitCount},
		{"no landlords", func(p *Params) { p.Landlords = 0 }, ErrInvalidLandlordCount},
		{"zero horizon", func(p *Params) { p.Years = 0 }, ErrInvalidHorizon},
		{"migration above one", func(p *Params) { p.MigrationRate = 1.5 }, ErrInvalidMigrationRate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams(1)
			tt.mutate(&p)
			_, err := Build(p, nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.NoError(t, DefaultParams().Validate())
}

func TestBuild_InitialAllocation(t *testing.T) {
	sim, err := Build(testParams(7), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, sim.Step)
	assert.Len(t, sim.Households, 60)
	assert.Equal(t, 50, sim.Units.Len())
	assert.Len(t, sim.Landlords, 5)
	require.NoError(t, sim.checkInvariants())

	housed := 0
	for _, h := range sim.Households {
		if h.IsHoused() {
			housed++
			assert.Equal(t, agents.TenureRenter, h.Tenure())
		}
	}
	assert.Greater(t, housed, 0)
	assert.LessOrEqual(t, housed, 50)
	assert.Len(t, sim.Unhoused(), 60-housed)
	assert.Equal(t, 60, sim.Params.TargetPopulation)
	assert.Equal(t, policy.KindNone, sim.Policy.Kind)
}

func TestBuild_UsesCatalogFirst(t *testing.T) {
	cat := &Catalog{
		Households: []agents.Template{{Name: "Ada Lovelace", Age: 36, Size: 2, Income: 5200, Wealth: 40000}},
		Units:      []UnitTemplate{{Name: "Canal House", Quality: 0.9, BaseRent: 1500, Size: 3, Location: 0.8, Amenities: []string{"garden", "balcony"}}},
	}
	sim, err := Build(testParams(3), cat)
	require.NoError(t, err)

	h := sim.Household(1)
	require.NotNil(t, h)
	assert.Equal(t, "Ada Lovelace", h.Name)
	assert.Equal(t, 2, h.Size)

	u := sim.Units.Get(1)
	require.NotNil(t, u)
	assert.Equal(t, "Canal House", u.Name)
	assert.InDelta(t, 1500, u.BaseRent, 1e-9)
	assert.True(t, u.Amenities.Has(housing.AmenityGarden))
	assert.Equal(t, 2, u.Amenities.Count())

	cat.Units[0].Amenities = []string{"moat"}
	_, err = Build(testParams(3), cat)
	assert.Error(t, err)
}

func TestAdvance_ConservesHouseholds(t *testing.T) {
	sim, err := Build(testParams(11), nil)
	require.NoError(t, err)

	for !sim.Done() {
		before := len(sim.Households)
		r, err := sim.Advance()
		require.NoError(t, err)
		m := r.Metrics
		assert.Equal(t, before+m.Arrivals+m.Breakups-m.Departures-m.Mergers, len(sim.Households), "step %d", r.Step)
		assert.Equal(t, m.TotalHouseholds, m.Renters+m.Owners+m.Unhoused)
		if m.Arrivals > 0 {
			assert.LessOrEqual(t, len(sim.Households), sim.Params.TargetPopulation, "arrivals never overshoot")
		}
	}
}

func TestAdvance_SalesReachTheMarket(t *testing.T) {
	var sales, owners, priced int
	for seed := int64(1); seed <= 5; seed++ {
		p := DefaultParams()
		p.Seed = seed
		sim, err := Build(p, nil)
		require.NoError(t, err)

		runSales := 0
		for !sim.Done() {
			r, err := sim.Advance()
			require.NoError(t, err)
			runSales += r.Metrics.Sales
			owners = max(owners, r.Metrics.Owners)
		}

		reported := sim.Market.PendingSales()
		for _, c := range sim.Market.History() {
			reported += c.RecentSales
			if c.RecentSales > 0 && c.RecentSalePrice > 0 {
				priced++
			}
		}
		assert.Equal(t, runSales, reported, "seed %d", seed)
		sales += runSales
	}
	assert.Positive(t, sales)
	assert.Positive(t, owners)
	assert.Positive(t, priced)
}

func TestMetrics_ReportMortgageInterestAsIncome(t *testing.T) {
	sim, err := Build(testParams(5), nil)
	require.NoError(t, err)

	h := sim.Households[0]
	h.Mortgage = agents.NewMortgage(250000, 0.05, 25)
	h.ProcessMortgage(tuning.MonthsPerPeriod)
	credit := h.Mortgage.InterestPaid / tuning.MonthsPerPeriod
	require.Positive(t, credit)

	summary := Summarize(h)
	assert.InDelta(t, h.Income+credit, summary.Income, 1e-6)

	base := 0.0
	for _, hh := range sim.Households {
		base += hh.Income
	}
	m := sim.captureMetrics()
	assert.InDelta(t, (base+credit)/float64(len(sim.Households)), m.AvgIncome, 1e-6)
}

func TestAdvance_InvariantsHoldEveryPeriod(t *testing.T) {
	for _, seed := range []int64{1, 2, 3} {
		sim, err := Build(testParams(seed), nil)
		require.NoError(t, err)
		for !sim.Done() {
			_, err := sim.Advance()
			require.NoError(t, err)

			for _, u := range sim.Units.All() {
				assert.LessOrEqual(t, u.TenantCount(), tuning.MaxTenantsPerUnit)
				if u.IsRental() {
					assert.GreaterOrEqual(t, u.Rent, u.BaseRent*tuning.RentFloorRatio-1e-6)
					assert.LessOrEqual(t, u.Rent, u.BaseRent*tuning.RentCeilingRatio+1e-6)
				}
			}
			for _, h := range sim.Households {
				assert.False(t, h.Contract != nil && h.OwnedUnit != nil)
			}
		}
		assert.Len(t, sim.Metrics, sim.Horizon())
		assert.Len(t, sim.Distributions, sim.Horizon())
	}
}

func TestAdvance_NoOpBeyondHorizon(t *testing.T) {
	p := testParams(5)
	p.Years = 1
	sim, err := Build(p, nil)
	require.NoError(t, err)

	_, err = sim.RunToHorizon()
	require.NoError(t, err)
	require.Equal(t, 2, sim.Step)

	r, err := sim.Advance()
	assert.NoError(t, err)
	assert.Nil(t, r)
	assert.Equal(t, 2, sim.Step)
	assert.Len(t, sim.Metrics, 2)
}

func TestAdvance_YearAndPeriod(t *testing.T) {
	sim, err := Build(testParams(9), nil)
	require.NoError(t, err)

	want := [][2]int{{1, 1}, {1, 2}, {2, 1}, {2, 2}, {3, 1}}
	for _, yp := range want {
		r, err := sim.Advance()
		require.NoError(t, err)
		assert.Equal(t, yp[0], r.Year)
		assert.Equal(t, yp[1], r.Period)
	}
}

func TestBuild_IsDeterministic(t *testing.T) {
	run := func() []PeriodMetrics {
		sim, err := Build(testParams(2024), nil)
		require.NoError(t, err)
		_, err = sim.RunToHorizon()
		require.NoError(t, err)
		return sim.Metrics
	}
	assert.Equal(t, run(), run())
}

func TestTaxes(t *testing.T) {
	assert.InDelta(t, 500, PropertyTax(100000), 1e-9)
	assert.Zero(t, PropertyTax(-5))
	assert.Zero(t, WealthTax(100000))
	assert.InDelta(t, 500, WealthTax(150000), 1e-9)

	sim, err := Build(testParams(4), nil)
	require.NoError(t, err)
	_, err = sim.Advance()
	require.NoError(t, err)
	assert.Greater(t, sim.Taxes.Property, 0.0)
	assert.Zero(t, sim.Taxes.Wealth, "wealth tax is assessed at year end only")
	assert.Zero(t, sim.Taxes.LVT)
}

func TestLandValueTaxIsCollected(t *testing.T) {
	p := testParams(4)
	lvt, err := policy.LandValueTax(0.1)
	require.NoError(t, err)
	p.Policy = lvt

	sim, err := Build(p, nil)
	require.NoError(t, err)
	_, err = sim.Advance()
	require.NoError(t, err)
	assert.Greater(t, sim.Taxes.LVT, 0.0)
	assert.InDelta(t, sim.Taxes.LVT, sim.Policy.LVTCollected, 1e-6)
	assert.Zero(t, lvt.LVTCollected, "the run works on its own copy of the policy")
}

func TestRentCapKeepsRentsBelowNoCap(t *testing.T) {
	var capped, uncapped float64
	for _, seed := range []int64{101, 202, 303} {
		p := Params{
			Households:     120,
			Units:          100,
			Landlords:      8,
			Years:          6,
			MigrationRate:  0.05,
			Seed:           seed,
			CompliantShare: 1,
		}

		p.Policy = policy.RentCap()
		sim, err := Build(p, nil)
		require.NoError(t, err)
		m, err := sim.RunToHorizon()
		require.NoError(t, err)
		capped += m.AvgRent

		p.Policy = policy.NoCap()
		sim, err = Build(p, nil)
		require.NoError(t, err)
		m, err = sim.RunToHorizon()
		require.NoError(t, err)
		uncapped += m.AvgRent
	}
	assert.LessOrEqual(t, capped, uncapped)
}

func TestResult_Wire(t *testing.T) {
	sim, err := Build(testParams(8), nil)
	require.NoError(t, err)
	r, err := sim.Advance()
	require.NoError(t, err)

	f := r.Wire()
	assert.Equal(t, 1, f.Year)
	assert.Equal(t, 1, f.Period)
	assert.Len(t, f.Units, 50)
	assert.LessOrEqual(t, len(f.Events), wireEventLimit)
	assert.Len(t, f.Unhoused, r.Metrics.Unhoused)
	assert.Equal(t, r.Metrics.TotalPopulation, f.Metrics.TotalPopulation)

	occupied := 0
	for _, u := range f.Units {
		if u.IsOccupied {
			occupied++
			assert.NotNil(t, u.Household)
			assert.Greater(t, u.Occupants, 0)
		} else {
			assert.Nil(t, u.Household)
		}
	}
	assert.Equal(t, f.Metrics.OccupiedUnits, occupied)

	raw, err := r.MarshalWire()
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, key := range []string{"year", "period", "metrics", "units", "events", "moves", "unhoused_households"} {
		assert.Contains(t, decoded, key)
	}
	metrics := decoded["metrics"].(map[string]any)
	for _, key := range []string{"total_units", "occupied_units", "vacancy_rate", "average_rent", "total_population", "unhoused"} {
		assert.Contains(t, metrics, key)
	}
	unit := decoded["units"].([]any)[0].(map[string]any)
	for _, key := range []string{"id", "occupants", "rent", "is_occupied", "quality", "lastRenovation", "household"} {
		assert.Contains(t, unit, key)
	}
}

func TestWireMetrics_Rounding(t *testing.T) {
	r := &Result{Metrics: PeriodMetrics{VacancyRate: 0.12345, AvgRent: 1234.6}}
	f := r.Wire()
	assert.InDelta(t, 12.3, f.Metrics.VacancyRate, 1e-9)
	assert.Equal(t, 1235, f.Metrics.AverageRent)
	assert.NotNil(t, f.Events)
	assert.NotNil(t, f.Units)
}

func TestCompare(t *testing.T) {
	p := testParams(77)
	p.Years = 2
	results, err := Compare(context.Background(), p, nil, DefaultScenarios(), 2)
	require.NoError(t, err)
	require.Len(t, results, 3)

	names := []string{results[0].Name, results[1].Name, results[2].Name}
	assert.Equal(t, []string{"cap", "no_cap", "lvt"}, names)
	for _, r := range results {
		assert.Equal(t, 2, r.Runs)
		assert.Greater(t, r.AvgRent, 0.0)
		assert.Greater(t, r.Households, 0.0)
	}
	assert.Equal(t, "rent_cap", results[0].Policy.Kind)
	assert.Greater(t, results[2].Policy.LVTCollected, 0.0)
}

func TestCompare_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Compare(ctx, testParams(1), nil, DefaultScenarios(), 1)
	assert.ErrorIs(t, err, context.Canceled)
}
