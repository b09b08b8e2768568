package policy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/rent-market/internal/housing"
)

func TestNew_RejectsInvalidRates(t *testing.T) {
	tests := []struct {
		name                            string
		kind                            Kind
		capRatio, maxInc, insp, lvtRate float64
	}{
		{"zero cap ratio", KindRentCap, 0, 0.05, 0.1, 0},
		{"negative increase", KindRentCap, 0.3, -0.1, 0.1, 0},
		{"inspection above one", KindRentCap, 0.3, 0.05, 1.5, 0},
		{"lvt without rate", KindLandValueTax, 1, 0.2, 0, 0},
		{"lvt above one", KindLandValueTax, 1, 0.2, 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.kind, tt.capRatio, tt.maxInc, tt.insp, tt.lvtRate)
			assert.ErrorIs(t, err, ErrInvalidPolicyRate)
		})
	}

	_, err := LandValueTax(0.1)
	assert.NoError(t, err)
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"": KindNone, "none": KindNone, "rent_cap": KindRentCap, "lvt": KindLandValueTax} {
		got, err := ParseKind(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseKind("martial_law")
	assert.Error(t, err)
}

func TestMaxRentForIncome(t *testing.T) {
	assert.InDelta(t, 900, RentCap().MaxRentForIncome(3000), 1e-9)
	assert.True(t, math.IsInf(NoCap().MaxRentForIncome(3000), 1))
	assert.True(t, RentCap().CapsIncreases())
	assert.False(t, NoCap().CapsIncreases())
	assert.InDelta(t, 0.2, RentCap().InspectionChance(), 1e-9)
	assert.Zero(t, NoCap().InspectionChance())
}

func TestInspect_RecordsRentViolation(t *testing.T) {
	p := RentCap()
	u := housing.NewUnit(1, 0.8, 1000, 2, 0.5, 0)
	require.NoError(t, u.AddTenant(1))

	f := p.Inspect(u, []float64{3000})
	assert.True(t, f.RentViolation)
	assert.Equal(t, 1, u.Violations)
	assert.Equal(t, 1, p.ViolationsFound)
	assert.Equal(t, 1, p.InspectionsPerformed)

	f = p.Inspect(u, []float64{5000})
	assert.False(t, f.RentViolation)
	assert.Equal(t, 1, p.ViolationsFound)
	assert.Equal(t, 2, p.InspectionsPerformed)
	assert.InDelta(t, 1000, u.Rent, 1e-9, "inspections never touch rent")
}

func TestInspect_SharedRentIsJudgedPerShare(t *testing.T) {
	p := RentCap()
	u := housing.NewUnit(1, 0.8, 1000, 2, 0.5, 0)
	require.NoError(t, u.AddTenant(1))
	require.NoError(t, u.AddTenant(2))

	// 500 each is within 30% of 2000.
	assert.False(t, p.Inspect(u, []float64{2000, 2000}).RentViolation)
}

func TestInspect_OrdersImprovementAfterThreeQualityViolations(t *testing.T) {
	p := NoCap()
	u := housing.NewUnit(1, 0.2, 1000, 2, 0.5, 0)

	for i := 0; i < 2; i++ {
		f := p.Inspect(u, nil)
		assert.True(t, f.QualityViolation)
		assert.False(t, f.ImprovementOrder)
	}
	f := p.Inspect(u, nil)
	assert.True(t, f.ImprovementOrder)
	assert.True(t, u.ImprovementOrdered)
	assert.Equal(t, 1, p.ImprovementsRequired)

	u.Renovate(0.3)
	assert.False(t, u.ImprovementOrdered)
	assert.Zero(t, u.QualityViolations)
}

func TestLandTax(t *testing.T) {
	lvt, err := LandValueTax(0.1)
	require.NoError(t, err)
	u := housing.NewUnit(1, 0.8, 1000, 2, 0.5, 0)

	assert.InDelta(t, 0.1*u.LandValue*0.5, lvt.PeriodLandTax(u), 1e-6)
	assert.Zero(t, RentCap().PeriodLandTax(u))
}

func TestNotePrevented(t *testing.T) {
	p := RentCap()
	p.NotePrevented(0)
	p.NotePrevented(25)
	assert.Equal(t, 1, p.RentIncreasesPrevented)
	assert.InDelta(t, 25, p.Summarize().TenantSavings, 1e-9)
}
