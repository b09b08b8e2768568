// Package policy implements the regulator: rent caps with compliance and
// quality inspections, or a land-value tax. A policy never sets rents itself.
// It supplies bounds that compliant landlords respect and counts what it finds.
package policy

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/rent-market/internal/housing"
	"github.com/talgya/rent-market/internal/tuning"
)

// ErrInvalidPolicyRate is returned for rates outside their valid range.
var ErrInvalidPolicyRate = errors.New("invalid policy rate")

// Kind selects the regulatory regime.
type Kind uint8

const (
	KindNone Kind = iota
	KindRentCap
	KindLandValueTax
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindRentCap:
		return "rent_cap"
	case KindLandValueTax:
		return "lvt"
	default:
		return "unknown"
	}
}

// ParseKind maps a config string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "none", "no_cap":
		return KindNone, nil
	case "rent_cap", "cap":
		return KindRentCap, nil
	case "lvt", "land_value_tax":
		return KindLandValueTax, nil
	}
	return KindNone, fmt.Errorf("unknown policy kind %q", s)
}

// Quality below this fails an inspection.
const minimumQuality = 0.4

// Quality violations that trigger a mandatory improvement.
const violationsBeforeOrder = 3

// Policy is the active regulatory regime and its running tallies.
type Policy struct {
	Kind           Kind    `json:"kind"`
	RentCapRatio   float64 `json:"rent_cap_ratio"`  // Max rent as a share of tenant income
	MaxIncrease    float64 `json:"max_increase"`    // Max per-period increase rate
	InspectionRate float64 `json:"inspection_rate"` // Configured probability; applied at 2×
	LVTRate        float64 `json:"lvt_rate"`

	ViolationsFound        int     `json:"violations_found"`
	InspectionsPerformed   int     `json:"inspections_performed"`
	QualityViolations      int     `json:"quality_violations"`
	ImprovementsRequired   int     `json:"improvements_required"`
	RentIncreasesPrevented int     `json:"rent_increases_prevented"`
	TenantSavings          float64 `json:"tenant_savings"`
	LVTCollected           float64 `json:"lvt_collected"`
}

// New validates rates and builds a policy.
func New(kind Kind, capRatio, maxIncrease, inspectionRate, lvtRate float64) (*Policy, error) {
	switch {
	case capRatio <= 0:
		return nil, fmt.Errorf("rent cap ratio %.3f: %w", capRatio, ErrInvalidPolicyRate)
	case maxIncrease < 0 || maxIncrease > 1:
		return nil, fmt.Errorf("max increase %.3f: %w", maxIncrease, ErrInvalidPolicyRate)
	case inspectionRate < 0 || inspectionRate > 1:
		return nil, fmt.Errorf("inspection rate %.3f: %w", inspectionRate, ErrInvalidPolicyRate)
	case lvtRate < 0 || lvtRate > 1:
		return nil, fmt.Errorf("lvt rate %.3f: %w", lvtRate, ErrInvalidPolicyRate)
	case kind == KindLandValueTax && lvtRate == 0:
		return nil, fmt.Errorf("land value tax needs a positive rate: %w", ErrInvalidPolicyRate)
	}
	return &Policy{
		Kind:           kind,
		RentCapRatio:   capRatio,
		MaxIncrease:    maxIncrease,
		InspectionRate: inspectionRate,
		LVTRate:        lvtRate,
	}, nil
}

// RentCap is the standard capped scenario: 30% of income, 5% per period,
// 10% inspection rate.
func RentCap() *Policy {
	p, _ := New(KindRentCap, 0.3, 0.05, 0.1, 0)
	return p
}

// NoCap is the uncapped baseline.
func NoCap() *Policy {
	p, _ := New(KindNone, 1.0, 0.2, 0, 0)
	return p
}

// LandValueTax taxes land value at rate with no rent controls.
func LandValueTax(rate float64) (*Policy, error) {
	return New(KindLandValueTax, 1.0, 0.2, 0, rate)
}

// CapsIncreases reports whether landlords are bound by MaxIncrease.
func (p *Policy) CapsIncreases() bool { return p.Kind == KindRentCap }

// MaxIncreaseRate is the largest allowed per-period increase.
func (p *Policy) MaxIncreaseRate() float64 { return p.MaxIncrease }

// MaxRentForIncome is the highest rent a tenant with income may be charged.
// Without a cap there is no bound.
func (p *Policy) MaxRentForIncome(income float64) float64 {
	if p.Kind != KindRentCap || p.RentCapRatio >= 1 {
		return math.Inf(1)
	}
	return p.RentCapRatio * income
}

// NotePrevented records an increase a compliant landlord held back.
func (p *Policy) NotePrevented(amount float64) {
	if amount <= 0 {
		return
	}
	p.RentIncreasesPrevented++
	p.TenantSavings += amount
}

// InspectionChance is the per-period probability an occupied unit is inspected.
func (p *Policy) InspectionChance() float64 {
	return math.Min(1, 2*p.InspectionRate)
}

// Finding is the outcome of one inspection.
type Finding struct {
	RentViolation    bool
	QualityViolation bool
	ImprovementOrder bool
}

// Inspect checks a unit against the cap for each tenant's income and against
// the minimum quality standard. incomes holds one monthly income per tenant
// household.
func (p *Policy) Inspect(u *housing.Unit, incomes []float64) Finding {
	p.InspectionsPerformed++
	var f Finding

	share := u.RentShare()
	for _, income := range incomes {
		if share > p.MaxRentForIncome(income) {
			f.RentViolation = true
			break
		}
	}
	if f.RentViolation {
		u.Violations++
		p.ViolationsFound++
	}

	if u.Quality < minimumQuality {
		f.QualityViolation = true
		u.QualityViolations++
		p.QualityViolations++
		if u.QualityViolations >= violationsBeforeOrder && !u.ImprovementOrdered {
			u.ImprovementOrdered = true
			p.ImprovementsRequired++
			f.ImprovementOrder = true
		}
	}
	return f
}

// LandTax returns the land-value tax owed on u for a span of years. Zero
// unless the land-value tax is active.
func (p *Policy) LandTax(u *housing.Unit, years float64) float64 {
	if p.Kind != KindLandValueTax {
		return 0
	}
	return p.LVTRate * u.LandValue * years
}

// PeriodLandTax is LandTax for one period.
func (p *Policy) PeriodLandTax(u *housing.Unit) float64 {
	return p.LandTax(u, tuning.YearsPerPeriod)
}

// RecordLVT adds collected land-value tax to the running total.
func (p *Policy) RecordLVT(amount float64) { p.LVTCollected += amount }

// Summary is the reporting view of a policy.
type Summary struct {
	Kind                   string  `json:"kind"`
	InspectionsPerformed   int     `json:"inspections_performed"`
	ViolationsFound        int     `json:"violations_found"`
	QualityViolations      int     `json:"quality_violations"`
	ImprovementsRequired   int     `json:"improvements_required"`
	RentIncreasesPrevented int     `json:"rent_increases_prevented"`
	TenantSavings          float64 `json:"tenant_savings"`
	LVTCollected           float64 `json:"lvt_collected"`
}

// Summarize returns the current tallies.
func (p *Policy) Summarize() Summary {
	return Summary{
		Kind:                   p.Kind.String(),
		InspectionsPerformed:   p.InspectionsPerformed,
		ViolationsFound:        p.ViolationsFound,
		QualityViolations:      p.QualityViolations,
		ImprovementsRequired:   p.ImprovementsRequired,
		RentIncreasesPrevented: p.RentIncreasesPrevented,
		TenantSavings:          p.TenantSavings,
		LVTCollected:           p.LVTCollected,
	}
}

// Clone returns a copy with the same rates and tallies.
func (p *Policy) Clone() *Policy {
	c := *p
	return &c
}
