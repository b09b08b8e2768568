// Package agents provides the household model: finances, life stages,
// satisfaction, housing search and the transitions between renting, owning
// and being unhoused.
package agents

import (
	"github.com/talgya/rent-market/internal/economy"
	"github.com/talgya/rent-market/internal/entropy"
	"github.com/talgya/rent-market/internal/housing"
	"github.com/talgya/rent-market/internal/ring"
	"github.com/talgya/rent-market/internal/tuning"
)

// Tenure is the tagged housing state of a household.
type Tenure uint8

const (
	TenureUnhoused Tenure = iota
	TenureRenter
	TenureOwner
)

func (t Tenure) String() string {
	switch t {
	case TenureRenter:
		return "renter"
	case TenureOwner:
		return "owner"
	default:
		return "unhoused"
	}
}

// Preferences are the latent scalars that weight a household's choices.
// All are 0.0–1.0.
type Preferences struct {
	CostSensitivity    float64 `json:"cost_sensitivity"`
	QualityPreference  float64 `json:"quality_preference"`
	LocationPreference float64 `json:"location_preference"` // Desired location score
	AmenityPreference  float64 `json:"amenity_preference"`
	MobilityPreference float64 `json:"mobility_preference"`
	RiskAversion       float64 `json:"risk_aversion"`
	SearchPatience     float64 `json:"search_patience"`
}

// Household is an economic agent occupying at most one unit.
type Household struct {
	ID   housing.HouseholdID `json:"id"`
	Name string              `json:"name"`

	// Demographics
	Age   float64   `json:"age"` // Years, of the household head
	Size  int       `json:"size"`
	Stage LifeStage `json:"life_stage"`

	// Economic
	Income float64 `json:"income"` // Monthly
	Wealth float64 `json:"wealth"`

	Prefs        Preferences `json:"preferences"`
	Satisfaction float64     `json:"satisfaction"` // 0.0–1.0

	// Housing. At most one of Contract and OwnedUnit is set.
	Contract  *housing.Contract `json:"contract,omitempty"`
	OwnedUnit *housing.UnitID   `json:"owned_unit,omitempty"`
	Mortgage  *Mortgage         `json:"mortgage,omitempty"`

	FinancialStress bool `json:"financial_stress"`
	LastMove        int  `json:"last_move"`   // Period of last move, -1 = never
	LastSearch      int  `json:"last_search"` // Period of last search, -1 = never
	FailedSearches  int  `json:"failed_searches"`
	Moves           int  `json:"moves"`

	interestCredit float64
	earmark        float64 // Housing cost set aside for this period's collection
	release        float64 // Savings forgone to pay earmark; returned if the home is left first
	timeline       *ring.Buffer[Record]
	wealthHistory  *ring.Buffer[float64]
}

// NewHousehold creates an unhoused household. The life stage is derived from
// age and size; preferences are taken as given.
func NewHousehold(id housing.HouseholdID, age float64, size int, income, wealth float64, prefs Preferences) *Household {
	if size < 1 {
		size = 1
	}
	h := &Household{
		ID:            id,
		Age:           age,
		Size:          size,
		Income:        max(income, tuning.MinimumWage),
		Wealth:        max(wealth, 0),
		Prefs:         prefs,
		Satisfaction:  0.5,
		LastMove:      -1,
		LastSearch:    -1,
		timeline:      ring.New[Record](tuning.TimelineCapacity),
		wealthHistory: ring.New[float64](tuning.WealthWindow),
	}
	h.Stage = StageFor(h.Age, h.Size)
	return h
}

// Env is everything a household reads while deciding. It is rebuilt by the
// runner each period.
type Env struct {
	Year       int
	Period     int // Absolute period index
	Units      *housing.Registry
	Conditions economy.Conditions
	Rand       *entropy.Source
	Lookup     func(housing.HouseholdID) *Household
}

func (e *Env) sizeOf(id housing.HouseholdID) int {
	if e.Lookup == nil {
		return 1
	}
	if h := e.Lookup(id); h != nil {
		return h.Size
	}
	return 1
}

// Tenure returns whether the household rents, owns or is unhoused.
func (h *Household) Tenure() Tenure {
	switch {
	case h.OwnedUnit != nil:
		return TenureOwner
	case h.Contract != nil:
		return TenureRenter
	default:
		return TenureUnhoused
	}
}

// IsHoused reports whether the household rents or owns.
func (h *Household) IsHoused() bool { return h.Tenure() != TenureUnhoused }

// UnitID returns the unit the household lives in, if any.
func (h *Household) UnitID() (housing.UnitID, bool) {
	switch {
	case h.OwnedUnit != nil:
		return *h.OwnedUnit, true
	case h.Contract != nil:
		return h.Contract.Unit, true
	}
	return 0, false
}

// Unit resolves the household's unit in units, or nil.
func (h *Household) Unit(units *housing.Registry) *housing.Unit {
	id, ok := h.UnitID()
	if !ok || units == nil {
		return nil
	}
	return units.Get(id)
}

// HousingCost is the monthly rent share or mortgage payment.
func (h *Household) HousingCost(units *housing.Registry) float64 {
	switch h.Tenure() {
	case TenureRenter:
		if u := h.Unit(units); u != nil {
			return u.RentShare()
		}
	case TenureOwner:
		if h.Mortgage != nil && !h.Mortgage.PaidOff() {
			return h.Mortgage.Payment
		}
	}
	return 0
}

// RentBurden is housing cost over monthly income.
func (h *Household) RentBurden(units *housing.Registry) float64 {
	if h.Income <= 0 {
		return 0
	}
	return h.HousingCost(units) / h.Income
}

// ReportedIncome is monthly income plus this period's mortgage interest
// credit.
func (h *Household) ReportedIncome() float64 {
	return h.Income + h.interestCredit/tuning.MonthsPerPeriod
}

// Timeline returns the household's recent records, oldest first.
func (h *Household) Timeline() []Record { return h.timeline.Slice() }

// WealthHistory returns the recent per-period wealth values, oldest first.
func (h *Household) WealthHistory() []float64 { return h.wealthHistory.Slice() }

// MonthlyIncome implements housing.Tenant.
func (h *Household) MonthlyIncome() float64 { return h.Income }

// Savings is wealth net of housing cost still to be collected this period.
// It implements housing.Tenant.
func (h *Household) Savings() float64 { return max(0, h.Wealth-h.earmark) }

// SatisfactionScore implements housing.Tenant.
func (h *Household) SatisfactionScore() float64 { return h.Satisfaction }

// PayRent debits up to amount from wealth and returns what was paid.
func (h *Household) PayRent(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	paid := min(amount, h.Wealth)
	h.Wealth -= paid
	h.earmark = max(0, h.earmark-paid)
	h.release = 0
	return paid
}

// releaseEarmark returns a household that stopped paying for its home before
// collection to the position it would hold had it been unhoused all period.
func (h *Household) releaseEarmark() {
	if h.earmark <= 0 {
		return
	}
	h.Wealth = max(0, h.Wealth-h.earmark+h.release)
	h.earmark, h.release = 0, 0
}

// Clone returns a deep copy.
func (h *Household) Clone() *Household {
	c := *h
	if h.Contract != nil {
		c.Contract = h.Contract.Clone()
	}
	if h.OwnedUnit != nil {
		id := *h.OwnedUnit
		c.OwnedUnit = &id
	}
	if h.Mortgage != nil {
		m := *h.Mortgage
		c.Mortgage = &m
	}
	c.timeline = h.timeline.Clone()
	c.wealthHistory = h.wealthHistory.Clone()
	return &c
}
