package housing

import (
	"github.com/talgya/rent-market/internal/ring"
	"github.com/talgya/rent-market/internal/tuning"
)

// RentRecord is one entry of a contract's rent history.
type RentRecord struct {
	Month        int     `json:"month"`
	Rent         float64 `json:"rent"`
	Satisfaction float64 `json:"tenant_satisfaction"`
}

// Contract binds one tenant household to one unit.
type Contract struct {
	Tenant    HouseholdID `json:"tenant_id"`
	Unit      UnitID      `json:"unit_id"`
	Months    int         `json:"months"`
	StartRent float64     `json:"start_rent"`
	Year      int         `json:"signed_year"`
	Period    int         `json:"signed_period"`

	history *ring.Buffer[RentRecord]
}

// NewContract starts a tenancy at the given monthly rent share.
func NewContract(tenant HouseholdID, unit UnitID, rent float64, year, period int) *Contract {
	return &Contract{
		Tenant:    tenant,
		Unit:      unit,
		StartRent: rent,
		Year:      year,
		Period:    period,
		history:   ring.New[RentRecord](tuning.ContractHistoryLength),
	}
}

// Update advances the contract by months and records the current rent.
func (c *Contract) Update(months int, rent, satisfaction float64) {
	c.Months += months
	c.history.Push(RentRecord{Month: c.Months, Rent: rent, Satisfaction: satisfaction})
}

// Duration returns the contract length in months.
func (c *Contract) Duration() int { return c.Months }

// RentChange is the relative change from the starting rent.
func (c *Contract) RentChange(current float64) float64 {
	if c.StartRent <= 0 {
		return 0
	}
	return (current - c.StartRent) / c.StartRent
}

// IsLongTerm reports whether the tenancy has lasted a year.
func (c *Contract) IsLongTerm() bool { return c.Months >= 12 }

// History returns recorded rents, oldest first.
func (c *Contract) History() []RentRecord { return c.history.Slice() }

// Clone returns a deep copy.
func (c *Contract) Clone() *Contract {
	cp := *c
	cp.history = c.history.Clone()
	return &cp
}
