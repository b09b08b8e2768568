// Household lifecycle events driven by the runner's population phase.
package agents

import (
	"fmt"

	"github.com/talgya/rent-market/internal/entropy"
	"github.com/talgya/rent-market/internal/housing"
	"github.com/talgya/rent-market/internal/tuning"
)

// Share of wealth and income the departing members take on a breakup.
const breakupShare = 0.4

// Split removes some members into a new, unhoused household with the given
// id. The new household takes 40% of wealth and income, shifted so both
// sides keep the minimum wage. Income is conserved unless it is below two
// minimum wages. Returns nil for single-person households.
func (h *Household) Split(id housing.HouseholdID, rng *entropy.Source, period int) *Household {
	if h.Size < 2 {
		return nil
	}
	leaving := rng.IntRange(1, h.Size-1)
	age := max(18, h.Age-rng.Uniform(0, 25))

	income, rest := tuning.MinimumWage, tuning.MinimumWage
	if h.Income >= 2*tuning.MinimumWage {
		income = clampRange(h.Income*breakupShare, tuning.MinimumWage, h.Income-tuning.MinimumWage)
		rest = h.Income - income
	}
	h.Income = rest
	wealth := h.Wealth * breakupShare
	h.Wealth -= wealth
	h.Size -= leaving
	h.updateStage()

	child := NewHousehold(id, age, leaving, income, wealth, StageFor(age, leaving).Profile().Prefs)
	child.Prefs.LocationPreference = h.Prefs.LocationPreference
	h.Note(period, RecordSplit, 0, fmt.Sprintf("%d members left as household %d", leaving, id))
	child.Note(period, RecordSplit, 0, fmt.Sprintf("split from household %d", h.ID))
	return child
}

// CanAbsorb reports whether other could merge into h: h owns its home or
// rents a unit it shares with at most one other household, and the heads are
// under 15 years apart.
func (h *Household) CanAbsorb(other *Household, units *housing.Registry) bool {
	if !h.IsHoused() || other.IsHoused() || h.ID == other.ID {
		return false
	}
	u := h.Unit(units)
	if u == nil || u.TenantCount() >= tuning.MaxTenantsPerUnit {
		return false
	}
	diff := h.Age - other.Age
	if diff < 0 {
		diff = -diff
	}
	return diff < maxShareAgeGap
}

// Absorb merges other into h. h keeps its identity; other is left empty and
// must be removed by the caller.
func (h *Household) Absorb(other *Household, period int) Record {
	h.Size += other.Size
	h.Income += other.Income
	h.Wealth += other.Wealth
	other.Size, other.Income, other.Wealth = 0, 0, 0
	h.updateStage()
	return h.Note(period, RecordAbsorbed, 0, fmt.Sprintf("absorbed household %d", other.ID))
}
