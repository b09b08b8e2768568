// Simulation ties households, landlords, the rental market and the policy
// together and advances them one period at a time.
package engine

import (
	"errors"
	"slices"

	"github.com/talgya/rent-market/internal/agents"
	"github.com/talgya/rent-market/internal/economy"
	"github.com/talgya/rent-market/internal/entropy"
	"github.com/talgya/rent-market/internal/housing"
	"github.com/talgya/rent-market/internal/policy"
	"github.com/talgya/rent-market/internal/tuning"
)

var (
	ErrInvalidHouseholdCount = errors.New("initial household count must be positive")
	ErrInvalidUnitCount      = errors.New("unit count must be positive")
	ErrInvalidLandlordCount  = errors.New("landlord count must be positive")
	ErrInvalidHorizon        = errors.New("simulation horizon must be at least one year")
	ErrInvalidMigrationRate  = errors.New("migration rate must be within [0, 1]")
	ErrStepFailed            = errors.New("simulation step failed")
	ErrInvariant             = errors.New("simulation invariant violated")
)

// Simulation holds the complete market state. It is not safe for concurrent
// use; the Controller serialises access.
type Simulation struct {
	Params Params

	Households []*agents.Household
	Landlords  []*housing.Landlord
	Units      *housing.Registry
	Market     *economy.RentalMarket
	Policy     *policy.Policy

	Rand    *entropy.Source
	Spawner *agents.Spawner

	Step  int // Periods completed
	Taxes TaxTotals

	Metrics       []PeriodMetrics
	Distributions []Distribution

	// This period's outputs, reset at the start of every step.
	Events    []Event
	Occupancy []UnitOccupancy
	counters  periodCounters

	index map[housing.HouseholdID]*agents.Household
}

// Event is a notable occurrence in the market.
type Event struct {
	Step        int                 `json:"step"`
	Household   housing.HouseholdID `json:"household_id,omitempty"`
	Unit        housing.UnitID      `json:"unit_id,omitempty"`
	Category    string              `json:"category"` // "move", "eviction", "sale", "population", "policy", ...
	Description string              `json:"description"`
}

// TaxTotals are cumulative tax receipts.
type TaxTotals struct {
	Property float64 `json:"property"`
	Wealth   float64 `json:"wealth"`
	LVT      float64 `json:"lvt"`
}

// Total returns the sum of all taxes.
func (t TaxTotals) Total() float64 { return t.Property + t.Wealth + t.LVT }

// periodCounters tally actions within one step.
type periodCounters struct {
	Departures  int
	Breakups    int
	Mergers     int
	Arrivals    int
	Moves       int
	Evictions   int
	Sales       int
	Renovations int
	Inspections int
	Violations  int
}

// Horizon is the total number of periods the run covers.
func (s *Simulation) Horizon() int { return s.Params.Years * tuning.PeriodsPerYear }

// Done reports whether the horizon has been reached.
func (s *Simulation) Done() bool { return s.Step >= s.Horizon() }

// YearPeriod maps a 1-based step to its year and period within the year.
func YearPeriod(step int) (year, period int) {
	if step < 1 {
		return 0, 0
	}
	return (step-1)/tuning.PeriodsPerYear + 1, (step-1)%tuning.PeriodsPerYear + 1
}

// Household returns the household with id, or nil.
func (s *Simulation) Household(id housing.HouseholdID) *agents.Household {
	return s.index[id]
}

// Landlord returns the landlord with id, or nil.
func (s *Simulation) Landlord(id housing.LandlordID) *housing.Landlord {
	for _, l := range s.Landlords {
		if l.ID == id {
			return l
		}
	}
	return nil
}

// tenant adapts the household index to housing.TenantLookup.
func (s *Simulation) tenant(id housing.HouseholdID) housing.Tenant {
	if h := s.index[id]; h != nil {
		return h
	}
	return nil
}

// Unhoused returns households with neither a contract nor a home.
func (s *Simulation) Unhoused() []*agents.Household {
	var out []*agents.Household
	for _, h := range s.Households {
		if !h.IsHoused() {
			out = append(out, h)
		}
	}
	return out
}

func (s *Simulation) addHousehold(h *agents.Household) {
	s.Households = append(s.Households, h)
	s.index[h.ID] = h
}

// removeHousehold drops h from the collection. Its housing must already have
// been released.
func (s *Simulation) removeHousehold(h *agents.Household) {
	delete(s.index, h.ID)
	s.Households = slices.DeleteFunc(s.Households, func(x *agents.Household) bool { return x.ID == h.ID })
}

func (s *Simulation) env() *agents.Env {
	year, _ := YearPeriod(s.Step)
	return &agents.Env{
		Year:       year,
		Period:     s.Step,
		Units:      s.Units,
		Conditions: s.Market.Conditions(),
		Rand:       s.Rand,
		Lookup:     s.Household,
	}
}

func (s *Simulation) emit(e Event) {
	e.Step = s.Step
	s.Events = append(s.Events, e)
}

func (s *Simulation) emitRecords(h *agents.Household, category string, recs []agents.Record) {
	for _, r := range recs {
		s.emit(Event{
			Household:   h.ID,
			Unit:        r.Unit,
			Category:    category,
			Description: string(r.Kind) + recordDetail(r),
		})
	}
}

func recordDetail(r agents.Record) string {
	if r.Detail == "" {
		return ""
	}
	return ": " + r.Detail
}
