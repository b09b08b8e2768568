// Market phases: condition updates, household decisions, landlord upkeep and
// rent-setting, inspections and rent collection.
package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/talgya/rent-market/internal/agents"
	"github.com/talgya/rent-market/internal/housing"
	"github.com/talgya/rent-market/internal/tuning"
)

// updateMarket recomputes conditions with the unhoused as extra seekers.
func (s *Simulation) updateMarket() {
	s.Market.UpdateConditions(s.Step, len(s.Unhoused()))
}

// processHouseholds updates every household's finances, applies evictions,
// then gives each household, in random order, one chance to move and one
// chance to buy or sell.
func (s *Simulation) processHouseholds() {
	env := s.env()
	for _, h := range s.Households {
		s.emitRecords(h, "household", h.UpdatePeriod(env))
		if r, ok := h.CheckEviction(env); ok {
			s.counters.Evictions++
			s.emitRecords(h, "eviction", []agents.Record{r})
		}
	}

	order := make([]*agents.Household, len(s.Households))
	copy(order, s.Households)
	s.Rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	for _, h := range order {
		if h.Tenure() != agents.TenureOwner {
			d := h.ConsiderMoving(env, s.Market.Vacancies(true))
			recs, err := h.Apply(env, d)
			switch {
			case err == nil:
			case errors.Is(err, housing.ErrUnitFull), errors.Is(err, housing.ErrOwnerOccupied), errors.Is(err, housing.ErrAlreadyTenant):
				slog.Debug("move skipped", "household", h.ID, "unit", d.Unit.ID, "error", err)
			default:
				slog.Warn("move failed", "household", h.ID, "error", err)
			}
			s.noteMoves(h, recs)
		}

		recs := h.ConsiderOwnership(env, s.Market, s.Landlords)
		for _, r := range recs {
			if r.Kind == agents.RecordBought || r.Kind == agents.RecordSold {
				s.counters.Sales++
			}
		}
		s.noteMoves(h, recs)
	}
}

// noteMoves counts arrivals into a unit as moves and emits the records.
func (s *Simulation) noteMoves(h *agents.Household, recs []agents.Record) {
	for _, r := range recs {
		switch r.Kind {
		case agents.RecordMovedIn, agents.RecordShared, agents.RecordBought:
			s.counters.Moves++
		}
	}
	s.emitRecords(h, "move", recs)
}

// processLandlords runs maintenance then rent-setting for every landlord.
func (s *Simulation) processLandlords() {
	sig := s.Market.Conditions().Signal()
	for _, l := range s.Landlords {
		if n := l.MaintainPortfolio(s.Units, s.Rand); n > 0 {
			s.counters.Renovations += n
			s.emit(Event{Category: "landlord", Description: fmt.Sprintf("landlord %d renovated %d units", l.ID, n)})
		}
		l.UpdateRents(s.Units, s.Policy, sig, s.tenant, s.Step)
	}
}

// processInspections samples occupied rental units for the policy's
// inspection regime.
func (s *Simulation) processInspections() {
	chance := s.Policy.InspectionChance()
	if chance <= 0 {
		return
	}
	for _, u := range s.Units.All() {
		if !u.IsRental() || u.IsVacant() || !s.Rand.Chance(chance) {
			continue
		}
		incomes := make([]float64, 0, len(u.Tenants))
		for _, id := range u.Tenants {
			if h := s.Household(id); h != nil {
				incomes = append(incomes, h.Income)
			}
		}
		s.counters.Inspections++
		f := s.Policy.Inspect(u, incomes)
		if f.RentViolation {
			s.counters.Violations++
			s.emit(Event{Unit: u.ID, Category: "policy", Description: fmt.Sprintf("rent violation at %.0f", u.Rent)})
		}
		if f.ImprovementOrder {
			s.emit(Event{Unit: u.ID, Category: "policy", Description: "improvement ordered"})
		}
	}
}

// collectRent settles six months of rent and mortgage payments.
func (s *Simulation) collectRent() {
	for _, l := range s.Landlords {
		l.CollectRent(s.Units, s.tenant, tuning.MonthsPerPeriod)
	}
	for _, h := range s.Households {
		if h.Tenure() == agents.TenureOwner {
			h.ProcessMortgage(tuning.MonthsPerPeriod)
		}
	}
}
