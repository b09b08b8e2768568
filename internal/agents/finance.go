// Per-period household update: ageing, income drift, savings, investment
// returns, financial stress and life-stage transitions.
package agents

import (
	"fmt"

	"github.com/talgya/rent-market/internal/tuning"
)

// Investment return on existing wealth per period.
const (
	investMean = 0.02
	investSD   = 0.05
	incomeSD   = 0.03
)

// UpdatePeriod advances the household by one period. It returns the records
// it generated.
//
// Housing costs are credited to wealth here and debited again when the rent
// is collected or the mortgage processed, so only the surplus or deficit
// after housing costs changes savings. Leaving the home before collection
// undoes the credit (see releaseEarmark).
func (h *Household) UpdatePeriod(env *Env) []Record {
	var out []Record
	h.interestCredit = 0
	h.Age += tuning.YearsPerPeriod

	profile := h.Stage.Profile()
	h.Income *= profile.IncomeMultiplier * (1 + env.Rand.Normal(0, incomeSD))
	h.Income = max(h.Income, tuning.MinimumWage)

	months := float64(tuning.MonthsPerPeriod)
	cost := h.HousingCost(env.Units)
	net := (h.Income - cost) * months
	if net > 0 {
		net *= profile.SavingsRate
	}
	if h.Wealth > 0 {
		h.Wealth += h.Wealth * env.Rand.Normal(investMean, investSD)
	}
	liquid := max(0, h.Wealth+net)
	unhoused := max(0, h.Wealth+h.Income*months*profile.SavingsRate)
	h.earmark = cost * months
	h.release = max(0, unhoused-liquid)
	h.Wealth = liquid + h.earmark

	h.wealthHistory.Push(liquid)
	stressed := h.checkStress(cost, liquid)
	if stressed && !h.FinancialStress {
		out = append(out, h.Note(env.Period, RecordStress, 0, fmt.Sprintf("burden %.2f", h.RentBurden(env.Units))))
	}
	h.FinancialStress = stressed

	if prev := h.Stage; h.updateStage() {
		out = append(out, h.Note(env.Period, RecordStageChanged, 0, fmt.Sprintf("%s -> %s", prev, h.Stage)))
	}

	h.Satisfaction = h.CalculateSatisfaction(env)
	if h.Contract != nil {
		if u := h.Unit(env.Units); u != nil {
			h.Contract.Update(tuning.MonthsPerPeriod, u.RentShare(), h.Satisfaction)
		}
	}
	return out
}

// checkStress flags a >20% decline across a full wealth window combined with
// a burden above 50% or savings below six months of housing cost.
func (h *Household) checkStress(cost, liquid float64) bool {
	if !h.wealthHistory.Full() {
		return false
	}
	oldest, _ := h.wealthHistory.Oldest()
	newest, _ := h.wealthHistory.Newest()
	if oldest <= 0 || (oldest-newest)/oldest <= 0.2 {
		return false
	}
	burden := 0.0
	if h.Income > 0 {
		burden = cost / h.Income
	}
	return burden > 0.5 || liquid < 6*cost
}

// EvictionProbability is the per-period eviction chance at a rent burden.
func EvictionProbability(burden float64) float64 {
	if burden <= tuning.EvictionBurden {
		return 0
	}
	return min(1, (burden-tuning.EvictionBurden)*tuning.EvictionSlope)
}

// DepartureProbability is the per-period chance the household leaves the
// market entirely.
func (h *Household) DepartureProbability(burden float64) float64 {
	p := 0.01
	if !h.IsHoused() {
		p += 0.05
	}
	if burden > 0.5 {
		p += 0.1 * (burden - 0.5)
	}
	if h.Satisfaction < 0.3 && h.IsHoused() {
		p += 0.02
	}
	if h.Age > 75 {
		p += 0.01 * (h.Age - 75)
	}
	return min(0.5, p)
}

// BreakupProbability is the per-period chance a multi-person household
// splits in two.
func (h *Household) BreakupProbability(burden float64) float64 {
	if h.Size < 2 {
		return 0
	}
	p := 0.01 + 0.03*(1-h.Satisfaction)
	if burden > 0.5 {
		p += 0.02
	}
	return p
}
