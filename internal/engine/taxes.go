package engine

import (
	"log/slog"

	"github.com/talgya/rent-market/internal/tuning"
)

// collectTaxes charges property tax and any land-value tax to landlords every
// period, and wealth tax to households at year end.
func (s *Simulation) collectTaxes(yearEnd bool) {
	var property, lvt float64
	for _, l := range s.Landlords {
		owed := 0.0
		for _, id := range l.Units {
			u := s.Units.Get(id)
			if u == nil {
				continue
			}
			pt := PropertyTax(u.MarketValue())
			property += pt
			owed += pt

			if lt := s.Policy.PeriodLandTax(u); lt > 0 {
				lvt += lt
				owed += lt
			}
		}
		l.Profit -= owed
		l.Wealth -= owed
		l.RecordWealth()
	}
	s.Taxes.Property += property
	if lvt > 0 {
		s.Taxes.LVT += lvt
		s.Policy.RecordLVT(lvt)
	}

	if !yearEnd {
		return
	}
	wealth := 0.0
	for _, h := range s.Households {
		t := WealthTax(h.Wealth)
		h.Wealth -= t
		wealth += t
	}
	s.Taxes.Wealth += wealth
	slog.Debug("year-end taxes", "step", s.Step, "wealth_tax", wealth, "total", s.Taxes.Total())
}

// PropertyTax is one period's tax on a unit's assessed value.
func PropertyTax(value float64) float64 {
	return max(0, value) * tuning.PropertyTaxRate * tuning.YearsPerPeriod
}

// WealthTax is the annual tax on wealth above the threshold.
func WealthTax(wealth float64) float64 {
	if wealth <= tuning.WealthTaxThreshold {
		return 0
	}
	return (wealth - tuning.WealthTaxThreshold) * tuning.WealthTaxRate
}
