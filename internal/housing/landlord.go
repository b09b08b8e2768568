// Landlord behaviour: portfolio upkeep, adaptive rent-setting and rent
// collection.
package housing

import (
	"math"

	"github.com/talgya/rent-market/internal/entropy"
	"github.com/talgya/rent-market/internal/ring"
	"github.com/talgya/rent-market/internal/tuning"
)

// MarketSignal is the slice of market conditions landlords price against.
type MarketSignal struct {
	VacancyRate float64
	Demand      float64
	PriceIndex  float64
}

// RentRules are the bounds a compliant landlord respects.
type RentRules interface {
	CapsIncreases() bool
	MaxIncreaseRate() float64
	MaxRentForIncome(income float64) float64
	NotePrevented(amount float64)
}

// Tenant is the view of a household that rent-setting and collection need.
type Tenant interface {
	MonthlyIncome() float64
	Savings() float64
	SatisfactionScore() float64
	PayRent(amount float64) float64
}

// TenantLookup resolves a tenant id. Returns nil for unknown ids.
type TenantLookup func(HouseholdID) Tenant

// Landlord owns a portfolio of rental units.
type Landlord struct {
	ID    LandlordID `json:"id"`
	Name  string     `json:"name"`
	Units []UnitID   `json:"units"`

	Greed               float64 `json:"greed"`            // 0.0–1.0
	MarketAwareness     float64 `json:"market_awareness"` // 0.0–1.0
	MaintenancePriority float64 `json:"maintenance_priority"`
	Compliant           bool    `json:"compliant"`

	Profit      float64 `json:"profit"`
	Wealth      float64 `json:"wealth"`
	Renovations int     `json:"renovations"`

	wealthHistory *ring.Buffer[float64]
}

// NewLandlord creates a landlord with no units.
func NewLandlord(id LandlordID, greed, awareness, maintenance float64, compliant bool) *Landlord {
	return &Landlord{
		ID:                  id,
		Greed:               clamp(greed, 0, 1),
		MarketAwareness:     clamp(awareness, 0, 1),
		MaintenancePriority: clamp(maintenance, 0, 1),
		Compliant:           compliant,
		wealthHistory:       ring.New[float64](tuning.LandlordWealthWindow),
	}
}

// Own adds u to the portfolio.
func (l *Landlord) Own(u *Unit) {
	for _, id := range l.Units {
		if id == u.ID {
			return
		}
	}
	id := l.ID
	u.Landlord = &id
	l.Units = append(l.Units, u.ID)
}

// Release removes a unit id from the portfolio.
func (l *Landlord) Release(id UnitID) bool {
	for i, uid := range l.Units {
		if uid == id {
			l.Units = append(l.Units[:i], l.Units[i+1:]...)
			return true
		}
	}
	return false
}

// RecordWealth appends the current wealth to the rolling history.
func (l *Landlord) RecordWealth() {
	l.wealthHistory.Push(l.Wealth)
}

// WealthTrend is the relative wealth change across the history window.
// Negative means the landlord is losing money.
func (l *Landlord) WealthTrend() float64 {
	oldest, ok := l.wealthHistory.Oldest()
	if !ok || l.wealthHistory.Len() < 2 {
		return 0
	}
	newest, _ := l.wealthHistory.Newest()
	return (newest - oldest) / math.Max(math.Abs(oldest), 1)
}

// MaintainPortfolio ages every unit and renovates the ones that need it.
// Ordered improvements are carried out regardless of profit.
func (l *Landlord) MaintainPortfolio(reg *Registry, rng *entropy.Source) int {
	renovated := 0
	for _, id := range l.Units {
		u := reg.Get(id)
		if u == nil {
			continue
		}
		u.LastRenovation++
		u.Depreciate(0.02 * (1 - 0.5*l.MaintenancePriority))

		if !u.ImprovementOrdered {
			if u.Quality >= 0.5 || !rng.Chance(0.2+0.5*l.MaintenancePriority) {
				continue
			}
		}
		cost := u.RenovationCost(0.3)
		if !u.ImprovementOrdered && l.Profit <= cost {
			continue
		}
		l.Profit -= cost
		l.Wealth -= cost
		u.Renovate(0.3)
		renovated++
	}
	l.Renovations += renovated
	return renovated
}

// UpdateRents runs the rent-setting pass over the portfolio.
func (l *Landlord) UpdateRents(reg *Registry, rules RentRules, sig MarketSignal, tenants TenantLookup, period int) {
	for _, id := range l.Units {
		u := reg.Get(id)
		if u == nil || u.Owner != nil {
			continue
		}
		if len(u.Tenants) == 0 {
			u.VacancyDuration++
			l.applyVacancyRentReduction(u, sig, period)
			continue
		}
		u.Rent = l.OccupiedRent(u, rules, sig, tenants)
	}
}

func (l *Landlord) applyVacancyRentReduction(u *Unit, sig MarketSignal, period int) {
	factor := l.VacancyMarkdown(u, sig)
	newRent := VacancyRent(u.Rent, u.BaseRent, factor)
	if newRent < u.Rent {
		u.RecordMarkdown(Markdown{
			Period:   period,
			OldRent:  u.Rent,
			NewRent:  newRent,
			Factor:   factor,
			Duration: u.VacancyDuration,
		})
		u.Rent = newRent
	}
}

// VacancyMarkdown is the composite markdown below base rent for a vacant unit.
func (l *Landlord) VacancyMarkdown(u *Unit, sig MarketSignal) float64 {
	var m float64
	switch d := u.VacancyDuration; {
	case d >= 12:
		m = 0.25
	case d >= 6:
		m = 0.15
	case d >= 3:
		m = 0.08
	case d >= 1:
		m = 0.03
	}

	m += math.Max(0, 0.9-sig.Demand) * 0.2
	m += math.Max(0, sig.VacancyRate-0.05) * 0.3
	if trend := l.WealthTrend(); trend < 0 {
		m += math.Min(0.1, -trend*0.2)
	}
	m *= 1 - 0.5*l.Greed
	m += math.Max(0, 0.6-u.Quality)*0.1 + math.Max(0, 0.5-u.Location)*0.05

	return clamp(m, 0, tuning.MaxMarkdown)
}

// VacancyRent moves rent towards base × (1 − markdown), at most MaxVacancyStep
// per call, never below the vacancy floor and never upwards.
func VacancyRent(rent, base, markdown float64) float64 {
	target := math.Max(base*(1-markdown), base*tuning.VacancyFloor)
	if target >= rent {
		return rent
	}
	return math.Max(target, rent*(1-tuning.MaxVacancyStep))
}

// OccupiedRent computes next period's rent for an occupied unit.
func (l *Landlord) OccupiedRent(u *Unit, rules RentRules, sig MarketSignal, tenants TenantLookup) float64 {
	increase := 0.02 + 0.08*l.Greed*l.MarketAwareness
	increase *= 1 + marketPressure(sig)*l.MarketAwareness

	if trend := l.WealthTrend(); trend < 0 {
		increase *= 1 + math.Min(0.5, -trend)
	} else if trend > 0 {
		increase *= 1 - 0.5*math.Min(0.5, trend)
	}

	avgSat, avgSavings, n := tenantAverages(u, tenants)
	if n > 0 {
		share := u.RentShare()
		switch {
		case avgSat < 0.25:
			increase = math.Min(increase, -0.02)
		case avgSat < 0.4:
			increase = math.Min(increase, 0.01)
		}
		if avgSavings < 12*share {
			increase = math.Min(increase, 0)
		}
		if (sig.Demand < 0.85 || sig.VacancyRate > 0.1) && avgSat > 0.7 {
			increase = math.Min(increase, -0.01)
		}
	}

	newRent := u.Rent * (1 + increase)
	if l.Compliant && newRent > u.Rent {
		ceiling := tuning.DefaultIncrease
		if rules != nil && rules.CapsIncreases() {
			ceiling = rules.MaxIncreaseRate()
		}
		allowed := u.Rent * (1 + ceiling)
		if rules != nil {
			if limit := capLimit(u, rules, tenants); limit < allowed {
				allowed = math.Max(u.Rent, limit)
			}
		}
		if newRent > allowed {
			if rules != nil {
				rules.NotePrevented(newRent - allowed)
			}
			newRent = allowed
		}
	}
	return ClampRent(newRent, u.BaseRent)
}

// CollectRent collects months of rent from every tenant and pays upkeep on
// every unit. Returns the gross rent collected.
func (l *Landlord) CollectRent(reg *Registry, tenants TenantLookup, months int) float64 {
	collected, upkeep := 0.0, 0.0
	for _, id := range l.Units {
		u := reg.Get(id)
		if u == nil {
			continue
		}
		upkeep += u.MaintenanceCost() * float64(months)
		if len(u.Tenants) == 0 {
			continue
		}
		share := u.RentShare() * float64(months)
		for _, tid := range u.Tenants {
			if t := tenants(tid); t != nil {
				collected += t.PayRent(share)
			}
		}
	}
	net := collected - upkeep
	l.Profit += net
	l.Wealth += net
	return collected
}

// PortfolioStats summarises a landlord's holdings.
type PortfolioStats struct {
	Units       int     `json:"units"`
	Occupied    int     `json:"occupied"`
	Vacant      int     `json:"vacant"`
	AvgRent     float64 `json:"avg_rent"`
	AvgQuality  float64 `json:"avg_quality"`
	Profit      float64 `json:"profit"`
	Wealth      float64 `json:"wealth"`
	WealthTrend float64 `json:"wealth_trend"`
	Renovations int     `json:"renovations"`
}

// Stats computes portfolio statistics.
func (l *Landlord) Stats(reg *Registry) PortfolioStats {
	st := PortfolioStats{
		Profit:      l.Profit,
		Wealth:      l.Wealth,
		WealthTrend: l.WealthTrend(),
		Renovations: l.Renovations,
	}
	for _, id := range l.Units {
		u := reg.Get(id)
		if u == nil {
			continue
		}
		st.Units++
		if u.IsVacant() {
			st.Vacant++
		} else {
			st.Occupied++
		}
		st.AvgRent += u.Rent
		st.AvgQuality += u.Quality
	}
	if st.Units > 0 {
		st.AvgRent /= float64(st.Units)
		st.AvgQuality /= float64(st.Units)
	}
	return st
}

// Clone returns a deep copy.
func (l *Landlord) Clone() *Landlord {
	c := *l
	c.Units = append([]UnitID(nil), l.Units...)
	c.wealthHistory = l.wealthHistory.Clone()
	return &c
}

// marketPressure folds demand, vacancy and price momentum into [-1, 1].
func marketPressure(sig MarketSignal) float64 {
	p := (sig.Demand-0.9)*2 + (0.05-sig.VacancyRate)*4 + (sig.PriceIndex - 1)
	return clamp(p, -1, 1)
}

func tenantAverages(u *Unit, tenants TenantLookup) (sat, savings float64, n int) {
	for _, tid := range u.Tenants {
		t := tenants(tid)
		if t == nil {
			continue
		}
		sat += t.SatisfactionScore()
		savings += t.Savings()
		n++
	}
	if n > 0 {
		sat /= float64(n)
		savings /= float64(n)
	}
	return sat, savings, n
}

// capLimit is the highest total rent at which every tenant's share stays
// within the cap for their income.
func capLimit(u *Unit, rules RentRules, tenants TenantLookup) float64 {
	limit := math.Inf(1)
	for _, tid := range u.Tenants {
		t := tenants(tid)
		if t == nil {
			continue
		}
		limit = math.Min(limit, rules.MaxRentForIncome(t.MonthlyIncome()))
	}
	return limit * float64(len(u.Tenants))
}
