// Per-period metrics: the aggregate record, the distributional snapshot and
// the occupancy snapshot.
package engine

import (
	"github.com/talgya/rent-market/internal/agents"
	"github.com/talgya/rent-market/internal/housing"
)

// PeriodMetrics is the aggregate record appended once per period.
type PeriodMetrics struct {
	Step   int `json:"step"`
	Year   int `json:"year"`
	Period int `json:"period"`

	TotalHouseholds int `json:"total_households"`
	TotalPopulation int `json:"total_population"`
	Renters         int `json:"renters"`
	Owners          int `json:"owners"`
	Unhoused        int `json:"unhoused"`
	Stressed        int `json:"stressed"`

	TotalUnits    int     `json:"total_units"`
	RentalUnits   int     `json:"rental_units"`
	OccupiedUnits int     `json:"occupied_units"`
	VacantUnits   int     `json:"vacant_units"`
	SharedUnits   int     `json:"shared_units"`
	OwnerOccupied int     `json:"owner_occupied"`
	VacancyRate   float64 `json:"vacancy_rate"` // Vacant rental units over rental units

	AvgRent         float64 `json:"avg_rent"`
	AvgBurden       float64 `json:"avg_burden"` // Renters only
	AvgSatisfaction float64 `json:"avg_satisfaction"`
	AvgIncome       float64 `json:"avg_income"`
	AvgWealth       float64 `json:"avg_wealth"`
	AvgQuality      float64 `json:"avg_quality"`
	PriceIndex      float64 `json:"price_index"`
	InterestRate    float64 `json:"interest_rate"`

	Moves        int     `json:"moves"`
	MobilityRate float64 `json:"mobility_rate"`
	Evictions    int     `json:"evictions"`
	Sales        int     `json:"sales"`
	Renovations  int     `json:"renovations"`
	Inspections  int     `json:"inspections"`
	Violations   int     `json:"violations"`
	Departures   int     `json:"departures"`
	Breakups     int     `json:"breakups"`
	Mergers      int     `json:"mergers"`
	Arrivals     int     `json:"arrivals"`
	Actions      int     `json:"actions"`

	PropertyTax float64 `json:"property_tax"` // Cumulative
	WealthTax   float64 `json:"wealth_tax"`
	LVT         float64 `json:"lvt"`
	TotalTaxes  float64 `json:"total_taxes"`

	RentIncreasesPrevented int     `json:"rent_increases_prevented"`
	TenantSavings          float64 `json:"tenant_savings"`
}

// Bucket is one histogram bin.
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Distribution is the per-period distributional snapshot.
type Distribution struct {
	Step       int            `json:"step"`
	LifeStages map[string]int `json:"life_stages"`
	Income     []Bucket       `json:"income"` // Monthly
	Wealth     []Bucket       `json:"wealth"`
	Tenure     map[string]int `json:"tenure"`
}

// UnitOccupancy is one unit's entry in the occupancy snapshot.
type UnitOccupancy struct {
	Unit           housing.UnitID        `json:"unit_id"`
	State          string                `json:"state"`
	Rent           float64               `json:"rent"`
	Quality        float64               `json:"quality"`
	LastRenovation int                   `json:"last_renovation"`
	Tenants        []housing.HouseholdID `json:"tenants,omitempty"`
	Owner          *housing.HouseholdID  `json:"owner,omitempty"`
	Landlord       *housing.LandlordID   `json:"landlord,omitempty"`
	Occupants      int                   `json:"occupants"`
	Resident       *HouseholdSummary     `json:"resident,omitempty"` // First tenant or the owner
}

// HouseholdSummary is the roster view of a household.
type HouseholdSummary struct {
	ID           housing.HouseholdID `json:"id"`
	Name         string              `json:"name"`
	Age          float64             `json:"age"`
	Size         int                 `json:"size"`
	Stage        string              `json:"life_stage"`
	Income       float64             `json:"income"` // Monthly, with mortgage interest credit
	Wealth       float64             `json:"wealth"`
	Satisfaction float64             `json:"satisfaction"`
	Searches     int                 `json:"failed_searches"`
}

var (
	incomeEdges = []float64{2000, 4000, 6000, 8000}
	incomeNames = []string{"<2k", "2k-4k", "4k-6k", "6k-8k", "8k+"}
	wealthEdges = []float64{10000, 50000, 100000, 250000}
	wealthNames = []string{"<10k", "10k-50k", "50k-100k", "100k-250k", "250k+"}
)

// captureMetrics appends this period's aggregate and distributional records
// and refreshes the occupancy snapshot.
func (s *Simulation) captureMetrics() PeriodMetrics {
	year, period := YearPeriod(s.Step)
	m := PeriodMetrics{
		Step:            s.Step,
		Year:            year,
		Period:          period,
		TotalHouseholds: len(s.Households),
		TotalUnits:      s.Units.Len(),
		Moves:           s.counters.Moves,
		Evictions:       s.counters.Evictions,
		Sales:           s.counters.Sales,
		Renovations:     s.counters.Renovations,
		Inspections:     s.counters.Inspections,
		Violations:      s.counters.Violations,
		Departures:      s.counters.Departures,
		Breakups:        s.counters.Breakups,
		Mergers:         s.counters.Mergers,
		Arrivals:        s.counters.Arrivals,
		PropertyTax:     s.Taxes.Property,
		WealthTax:       s.Taxes.Wealth,
		LVT:             s.Taxes.LVT,
		TotalTaxes:      s.Taxes.Total(),
	}
	m.Actions = m.Moves + m.Evictions + m.Sales + m.Renovations

	c := s.Market.Conditions()
	m.PriceIndex = c.PriceIndex
	m.InterestRate = c.InterestRate

	ps := s.Policy.Summarize()
	m.RentIncreasesPrevented = ps.RentIncreasesPrevented
	m.TenantSavings = ps.TenantSavings

	dist := Distribution{
		Step:       s.Step,
		LifeStages: make(map[string]int, agents.NumStages),
		Income:     buckets(incomeNames),
		Wealth:     buckets(wealthNames),
		Tenure:     make(map[string]int, 3),
	}

	var burdenSum, satSum, incomeSum, wealthSum float64
	for _, h := range s.Households {
		m.TotalPopulation += h.Size
		switch h.Tenure() {
		case agents.TenureRenter:
			m.Renters++
			burdenSum += h.RentBurden(s.Units)
		case agents.TenureOwner:
			m.Owners++
		default:
			m.Unhoused++
		}
		if h.FinancialStress {
			m.Stressed++
		}
		satSum += h.Satisfaction
		incomeSum += h.ReportedIncome()
		wealthSum += h.Wealth

		dist.LifeStages[h.Stage.String()]++
		dist.Tenure[h.Tenure().String()]++
		dist.Income[bucketIndex(incomeEdges, h.ReportedIncome())].Count++
		dist.Wealth[bucketIndex(wealthEdges, h.Wealth)].Count++
	}
	if n := float64(len(s.Households)); n > 0 {
		m.AvgSatisfaction = satSum / n
		m.AvgIncome = incomeSum / n
		m.AvgWealth = wealthSum / n
		m.MobilityRate = float64(m.Moves) / n
	}
	if m.Renters > 0 {
		m.AvgBurden = burdenSum / float64(m.Renters)
	}

	var rentSum, qualitySum float64
	occupancy := make([]UnitOccupancy, 0, s.Units.Len())
	for _, u := range s.Units.All() {
		qualitySum += u.Quality
		switch u.Occupancy() {
		case housing.OccupancyOwner:
			m.OwnerOccupied++
			m.OccupiedUnits++
		case housing.OccupancyVacant:
			m.VacantUnits++
		case housing.OccupancyShared:
			m.SharedUnits++
			m.OccupiedUnits++
		default:
			m.OccupiedUnits++
		}
		if u.IsRental() {
			m.RentalUnits++
			rentSum += u.Rent
		}
		occupancy = append(occupancy, s.snapshotUnit(u))
	}
	if m.RentalUnits > 0 {
		m.AvgRent = rentSum / float64(m.RentalUnits)
		m.VacancyRate = float64(m.VacantUnits) / float64(m.RentalUnits)
	}
	if m.TotalUnits > 0 {
		m.AvgQuality = qualitySum / float64(m.TotalUnits)
	}

	s.Metrics = append(s.Metrics, m)
	s.Distributions = append(s.Distributions, dist)
	s.Occupancy = occupancy
	return m
}

func (s *Simulation) snapshotUnit(u *housing.Unit) UnitOccupancy {
	o := UnitOccupancy{
		Unit:           u.ID,
		State:          u.Occupancy().String(),
		Rent:           u.Rent,
		Quality:        u.Quality,
		LastRenovation: u.LastRenovation,
	}
	if len(u.Tenants) > 0 {
		o.Tenants = append([]housing.HouseholdID(nil), u.Tenants...)
	}
	if u.Owner != nil {
		id := *u.Owner
		o.Owner = &id
	}
	if u.Landlord != nil {
		id := *u.Landlord
		o.Landlord = &id
	}
	o.Occupants = u.Occupants(func(id housing.HouseholdID) int {
		if h := s.Household(id); h != nil {
			return h.Size
		}
		return 0
	})
	var resident housing.HouseholdID
	switch {
	case u.Owner != nil:
		resident = *u.Owner
	case len(u.Tenants) > 0:
		resident = u.Tenants[0]
	}
	if h := s.Household(resident); h != nil {
		sum := Summarize(h)
		o.Resident = &sum
	}
	return o
}

// unhousedRoster summarises every unhoused household.
func (s *Simulation) unhousedRoster() []HouseholdSummary {
	var out []HouseholdSummary
	for _, h := range s.Unhoused() {
		out = append(out, Summarize(h))
	}
	return out
}

// Summarize returns the roster view of h.
func Summarize(h *agents.Household) HouseholdSummary {
	return HouseholdSummary{
		ID:           h.ID,
		Name:         h.Name,
		Age:          h.Age,
		Size:         h.Size,
		Stage:        h.Stage.String(),
		Income:       h.ReportedIncome(),
		Wealth:       h.Wealth,
		Satisfaction: h.Satisfaction,
		Searches:     h.FailedSearches,
	}
}

func buckets(names []string) []Bucket {
	out := make([]Bucket, len(names))
	for i, n := range names {
		out[i].Label = n
	}
	return out
}

// bucketIndex returns the bin for v given ascending upper edges.
func bucketIndex(edges []float64, v float64) int {
	for i, e := range edges {
		if v < e {
			return i
		}
	}
	return len(edges)
}
