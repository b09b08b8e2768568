// Package economy aggregates unit state into market conditions and processes
// property sales.
//
// Conditions are derived, never edited: Recompute is a pure function of the
// registry and the sales recorded since the last update, and UpdateConditions
// is the only place the current record and its history change.
package economy

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/rent-market/internal/housing"
	"github.com/talgya/rent-market/internal/ring"
	"github.com/talgya/rent-market/internal/tuning"
	"github.com/talgya/rent-market/internal/world"
)

// ErrNoBuyer is returned when no landlord can afford a unit.
var ErrNoBuyer = errors.New("no landlord can afford the unit")

// Conditions is one period's market snapshot. Comparable with ==.
type Conditions struct {
	Period           int                         `json:"period"`
	RentalUnits      int                         `json:"rental_units"`
	VacancyRate      float64                     `json:"vacancy_rate"`
	AverageRent      float64                     `json:"average_rent"`
	Demand           float64                     `json:"demand"`
	PriceIndex       float64                     `json:"price_index"`
	InterestRate     float64                     `json:"interest_rate"`
	LocationPremiums [world.NumDistricts]float64 `json:"location_premiums"`
	RecentSales      int                         `json:"recent_sales"`      // Since the previous update
	RecentSalePrice  float64                     `json:"recent_sale_price"` // Mean over RecentSales
	OwnerOccupied    int                         `json:"owner_occupied"`
	Shared           int                         `json:"shared"`
}

// Signal returns the part of the conditions landlords price against.
func (c Conditions) Signal() housing.MarketSignal {
	return housing.MarketSignal{
		VacancyRate: c.VacancyRate,
		Demand:      c.Demand,
		PriceIndex:  c.PriceIndex,
	}
}

// Premium returns the location premium for a district.
func (c Conditions) Premium(d world.District) float64 {
	if int(d) >= len(c.LocationPremiums) || c.LocationPremiums[d] <= 0 {
		return 1
	}
	return c.LocationPremiums[d]
}

// RentalMarket indexes every unit for aggregation. Units are owned by
// landlords and owner-occupiers; the market only reads them, except for
// valuations and sale bookkeeping.
type RentalMarket struct {
	units        *housing.Registry
	baselineRent float64
	current      Conditions
	history      *ring.Buffer[Conditions]

	// Sales since the last UpdateConditions.
	sales      int
	salesValue float64
}

// NewRentalMarket creates a market over units. The baseline for the price
// index is the average rent at construction.
func NewRentalMarket(units *housing.Registry) *RentalMarket {
	m := &RentalMarket{
		units:   units,
		history: ring.New[Conditions](tuning.MarketHistoryRetention),
	}
	m.baselineRent = averageRent(units)
	m.current = m.Recompute(0, 0)
	return m
}

// Units returns the indexed registry.
func (m *RentalMarket) Units() *housing.Registry { return m.units }

// Conditions returns the current snapshot.
func (m *RentalMarket) Conditions() Conditions { return m.current }

// History returns past snapshots, oldest first.
func (m *RentalMarket) History() []Conditions { return m.history.Slice() }

// BaselineRent is the average rent the price index is measured against.
func (m *RentalMarket) BaselineRent() float64 { return m.baselineRent }

// Recompute derives conditions from current unit state. seekers is the number
// of unhoused households looking for a rental. It does not modify the market.
func (m *RentalMarket) Recompute(period, seekers int) Conditions {
	c := Conditions{Period: period}

	var (
		rentSum          float64
		tenantHH, vacant int
		ratioSum         [world.NumDistricts]float64
		ratioN           [world.NumDistricts]int
		allRatio         float64
	)
	for _, u := range m.units.All() {
		if u.Owner != nil {
			c.OwnerOccupied++
			continue
		}
		c.RentalUnits++
		rentSum += u.Rent
		tenantHH += u.TenantCount()
		switch u.Occupancy() {
		case housing.OccupancyVacant:
			vacant++
		case housing.OccupancyShared:
			c.Shared++
		}
		if u.BaseRent > 0 {
			r := u.Rent / u.BaseRent
			ratioSum[u.District] += r
			ratioN[u.District]++
			allRatio += r
		}
	}

	if c.RentalUnits > 0 {
		n := float64(c.RentalUnits)
		c.VacancyRate = float64(vacant) / n
		c.AverageRent = rentSum / n
		c.Demand = float64(tenantHH+seekers) / n
		allRatio /= n
	}
	if m.baselineRent > 0 && c.AverageRent > 0 {
		c.PriceIndex = c.AverageRent / m.baselineRent
	} else {
		c.PriceIndex = 1
	}
	c.InterestRate = interestRate(c.PriceIndex)

	for d := range c.LocationPremiums {
		c.LocationPremiums[d] = 1
		if ratioN[d] > 0 && allRatio > 0 {
			c.LocationPremiums[d] = (ratioSum[d] / float64(ratioN[d])) / allRatio
		}
	}
	c.RecentSales = m.sales
	if m.sales > 0 {
		c.RecentSalePrice = m.salesValue / float64(m.sales)
	}
	return c
}

// UpdateConditions recomputes and records this period's conditions, then
// revalues every unit with the new location premiums. The sales tally starts
// over.
func (m *RentalMarket) UpdateConditions(period, seekers int) Conditions {
	m.current = m.Recompute(period, seekers)
	m.history.Push(m.current)
	m.sales, m.salesValue = 0, 0
	for _, u := range m.units.All() {
		u.UpdateValuation(m.current.Premium(u.District))
	}
	return m.current
}

// PendingSales is the number of sales not yet reported in Conditions.
func (m *RentalMarket) PendingSales() int { return m.sales }

func (m *RentalMarket) recordSale(u *housing.Unit, price float64, period int) {
	u.LastSalePrice = price
	u.LastSalePeriod = period
	m.sales++
	m.salesValue += price
}

// SalePrice is what a unit sells for under current conditions.
func (m *RentalMarket) SalePrice(u *housing.Unit) float64 {
	pi := m.current.PriceIndex
	if pi <= 0 {
		pi = 1
	}
	return u.MarketValue() * pi
}

// SellToHousehold transfers a vacant rental unit from its landlord to a
// household and credits the landlord with the price. The buyer's own
// finances are the caller's concern.
func (m *RentalMarket) SellToHousehold(u *housing.Unit, seller *housing.Landlord, buyer housing.HouseholdID, period int) (float64, error) {
	price := m.SalePrice(u)
	if err := housing.TransferToHousehold(u, seller, buyer); err != nil {
		return 0, fmt.Errorf("sell unit %d to household %d: %w", u.ID, buyer, err)
	}
	seller.Wealth += price
	m.recordSale(u, price, period)
	return price, nil
}

// SellToLandlord sells an owner-occupied unit to the wealthiest landlord able
// to pay. Returns the buyer and the price.
func (m *RentalMarket) SellToLandlord(u *housing.Unit, seller housing.HouseholdID, landlords []*housing.Landlord, period int) (*housing.Landlord, float64, error) {
	price := m.SalePrice(u)
	var buyer *housing.Landlord
	for _, l := range landlords {
		if l.Wealth < price {
			continue
		}
		if buyer == nil || l.Wealth > buyer.Wealth {
			buyer = l
		}
	}
	if buyer == nil {
		return nil, 0, ErrNoBuyer
	}
	if _, err := m.SellTo(u, seller, buyer, period); err != nil {
		return nil, 0, err
	}
	return buyer, price, nil
}

// SellTo sells an owner-occupied unit to buyer at the market price whether or
// not the buyer can afford it; the buyer's wealth may go negative. The unit
// is re-let at the base rent scaled by the price index.
func (m *RentalMarket) SellTo(u *housing.Unit, seller housing.HouseholdID, buyer *housing.Landlord, period int) (float64, error) {
	price := m.SalePrice(u)
	if err := housing.TransferToLandlord(u, seller, buyer); err != nil {
		return 0, fmt.Errorf("sell unit %d to landlord %d: %w", u.ID, buyer.ID, err)
	}
	buyer.Wealth -= price
	u.Rent = housing.ClampRent(u.BaseRent*m.current.PriceIndex, u.BaseRent)
	m.recordSale(u, price, period)
	return price, nil
}

// Vacancies returns rental units with room for another tenant household:
// wholly vacant units and singly occupied ones when includeShared is set.
func (m *RentalMarket) Vacancies(includeShared bool) []*housing.Unit {
	var out []*housing.Unit
	for _, u := range m.units.All() {
		if !u.IsRental() {
			continue
		}
		switch u.Occupancy() {
		case housing.OccupancyVacant:
			out = append(out, u)
		case housing.OccupancySingle:
			if includeShared {
				out = append(out, u)
			}
		}
	}
	return out
}

// ForSale returns vacant rental units a household could buy.
func (m *RentalMarket) ForSale() []*housing.Unit {
	var out []*housing.Unit
	for _, u := range m.units.All() {
		if u.IsRental() && u.IsVacant() {
			out = append(out, u)
		}
	}
	return out
}

// Clone deep-copies the market over a cloned registry.
func (m *RentalMarket) Clone(units *housing.Registry) *RentalMarket {
	return &RentalMarket{
		units:        units,
		baselineRent: m.baselineRent,
		current:      m.current,
		history:      m.history.Clone(),
		sales:        m.sales,
		salesValue:   m.salesValue,
	}
}

func interestRate(priceIndex float64) float64 {
	r := tuning.BaseInterestRate + 0.02*(priceIndex-1)
	return math.Max(tuning.MinInterestRate, math.Min(tuning.MaxInterestRate, r))
}

func averageRent(units *housing.Registry) float64 {
	sum, n := 0.0, 0
	for _, u := range units.All() {
		if u.Owner != nil {
			continue
		}
		sum += u.Rent
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
