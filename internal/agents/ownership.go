// Home ownership: the buy/sell propensity gate, purchase with a mortgage, and
// sale back into the rental stock.
package agents

import (
	"errors"
	"fmt"

	"github.com/talgya/rent-market/internal/economy"
	"github.com/talgya/rent-market/internal/housing"
	"github.com/talgya/rent-market/internal/tuning"
)

// BuyProbability is the per-period chance a non-owner tries to buy.
func (h *Household) BuyProbability(c economy.Conditions) float64 {
	if h.Tenure() == TenureOwner {
		return 0
	}
	p := h.Stage.Profile().BuyPropensity
	p *= min(1, h.Savings()/50000) * min(1, h.Income/4000)
	p *= clampRange(1-5*(c.InterestRate-tuning.BaseInterestRate), 0.5, 1.5)
	if c.PriceIndex > 1.2 {
		p *= 1.2 // Rents are high relative to the baseline.
	}
	p *= 1 - 0.5*h.Prefs.RiskAversion
	return clamp01(p)
}

// SellProbability is the per-period chance an owner puts the home up for sale.
func (h *Household) SellProbability(c economy.Conditions) float64 {
	if h.Tenure() != TenureOwner {
		return 0
	}
	p := h.Stage.Profile().SellPropensity
	if h.FinancialStress {
		p *= 2
	}
	if c.PriceIndex > 1.2 {
		p *= 1.3
	}
	p *= 1 + 0.5*(1-h.Satisfaction)
	return clamp01(p)
}

// CanFinance reports whether the household can cover the down payment on
// price and carry the mortgage at rate.
func (h *Household) CanFinance(price, rate float64) bool {
	down := price * tuning.DownPaymentRatio
	if down > h.Savings() {
		return false
	}
	payment := MonthlyPayment(price-down, rate, tuning.MortgageTermYears*12)
	return payment <= tuning.MaxMortgageBurden*h.Income
}

// ConsiderOwnership runs the buy or sell gate once for this period.
func (h *Household) ConsiderOwnership(env *Env, m *economy.RentalMarket, landlords []*housing.Landlord) []Record {
	c := env.Conditions
	switch h.Tenure() {
	case TenureOwner:
		if !env.Rand.Chance(h.SellProbability(c)) {
			return nil
		}
		r, err := h.sellToMarket(env, m, landlords)
		if err != nil {
			return nil
		}
		return []Record{r}
	default:
		if !env.Rand.Chance(h.BuyProbability(c)) {
			return nil
		}
		return h.buyFromMarket(env, m, landlords)
	}
}

func (h *Household) buyFromMarket(env *Env, m *economy.RentalMarket, landlords []*housing.Landlord) []Record {
	rate := env.Conditions.InterestRate
	var (
		best    *housing.Unit
		bestSat float64
	)
	for _, u := range m.ForSale() {
		if !h.CanFinance(m.SalePrice(u), rate) {
			continue
		}
		if s := h.OwnerSatisfaction(u, h.Size); s > bestSat {
			best, bestSat = u, s
		}
	}
	if best == nil || best.Landlord == nil {
		return nil
	}
	seller := findLandlord(landlords, *best.Landlord)
	if seller == nil {
		return nil
	}

	price, err := m.SellToHousehold(best, seller, h.ID, env.Period)
	if err != nil {
		return nil
	}
	var out []Record
	if r, ok := h.MoveOut(env, "buying"); ok {
		out = append(out, r)
	}
	return append(out, h.BuyHome(env, best, price, rate))
}

// BuyHome makes the household the owner-occupier of u, which must already
// have been transferred to it, financing price with a mortgage at rate.
func (h *Household) BuyHome(env *Env, u *housing.Unit, price, rate float64) Record {
	if h.Contract != nil {
		h.MoveOut(env, "buying")
	}
	down := min(price*tuning.DownPaymentRatio, h.Wealth)
	h.Wealth -= down
	h.Mortgage = NewMortgage(price-down, rate, tuning.MortgageTermYears)
	id := u.ID
	h.OwnedUnit = &id
	h.LastMove = env.Period
	h.FailedSearches = 0
	h.Moves++
	h.Satisfaction = h.OwnerSatisfaction(u, u.Occupants(env.sizeOf))
	return h.Note(env.Period, RecordBought, u.ID, fmt.Sprintf("price %.0f", price))
}

var errNotOwner = errors.New("household owns no unit")

func (h *Household) sellToMarket(env *Env, m *economy.RentalMarket, landlords []*housing.Landlord) (Record, error) {
	u := h.Unit(env.Units)
	if u == nil || h.OwnedUnit == nil {
		return Record{}, errNotOwner
	}
	_, price, err := m.SellToLandlord(u, h.ID, landlords, env.Period)
	if err != nil {
		return Record{}, err
	}
	return h.SellHome(env, u.ID, price), nil
}

// SellHome liquidates equity: the sale price less the outstanding mortgage
// balance goes to wealth, and the household becomes unhoused.
func (h *Household) SellHome(env *Env, unit housing.UnitID, price float64) Record {
	h.releaseEarmark()
	equity := price
	if h.Mortgage != nil {
		equity -= h.Mortgage.Balance
	}
	h.Wealth = max(0, h.Wealth+equity)
	h.Mortgage = nil
	h.OwnedUnit = nil
	h.Satisfaction = 0
	h.LastMove = env.Period
	return h.Note(env.Period, RecordSold, unit, fmt.Sprintf("price %.0f equity %.0f", price, equity))
}

func findLandlord(landlords []*housing.Landlord, id housing.LandlordID) *housing.Landlord {
	for _, l := range landlords {
		if l.ID == id {
			return l
		}
	}
	return nil
}

func clampRange(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
