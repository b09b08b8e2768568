// Population dynamics: departures, breakups, mergers and arrivals.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/talgya/rent-market/internal/agents"
	"github.com/talgya/rent-market/internal/economy"
	"github.com/talgya/rent-market/internal/housing"
)

// Mergers considered per period and their acceptance chance.
const (
	maxMergersPerPeriod = 3
	mergerAcceptance    = 0.5
)

// PopulationChange counts what the population phase did.
type PopulationChange struct {
	Departures int `json:"departures"`
	Breakups   int `json:"breakups"`
	Mergers    int `json:"mergers"`
	Arrivals   int `json:"arrivals"`
}

// Net is the change in household count.
func (c PopulationChange) Net() int {
	return c.Arrivals + c.Breakups - c.Departures - c.Mergers
}

// processPopulation runs the four population sub-phases in order.
func (s *Simulation) processPopulation() PopulationChange {
	var c PopulationChange
	c.Departures = s.processDepartures()
	c.Breakups = s.processBreakups()
	c.Mergers = s.processMergers()
	c.Arrivals = s.processArrivals()

	s.counters.Departures += c.Departures
	s.counters.Breakups += c.Breakups
	s.counters.Mergers += c.Mergers
	s.counters.Arrivals += c.Arrivals
	return c
}

// processDepartures removes households that leave the market. Their unit or
// contract is released before they go.
func (s *Simulation) processDepartures() int {
	env := s.env()
	var leaving []*agents.Household
	for _, h := range s.Households {
		if s.Rand.Chance(h.DepartureProbability(h.RentBurden(s.Units))) {
			leaving = append(leaving, h)
		}
	}
	for _, h := range leaving {
		s.releaseHousing(env, h)
		s.removeHousehold(h)
		s.emit(Event{Household: h.ID, Category: "population", Description: fmt.Sprintf("%s left the market", h.Name)})
	}
	return len(leaving)
}

// releaseHousing frees whatever unit h occupies. An owner's home is sold to a
// landlord; if none can pay, the wealthiest landlord buys it on credit at the
// market price.
func (s *Simulation) releaseHousing(env *agents.Env, h *agents.Household) {
	switch h.Tenure() {
	case agents.TenureRenter:
		h.MoveOut(env, "departed")
	case agents.TenureOwner:
		u := h.Unit(s.Units)
		if u == nil {
			h.OwnedUnit = nil
			return
		}
		_, price, err := s.Market.SellToLandlord(u, h.ID, s.Landlords, s.Step)
		if errors.Is(err, economy.ErrNoBuyer) {
			if buyer := s.wealthiestLandlord(); buyer != nil {
				price, err = s.Market.SellTo(u, h.ID, buyer, s.Step)
			}
		}
		if err != nil {
			slog.Warn("releasing departing owner's unit", "household", h.ID, "unit", u.ID, "error", err)
			return
		}
		h.SellHome(env, u.ID, price)
		s.counters.Sales++
	}
}

func (s *Simulation) wealthiestLandlord() *housing.Landlord {
	var best *housing.Landlord
	for _, l := range s.Landlords {
		if best == nil || l.Wealth > best.Wealth {
			best = l
		}
	}
	return best
}

// processBreakups splits multi-person households in two.
func (s *Simulation) processBreakups() int {
	n := 0
	existing := append([]*agents.Household(nil), s.Households...)
	for _, h := range existing {
		if !s.Rand.Chance(h.BreakupProbability(h.RentBurden(s.Units))) {
			continue
		}
		child := h.Split(s.Spawner.NextID(), s.Rand, s.Step)
		if child == nil {
			continue
		}
		child.Name = s.Spawner.Name()
		s.addHousehold(child)
		s.emit(Event{Household: h.ID, Category: "population", Description: fmt.Sprintf("household split, %d members formed household %d", child.Size, child.ID)})
		n++
	}
	return n
}

// processMergers lets up to three unhoused households join housed households with
// spare room. The host keeps its identity.
func (s *Simulation) processMergers() int {
	unhoused := s.Unhoused()
	if len(unhoused) == 0 {
		return 0
	}
	s.Rand.Shuffle(len(unhoused), func(i, j int) { unhoused[i], unhoused[j] = unhoused[j], unhoused[i] })
	if len(unhoused) > maxMergersPerPeriod {
		unhoused = unhoused[:maxMergersPerPeriod]
	}

	n := 0
	for _, other := range unhoused {
		var hosts []*agents.Household
		for _, h := range s.Households {
			if h.CanAbsorb(other, s.Units) {
				hosts = append(hosts, h)
			}
		}
		if len(hosts) == 0 || !s.Rand.Chance(mergerAcceptance) {
			continue
		}
		host := hosts[s.Rand.Intn(len(hosts))]
		host.Absorb(other, s.Step)
		s.removeHousehold(other)
		s.emit(Event{Household: host.ID, Category: "population", Description: fmt.Sprintf("absorbed household %d", other.ID)})
		n++
	}
	return n
}

// processArrivals adds migrants. The arrival rate rises as the population
// falls below its target and never pushes it above.
func (s *Simulation) processArrivals() int {
	target := s.Params.TargetPopulation
	deficit := target - len(s.Households)
	if deficit <= 0 || target <= 0 {
		return 0
	}
	rate := s.Params.MigrationRate * (1 + float64(deficit)/float64(target))
	n := int(math.Ceil(float64(deficit) * min(1, rate)))
	n = min(n, deficit)
	for i := 0; i < n; i++ {
		h := s.Spawner.Spawn()
		h.Note(s.Step, agents.RecordArrived, 0, "")
		s.addHousehold(h)
	}
	if n > 0 {
		s.emit(Event{Category: "population", Description: fmt.Sprintf("%d households arrived", n)})
	}
	return n
}
