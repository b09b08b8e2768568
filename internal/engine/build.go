// Simulation construction: parameter validation, city and unit generation,
// landlord portfolios, the initial population and its first allocation.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/rent-market/internal/agents"
	"github.com/talgya/rent-market/internal/economy"
	"github.com/talgya/rent-market/internal/entropy"
	"github.com/talgya/rent-market/internal/housing"
	"github.com/talgya/rent-market/internal/policy"
	"github.com/talgya/rent-market/internal/world"
)

// Params configures a run.
type Params struct {
	Households       int     // Initial household count
	Units            int     // Total units, catalog entries first
	Landlords        int     // Landlords sharing the initial stock
	Years            int     // Horizon
	MigrationRate    float64 // Base share of the population deficit filled per period
	Seed             int64   // 0 = random, resolved once in Build
	TargetPopulation int     // 0 = Households
	CompliantShare   float64 // Share of landlords that respect rent rules

	Policy *policy.Policy // nil = no cap
}

// DefaultParams returns a small ten-year run.
func DefaultParams() Params {
	return Params{
		Households:     100,
		Units:          90,
		Landlords:      10,
		Years:          10,
		MigrationRate:  0.05,
		CompliantShare: 0.7,
	}
}

// Validate rejects configurations that cannot start a run.
func (p Params) Validate() error {
	switch {
	case p.Households <= 0:
		return fmt.Errorf("%w: %d", ErrInvalidHouseholdCount, p.Households)
	case p.Units <= 0:
		return fmt.Errorf("%w: %d", ErrInvalidUnitCount, p.Units)
	case p.Landlords <= 0:
		return fmt.Errorf("%w: %d", ErrInvalidLandlordCount, p.Landlords)
	case p.Years < 1:
		return fmt.Errorf("%w: %d", ErrInvalidHorizon, p.Years)
	case p.MigrationRate < 0 || p.MigrationRate > 1:
		return fmt.Errorf("%w: %g", ErrInvalidMigrationRate, p.MigrationRate)
	case p.CompliantShare < 0 || p.CompliantShare > 1:
		return fmt.Errorf("compliant share %g outside [0, 1]", p.CompliantShare)
	}
	return nil
}

// UnitTemplate describes a catalog unit. Zero fields are generated.
type UnitTemplate struct {
	Name      string
	Quality   float64
	BaseRent  float64
	Size      int
	Location  float64
	Amenities []string
}

// Catalog seeds a run with fixed households and units. Entries are consumed
// in order before random generation fills the rest.
type Catalog struct {
	Households []agents.Template
	Units      []UnitTemplate
}

// Build creates a simulation at step 0 with the initial population housed
// where it can afford to be.
func Build(p Params, cat *Catalog) (*Simulation, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Seed == 0 {
		p.Seed = entropy.RandomSeed()
	}
	if p.TargetPopulation <= 0 {
		p.TargetPopulation = p.Households
	}
	if p.Policy == nil {
		p.Policy = policy.NoCap()
	}
	if cat == nil {
		cat = &Catalog{}
	}

	s := &Simulation{
		Params:  p,
		Policy:  p.Policy.Clone(),
		Rand:    entropy.NewSource(p.Seed),
		Spawner: agents.NewSpawner(p.Seed),
		index:   make(map[housing.HouseholdID]*agents.Household, p.Households),
	}

	units, err := s.generateUnits(cat.Units)
	if err != nil {
		return nil, fmt.Errorf("generate units: %w", err)
	}
	s.Units = housing.NewRegistry(units...)
	s.generateLandlords(units)
	s.Market = economy.NewRentalMarket(s.Units)

	for i := 0; i < p.Households; i++ {
		var h *agents.Household
		if i < len(cat.Households) {
			h = s.Spawner.FromTemplate(cat.Households[i])
		} else {
			h = s.Spawner.Spawn()
		}
		h.Note(0, agents.RecordArrived, 0, "")
		s.addHousehold(h)
	}
	housed := s.allocate()

	s.Market.UpdateConditions(0, len(s.Households)-housed)
	slog.Info("simulation built",
		"seed", p.Seed,
		"households", len(s.Households),
		"units", s.Units.Len(),
		"landlords", len(s.Landlords),
		"housed", housed,
		"policy", s.Policy.Kind.String(),
	)
	return s, nil
}

// generateUnits places units on the city field. Catalog values override the
// generated ones field by field.
func (s *Simulation) generateUnits(catalog []UnitTemplate) ([]*housing.Unit, error) {
	cfg := world.DefaultGenConfig()
	cfg.Seed = s.Params.Seed
	sites := world.PlaceSites(cfg, s.Params.Units)

	units := make([]*housing.Unit, 0, s.Params.Units)
	for i, site := range sites {
		var t UnitTemplate
		if i < len(catalog) {
			t = catalog[i]
		}
		loc := site.Location
		if t.Location > 0 {
			loc = t.Location
		}
		quality := t.Quality
		if quality <= 0 {
			quality = s.Rand.Uniform(0.4, 0.95)
		}
		size := t.Size
		if size <= 0 {
			size = s.Rand.IntRange(1, 4)
		}
		base := t.BaseRent
		if base <= 0 {
			base = 400 + 250*float64(size) + 600*loc + 400*quality
		}

		var amenities housing.AmenitySet
		if t.Amenities != nil {
			a, err := housing.ParseAmenities(t.Amenities)
			if err != nil {
				return nil, fmt.Errorf("unit %d: %w", i+1, err)
			}
			amenities = a
		} else {
			for a := housing.Amenity(1); a <= housing.AmenityStorage; a <<= 1 {
				if s.Rand.Chance(0.3 + 0.3*loc) {
					amenities = amenities.With(a)
				}
			}
		}

		u := housing.NewUnit(housing.UnitID(i+1), quality, base, size, loc, amenities)
		u.Name = t.Name
		units = append(units, u)
	}
	return units, nil
}

// generateLandlords creates the landlords and deals units out round-robin.
func (s *Simulation) generateLandlords(units []*housing.Unit) {
	for i := 0; i < s.Params.Landlords; i++ {
		l := housing.NewLandlord(
			housing.LandlordID(i+1),
			s.Rand.Uniform(0.2, 0.9),
			s.Rand.Uniform(0.3, 0.9),
			s.Rand.Uniform(0.2, 0.9),
			s.Rand.Chance(s.Params.CompliantShare),
		)
		l.Name = fmt.Sprintf("Landlord %d", l.ID)
		l.Wealth = s.Rand.Uniform(100000, 500000)
		s.Landlords = append(s.Landlords, l)
	}
	for i, u := range units {
		s.Landlords[i%len(s.Landlords)].Own(u)
	}
}

// allocate gives every household, in random order, one search over the
// vacant stock. Returns how many were housed.
func (s *Simulation) allocate() int {
	env := s.env()
	order := make([]*agents.Household, len(s.Households))
	copy(order, s.Households)
	s.Rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	housed := 0
	for _, h := range order {
		u, _ := h.SearchForHousing(env, s.Market.Vacancies(false))
		if u == nil {
			continue
		}
		if _, err := h.MoveInto(env, u); err != nil {
			slog.Warn("initial allocation failed", "household", h.ID, "unit", u.ID, "error", err)
			continue
		}
		housed++
	}
	return housed
}
