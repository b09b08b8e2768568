// Household spawning: the initial population, migrants, and households built
// from a seed catalog.
package agents

import (
	"github.com/talgya/rent-market/internal/entropy"
	"github.com/talgya/rent-market/internal/housing"
)

// Template describes a catalog household. Zero fields are filled randomly.
type Template struct {
	Name   string
	Age    float64
	Size   int
	Income float64 // Monthly
	Wealth float64
}

// Spawner creates households for the simulation.
type Spawner struct {
	rng    *entropy.Source
	nextID housing.HouseholdID
}

// NewSpawner creates a household spawner with the given seed.
func NewSpawner(seed int64) *Spawner {
	return &Spawner{
		rng:    entropy.NewSource(seed + 300),
		nextID: 1,
	}
}

// NextID returns the next household id and advances the counter. Ids are
// never reused within a run.
func (s *Spawner) NextID() housing.HouseholdID {
	id := s.nextID
	s.nextID++
	return id
}

// Peek returns the id the next household will get.
func (s *Spawner) Peek() housing.HouseholdID { return s.nextID }

// SpawnPopulation creates count random households.
func (s *Spawner) SpawnPopulation(count int) []*Household {
	out := make([]*Household, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, s.Spawn())
	}
	return out
}

// Spawn creates one random household.
func (s *Spawner) Spawn() *Household {
	return s.FromTemplate(Template{})
}

// FromTemplate creates a household from a catalog entry, drawing any missing
// attribute at random.
func (s *Spawner) FromTemplate(t Template) *Household {
	age := t.Age
	if age <= 0 {
		age = s.weightedAge()
	}
	size := t.Size
	if size <= 0 {
		size = s.sizeForAge(age)
	}
	income := t.Income
	if income <= 0 {
		income = s.rng.Uniform(2000, 8000)
	}
	wealth := t.Wealth
	if wealth <= 0 {
		wealth = s.rng.Uniform(10000, 100000)
	}

	h := NewHousehold(s.NextID(), age, size, income, wealth, s.preferences(StageFor(age, size)))
	h.Name = t.Name
	if h.Name == "" {
		h.Name = s.generateName()
	}
	return h
}

func (s *Spawner) weightedAge() float64 {
	// Mostly working-age heads, 25–60, with a tail either side.
	switch r := s.rng.Float(); {
	case r < 0.1:
		return s.rng.Uniform(20, 25)
	case r < 0.9:
		return s.rng.Uniform(25, 60)
	default:
		return s.rng.Uniform(60, 85)
	}
}

func (s *Spawner) sizeForAge(age float64) int {
	var sizes []int
	var weights []float64
	switch {
	case age < 30:
		sizes, weights = []int{1, 2}, []float64{70, 30}
	case age < 45:
		sizes, weights = []int{1, 2, 3, 4}, []float64{20, 40, 25, 15}
	default:
		sizes, weights = []int{1, 2, 3}, []float64{40, 40, 20}
	}
	i := s.rng.Weighted(weights)
	if i < 0 {
		return 1
	}
	return sizes[i]
}

// preferences jitters the stage baseline so households differ.
func (s *Spawner) preferences(stage LifeStage) Preferences {
	p := stage.Profile().Prefs
	j := func(v float64) float64 { return clamp01(v + s.rng.Normal(0, 0.1)) }
	return Preferences{
		CostSensitivity:    j(p.CostSensitivity),
		QualityPreference:  j(p.QualityPreference),
		LocationPreference: clamp01(s.rng.Uniform(0.2, 0.9)),
		AmenityPreference:  j(p.AmenityPreference),
		MobilityPreference: j(p.MobilityPreference),
		RiskAversion:       j(p.RiskAversion),
		SearchPatience:     j(p.SearchPatience),
	}
}

// Name draws a household name from the pools.
func (s *Spawner) Name() string { return s.generateName() }

func (s *Spawner) generateName() string {
	first := firstNames[s.rng.Intn(len(firstNames))]
	last := lastNames[s.rng.Intn(len(lastNames))]
	return first + " " + last
}

// Name pools for procedural generation.
var firstNames = []string{
	"Ava", "Bram", "Cora", "Daan", "Elif", "Finn", "Greta", "Hugo",
	"Iris", "Jasper", "Kira", "Lars", "Mira", "Noor", "Otto", "Petra",
	"Quinn", "Rosa", "Sem", "Thea", "Umar", "Vera", "Wout", "Yara",
}

var lastNames = []string{
	"de Vries", "Jansen", "Bakker", "Visser", "Smit", "Meijer", "Mulder",
	"de Boer", "Bos", "Vos", "Peters", "Hendriks", "Dekker", "Brouwer",
	"Ashford", "Holloway", "Mercer", "Harper", "Caldwell", "Thatcher",
}
