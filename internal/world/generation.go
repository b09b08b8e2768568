// City generation using layered simplex noise.
// Produces a desirability field over a square city and places unit sites on it;
// a site's location score blends distance to the centre with local noise.
package world

import (
	"math"
	"math/rand"
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// District buckets location scores for premium tracking.
type District uint8

const (
	DistrictEdge District = iota
	DistrictOuter
	DistrictInner
	DistrictCore
)

// NumDistricts is the number of district buckets.
const NumDistricts = 4

// DistrictFor maps a location score in [0,1] to its district.
func DistrictFor(location float64) District {
	switch {
	case location >= 0.75:
		return DistrictCore
	case location >= 0.5:
		return DistrictInner
	case location >= 0.25:
		return DistrictOuter
	default:
		return DistrictEdge
	}
}

// String returns a human-readable district name.
func (d District) String() string {
	switch d {
	case DistrictCore:
		return "core"
	case DistrictInner:
		return "inner"
	case DistrictOuter:
		return "outer"
	case DistrictEdge:
		return "edge"
	default:
		return "unknown"
	}
}

// GenConfig holds city generation parameters.
type GenConfig struct {
	Seed        int64   // Random seed (0 = random)
	Width       float64 // City side length in grid cells
	NoiseWeight float64 // Share of the location score coming from noise (0.0–1.0)
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:       20,
		NoiseWeight: 0.35,
	}
}

// Site is a position a housing unit can be built on.
type Site struct {
	X        float64
	Y        float64
	Location float64 // Desirability, 0.0–1.0
}

// Field evaluates location desirability anywhere in the city.
type Field struct {
	noise opensimplex.Noise
	cfg   GenConfig
}

// NewField creates a desirability field.
func NewField(cfg GenConfig) *Field {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	if cfg.Width <= 0 {
		cfg.Width = DefaultGenConfig().Width
	}
	return &Field{noise: opensimplex.NewNormalized(seed), cfg: cfg}
}

// Location returns the desirability at (x, y), in [0, 1].
func (f *Field) Location(x, y float64) float64 {
	half := f.cfg.Width / 2
	dx, dy := x-half, y-half
	centrality := 1 - math.Min(1, math.Hypot(dx, dy)/(half*math.Sqrt2))

	n := octaveNoise(f.noise, x/f.cfg.Width, y/f.cfg.Width, 3, 2.0, 0.5)
	w := clamp01(f.cfg.NoiseWeight)
	return clamp01((1-w)*centrality + w*n)
}

// PlaceSites scatters count sites uniformly over the city and scores them.
// Sites are returned ordered by descending location so catalog units can be
// matched to the most desirable plots first.
func PlaceSites(cfg GenConfig, count int) []Site {
	field := NewField(cfg)
	rng := rand.New(rand.NewSource(cfg.Seed + 200))

	sites := make([]Site, 0, count)
	for i := 0; i < count; i++ {
		x := rng.Float64() * field.cfg.Width
		y := rng.Float64() * field.cfg.Width
		sites = append(sites, Site{X: x, Y: y, Location: field.Location(x, y)})
	}

	sort.SliceStable(sites, func(i, j int) bool {
		return sites[i].Location > sites[j].Location
	})
	return sites
}

// DistrictCounts returns how many sites fall in each district.
func DistrictCounts(sites []Site) [NumDistricts]int {
	var counts [NumDistricts]int
	for _, s := range sites {
		counts[DistrictFor(s.Location)]++
	}
	return counts
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
