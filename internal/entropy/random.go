// Package entropy provides the seeded pseudo-random stream each simulation run
// draws from, plus the seed policy that keeps scenario comparisons
// reproducible. Nothing here is process-global: every run owns its Source.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"hash/fnv"
	"math"
	mrand "math/rand"
)

// Source is a per-run random stream.
type Source struct {
	seed int64
	rng  *mrand.Rand
}

// NewSource creates a stream from seed. A zero seed draws one from crypto/rand.
func NewSource(seed int64) *Source {
	if seed == 0 {
		seed = RandomSeed()
	}
	return &Source{seed: seed, rng: mrand.New(mrand.NewSource(seed))}
}

// SeedFor derives an independent seed for one run of one scenario so that
// parallel runs never share a stream yet replay identically.
func SeedFor(base int64, runIndex int, scenario string) int64 {
	h := fnv.New64a()
	h.Write([]byte(scenario))
	seed := base + int64(runIndex)*7919 + int64(h.Sum64()>>33)
	if seed == 0 {
		seed = 1
	}
	return seed
}

// Seed returns the seed the stream was created with.
func (s *Source) Seed() int64 { return s.seed }

// Float returns a value in [0, 1).
func (s *Source) Float() float64 { return s.rng.Float64() }

// Chance returns true with probability p (clamped to [0, 1]).
func (s *Source) Chance(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return s.rng.Float64() < p
}

// Uniform returns a value in [lo, hi).
func (s *Source) Uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

// Normal returns a normally distributed value.
func (s *Source) Normal(mean, sd float64) float64 {
	return mean + s.rng.NormFloat64()*sd
}

// IntRange returns an int in [lo, hi].
func (s *Source) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.rng.Intn(hi-lo+1)
}

// Intn returns an int in [0, n).
func (s *Source) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return s.rng.Intn(n)
}

// Weighted picks an index with probability proportional to weights.
// Returns -1 when every weight is non-positive.
func (s *Source) Weighted(weights []float64) int {
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return -1
	}
	r := s.rng.Float64() * total
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		r -= w
		if r < 0 {
			return i
		}
	}
	return len(weights) - 1
}

// Shuffle randomizes the order of n elements using swap.
func (s *Source) Shuffle(n int, swap func(i, j int)) {
	s.rng.Shuffle(n, swap)
}

// RandomSeed returns a non-zero seed from crypto/rand.
func RandomSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 42
	}
	seed := int64(binary.LittleEndian.Uint64(buf[:]) & math.MaxInt64)
	if seed == 0 {
		seed = 42
	}
	return seed
}
