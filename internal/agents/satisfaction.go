package agents

import (
	"math"

	"github.com/talgya/rent-market/internal/housing"
	"github.com/talgya/rent-market/internal/tuning"
)

// Fixed weights for the size and location components.
const (
	sizeWeight     = 0.5
	locationWeight = 0.5
	ownerQuality   = 1.2 // Owners weigh quality more heavily.
)

// components are the per-unit scores every satisfaction and search formula
// combines. Each is 0.0–1.0.
type components struct {
	affordability float64
	quality       float64
	size          float64
	location      float64
	amenity       float64
}

func (h *Household) score(u *housing.Unit, cost float64, occupants int) components {
	c := components{
		quality:  u.Quality,
		size:     sizeMatch(u.Size, occupants),
		location: 1 - math.Abs(h.Prefs.LocationPreference-u.Location),
		amenity:  u.Amenities.Score(),
	}
	if h.Income > 0 {
		c.affordability = max(0, 1-cost/h.Income)
	}
	return c
}

// renterWeighted combines all five components using the household's weights.
func (h *Household) renterWeighted(c components) float64 {
	p := h.Prefs
	wA, wQ, wM := p.CostSensitivity, p.QualityPreference, p.AmenityPreference
	total := wA + wQ + sizeWeight + locationWeight + wM
	if total <= 0 {
		return 0
	}
	return (wA*c.affordability + wQ*c.quality + sizeWeight*c.size +
		locationWeight*c.location + wM*c.amenity) / total
}

func (h *Household) ownerWeighted(c components) float64 {
	p := h.Prefs
	wQ, wM := p.QualityPreference*ownerQuality, p.AmenityPreference
	total := wQ + sizeWeight + locationWeight + wM
	if total <= 0 {
		return 0
	}
	return (wQ*c.quality + sizeWeight*c.size + locationWeight*c.location + wM*c.amenity) / total
}

// RenterSatisfaction scores living in u while paying share per month alongside
// coTenants other households, with occupants people in the unit in total.
func (h *Household) RenterSatisfaction(u *housing.Unit, share float64, occupants, coTenants int) float64 {
	s := h.renterWeighted(h.score(u, share, occupants))
	s -= tuning.SharingPenalty * float64(max(0, coTenants))
	return clamp01(s)
}

// OwnerSatisfaction scores owning and living in u. Mortgage cost is not an
// input.
func (h *Household) OwnerSatisfaction(u *housing.Unit, occupants int) float64 {
	return clamp01(h.ownerWeighted(h.score(u, 0, occupants)))
}

// CalculateSatisfaction evaluates the household's current home. Unhoused
// households score zero.
func (h *Household) CalculateSatisfaction(env *Env) float64 {
	u := h.Unit(env.Units)
	if u == nil {
		return 0
	}
	occupants := u.Occupants(env.sizeOf)
	if h.Tenure() == TenureOwner {
		return h.OwnerSatisfaction(u, occupants)
	}
	return h.RenterSatisfaction(u, u.RentShare(), occupants, u.TenantCount()-1)
}

// sizeMatch is 1 − relative mismatch between unit size and occupants.
func sizeMatch(size, occupants int) float64 {
	hi := max(size, occupants)
	if hi <= 0 {
		return 1
	}
	diff := math.Abs(float64(size - occupants))
	return clamp01(1 - diff/float64(hi))
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
