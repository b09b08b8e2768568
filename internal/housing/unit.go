// Package housing provides the rental stock: units, the unit arena, tenancy
// contracts, and the landlords who own and price units.
//
// Relationships are stored as ids. A unit names its landlord or its
// owner-occupier and its tenant households; nothing holds a pointer to
// another entity, so a whole market can be cloned for parallel scenarios.
package housing

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/talgya/rent-market/internal/ring"
	"github.com/talgya/rent-market/internal/tuning"
	"github.com/talgya/rent-market/internal/world"
)

// UnitID identifies a rental unit.
type UnitID uint64

// LandlordID identifies a landlord.
type LandlordID uint64

// HouseholdID identifies a household. Declared here so the rental stock can
// reference tenants without importing the household model.
type HouseholdID uint64

var (
	ErrUnitFull      = errors.New("unit already hosts the maximum number of tenant households")
	ErrOwnerOccupied = errors.New("unit is owner-occupied")
	ErrHasTenants    = errors.New("unit has tenants")
	ErrAlreadyTenant = errors.New("household already rents this unit")
	ErrNotOwner      = errors.New("seller does not own the unit")
	ErrUnknownUnit   = errors.New("unknown unit")
)

// Occupancy is the tagged occupancy state of a unit.
type Occupancy uint8

const (
	OccupancyVacant Occupancy = iota
	OccupancySingle
	OccupancyShared
	OccupancyOwner
)

func (o Occupancy) String() string {
	switch o {
	case OccupancyVacant:
		return "vacant"
	case OccupancySingle:
		return "single"
	case OccupancyShared:
		return "shared"
	case OccupancyOwner:
		return "owner"
	default:
		return "unknown"
	}
}

// Amenity is a single unit feature.
type Amenity uint8

const (
	AmenityBalcony Amenity = 1 << iota
	AmenityParking
	AmenityGarden
	AmenityElevator
	AmenityTransit
	AmenityStorage
)

// NumAmenities is the number of distinct amenities.
const NumAmenities = 6

var amenityNames = map[string]Amenity{
	"balcony":  AmenityBalcony,
	"parking":  AmenityParking,
	"garden":   AmenityGarden,
	"elevator": AmenityElevator,
	"transit":  AmenityTransit,
	"storage":  AmenityStorage,
}

// ParseAmenities builds a set from amenity names.
func ParseAmenities(names []string) (AmenitySet, error) {
	var s AmenitySet
	for _, n := range names {
		a, ok := amenityNames[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return 0, fmt.Errorf("unknown amenity %q", n)
		}
		s = s.With(a)
	}
	return s, nil
}

// AmenitySet is a bit set of amenities.
type AmenitySet uint8

// Has reports whether a is in the set.
func (s AmenitySet) Has(a Amenity) bool { return uint8(s)&uint8(a) != 0 }

// With returns the set with a added.
func (s AmenitySet) With(a Amenity) AmenitySet { return AmenitySet(uint8(s) | uint8(a)) }

// Count returns the number of amenities in the set.
func (s AmenitySet) Count() int {
	n := 0
	for v := uint8(s); v != 0; v &= v - 1 {
		n++
	}
	return n
}

// Score returns the amenity share, 0.0–1.0.
func (s AmenitySet) Score() float64 {
	return float64(s.Count()) / NumAmenities
}

// Markdown records one vacancy rent reduction.
type Markdown struct {
	Period   int     `json:"period"`
	OldRent  float64 `json:"old_rent"`
	NewRent  float64 `json:"new_rent"`
	Factor   float64 `json:"factor"`
	Duration int     `json:"vacancy_duration"`
}

// Valuation constants per unit of size.
const (
	landValuePerRoom        = 60000.0
	improvementValuePerRoom = 90000.0
)

// Unit is a housing slot. Exactly one of Landlord or Owner is set.
type Unit struct {
	ID        UnitID         `json:"id"`
	Name      string         `json:"name,omitempty"`
	Quality   float64        `json:"quality"` // 0.0–1.0
	BaseRent  float64        `json:"base_rent"`
	Rent      float64        `json:"rent"`
	Size      int            `json:"size"`     // Persons the unit comfortably houses
	Location  float64        `json:"location"` // 0.0–1.0 desirability
	District  world.District `json:"district"`
	Amenities AmenitySet     `json:"amenities"`

	LandValue        float64 `json:"land_value"`
	ImprovementValue float64 `json:"improvement_value"`

	Landlord *LandlordID   `json:"landlord_id,omitempty"`
	Owner    *HouseholdID  `json:"owner_id,omitempty"`
	Tenants  []HouseholdID `json:"tenants,omitempty"`

	VacancyDuration    int  `json:"vacancy_duration"`
	Violations         int  `json:"violations"`
	QualityViolations  int  `json:"quality_violations"`
	ImprovementOrdered bool `json:"improvement_ordered"`
	LastRenovation     int  `json:"last_renovation"` // Periods since last renovation

	LastSalePrice  float64 `json:"last_sale_price"`
	LastSalePeriod int     `json:"last_sale_period"` // -1 = never sold

	markdowns *ring.Buffer[Markdown]
}

// NewUnit creates a vacant unit with rent at its base rent.
func NewUnit(id UnitID, quality, baseRent float64, size int, location float64, amenities AmenitySet) *Unit {
	if size < 1 {
		size = 1
	}
	u := &Unit{
		ID:             id,
		Quality:        clamp(quality, 0, 1),
		BaseRent:       baseRent,
		Rent:           baseRent,
		Size:           size,
		Location:       clamp(location, 0, 1),
		Amenities:      amenities,
		LastSalePeriod: -1,
		markdowns:      ring.New[Markdown](tuning.MarkdownHistoryLength),
	}
	u.District = world.DistrictFor(u.Location)
	u.UpdateValuation(1)
	return u
}

// Occupancy returns the current tagged occupancy state.
func (u *Unit) Occupancy() Occupancy {
	switch {
	case u.Owner != nil:
		return OccupancyOwner
	case len(u.Tenants) == 0:
		return OccupancyVacant
	case len(u.Tenants) == 1:
		return OccupancySingle
	default:
		return OccupancyShared
	}
}

// IsVacant reports whether nobody lives in the unit.
func (u *Unit) IsVacant() bool { return u.Owner == nil && len(u.Tenants) == 0 }

// IsRental reports whether the unit belongs to a landlord.
func (u *Unit) IsRental() bool { return u.Landlord != nil && u.Owner == nil }

// TenantCount returns the number of tenant households.
func (u *Unit) TenantCount() int { return len(u.Tenants) }

// HasTenant reports whether id rents this unit.
func (u *Unit) HasTenant(id HouseholdID) bool {
	for _, t := range u.Tenants {
		if t == id {
			return true
		}
	}
	return false
}

// AddTenant moves a tenant household in.
func (u *Unit) AddTenant(id HouseholdID) error {
	if u.Owner != nil {
		return ErrOwnerOccupied
	}
	if u.HasTenant(id) {
		return ErrAlreadyTenant
	}
	if len(u.Tenants) >= tuning.MaxTenantsPerUnit {
		return ErrUnitFull
	}
	u.Tenants = append(u.Tenants, id)
	u.VacancyDuration = 0
	return nil
}

// RemoveTenant moves a tenant household out. Returns false if id was not a tenant.
func (u *Unit) RemoveTenant(id HouseholdID) bool {
	for i, t := range u.Tenants {
		if t == id {
			u.Tenants = append(u.Tenants[:i], u.Tenants[i+1:]...)
			if len(u.Tenants) == 0 {
				u.Tenants = nil
				u.VacancyDuration = 0
			}
			return true
		}
	}
	return false
}

// RentShare is the monthly rent each tenant household pays.
func (u *Unit) RentShare() float64 {
	if len(u.Tenants) <= 1 {
		return u.Rent
	}
	return u.Rent / float64(len(u.Tenants))
}

// Occupants returns the number of people living in the unit.
func (u *Unit) Occupants(sizeOf func(HouseholdID) int) int {
	if u.Owner != nil {
		return sizeOf(*u.Owner)
	}
	n := 0
	for _, t := range u.Tenants {
		n += sizeOf(t)
	}
	return n
}

// UpdateValuation recomputes land and improvement value. premium scales
// land value by district demand.
func (u *Unit) UpdateValuation(premium float64) {
	if premium <= 0 {
		premium = 1
	}
	size := float64(u.Size)
	u.LandValue = landValuePerRoom * size * (0.5 + u.Location) * premium
	recency := 1 / (1 + 0.02*float64(u.LastRenovation))
	u.ImprovementValue = improvementValuePerRoom * size * u.Quality * recency
}

// MarketValue is the assessed value used for sales and property tax.
func (u *Unit) MarketValue() float64 {
	return u.LandValue + u.ImprovementValue
}

// MaintenanceCost is the monthly upkeep; worse units cost more to keep up.
func (u *Unit) MaintenanceCost() float64 {
	return u.BaseRent * (0.05 + 0.1*(1-u.Quality))
}

// Depreciate lowers quality by rate, never below 0.05.
func (u *Unit) Depreciate(rate float64) {
	u.Quality = math.Max(0.05, u.Quality-rate)
}

// RenovationCost is what raising quality by gain would cost.
func (u *Unit) RenovationCost(gain float64) float64 {
	gain = math.Min(gain, 1-u.Quality)
	return u.BaseRent * tuning.RenovationCostRatio * gain * 10
}

// Renovate raises quality and clears outstanding improvement orders.
func (u *Unit) Renovate(gain float64) {
	u.Quality = math.Min(1, u.Quality+gain)
	u.LastRenovation = 0
	u.ImprovementOrdered = false
	u.QualityViolations = 0
}

// RecordMarkdown appends to the bounded vacancy markdown history.
func (u *Unit) RecordMarkdown(m Markdown) {
	if u.markdowns == nil {
		u.markdowns = ring.New[Markdown](tuning.MarkdownHistoryLength)
	}
	u.markdowns.Push(m)
}

// Markdowns returns the recent vacancy markdowns, oldest first.
func (u *Unit) Markdowns() []Markdown {
	if u.markdowns == nil {
		return nil
	}
	return u.markdowns.Slice()
}

// Clone returns a deep copy.
func (u *Unit) Clone() *Unit {
	c := *u
	if u.Landlord != nil {
		id := *u.Landlord
		c.Landlord = &id
	}
	if u.Owner != nil {
		id := *u.Owner
		c.Owner = &id
	}
	if u.Tenants != nil {
		c.Tenants = append([]HouseholdID(nil), u.Tenants...)
	}
	if u.markdowns != nil {
		c.markdowns = u.markdowns.Clone()
	}
	return &c
}

// ClampRent bounds rent to the occupied range around base rent.
func ClampRent(rent, base float64) float64 {
	return clamp(rent, base*tuning.RentFloorRatio, base*tuning.RentCeilingRatio)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
