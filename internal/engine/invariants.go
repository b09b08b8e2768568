package engine

import (
	"fmt"

	"github.com/talgya/rent-market/internal/housing"
	"github.com/talgya/rent-market/internal/tuning"
)

// checkInvariants verifies occupancy and ownership bookkeeping across units
// and households.
func (s *Simulation) checkInvariants() error {
	for _, u := range s.Units.All() {
		if err := checkUnit(u); err != nil {
			return err
		}
		if u.Landlord != nil && s.Landlord(*u.Landlord) == nil {
			return fmt.Errorf("%w: unit %d held by unknown landlord %d", ErrInvariant, u.ID, *u.Landlord)
		}
		if u.Owner != nil {
			h := s.Household(*u.Owner)
			if h == nil || h.OwnedUnit == nil || *h.OwnedUnit != u.ID {
				return fmt.Errorf("%w: unit %d owner %d does not reference it", ErrInvariant, u.ID, *u.Owner)
			}
		}
		for _, id := range u.Tenants {
			h := s.Household(id)
			if h == nil || h.Contract == nil || h.Contract.Unit != u.ID {
				return fmt.Errorf("%w: unit %d tenant %d has no matching contract", ErrInvariant, u.ID, id)
			}
		}
	}

	for _, h := range s.Households {
		if h.Contract != nil && h.OwnedUnit != nil {
			return fmt.Errorf("%w: household %d both rents and owns", ErrInvariant, h.ID)
		}
		if h.Contract != nil {
			u := s.Units.Get(h.Contract.Unit)
			if u == nil || !u.HasTenant(h.ID) {
				return fmt.Errorf("%w: household %d contract on unit %d not reflected", ErrInvariant, h.ID, h.Contract.Unit)
			}
		}
		if h.OwnedUnit != nil {
			u := s.Units.Get(*h.OwnedUnit)
			if u == nil || u.Owner == nil || *u.Owner != h.ID {
				return fmt.Errorf("%w: household %d owned unit %d not reflected", ErrInvariant, h.ID, *h.OwnedUnit)
			}
		}
	}
	return nil
}

// checkUnit verifies the per-unit occupancy rules.
func checkUnit(u *housing.Unit) error {
	switch {
	case (u.Landlord == nil) == (u.Owner == nil):
		return fmt.Errorf("%w: unit %d must have exactly one of landlord or owner", ErrInvariant, u.ID)
	case u.Owner != nil && len(u.Tenants) > 0:
		return fmt.Errorf("%w: owner-occupied unit %d has tenants", ErrInvariant, u.ID)
	case len(u.Tenants) > tuning.MaxTenantsPerUnit:
		return fmt.Errorf("%w: unit %d has %d tenant households", ErrInvariant, u.ID, len(u.Tenants))
	case u.Owner == nil && (u.Rent < u.BaseRent*tuning.RentFloorRatio-1e-6 || u.Rent > u.BaseRent*tuning.RentCeilingRatio+1e-6):
		return fmt.Errorf("%w: unit %d rent %.2f outside bounds of base %.2f", ErrInvariant, u.ID, u.Rent, u.BaseRent)
	}
	return nil
}
