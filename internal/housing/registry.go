package housing

// Registry is the arena of units keyed by id. Iteration order is insertion
// order so runs replay deterministically.
type Registry struct {
	units []*Unit
	index map[UnitID]*Unit
}

// NewRegistry creates a registry holding units.
func NewRegistry(units ...*Unit) *Registry {
	r := &Registry{index: make(map[UnitID]*Unit, len(units))}
	for _, u := range units {
		r.Add(u)
	}
	return r
}

// Add registers a unit. A unit with an existing id replaces the old entry.
func (r *Registry) Add(u *Unit) {
	if _, ok := r.index[u.ID]; ok {
		for i, existing := range r.units {
			if existing.ID == u.ID {
				r.units[i] = u
			}
		}
	} else {
		r.units = append(r.units, u)
	}
	r.index[u.ID] = u
}

// Get returns the unit with id, or nil.
func (r *Registry) Get(id UnitID) *Unit {
	return r.index[id]
}

// All returns every unit in insertion order. Callers must not modify the slice.
func (r *Registry) All() []*Unit { return r.units }

// Len returns the number of units.
func (r *Registry) Len() int { return len(r.units) }

// Clone deep-copies every unit.
func (r *Registry) Clone() *Registry {
	c := &Registry{
		units: make([]*Unit, 0, len(r.units)),
		index: make(map[UnitID]*Unit, len(r.units)),
	}
	for _, u := range r.units {
		c.Add(u.Clone())
	}
	return c
}

// TransferToHousehold makes household the owner-occupier of a vacant rental
// unit, releasing it from its landlord in the same step.
func TransferToHousehold(u *Unit, seller *Landlord, buyer HouseholdID) error {
	if u.Owner != nil {
		return ErrOwnerOccupied
	}
	if len(u.Tenants) > 0 {
		return ErrHasTenants
	}
	if seller == nil || u.Landlord == nil || *u.Landlord != seller.ID {
		return ErrNotOwner
	}
	seller.Release(u.ID)
	u.Landlord = nil
	owner := buyer
	u.Owner = &owner
	u.VacancyDuration = 0
	return nil
}

// TransferToLandlord moves an owner-occupied unit into a landlord's portfolio.
// The unit becomes a vacant rental.
func TransferToLandlord(u *Unit, seller HouseholdID, buyer *Landlord) error {
	if u.Owner == nil || *u.Owner != seller {
		return ErrNotOwner
	}
	if len(u.Tenants) > 0 {
		return ErrHasTenants
	}
	u.Owner = nil
	buyer.Own(u)
	u.VacancyDuration = 0
	return nil
}
