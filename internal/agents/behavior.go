// Household housing behaviour: scoring units, the per-period move decision,
// sharing, and applying the outcome to the unit arena.
package agents

import (
	"fmt"
	"math"

	"github.com/talgya/rent-market/internal/housing"
	"github.com/talgya/rent-market/internal/tuning"
)

// Sharing adjustments applied to a search score.
const (
	sharePenalty     = 0.8
	ageGapPenalty    = 0.85
	stageMismatch    = 0.9
	vacantBonus      = 1.1
	maxShareAgeGap   = 15
	baseMoveChance   = 0.2
	minSearchBreadth = 10
)

// DecisionKind enumerates what a household decided about its housing.
type DecisionKind uint8

const (
	DecisionStay DecisionKind = iota
	DecisionMove
	DecisionShare
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionMove:
		return "move"
	case DecisionShare:
		return "share"
	default:
		return "stay"
	}
}

// Decision is the outcome of ConsiderMoving.
type Decision struct {
	Kind  DecisionKind
	Unit  *housing.Unit
	Score float64
}

// ScoreUnit rates u as a new home. The second result is false when the unit
// is rejected outright: full rent above 80% of income, effective rent above
// 50% of income, or no room.
func (h *Household) ScoreUnit(u *housing.Unit, env *Env) (float64, bool) {
	if !u.IsRental() || h.Income <= 0 {
		return 0, false
	}
	occ := u.Occupancy()
	if occ != housing.OccupancyVacant && occ != housing.OccupancySingle {
		return 0, false
	}
	if u.HasTenant(h.ID) {
		return 0, false
	}
	if u.Rent > tuning.MaxSearchBurden*h.Income {
		return 0, false
	}
	effective := u.Rent
	if occ == housing.OccupancySingle {
		effective = u.Rent / 2
	}
	if effective > tuning.MaxEffectiveBurden*h.Income {
		return 0, false
	}

	occupants := u.Occupants(env.sizeOf) + h.Size
	s := h.renterWeighted(h.score(u, effective, occupants))

	if occ == housing.OccupancySingle {
		s *= sharePenalty
		if co := h.lookup(env, u.Tenants[0]); co != nil {
			if math.Abs(co.Age-h.Age) > maxShareAgeGap {
				s *= ageGapPenalty
			}
			if co.Stage != h.Stage {
				s *= stageMismatch
			}
		}
	} else {
		s *= vacantBonus
	}
	return s, s > 0
}

// SearchForHousing returns the highest-scoring acceptable candidate, or nil.
// A household examines more candidates the more patient it is.
func (h *Household) SearchForHousing(env *Env, candidates []*housing.Unit) (*housing.Unit, float64) {
	var (
		best      *housing.Unit
		bestScore float64
	)
	for _, u := range h.sample(env, candidates) {
		s, ok := h.ScoreUnit(u, env)
		if ok && s > bestScore {
			best, bestScore = u, s
		}
	}
	return best, bestScore
}

// sample draws up to the household's search breadth from candidates without
// modifying the slice.
func (h *Household) sample(env *Env, candidates []*housing.Unit) []*housing.Unit {
	breadth := minSearchBreadth + int(20*h.Prefs.SearchPatience)
	if len(candidates) <= breadth || env.Rand == nil {
		return candidates
	}
	pool := append([]*housing.Unit(nil), candidates...)
	for i := 0; i < breadth; i++ {
		j := i + env.Rand.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:breadth]
}

// Desperation ramps from 0 to 1 over the periods since the last search.
func (h *Household) Desperation(period int) float64 {
	if h.LastSearch < 0 {
		return 1
	}
	return clamp01(float64(period-h.LastSearch) / tuning.DesperationPeriods)
}

// ConsiderMoving decides whether to look for a (new) home this period and
// which unit to take. candidates are the rental units with room.
func (h *Household) ConsiderMoving(env *Env, candidates []*housing.Unit) Decision {
	switch h.Tenure() {
	case TenureUnhoused:
		return h.considerUnhoused(env, candidates)
	case TenureRenter:
		return h.considerRelocating(env, candidates)
	}
	return Decision{}
}

func (h *Household) considerUnhoused(env *Env, candidates []*housing.Unit) Decision {
	desperation := h.Desperation(env.Period)
	p := clamp01(0.3 + 0.5*desperation + 0.2*h.Prefs.SearchPatience)
	if !env.Rand.Chance(p) {
		return Decision{}
	}
	h.LastSearch = env.Period

	var vacant, single []*housing.Unit
	for _, u := range candidates {
		switch u.Occupancy() {
		case housing.OccupancyVacant:
			vacant = append(vacant, u)
		case housing.OccupancySingle:
			single = append(single, u)
		}
	}
	if u, s := h.SearchForHousing(env, vacant); u != nil {
		return Decision{Kind: DecisionMove, Unit: u, Score: s}
	}
	h.FailedSearches++
	if h.FailedSearches < 2 {
		return Decision{}
	}
	u, s := h.SearchForHousing(env, single)
	if u == nil || !env.Rand.Chance(0.3+0.7*desperation) {
		return Decision{}
	}
	return Decision{Kind: DecisionShare, Unit: u, Score: s}
}

// MoveProbability is the per-period chance a renter looks for a new home.
func (h *Household) MoveProbability(period int, burden float64) float64 {
	p := baseMoveChance * (2 - h.Satisfaction) * (1 + max(0, burden-0.3)) * (0.5 + h.Prefs.MobilityPreference)
	if h.LastMove >= 0 && period-h.LastMove <= 1 {
		p *= 0.5
	}
	return clamp01(p)
}

func (h *Household) considerRelocating(env *Env, candidates []*housing.Unit) Decision {
	if !env.Rand.Chance(h.MoveProbability(env.Period, h.RentBurden(env.Units))) {
		return Decision{}
	}
	h.LastSearch = env.Period
	current := h.Unit(env.Units)

	var (
		best    *housing.Unit
		bestSat float64
	)
	for _, u := range h.sample(env, candidates) {
		if current != nil && u.ID == current.ID {
			continue
		}
		if _, ok := h.ScoreUnit(u, env); !ok {
			continue
		}
		if sat := h.simulatedSatisfaction(env, u); sat > bestSat {
			best, bestSat = u, sat
		}
	}
	if best == nil || bestSat < h.Satisfaction+tuning.MoveThreshold {
		return Decision{}
	}
	kind := DecisionMove
	if best.TenantCount() > 0 {
		kind = DecisionShare
	}
	return Decision{Kind: kind, Unit: best, Score: bestSat}
}

// simulatedSatisfaction is the renter satisfaction the household would have
// after moving into u.
func (h *Household) simulatedSatisfaction(env *Env, u *housing.Unit) float64 {
	coTenants := u.TenantCount()
	share := u.Rent / float64(coTenants+1)
	occupants := u.Occupants(env.sizeOf) + h.Size
	return h.RenterSatisfaction(u, share, occupants, coTenants)
}

// Apply carries out a decision. A unit that filled up since it was chosen
// leaves the household where it was.
func (h *Household) Apply(env *Env, d Decision) ([]Record, error) {
	if d.Kind == DecisionStay || d.Unit == nil {
		return nil, nil
	}
	if err := h.canJoin(d.Unit); err != nil {
		return nil, err
	}
	var out []Record
	if h.Tenure() == TenureRenter {
		if r, ok := h.MoveOut(env, "relocating"); ok {
			out = append(out, r)
		}
	}
	r, err := h.MoveInto(env, d.Unit)
	if err != nil {
		return out, err
	}
	return append(out, r), nil
}

func (h *Household) canJoin(u *housing.Unit) error {
	switch {
	case u.Owner != nil:
		return housing.ErrOwnerOccupied
	case u.HasTenant(h.ID):
		return housing.ErrAlreadyTenant
	case u.TenantCount() >= tuning.MaxTenantsPerUnit:
		return housing.ErrUnitFull
	}
	return nil
}

// MoveInto signs a contract on u. The household must not be housed.
func (h *Household) MoveInto(env *Env, u *housing.Unit) (Record, error) {
	if h.IsHoused() {
		return Record{}, fmt.Errorf("household %d is already housed", h.ID)
	}
	shared := u.TenantCount() > 0
	if err := u.AddTenant(h.ID); err != nil {
		return Record{}, err
	}
	h.Contract = housing.NewContract(h.ID, u.ID, u.RentShare(), env.Year, env.Period)
	h.LastMove = env.Period
	h.FailedSearches = 0
	h.Moves++
	h.Satisfaction = h.CalculateSatisfaction(env)

	kind := RecordMovedIn
	if shared {
		kind = RecordShared
	}
	return h.Note(env.Period, kind, u.ID, fmt.Sprintf("rent %.0f", u.RentShare())), nil
}

// MoveOut ends the household's rental contract. Returns false if it was not
// renting.
func (h *Household) MoveOut(env *Env, reason string) (Record, bool) {
	if h.Contract == nil {
		return Record{}, false
	}
	id := h.Contract.Unit
	if u := env.Units.Get(id); u != nil {
		u.RemoveTenant(h.ID)
	}
	h.Contract = nil
	h.Satisfaction = 0
	h.releaseEarmark()
	return h.Note(env.Period, RecordMovedOut, id, reason), true
}

// CheckEviction evicts a renter with probability EvictionProbability(burden).
func (h *Household) CheckEviction(env *Env) (Record, bool) {
	if h.Tenure() != TenureRenter {
		return Record{}, false
	}
	burden := h.RentBurden(env.Units)
	if !env.Rand.Chance(EvictionProbability(burden)) {
		return Record{}, false
	}
	id := h.Contract.Unit
	h.MoveOut(env, "evicted")
	return h.Note(env.Period, RecordEvicted, id, fmt.Sprintf("burden %.2f", burden)), true
}

func (h *Household) lookup(env *Env, id housing.HouseholdID) *Household {
	if env.Lookup == nil {
		return nil
	}
	return env.Lookup(id)
}
