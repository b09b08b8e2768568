// Life stages: each stage is a profile that sets income drift, savings rate,
// ownership propensities and the baseline preference bundle.
package agents

// LifeStage is the categorical phase of a household, derived from age and size.
type LifeStage uint8

const (
	StageYoungAdult LifeStage = iota
	StageFamilyFormation
	StageEstablished
	StageEmptyNester
	StageSeniorSingle
	StageSeniorCouple
)

// NumStages is the number of life stages.
const NumStages = 6

func (s LifeStage) String() string {
	switch s {
	case StageYoungAdult:
		return "young_adult"
	case StageFamilyFormation:
		return "family_formation"
	case StageEstablished:
		return "established"
	case StageEmptyNester:
		return "empty_nester"
	case StageSeniorSingle:
		return "senior_single"
	case StageSeniorCouple:
		return "senior_couple"
	default:
		return "unknown"
	}
}

// StageFor derives the life stage from age and household size.
func StageFor(age float64, size int) LifeStage {
	switch {
	case age < 30:
		if size >= 3 {
			return StageFamilyFormation
		}
		return StageYoungAdult
	case age < 45:
		if size >= 3 {
			return StageFamilyFormation
		}
		return StageEstablished
	case age < 65:
		if size >= 3 {
			return StageEstablished
		}
		return StageEmptyNester
	default:
		if size <= 1 {
			return StageSeniorSingle
		}
		return StageSeniorCouple
	}
}

// StageProfile holds the economic behaviour of a life stage.
type StageProfile struct {
	IncomeMultiplier float64 // Per-period income drift factor
	SavingsRate      float64 // Share of surplus income saved
	BuyPropensity    float64 // Per-period chance scale of buying a home
	SellPropensity   float64 // Per-period chance scale of selling
	Prefs            Preferences
}

var stageProfiles = [NumStages]StageProfile{
	StageYoungAdult: {
		IncomeMultiplier: 1.03, SavingsRate: 0.15, BuyPropensity: 0.04, SellPropensity: 0.02,
		Prefs: Preferences{
			CostSensitivity: 0.8, QualityPreference: 0.4, LocationPreference: 0.7,
			AmenityPreference: 0.4, MobilityPreference: 0.8, RiskAversion: 0.3, SearchPatience: 0.3,
		},
	},
	StageFamilyFormation: {
		IncomeMultiplier: 1.02, SavingsRate: 0.10, BuyPropensity: 0.12, SellPropensity: 0.02,
		Prefs: Preferences{
			CostSensitivity: 0.7, QualityPreference: 0.7, LocationPreference: 0.5,
			AmenityPreference: 0.7, MobilityPreference: 0.4, RiskAversion: 0.6, SearchPatience: 0.5,
		},
	},
	StageEstablished: {
		IncomeMultiplier: 1.015, SavingsRate: 0.20, BuyPropensity: 0.10, SellPropensity: 0.02,
		Prefs: Preferences{
			CostSensitivity: 0.5, QualityPreference: 0.7, LocationPreference: 0.6,
			AmenityPreference: 0.6, MobilityPreference: 0.3, RiskAversion: 0.5, SearchPatience: 0.6,
		},
	},
	StageEmptyNester: {
		IncomeMultiplier: 1.005, SavingsRate: 0.25, BuyPropensity: 0.05, SellPropensity: 0.05,
		Prefs: Preferences{
			CostSensitivity: 0.5, QualityPreference: 0.6, LocationPreference: 0.6,
			AmenityPreference: 0.5, MobilityPreference: 0.3, RiskAversion: 0.6, SearchPatience: 0.7,
		},
	},
	StageSeniorSingle: {
		IncomeMultiplier: 0.99, SavingsRate: 0.05, BuyPropensity: 0.01, SellPropensity: 0.08,
		Prefs: Preferences{
			CostSensitivity: 0.8, QualityPreference: 0.5, LocationPreference: 0.5,
			AmenityPreference: 0.6, MobilityPreference: 0.1, RiskAversion: 0.8, SearchPatience: 0.8,
		},
	},
	StageSeniorCouple: {
		IncomeMultiplier: 0.995, SavingsRate: 0.08, BuyPropensity: 0.02, SellPropensity: 0.06,
		Prefs: Preferences{
			CostSensitivity: 0.6, QualityPreference: 0.6, LocationPreference: 0.5,
			AmenityPreference: 0.6, MobilityPreference: 0.15, RiskAversion: 0.7, SearchPatience: 0.8,
		},
	},
}

// Profile returns the stage's profile.
func (s LifeStage) Profile() StageProfile {
	if int(s) >= NumStages {
		return stageProfiles[StageEstablished]
	}
	return stageProfiles[s]
}

// updateStage recomputes the life stage. On a transition every preference is
// reset to the new stage's baseline. Returns true if the stage changed.
func (h *Household) updateStage() bool {
	next := StageFor(h.Age, h.Size)
	if next == h.Stage {
		return false
	}
	h.Stage = next
	h.Prefs = next.Profile().Prefs
	return true
}
