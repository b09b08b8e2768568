// Package tuning holds the numeric constants shared across the market model.
// Every threshold that more than one package reads lives here so scenarios
// stay comparable.
package tuning

// Time model. A period is half a year; rents and incomes are monthly.
const (
	PeriodsPerYear  = 2
	MonthsPerPeriod = 6
	YearsPerPeriod  = 1.0 / PeriodsPerYear
)

// Rent bounds relative to a unit's base rent.
const (
	RentFloorRatio   = 0.4 // Occupied rents never fall below this
	RentCeilingRatio = 2.5 // or rise above this.
	VacancyFloor     = 0.6 // Vacant rents stop falling here.
	MaxMarkdown      = 0.4 // Largest total markdown below base rent.
	MaxVacancyStep   = 0.1 // Largest single-period vacancy reduction.
	DefaultIncrease  = 0.1 // Increase ceiling for compliant landlords with no policy.
)

// Household economics.
const (
	MinimumWage        = 1500.0 // Monthly income floor.
	MaxTenantsPerUnit  = 2      // Tenant households that may share one unit.
	MaxSearchBurden    = 0.8    // Full rent above this share of income is never considered.
	MaxEffectiveBurden = 0.5    // Effective (possibly split) rent ceiling.
	MoveThreshold      = 0.15   // Satisfaction gain required to relocate.
	SharingPenalty     = 0.1    // Satisfaction lost per co-tenant household.
	EvictionBurden     = 0.7    // Rent burden where eviction risk starts.
	EvictionSlope      = 1.5
	DesperationPeriods = 8 // Unhoused search urgency ramps over this many periods.
)

// Ring buffer capacities.
const (
	TimelineCapacity       = 50
	WealthWindow           = 4
	LandlordWealthWindow   = 6
	ContractHistoryLength  = 24
	MarkdownHistoryLength  = 12
	MarketHistoryRetention = 400
)

// Taxation.
const (
	PropertyTaxRate     = 0.01 // Annual, on assessed market value.
	WealthTaxRate       = 0.01 // Annual, on wealth above the threshold.
	WealthTaxThreshold  = 100000.0
	DefaultLVTRate      = 0.10
	MortgageTermYears   = 25
	DownPaymentRatio    = 0.2
	MaxMortgageBurden   = 0.35
	BaseInterestRate    = 0.04
	MinInterestRate     = 0.01
	MaxInterestRate     = 0.10
	RenovationCostRatio = 3.0 // Renovation cost in months of base rent per quality point.
)
