package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/rent-market/internal/tuning"
)

// Result is what one period step produces.
type Result struct {
	Step         int                `json:"step"`
	Year         int                `json:"year"`
	Period       int                `json:"period"`
	Metrics      PeriodMetrics      `json:"metrics"`
	Distribution Distribution       `json:"distribution"`
	Occupancy    []UnitOccupancy    `json:"occupancy"`
	Unhoused     []HouseholdSummary `json:"unhoused"`
	Events       []Event            `json:"events"`
}

// Advance runs one period. Phases execute in a fixed order because each reads
// state the previous one wrote. Beyond the horizon it is a no-op returning a
// nil result.
func (s *Simulation) Advance() (*Result, error) {
	if s.Done() {
		return nil, nil
	}
	s.Step++
	s.Events = nil
	s.counters = periodCounters{}
	year, period := YearPeriod(s.Step)

	s.processPopulation()
	s.updateMarket()
	s.processHouseholds()
	s.processLandlords()
	s.processInspections()
	s.collectRent()
	s.collectTaxes(period == tuning.PeriodsPerYear)
	m := s.captureMetrics()

	if err := s.checkInvariants(); err != nil {
		return nil, fmt.Errorf("step %d: %w", s.Step, err)
	}

	slog.Debug("period complete",
		"step", s.Step,
		"year", year,
		"period", period,
		"households", m.TotalHouseholds,
		"unhoused", m.Unhoused,
		"vacancy", fmt.Sprintf("%.3f", m.VacancyRate),
		"avg_rent", fmt.Sprintf("%.0f", m.AvgRent),
		"moves", m.Moves,
		"evictions", m.Evictions,
	)

	return &Result{
		Step:         s.Step,
		Year:         year,
		Period:       period,
		Metrics:      m,
		Distribution: s.Distributions[len(s.Distributions)-1],
		Occupancy:    s.Occupancy,
		Unhoused:     s.unhousedRoster(),
		Events:       s.Events,
	}, nil
}

// RunToHorizon advances until the horizon and returns the final metrics.
func (s *Simulation) RunToHorizon() (PeriodMetrics, error) {
	var last PeriodMetrics
	for !s.Done() {
		r, err := s.Advance()
		if err != nil {
			return last, err
		}
		last = r.Metrics
	}
	return last, nil
}
