// Wire format for frames sent to visualisers and stored by persistence.
package engine

import (
	"encoding/json"
	"math"

	"github.com/talgya/rent-market/internal/housing"
)

// Events beyond this many per frame are dropped from the wire.
const wireEventLimit = 50

// WireFrame is the serialised form of one period.
type WireFrame struct {
	Year     int             `json:"year"`
	Period   int             `json:"period"`
	Step     int             `json:"step"`
	Metrics  WireMetrics     `json:"metrics"`
	Units    []WireUnit      `json:"units"`
	Events   []Event         `json:"events"`
	Moves    []Event         `json:"moves"`
	Unhoused []WireHousehold `json:"unhoused_households"`
}

// WireMetrics are the headline aggregates. Vacancy is a percentage with one
// decimal and average rent is rounded.
type WireMetrics struct {
	TotalUnits      int     `json:"total_units"`
	OccupiedUnits   int     `json:"occupied_units"`
	VacancyRate     float64 `json:"vacancy_rate"`
	AverageRent     int     `json:"average_rent"`
	TotalPopulation int     `json:"total_population"`
	Unhoused        int     `json:"unhoused"`
}

// WireUnit is one unit on the wire.
type WireUnit struct {
	ID             housing.UnitID `json:"id"`
	Occupants      int            `json:"occupants"`
	Rent           int            `json:"rent"`
	IsOccupied     bool           `json:"is_occupied"`
	Quality        float64        `json:"quality"`
	LastRenovation int            `json:"lastRenovation"`
	Household      *WireHousehold `json:"household"`
}

// WireHousehold is the tenant summary nested in a unit.
type WireHousehold struct {
	ID           housing.HouseholdID `json:"id"`
	Name         string              `json:"name"`
	Income       float64             `json:"income"`
	Size         int                 `json:"size"`
	Satisfaction float64             `json:"satisfaction"`
	Wealth       float64             `json:"wealth"`
}

// Wire converts a step result to its wire form.
func (r *Result) Wire() WireFrame {
	f := WireFrame{
		Year:   r.Year,
		Period: r.Period,
		Step:   r.Step,
		Metrics: WireMetrics{
			TotalUnits:      r.Metrics.TotalUnits,
			OccupiedUnits:   r.Metrics.OccupiedUnits,
			VacancyRate:     math.Round(r.Metrics.VacancyRate*1000) / 10,
			AverageRent:     int(math.Round(r.Metrics.AvgRent)),
			TotalPopulation: r.Metrics.TotalPopulation,
			Unhoused:        r.Metrics.Unhoused,
		},
		Units:    make([]WireUnit, 0, len(r.Occupancy)),
		Events:   []Event{},
		Moves:    []Event{},
		Unhoused: make([]WireHousehold, 0, len(r.Unhoused)),
	}
	for _, o := range r.Occupancy {
		u := WireUnit{
			ID:             o.Unit,
			Occupants:      o.Occupants,
			Rent:           int(math.Round(o.Rent)),
			IsOccupied:     o.State != housing.OccupancyVacant.String(),
			Quality:        o.Quality,
			LastRenovation: o.LastRenovation,
		}
		if o.Resident != nil {
			h := wireHousehold(*o.Resident)
			u.Household = &h
		}
		f.Units = append(f.Units, u)
	}

	events := r.Events
	if len(events) > wireEventLimit {
		events = events[len(events)-wireEventLimit:]
	}
	f.Events = append(f.Events, events...)
	for _, e := range r.Events {
		if e.Category == "move" {
			f.Moves = append(f.Moves, e)
		}
	}
	for _, h := range r.Unhoused {
		f.Unhoused = append(f.Unhoused, wireHousehold(h))
	}
	return f
}

// MarshalWire encodes the wire form as JSON.
func (r *Result) MarshalWire() ([]byte, error) {
	return json.Marshal(r.Wire())
}

func wireHousehold(h HouseholdSummary) WireHousehold {
	return WireHousehold{
		ID:           h.ID,
		Name:         h.Name,
		Income:       h.Income,
		Size:         h.Size,
		Satisfaction: h.Satisfaction,
		Wealth:       h.Wealth,
	}
}
