// Household timeline: a bounded record of moves and lifecycle changes used to
// audit what happened to a household and when.
package agents

import "github.com/talgya/rent-market/internal/housing"

// RecordKind classifies a timeline record.
type RecordKind string

const (
	RecordArrived      RecordKind = "arrived"
	RecordMovedIn      RecordKind = "moved_in"
	RecordMovedOut     RecordKind = "moved_out"
	RecordShared       RecordKind = "shared"
	RecordEvicted      RecordKind = "evicted"
	RecordBought       RecordKind = "bought"
	RecordSold         RecordKind = "sold"
	RecordStageChanged RecordKind = "stage_changed"
	RecordStress       RecordKind = "financial_stress"
	RecordSplit        RecordKind = "split"
	RecordAbsorbed     RecordKind = "absorbed"
)

// Record is one entry in a household timeline.
type Record struct {
	Period int            `json:"period"`
	Kind   RecordKind     `json:"kind"`
	Unit   housing.UnitID `json:"unit_id,omitempty"`
	Detail string         `json:"detail,omitempty"`
}

// Note appends a record. The oldest record is dropped once the timeline is full.
func (h *Household) Note(period int, kind RecordKind, unit housing.UnitID, detail string) Record {
	r := Record{Period: period, Kind: kind, Unit: unit, Detail: detail}
	h.timeline.Push(r)
	return r
}

// RecordsSince returns records from period onwards, oldest first.
func (h *Household) RecordsSince(period int) []Record {
	var out []Record
	for _, r := range h.timeline.Slice() {
		if r.Period >= period {
			out = append(out, r)
		}
	}
	return out
}
