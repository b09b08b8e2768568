// Package report renders run results as console tables.
package report

import (
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"

	"github.com/talgya/rent-market/internal/engine"
	"github.com/talgya/rent-market/internal/policy"
)

// Console writes reports to a writer.
type Console struct {
	out io.Writer
}

// NewConsole writes to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter writes to w, for tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Periods prints one row per period. every > 1 keeps every n-th period plus
// the last one.
func (c *Console) Periods(metrics []engine.PeriodMetrics, every int) {
	if len(metrics) == 0 {
		fmt.Fprintln(c.out, "no periods simulated")
		return
	}
	if every < 1 {
		every = 1
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Year", "P", "HH", "Unhoused", "Vacancy", "Avg rent", "Burden", "Sat", "Moves", "Evict", "Sales", "Taxes")
	for i, m := range metrics {
		if i%every != 0 && i != len(metrics)-1 {
			continue
		}
		table.Append(
			fmt.Sprintf("%d", m.Year),
			fmt.Sprintf("%d", m.Period),
			fmt.Sprintf("%d", m.TotalHouseholds),
			fmt.Sprintf("%d", m.Unhoused),
			fmt.Sprintf("%.1f%%", m.VacancyRate*100),
			fmt.Sprintf("%.0f", m.AvgRent),
			fmt.Sprintf("%.2f", m.AvgBurden),
			fmt.Sprintf("%.2f", m.AvgSatisfaction),
			fmt.Sprintf("%d", m.Moves),
			fmt.Sprintf("%d", m.Evictions),
			fmt.Sprintf("%d", m.Sales),
			fmt.Sprintf("%.0f", m.TotalTaxes),
		)
	}
	table.Render()
}

// Policy prints the policy's enforcement tallies.
func (c *Console) Policy(s policy.Summary) {
	fmt.Fprintf(c.out, "\nPolicy: %s\n", s.Kind)
	table := tablewriter.NewWriter(c.out)
	table.Header("Inspections", "Rent violations", "Quality violations", "Improvements", "Increases prevented", "Tenant savings", "LVT")
	table.Append(
		fmt.Sprintf("%d", s.InspectionsPerformed),
		fmt.Sprintf("%d", s.ViolationsFound),
		fmt.Sprintf("%d", s.QualityViolations),
		fmt.Sprintf("%d", s.ImprovementsRequired),
		fmt.Sprintf("%d", s.RentIncreasesPrevented),
		fmt.Sprintf("%.0f", s.TenantSavings),
		fmt.Sprintf("%.0f", s.LVTCollected),
	)
	table.Render()
}

// Compare prints terminal averages side by side.
func (c *Console) Compare(results []engine.ScenarioResult) {
	if len(results) == 0 {
		fmt.Fprintln(c.out, "no scenarios")
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Scenario", "Runs", "Avg rent", "Burden", "Sat", "Vacancy", "Unhoused", "Evictions", "Moves", "Taxes")
	for _, r := range results {
		table.Append(
			r.Name,
			fmt.Sprintf("%d", r.Runs),
			fmt.Sprintf("%.0f", r.AvgRent),
			fmt.Sprintf("%.2f", r.AvgBurden),
			fmt.Sprintf("%.2f", r.AvgSatisfaction),
			fmt.Sprintf("%.1f%%", r.VacancyRate*100),
			fmt.Sprintf("%.1f", r.Unhoused),
			fmt.Sprintf("%.1f", r.Evictions),
			fmt.Sprintf("%.1f", r.Moves),
			fmt.Sprintf("%.0f", r.TotalTaxes),
		)
	}
	table.Render()

	if base, ok := find(results, "no_cap"); ok {
		if capped, ok := find(results, "cap"); ok && base.AvgRent > 0 {
			fmt.Fprintf(c.out, "  Rent cap moves average rent by %+.1f%% against no cap\n",
				(capped.AvgRent-base.AvgRent)/base.AvgRent*100)
		}
	}
}

func find(results []engine.ScenarioResult, name string) (engine.ScenarioResult, bool) {
	for _, r := range results {
		if r.Name == name {
			return r, true
		}
	}
	return engine.ScenarioResult{}, false
}
