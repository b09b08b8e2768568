// Package telemetry exports simulation progress as Prometheus metrics.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talgya/rent-market/internal/engine"
)

// Metrics holds the collectors for one process. Each instance has its own
// registry so tests and parallel runs never collide.
type Metrics struct {
	reg *prometheus.Registry

	Steps         prometheus.Counter
	StepFailures  prometheus.Counter
	Moves         prometheus.Counter
	Evictions     prometheus.Counter
	Sales         prometheus.Counter
	Households    prometheus.Gauge
	Unhoused      prometheus.Gauge
	VacancyRate   prometheus.Gauge
	AverageRent   prometheus.Gauge
	AverageBurden prometheus.Gauge
	PriceIndex    prometheus.Gauge
	InterestRate  prometheus.Gauge
	TaxesTotal    *prometheus.GaugeVec
	Tenure        *prometheus.GaugeVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		Steps: f.NewCounter(prometheus.CounterOpts{
			Name: "rentsim_steps_total",
			Help: "Periods simulated",
		}),
		StepFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "rentsim_step_failures_total",
			Help: "Periods that failed and produced no frame",
		}),
		Moves: f.NewCounter(prometheus.CounterOpts{
			Name: "rentsim_moves_total",
			Help: "Household moves into a unit",
		}),
		Evictions: f.NewCounter(prometheus.CounterOpts{
			Name: "rentsim_evictions_total",
			Help: "Renter households evicted",
		}),
		Sales: f.NewCounter(prometheus.CounterOpts{
			Name: "rentsim_sales_total",
			Help: "Unit sales between landlords and households",
		}),
		Households: f.NewGauge(prometheus.GaugeOpts{
			Name: "rentsim_households",
			Help: "Households in the market",
		}),
		Unhoused: f.NewGauge(prometheus.GaugeOpts{
			Name: "rentsim_unhoused_households",
			Help: "Households with neither a contract nor a home",
		}),
		VacancyRate: f.NewGauge(prometheus.GaugeOpts{
			Name: "rentsim_vacancy_ratio",
			Help: "Vacant rental units over rental units",
		}),
		AverageRent: f.NewGauge(prometheus.GaugeOpts{
			Name: "rentsim_average_rent",
			Help: "Mean monthly rent of rental units",
		}),
		AverageBurden: f.NewGauge(prometheus.GaugeOpts{
			Name: "rentsim_average_rent_burden",
			Help: "Mean rent over income of renters",
		}),
		PriceIndex: f.NewGauge(prometheus.GaugeOpts{
			Name: "rentsim_price_index",
			Help: "Average rent relative to the starting average",
		}),
		InterestRate: f.NewGauge(prometheus.GaugeOpts{
			Name: "rentsim_interest_rate",
			Help: "Current mortgage interest rate",
		}),
		TaxesTotal: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rentsim_taxes_collected",
			Help: "Cumulative taxes collected by kind",
		}, []string{"kind"}),
		Tenure: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rentsim_households_by_tenure",
			Help: "Households by housing tenure",
		}, []string{"tenure"}),
	}
}

// Observe records one step's result.
func (m *Metrics) Observe(r *engine.Result) {
	if r == nil {
		return
	}
	pm := r.Metrics
	m.Steps.Inc()
	m.Moves.Add(float64(pm.Moves))
	m.Evictions.Add(float64(pm.Evictions))
	m.Sales.Add(float64(pm.Sales))
	m.Households.Set(float64(pm.TotalHouseholds))
	m.Unhoused.Set(float64(pm.Unhoused))
	m.VacancyRate.Set(pm.VacancyRate)
	m.AverageRent.Set(pm.AvgRent)
	m.AverageBurden.Set(pm.AvgBurden)
	m.PriceIndex.Set(pm.PriceIndex)
	m.InterestRate.Set(pm.InterestRate)
	m.TaxesTotal.WithLabelValues("property").Set(pm.PropertyTax)
	m.TaxesTotal.WithLabelValues("wealth").Set(pm.WealthTax)
	m.TaxesTotal.WithLabelValues("lvt").Set(pm.LVT)
	m.Tenure.WithLabelValues("renter").Set(float64(pm.Renters))
	m.Tenure.WithLabelValues("owner").Set(float64(pm.Owners))
	m.Tenure.WithLabelValues("unhoused").Set(float64(pm.Unhoused))
}

// ObserveFailure counts a failed step.
func (m *Metrics) ObserveFailure(error) {
	m.StepFailures.Inc()
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
