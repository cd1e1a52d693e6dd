package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bumpwatch/bumpwatch/pkg/bump"
)

const namespace = "bumpwatch"

// Metrics holds the server's collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	fetches      *prometheus.CounterVec
	updates      *prometheus.CounterVec
	impacts      *prometheus.CounterVec
	impactDamage prometheus.Counter
	vehicles     prometheus.Counter
	bumps        *prometheus.GaugeVec
	views        prometheus.Gauge
}

// New registers all collectors, plus the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "list_fetches_total",
			Help:      "Record list fetches by result.",
		}, []string{"result"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "condition_updates_total",
			Help:      "Operator condition updates by result (ok, invalid, not_found, error).",
		}, []string{"result"}),
		impacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "impact_reports_total",
			Help:      "Impact reports received from agents by result.",
		}, []string{"result"}),
		impactDamage: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "impact_damage_points_total",
			Help:      "Health points removed by impact reports.",
		}),
		vehicles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vehicles_total",
			Help:      "Vehicles reported crossing any bump.",
		}),
		bumps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bumps",
			Help:      "Speed bumps per status as of the last full list fetch.",
		}, []string{"status"}),
		views: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_views",
			Help:      "Connected WebSocket views.",
		}),
	}
	m.reg.MustRegister(
		m.fetches, m.updates, m.impacts, m.impactDamage, m.vehicles, m.bumps, m.views,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Fetch counts one list fetch.
func (m *Metrics) Fetch(err error) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(result(err)).Inc()
}

// Update counts one operator update with an already classified result.
func (m *Metrics) Update(res string) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(res).Inc()
}

// Impact counts one impact report.
func (m *Metrics) Impact(res string, damage int, vehicles int64) {
	if m == nil {
		return
	}
	m.impacts.WithLabelValues(res).Inc()
	if res == "ok" {
		m.impactDamage.Add(float64(damage))
		m.vehicles.Add(float64(vehicles))
	}
}

// Observe sets the per-status gauges from an unfiltered summary.
func (m *Metrics) Observe(s bump.Summary) {
	if m == nil {
		return
	}
	for _, st := range bump.Statuses {
		m.bumps.WithLabelValues(string(st)).Set(float64(s.Count(st)))
	}
}

// ViewOpened and ViewClosed track live WebSocket views.
func (m *Metrics) ViewOpened() {
	if m != nil {
		m.views.Inc()
	}
}

func (m *Metrics) ViewClosed() {
	if m != nil {
		m.views.Dec()
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
