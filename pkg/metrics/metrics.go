// Package metrics exposes counters of the bridge in prometheus format.
//
// Every method is safe on a nil *Metrics, which discards observations.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/eosc4cancer/cbiobridge/pkg/tabular"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cbiobridge"

type Metrics struct {
	registry *prometheus.Registry

	imports        *prometheus.CounterVec
	importDuration *prometheus.HistogramVec
	cacheClears    *prometheus.CounterVec
	merges         *prometheus.CounterVec
	mergedRows     *prometheus.CounterVec
	connects       *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Invocations of the cBioPortal importer.",
		}, []string{"mode", "succeeded"}),
		importDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_duration_seconds",
			Help:      "Wall time of the cBioPortal importer.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"mode"}),
		cacheClears: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_clears_total",
			Help:      "Cache clear requests sent to cBioPortal.",
		}, []string{"succeeded"}),
		merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merges_total",
			Help:      "Tabular merges, by variant and whether the previous snapshot was discarded.",
		}, []string{"variant", "discarded"}),
		mergedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merged_rows_total",
			Help:      "Rows seen by tabular merges.",
		}, []string{"variant", "kind"}),
		connects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_transitions_total",
			Help:      "State transitions of connection attempts to external platforms.",
		}, []string{"platform", "state"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.imports, m.importDuration, m.cacheClears, m.merges, m.mergedRows, m.connects,
	)
	return m
}

// Handler serves the metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveImport(mode string, succeeded bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.imports.WithLabelValues(mode, strconv.FormatBool(succeeded)).Inc()
	m.importDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveCacheClear(succeeded bool) {
	if m == nil {
		return
	}
	m.cacheClears.WithLabelValues(strconv.FormatBool(succeeded)).Inc()
}

func (m *Metrics) ObserveMerge(variant tabular.Variant, rep tabular.Report) {
	if m == nil {
		return
	}
	v := string(variant)
	m.merges.WithLabelValues(v, strconv.FormatBool(rep.Discarded)).Inc()
	m.mergedRows.WithLabelValues(v, "existing").Add(float64(rep.Existing))
	m.mergedRows.WithLabelValues(v, "replaced").Add(float64(rep.Replaced))
	m.mergedRows.WithLabelValues(v, "incoming").Add(float64(rep.Incoming))
	m.mergedRows.WithLabelValues(v, "duplicates").Add(float64(rep.Duplicates))
}

func (m *Metrics) ObserveConnect(platform string, state string) {
	if m == nil {
		return
	}
	m.connects.WithLabelValues(platform, state).Inc()
}
