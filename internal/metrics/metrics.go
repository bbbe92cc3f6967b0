// Package metrics exposes playback and cache statistics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/playback"
)

var states = []playback.State{playback.Idle, playback.Playing, playback.Paused, playback.Stopped}

// Metrics records session events. It implements playback.Observer.
type Metrics struct {
	reg *prometheus.Registry

	commands      *prometheus.CounterVec
	regenerations *prometheus.CounterVec
	regenSeconds  prometheus.Histogram
	state         *prometheus.GaugeVec
	documents     *prometheus.CounterVec
	extractErrors *prometheus.CounterVec
	subscribers   prometheus.GaugeFunc
}

// New builds a registry with the Go and process collectors plus the
// readaloud metrics. subscribers, when non-nil, reports the number of live
// state streams.
func New(subscribers func() int) *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		reg: reg,
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "readaloud_commands_total",
			Help: "Playback commands received, by command",
		}, []string{"command"}),
		regenerations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "readaloud_regenerations_total",
			Help: "Speed change regenerations, by outcome",
		}, []string{"outcome"}),
		regenSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "readaloud_regeneration_seconds",
			Help:    "Time spent re-rendering audio for a speed change",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		state: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "readaloud_playback_state",
			Help: "1 for the current playback state, 0 otherwise",
		}, []string{"state"}),
		documents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "readaloud_documents_loaded_total",
			Help: "Documents converted and loaded, by kind",
		}, []string{"kind"}),
		extractErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "readaloud_extraction_errors_total",
			Help: "Failed document conversions, by source type",
		}, []string{"source"}),
	}
	if subscribers != nil {
		m.subscribers = f.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "readaloud_state_subscribers",
			Help: "Open state streams",
		}, func() float64 { return float64(subscribers()) })
	}
	m.StateChanged(playback.Idle)
	return m
}

// Command counts a playback command.
func (m *Metrics) Command(name string) {
	m.commands.WithLabelValues(name).Inc()
}

// StateChanged marks state as the current one.
func (m *Metrics) StateChanged(state playback.State) {
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		m.state.WithLabelValues(s.String()).Set(v)
	}
}

// Regeneration records a finished speed change.
func (m *Metrics) Regeneration(outcome string, took time.Duration) {
	m.regenerations.WithLabelValues(outcome).Inc()
	if outcome != "superseded" {
		m.regenSeconds.Observe(took.Seconds())
	}
}

// DocumentLoaded counts a loaded document of the given kind.
func (m *Metrics) DocumentLoaded(kind string) {
	m.documents.WithLabelValues(kind).Inc()
}

// ExtractionFailed counts a conversion that failed.
func (m *Metrics) ExtractionFailed(source string) {
	m.extractErrors.WithLabelValues(source).Inc()
}

// WatchCache exports the statistics of c on every scrape.
func (m *Metrics) WatchCache(c StatsSource) {
	m.reg.MustRegister(&cacheCollector{src: c})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(m.reg, promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
}

// StatsSource reports per level cache statistics.
type StatsSource interface {
	Stats() map[cache.Level]cache.Stats
}

var (
	cacheItems = prometheus.NewDesc("readaloud_cache_items",
		"Entries held by the PCM cache", []string{"level"}, nil)
	cacheBytes = prometheus.NewDesc("readaloud_cache_bytes",
		"Bytes held by the PCM cache", []string{"level"}, nil)
	cacheHits = prometheus.NewDesc("readaloud_cache_hits_total",
		"PCM cache hits", []string{"level"}, nil)
	cacheMisses = prometheus.NewDesc("readaloud_cache_misses_total",
		"PCM cache misses", []string{"level"}, nil)
	cacheEvictions = prometheus.NewDesc("readaloud_cache_evictions_total",
		"PCM cache evictions", []string{"level"}, nil)
)

type cacheCollector struct {
	src StatsSource
}

func (c *cacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- cacheItems
	ch <- cacheBytes
	ch <- cacheHits
	ch <- cacheMisses
	ch <- cacheEvictions
}

func (c *cacheCollector) Collect(ch chan<- prometheus.Metric) {
	for level, s := range c.src.Stats() {
		l := level.String()
		ch <- prometheus.MustNewConstMetric(cacheItems, prometheus.GaugeValue, float64(s.Items), l)
		ch <- prometheus.MustNewConstMetric(cacheBytes, prometheus.GaugeValue, float64(s.Size), l)
		ch <- prometheus.MustNewConstMetric(cacheHits, prometheus.CounterValue, float64(s.Hits), l)
		ch <- prometheus.MustNewConstMetric(cacheMisses, prometheus.CounterValue, float64(s.Misses), l)
		ch <- prometheus.MustNewConstMetric(cacheEvictions, prometheus.CounterValue, float64(s.Evictions), l)
	}
}
