package ops

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sandwichfarm/syncstr/internal/config"
)

// Metrics records engine activity.
type Metrics interface {
	ObserveFetch(route string, events int, err error)
	ObservePublish(route string, err error)
	ObserveSync(status string, success, failed int)
	Flush() error
}

// PromMetrics keeps counters on a private registry and writes them to a
// node-exporter textfile on Flush.
type PromMetrics struct {
	registry      *prometheus.Registry
	textfile      string
	fetchAttempts *prometheus.CounterVec
	fetchedEvents *prometheus.CounterVec
	publishes     *prometheus.CounterVec
	syncedEvents  *prometheus.CounterVec
	syncRuns      *prometheus.CounterVec
}

// NewMetrics returns a noop implementation when metrics are disabled.
func NewMetrics(cfg *config.Metrics) Metrics {
	if cfg == nil || !cfg.Enabled {
		return noopMetrics{}
	}

	m := &PromMetrics{
		registry: prometheus.NewRegistry(),
		textfile: cfg.Textfile,
		fetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "syncstr_fetch_attempts_total",
			Help: "Profile fetch attempts by route and result",
		}, []string{"route", "result"}),
		fetchedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "syncstr_fetched_events_total",
			Help: "Events returned by profile fetches",
		}, []string{"route"}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "syncstr_publish_attempts_total",
			Help: "Event publish attempts by route and result",
		}, []string{"route", "result"}),
		syncedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "syncstr_synced_events_total",
			Help: "Events processed by sync runs by result",
		}, []string{"result"}),
		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "syncstr_sync_runs_total",
			Help: "Sync runs by final status",
		}, []string{"status"}),
	}

	m.registry.MustRegister(m.fetchAttempts, m.fetchedEvents, m.publishes, m.syncedEvents, m.syncRuns)
	return m
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *PromMetrics) ObserveFetch(route string, events int, err error) {
	m.fetchAttempts.WithLabelValues(route, result(err)).Inc()
	if err == nil {
		m.fetchedEvents.WithLabelValues(route).Add(float64(events))
	}
}

func (m *PromMetrics) ObservePublish(route string, err error) {
	m.publishes.WithLabelValues(route, result(err)).Inc()
}

func (m *PromMetrics) ObserveSync(status string, success, failed int) {
	m.syncRuns.WithLabelValues(status).Inc()
	m.syncedEvents.WithLabelValues("ok").Add(float64(success))
	m.syncedEvents.WithLabelValues("error").Add(float64(failed))
}

// Registry exposes the underlying registry.
func (m *PromMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Flush writes the textfile when one is configured.
func (m *PromMetrics) Flush() error {
	if m.textfile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(m.textfile, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

type noopMetrics struct{}

func (noopMetrics) ObserveFetch(string, int, error) {}
func (noopMetrics) ObservePublish(string, error)    {}
func (noopMetrics) ObserveSync(string, int, int)    {}
func (noopMetrics) Flush() error                    { return nil }
