// Package metrics exposes Prometheus counters for tool calls, classification,
// shortcut decisions and navigation. Every method is safe on a nil Collector.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"waypoint-mcp-server/internal/element"
	"waypoint-mcp-server/internal/navigation"
)

// Collector owns a private registry so several servers (and tests) can coexist
// in one process.
type Collector struct {
	registry *prometheus.Registry

	toolCallsTotal     *prometheus.CounterVec
	toolDuration       *prometheus.HistogramVec
	elementsClassified *prometheus.CounterVec
	shortcutDecisions  *prometheus.CounterVec
	navigationDuration *prometheus.HistogramVec
	knowledgeEntries   prometheus.Gauge

	logger *zap.Logger
}

// NewCollector registers the waypoint metrics under namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		logger:   logger.Named("metrics"),

		toolCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "MCP tool calls by tool and status",
			},
			[]string{"tool", "status"},
		),
		toolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_duration_seconds",
				Help:      "MCP tool execution time in seconds",
				Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30},
			},
			[]string{"tool"},
		),
		elementsClassified: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "elements_classified_total",
				Help:      "Classified elements by category",
			},
			[]string{"category"},
		),
		shortcutDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "shortcut_decisions_total",
				Help:      "Knowledge shortcut decisions by kind and fallback reason",
			},
			[]string{"kind", "reason"},
		),
		navigationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "navigation_duration_seconds",
				Help:      "Page navigation time in seconds",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
			},
			[]string{"status"},
		),
		knowledgeEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "knowledge_entries",
			Help:      "Entries in the loaded knowledge store",
		}),
	}
	// Export a zero series for every category so rates work before the first hit.
	for _, cat := range element.Categories() {
		c.elementsClassified.WithLabelValues(cat.String())
	}
	return c
}

// RecordToolCall counts one tool execution.
func (c *Collector) RecordToolCall(tool string, elapsed time.Duration, err error) {
	if c == nil {
		return
	}
	c.toolCallsTotal.WithLabelValues(tool, status(err)).Inc()
	c.toolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// RecordClassification counts results per category.
func (c *Collector) RecordClassification(results []element.Result) {
	if c == nil {
		return
	}
	counts := make(map[element.Category]int)
	for _, r := range results {
		counts[r.Category]++
	}
	for cat, n := range counts {
		c.elementsClassified.WithLabelValues(cat.String()).Add(float64(n))
	}
}

// RecordShortcut counts a resolver decision. Reason is empty for navigations.
func (c *Collector) RecordShortcut(d navigation.Decision) {
	if c == nil {
		return
	}
	c.shortcutDecisions.WithLabelValues(d.Kind.String(), d.Reason.String()).Inc()
}

// RecordNavigation observes a page load.
func (c *Collector) RecordNavigation(elapsed time.Duration, err error) {
	if c == nil {
		return
	}
	c.navigationDuration.WithLabelValues(status(err)).Observe(elapsed.Seconds())
}

// SetKnowledgeEntries reports the size of the active knowledge store.
func (c *Collector) SetKnowledgeEntries(n int) {
	if c == nil {
		return
	}
	c.knowledgeEntries.Set(float64(n))
}

// Registry returns the registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		ErrorLog:      zap.NewStdLog(c.logger),
		ErrorHandling: promhttp.ContinueOnError,
	})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
