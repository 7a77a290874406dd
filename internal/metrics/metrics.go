// Package metrics exports ingestion counters to Prometheus.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/hrimport/internal/core"
)

const namespace = "hrimport"

// Collection is a core.RunObserver recording row and run outcomes.
type Collection struct {
	Rows          *prometheus.CounterVec
	Warnings      prometheus.Counter
	Runs          *prometheus.CounterVec
	RunDuration   prometheus.Histogram
	LastSuccessAt prometheus.Gauge

	gatherer prometheus.Gatherer
}

var _ core.RunObserver = (*Collection)(nil)

// New registers the collection on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Collection {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Collection{
		Rows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Roster rows processed, by outcome.",
		}, []string{"outcome"}),
		Warnings: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_warnings_total",
			Help:      "Field values dropped or defaulted during normalization.",
		}),
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Ingestion runs, by result.",
		}, []string{"result"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of completed ingestion runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		LastSuccessAt: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that produced a report.",
		}),
		gatherer: reg,
	}
}

// RowProcessed counts one row.
func (c *Collection) RowProcessed(outcome core.Outcome, warnings int) {
	c.Rows.WithLabelValues(string(outcome)).Inc()
	if warnings > 0 {
		c.Warnings.Add(float64(warnings))
	}
}

// RunFinished counts one run and, when it produced a report, its duration.
func (c *Collection) RunFinished(report *core.Report, err error) {
	c.Runs.WithLabelValues(runResult(report, err)).Inc()
	if err == nil && report != nil {
		c.RunDuration.Observe(report.Duration.Seconds())
		c.LastSuccessAt.SetToCurrentTime()
	}
}

func runResult(report *core.Report, err error) string {
	var unreadable *core.UnreadableFileError
	switch {
	case err == nil && report != nil && report.DryRun:
		return "dry_run"
	case err == nil:
		return "completed"
	case errors.As(err, &unreadable):
		return "unreadable"
	case errors.Is(err, core.ErrIngestBusy):
		return "busy"
	default:
		return "aborted"
	}
}

// Handler serves the collection's registry.
func (c *Collection) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
