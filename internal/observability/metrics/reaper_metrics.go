package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/sensorhub/internal/sensor/domain"
)

const (
	ReaperReasonDeadlineExceeded = "deadline_exceeded"
	ReaperReasonDBConnection     = "db_connection"
	ReaperReasonStoreUnavailable = "store_unavailable"
	ReaperReasonUnknown          = "unknown"
)

// Orphan kinds removed by the reaper.
const (
	OrphanKindTelemetry = "telemetry"
	OrphanKindMetadata  = "metadata"
	OrphanKindGhost     = "identity_ghost"
)

// ReaperMetrics captures orphan sweep health signals.
type ReaperMetrics struct {
	runs        prometheus.Counter
	runDuration prometheus.Histogram
	runErrors   *prometheus.CounterVec
	lockSkipped prometheus.Counter
	orphans     *prometheus.CounterVec
	runLoopLag  prometheus.Observer
}

var (
	reaperMetricsOnce sync.Once
	reaperMetrics     *ReaperMetrics
)

// Reaper returns the singleton reaper metrics registry.
func Reaper() *ReaperMetrics {
	return ReaperWithConfig(Config{})
}

// ReaperWithConfig returns the singleton reaper metrics registry using config labels.
func ReaperWithConfig(cfg Config) *ReaperMetrics {
	reaperMetricsOnce.Do(func() {
		reaperMetrics = newReaperMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return reaperMetrics
}

func newReaperMetrics(registerer prometheus.Registerer, cfg Config) *ReaperMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "sensorhub"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	runs := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "sensorhub_reaper_runs_total",
		Help:        "Orphan reaper sweeps started.",
		ConstLabels: constLabels,
	})
	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "sensorhub_reaper_run_duration_seconds",
		Help:        "Orphan reaper sweep latency.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		ConstLabels: constLabels,
	})
	runErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "sensorhub_reaper_run_errors_total",
		Help:        "Orphan reaper sweep failures by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	lockSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "sensorhub_reaper_lock_skipped_total",
		Help:        "Sweeps skipped because another replica held the reaper lock.",
		ConstLabels: constLabels,
	})
	orphans := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "sensorhub_reaper_orphans_removed_total",
		Help:        "Orphan fragments removed by kind.",
		ConstLabels: constLabels,
	}, []string{"kind"})
	runLoopLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "sensorhub_reaper_runloop_lag_seconds",
		Help:        "Reaper run loop lag beyond the configured interval.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		runs,
		runDuration,
		runErrors,
		lockSkipped,
		orphans,
		runLoopLag,
	)

	return &ReaperMetrics{
		runs:        runs,
		runDuration: runDuration,
		runErrors:   runErrors,
		lockSkipped: lockSkipped,
		orphans:     orphans,
		runLoopLag:  runLoopLag,
	}
}

func (m *ReaperMetrics) IncRun() {
	if m == nil {
		return
	}
	m.runs.Inc()
}

func (m *ReaperMetrics) ObserveRunDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.Observe(max(d, 0).Seconds())
}

func (m *ReaperMetrics) IncRunError(err error) {
	if m == nil || err == nil {
		return
	}
	m.runErrors.WithLabelValues(ClassifyReaperReason(err)).Inc()
}

func (m *ReaperMetrics) IncLockSkipped() {
	if m == nil {
		return
	}
	m.lockSkipped.Inc()
}

func (m *ReaperMetrics) AddOrphansRemoved(kind string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.orphans.WithLabelValues(kind).Add(float64(count))
}

func (m *ReaperMetrics) ObserveRunLoopLag(lag time.Duration) {
	if m == nil || lag <= 0 {
		return
	}
	m.runLoopLag.Observe(lag.Seconds())
}

// ClassifyReaperReason maps a sweep error to a bounded label value.
func ClassifyReaperReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return ReaperReasonDeadlineExceeded
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "08") {
		return ReaperReasonDBConnection
	}
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return ReaperReasonStoreUnavailable
	}
	return ReaperReasonUnknown
}
