package report

// Metrics are boring counters plus the run's timing. Every counter must be
// explainable by looking at the ledger or the command's log output.

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Metrics counts what one hitctl invocation did
type Metrics struct {
	registry *prometheus.Registry

	HITsSubmitted  *prometheus.CounterVec
	SamplesSkipped *prometheus.CounterVec
	CreateFailures *prometheus.CounterVec
	HITsDeleted    prometheus.Counter
	DeleteFailures prometheus.Counter
	BonusesPaid    prometheus.Counter
	BonusFailures  prometheus.Counter
	RunDuration    prometheus.Gauge
	LastRun        prometheus.Gauge
}

// NewMetrics registers the counters on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HITsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hitctl_hits_submitted_total",
			Help: "HITs created on the marketplace",
		}, []string{"task"}),
		SamplesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hitctl_samples_skipped_total",
			Help: "Samples skipped because the ledger already holds them",
		}, []string{"task"}),
		CreateFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hitctl_hit_create_failures_total",
			Help: "CreateHIT calls that failed",
		}, []string{"task"}),
		HITsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hitctl_hits_deleted_total",
			Help: "HITs deleted from the marketplace",
		}),
		DeleteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hitctl_hit_delete_failures_total",
			Help: "HIT deletions that failed and were skipped",
		}),
		BonusesPaid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hitctl_bonuses_paid_total",
			Help: "Bonuses sent to workers",
		}),
		BonusFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hitctl_bonus_failures_total",
			Help: "Bonus payments that failed",
		}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hitctl_run_duration_seconds",
			Help: "Wall time of the last hitctl command",
		}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hitctl_last_run_timestamp_seconds",
			Help: "Unix time the last hitctl command finished",
		}),
	}

	m.registry.MustRegister(
		m.HITsSubmitted,
		m.SamplesSkipped,
		m.CreateFailures,
		m.HITsDeleted,
		m.DeleteFailures,
		m.BonusesPaid,
		m.BonusFailures,
		m.RunDuration,
		m.LastRun,
	)
	return m
}

// Registry exposes the registry for HTTP serving
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile dumps the counters in Prometheus text format, for the
// node_exporter textfile collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}

	enc := expfmt.NewEncoder(f, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close metrics file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename metrics file: %w", err)
	}
	return nil
}
