package defense

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Nerds489/ubuntu-tools/internal/domain"
)

// Metrics exposes defense counters and gauges on a Prometheus registry.
// A nil *Metrics is valid everywhere and records nothing, so the
// supervisor runs identically with the listener disabled.
type Metrics struct {
	registry *prometheus.Registry

	usedPercent  prometheus.Gauge
	pressureTier prometheus.Gauge
	cacheDrops   prometheus.Counter
	reaperKills  prometheus.Counter
	emergencies  prometheus.Counter
}

// NewMetrics builds a self-contained registry so tests can run many
// instances without collector name collisions.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		usedPercent: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ubuntu_tools",
			Subsystem: "defense",
			Name:      "memory_used_percent",
			Help:      "Used memory percent at the last guardian cycle.",
		}),
		pressureTier: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ubuntu_tools",
			Subsystem: "defense",
			Name:      "pressure_tier",
			Help:      "Current pressure tier (0 normal, 1 high, 2 critical).",
		}),
		cacheDrops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ubuntu_tools",
			Subsystem: "defense",
			Name:      "cache_drops_total",
			Help:      "Page cache drops triggered by the guardian.",
		}),
		reaperKills: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ubuntu_tools",
			Subsystem: "defense",
			Name:      "reaper_kills_total",
			Help:      "Processes terminated by the reaper.",
		}),
		emergencies: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ubuntu_tools",
			Subsystem: "defense",
			Name:      "emergency_runs_total",
			Help:      "On-demand emergency cleanups executed.",
		}),
	}
}

func (m *Metrics) ObservePressure(usedPercent float64, tier domain.PressureTier) {
	if m == nil {
		return
	}
	m.usedPercent.Set(usedPercent)
	switch tier {
	case domain.TierCritical:
		m.pressureTier.Set(2)
	case domain.TierHigh:
		m.pressureTier.Set(1)
	default:
		m.pressureTier.Set(0)
	}
}

func (m *Metrics) CacheDropped() {
	if m == nil {
		return
	}
	m.cacheDrops.Inc()
}

func (m *Metrics) VictimKilled() {
	if m == nil {
		return
	}
	m.reaperKills.Inc()
}

func (m *Metrics) EmergencyRun() {
	if m == nil {
		return
	}
	m.emergencies.Inc()
}

// Serve blocks serving /metrics on addr until ctx is canceled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	if m == nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics listener shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("metrics listener started", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
