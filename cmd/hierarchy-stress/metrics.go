package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/plus3/flatspawn/ecs"
)

const metricsNamespace = "hierarchy_stress"

type metrics struct {
	frames          prometheus.Counter
	appliedCommands prometheus.Counter
	skippedRefs     prometheus.Counter
	discarded       prometheus.Counter
	entities        prometheus.Gauge
	frameSeconds    prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		frames: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_total",
			Help:      "Frames run, each ending in one flush",
		}),
		appliedCommands: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "applied_commands_total",
			Help:      "Commands applied by flushes",
		}),
		skippedRefs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "stale_references_total",
			Help:      "Stale entity references found while flushing",
		}),
		discarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "discarded_commands_total",
			Help:      "Commands dropped by aborted flushes",
		}),
		entities: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "entities",
			Help:      "Spawned entities after the last flush",
		}),
		frameSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "frame_duration_seconds",
			Help:      "Time to run every system and flush",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
	}
}

func (m *metrics) observeFrame(elapsed time.Duration, flush ecs.FlushReport, entities int) {
	m.frames.Inc()
	m.appliedCommands.Add(float64(flush.Applied))
	m.skippedRefs.Add(float64(len(flush.Skipped)))
	m.discarded.Add(float64(flush.Discarded))
	m.entities.Set(float64(entities))
	m.frameSeconds.Observe(elapsed.Seconds())
}

// serveMetrics exposes reg on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server stopped", zap.Error(err))
	}
}
