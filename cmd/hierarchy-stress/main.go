package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/plus3/flatspawn/ecs"
	"github.com/plus3/flatspawn/ecs/blueprint"
)

func main() {
	configPath := flag.String("config", "", "Path to a TOML config file. Flags override its values.")
	duration := flag.Duration("duration", 0, "The total duration the test should run for.")
	roots := flag.Int("roots", 0, "Hierarchies built per frame.")
	depth := flag.Int("depth", 0, "Levels below each root.")
	breadth := flag.Int("breadth", 0, "Children per node on every level.")
	batch := flag.Int("batch", 0, "Leaves batch-spawned below each node on the last level.")
	policy := flag.String("policy", "", "Flush policy for stale references: skip or abort.")
	blueprintPath := flag.String("blueprint", "", "YAML blueprint to build instead of the generated tree.")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address while running.")
	gcPauseMetrics := flag.Bool("gc-pause-metrics", false, "Enable detailed GC pause metrics in the report.")
	flag.Parse()

	cfg := defaults()
	if *configPath != "" {
		loaded, err := Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Only flags given on the command line override the config
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "duration":
			cfg.Run.Duration = *duration
		case "roots":
			cfg.Hierarchy.Roots = *roots
		case "depth":
			cfg.Hierarchy.Depth = *depth
		case "breadth":
			cfg.Hierarchy.Breadth = *breadth
		case "batch":
			cfg.Hierarchy.Batch = *batch
		case "policy":
			cfg.Run.Policy = *policy
		case "blueprint":
			cfg.Run.Blueprint = *blueprintPath
		case "metrics-addr":
			cfg.Metrics.Listen = *metricsAddr
		case "gc-pause-metrics":
			cfg.Run.GCPauseMetrics = *gcPauseMetrics
		}
	})

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Run.Duration)
	defer cancel()

	report, err := run(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("stress test failed", zap.Error(err))
	}

	fmt.Println("\n\n--- Stress Test Report ---")
	if err := report.Generate(os.Stdout); err != nil {
		logger.Fatal("failed to generate report", zap.Error(err))
	}
	fmt.Println("--- End of Report ---")

	logger.Info("stress test complete")
}

// run builds and tears down hierarchies every frame until ctx is done.
func run(ctx context.Context, cfg *Config, logger *zap.Logger) (*Report, error) {
	policy, err := cfg.FlushPolicy()
	if err != nil {
		return nil, err
	}

	var shape *blueprint.Node
	entitiesPerRoot := cfg.Hierarchy.EntitiesPerRoot()
	if cfg.Run.Blueprint != "" {
		shape, err = blueprint.Load(cfg.Run.Blueprint)
		if err != nil {
			return nil, err
		}
		entitiesPerRoot = shape.Count()
	}

	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))

	promRegistry := prometheus.NewRegistry()
	stats := newMetrics(promRegistry)
	if cfg.Metrics.Listen != "" {
		go serveMetrics(ctx, cfg.Metrics.Listen, promRegistry, logger)
	}

	registry := ecs.NewComponentRegistry()
	registerComponents(registry)
	storage := ecs.NewStorage(registry)
	scheduler := ecs.NewScheduler(storage,
		ecs.WithLogger(logger.Named("ecs")),
		ecs.WithFlushPolicy(policy),
	)

	builder := &BuildSystem{shape: cfg.Hierarchy, blueprint: shape}
	cleanup := &CleanupSystem{}
	scheduler.Register(builder)
	scheduler.Register(cleanup)

	report := &Report{
		RunID:           runID,
		Duration:        cfg.Run.Duration,
		Shape:           cfg.Hierarchy,
		Blueprint:       cfg.Run.Blueprint,
		EntitiesPerRoot: entitiesPerRoot,
		Policy:          cfg.Run.Policy,
		GCPauseMetrics:  cfg.Run.GCPauseMetrics,
	}

	runtime.ReadMemStats(&report.MemStatsStart)

	logger.Info("running hierarchy stress test",
		zap.Duration("duration", cfg.Run.Duration),
		zap.Int("roots", cfg.Hierarchy.Roots),
		zap.Int("entities_per_root", entitiesPerRoot),
		zap.String("policy", cfg.Run.Policy),
	)

	startTime := time.Now()
	lastFrameTime := time.Now()

Loop:
	for {
		select {
		case <-ctx.Done():
			break Loop
		default:
			deltaTime := time.Since(lastFrameTime)
			lastFrameTime = time.Now()

			updateStart := time.Now()
			if err := scheduler.Once(deltaTime.Seconds()); err != nil {
				logger.Warn("frame flushed with stale references", zap.Error(err))
			}
			elapsed := time.Since(updateStart)
			entities := storage.EntityCount()
			stats.observeFrame(elapsed, scheduler.GetStats().LastFlush, entities)

			report.UpdateTime.Samples = append(report.UpdateTime.Samples, elapsed)
			report.TotalUpdates++
			report.PeakEntities = max(report.PeakEntities, entities)
		}
	}

	report.TotalTime = time.Since(startTime)
	report.UpdateTime.Finalize()
	report.FinalEntities = storage.EntityCount()
	report.DeletedRoots = cleanup.deleted
	report.Scheduler = scheduler.GetStats()
	runtime.ReadMemStats(&report.MemStatsEnd)

	logger.Info("simulation finished",
		zap.Int64("updates", report.TotalUpdates),
		zap.Int("peak_entities", report.PeakEntities),
	)
	return report, nil
}
