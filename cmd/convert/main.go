// Package main provides the converter binary: it splits a vanilla save into
// cubes or copies a cube-split save, optionally applying an edit-task list.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/codec"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/config"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/cubic"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/edittask"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/observability"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/pipeline"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/region"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/scripting"
	"github.com/OpenCubicChunks/CubicChunksConverter-sub000/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file; empty = defaults and environment only")
	src := flag.String("src", "", "source save (overrides convert.src)")
	dst := flag.String("dst", "", "destination save (overrides convert.dst)")
	fallback := flag.String("fallback", "", "fallback source save for the merging converter")
	converter := flag.String("converter", "", "converter: anvil2cc, cc2cc, relocating or merging")
	tasksFile := flag.String("tasks", "", "edit-task list (.txt, .yaml, .yml or .lua)")
	onError := flag.String("on-error", "", "error policy: ask, ignore, ignore_all, stop_discard or stop_keep")
	flag.Parse()

	overrides := map[string]*string{
		"convert.src":          src,
		"convert.dst":          dst,
		"convert.fallback_src": fallback,
		"convert.converter":    converter,
		"tasks.file":           tasksFile,
		"convert.on_error":     onError,
	}
	cfg, err := config.Load(*configPath, func(v *viper.Viper) {
		for key, val := range overrides {
			if *val != "" {
				v.Set(key, *val)
			}
		}
	})
	if err != nil {
		log.Printf("loading config: %v", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Printf("initializing logger: %v", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("conversion failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	start := time.Now()
	ctx := context.Background()
	logger = observability.WithRun(logger, observability.NewRun(cfg.Convert.Converter, cfg.Convert.Src, cfg.Convert.Dst))

	dims, err := cfg.DimensionSet()
	if err != nil {
		return err
	}
	tasks, err := loadTasks(ctx, cfg.Tasks, logger)
	if err != nil {
		return err
	}
	handler := pipeline.Prompt(os.Stdin, os.Stderr)
	if cfg.Convert.OnError != "ask" {
		d, err := codec.ParseDecision(cfg.Convert.OnError)
		if err != nil {
			return err
		}
		handler = pipeline.Fixed(d)
	}

	settings := cubic.Settings{
		Src:        cfg.Convert.Src,
		Dst:        cfg.Convert.Dst,
		Fallback:   cfg.Convert.FallbackSrc,
		Dimensions: dims,
		Tasks:      tasks,
		Config:     edittask.DefaultConfig(),

		FixMissingTileEntities: cfg.Convert.FixMissingTileEntities,
		Save: region.SaveOptions{
			SectorSize: cfg.Convert.SectorSize,
			CacheSize:  cfg.Convert.RegionCacheSize,
		},
		Pipeline: pipeline.Options{
			Parallelism:        cfg.Convert.Parallelism,
			ConvertQueueFactor: cfg.Convert.ConvertQueueFactor,
			WriteQueueFactor:   cfg.Convert.WriteQueueFactor,
			ErrorHandler:       handler,
		},
		Logger: logger,
	}
	registry := cubic.DefaultRegistry()
	conv, ok := registry.Get(cfg.Convert.Converter)
	if !ok {
		return fmt.Errorf("unknown converter %q (have %v)", cfg.Convert.Converter, registry.Names())
	}
	if !conv.Tasks && len(tasks) > 0 {
		logger.Warn("converter ignores the edit-task list", zap.Int("tasks", len(tasks)))
	}
	runner, err := registry.Build(cfg.Convert.Converter, settings)
	if err != nil {
		return fmt.Errorf("building converter: %w", err)
	}

	logger.Info("starting conversion", zap.Int("tasks", len(tasks)))

	lc := server.NewLifecycle(logger)
	lc.AddMain("pipeline", server.ContextService(runner.Run))
	lc.Add("progress", server.ContextService(func(ctx context.Context) error {
		logProgress(ctx, runner.Progress, cfg.Metrics.PollInterval, logger)
		return nil
	}))
	if cfg.Metrics.Addr != "" {
		svc, err := metricsService(cfg.Metrics, runner.Progress, logger)
		if err != nil {
			return err
		}
		lc.Add("metrics", svc)
	}
	if err := lc.Run(ctx); err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Convert.Dst, 0o755); err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}
	if err := conv.ConvertLevelInfo(settings); err != nil {
		return fmt.Errorf("converting level info: %w", err)
	}
	logger.Info("conversion done",
		zap.Int64("written", runner.Progress().Written),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// loadTasks reads the configured edit-task list; no file means no tasks.
func loadTasks(ctx context.Context, cfg config.TasksConfig, logger *zap.Logger) ([]edittask.Task, error) {
	var (
		tasks []edittask.Task
		err   error
	)
	switch cfg.Format() {
	case "":
		return nil, nil
	case "script":
		tasks, err = edittask.NewParser("").ParseFile(cfg.File)
	case "yaml":
		tasks, err = edittask.NewParser("").LoadYAMLFile(cfg.File)
	case "lua":
		tasks, err = scripting.NewLoader(cfg.InstructionLimit, logger).LoadFile(ctx, cfg.File)
	}
	if err != nil {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}
	if cfg.Undo {
		tasks = edittask.Invert(tasks)
	}
	logger.Info("edit tasks loaded", zap.String("file", cfg.File), zap.Int("count", len(tasks)), zap.Bool("undo", cfg.Undo))
	for i, t := range tasks {
		logger.Debug("edit task", zap.Int("index", i), zap.Stringer("task", t))
	}
	return tasks, nil
}

func logProgress(ctx context.Context, progress func() pipeline.Progress, every time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p := progress()
			logger.Info("progress",
				zap.Int64("total", p.Total),
				zap.Int64("submitted", p.Submitted),
				zap.Int64("written", p.Written),
				zap.String("convert_queue", fmt.Sprintf("%d/%d", p.ConvertQueue.Fill, p.ConvertQueue.Capacity)),
				zap.String("write_queue", fmt.Sprintf("%d/%d", p.WriteQueue.Fill, p.WriteQueue.Capacity)),
			)
		}
	}
}

// metricsService serves /metrics on cfg.Addr while sampling progress.
func metricsService(cfg config.MetricsConfig, progress func() pipeline.Progress, logger *zap.Logger) (server.Service, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	exporter, err := observability.NewProgressExporter(reg, progress, cfg.PollInterval)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	return &server.FuncService{
		StartFn: func() error {
			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return fmt.Errorf("metrics listener: %w", err)
			}
			logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))
			go exporter.Run(ctx)
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
		StopFn: func() {
			cancel()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		},
	}, nil
}
