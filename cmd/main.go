package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/nutriplan/internal/adapters/http/api"
	"github.com/okian/nutriplan/internal/adapters/http/swagger"
	"github.com/okian/nutriplan/internal/adapters/repository"
	app "github.com/okian/nutriplan/internal/app"
	"github.com/okian/nutriplan/internal/config"
	"github.com/okian/nutriplan/internal/domain/dedupe"
	"github.com/okian/nutriplan/internal/domain/nutrition"
	"github.com/okian/nutriplan/internal/domain/scoring"
	"github.com/okian/nutriplan/pkg/logger"
	"github.com/okian/nutriplan/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		// logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			os.Stderr.WriteString("failed to sync logs: " + err.Error() + "\n")
		}
	}()

	// Metrics are served from a private registry.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "nutriplan exited", logger.Error(err))
		stop()
		os.Exit(1) //nolint:gocritic // exitAfterDefer: deferred logger sync is best effort
	}
}

// run loads configuration, wires the service and serves HTTP until ctx is done.
func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.Get()
	if err := logger.SetFormat(cfg.LogFormat); err != nil {
		log.Warn(ctx, "invalid log_format; keeping text", logger.String("log_format", cfg.LogFormat), logger.Error(err))
	}
	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	log = logger.Get()

	svc, cleanup, err := buildService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(ctx, "service shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// buildService opens the configured store and deduper and creates the
// service. cleanup closes what was opened.
func buildService(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Service, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Warn(ctx, "close failed", logger.Error(err))
			}
		}
	}

	var store repository.Store
	switch cfg.Store.Driver {
	case config.DriverMemory:
		store = repository.NewMemoryStore()
	default:
		gs, err := repository.Open(ctx, cfg.Store.Driver, cfg.Store.DSN, repository.WithGormLogger(log.Named("store")))
		if err != nil {
			return nil, cleanup, fmt.Errorf("open store: %w", err)
		}
		store = gs
	}
	closers = append(closers, store.Close)

	var deduper dedupe.Deduper
	if cfg.Redis.URL != "" {
		client, err := dedupe.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("connect redis: %w", err)
		}
		rd := dedupe.NewRedisDeduper(client, dedupe.WithTTL(time.Duration(cfg.Redis.TTLSeconds)*time.Second))
		closers = append(closers, rd.Close)
		deduper = rd
	} else {
		deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(cfg.DedupeSize))
	}

	p, sc := cfg.Policy, cfg.Scoring
	svc := app.New(
		app.WithLogger(log.Named("service")),
		app.WithStore(store),
		app.WithDeduper(deduper),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithMaxLimit(cfg.MaxHistoryLimit),
		app.WithDefaultBudget(cfg.DefaultBudget),
		app.WithDefaultProfile(cfg.DefaultProfile),
		app.WithDeriver(nutrition.NewDeriver(
			nutrition.WithMacroSplit(p.ProteinRatio, p.FatRatio, p.CarbsRatio),
			nutrition.WithGoalAdjustments(p.LoseWeightKcal, p.GainMuscleKcal),
			nutrition.WithCalorieFloor(p.CalorieFloor),
		)),
		app.WithScorer(scoring.NewPlanScorer(
			scoring.WithWeights(sc.CaloriesWeight, sc.ProteinWeight, sc.BudgetWeight),
			scoring.WithClampMax(sc.ClampMax),
		)),
	)

	log.Info(ctx, "service configured",
		logger.String("store", cfg.Store.Driver),
		logger.Bool("redis", cfg.Redis.URL != ""),
	)
	return svc, cleanup, nil
}

// newMux registers the docs and business API routes.
func newMux(ctx context.Context, svc *app.Service) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, api.WithServerLogger(logger.Named("http"))).Register(ctx, mux)
	return mux
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats refreshes the queue, store and dedupe gauges.
			_ = svc.GetStats(ctx)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
