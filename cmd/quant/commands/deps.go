package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wonny/sweeper/internal/backtest"
	"github.com/wonny/sweeper/internal/contracts"
	"github.com/wonny/sweeper/internal/marketdata"
	"github.com/wonny/sweeper/internal/selection"
	"github.com/wonny/sweeper/internal/sweep"
	"github.com/wonny/sweeper/internal/telemetry"
	"github.com/wonny/sweeper/pkg/config"
	"github.com/wonny/sweeper/pkg/database"
	"github.com/wonny/sweeper/pkg/httputil"
	"github.com/wonny/sweeper/pkg/logger"
	"github.com/wonny/sweeper/pkg/redis"
)

// app is the composition root shared by every command
// ⭐ SSOT: Gate는 여기서 프로세스당 한 번만 생성
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB
	redis    *redis.Client
	registry *prometheus.Registry
	gate     *marketdata.Gate
	tracker  *telemetry.PerfTracker
	service  *sweep.Service
}

// newApp wires config, storage, market data, evaluator and the sweep service
func newApp(ctx context.Context) (*app, error) {
	// --store 는 검증 전에 적용 (memory 저장소는 DATABASE_URL 불필요)
	if store != "" {
		_ = os.Setenv("SWEEP_STORE", store)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)
	a := &app{cfg: cfg, log: log, registry: prometheus.NewRegistry()}

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// 1. Redis (optional series cache)
	a.redis, err = redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, series cache disabled")
		a.redis = nil
	}

	// 2. Market data → Gate
	hc := httputil.New(cfg, log)
	provider, err := marketdata.NewProvider(cfg, hc, a.redis, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.gate = marketdata.NewGate(provider, log)
	telemetry.RegisterGate(a.registry, a.gate)

	// 3. Telemetry
	a.tracker = telemetry.NewPerfTracker(telemetry.NewMetrics(a.registry), log)

	// 4. Repository
	selector := selection.NewSelector(log)
	var repo contracts.SweepRepository
	switch cfg.Sweep.Store {
	case config.StoreMemory:
		repo = sweep.NewMemoryRepository(selector, log)
		log.Warn("Using in-memory sweep store; results are lost on exit")
	default:
		a.db, err = database.New(cfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		pg := sweep.NewPostgresRepository(a.db, selector, log)
		if err := pg.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, err
		}
		repo = pg
	}

	// 5. Scheduler + service
	scheduler := sweep.NewScheduler(a.gate, backtest.NewEngine(log), a.tracker, log, cfg.Sweep.PoolWidth)
	a.service = sweep.NewService(scheduler, repo, log)

	log.WithFields(map[string]interface{}{
		"env":        cfg.Env,
		"store":      cfg.Sweep.Store,
		"provider":   cfg.MarketData.Provider,
		"pool_width": cfg.Sweep.PoolWidth,
		"cache":      a.redis.Enabled(),
	}).Info("Sweeper initialized")

	return a, nil
}

// Close releases connections
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
