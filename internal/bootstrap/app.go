// Package bootstrap wires configuration, logging, telemetry, storage, and
// the account into a runnable application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backtest_accounts/internal/config"
	"backtest_accounts/internal/core"
	"backtest_accounts/internal/env"
	"backtest_accounts/internal/infrastructure/metrics"
	"backtest_accounts/internal/storage"
	"backtest_accounts/internal/trading/backtest"
	"backtest_accounts/internal/trading/portfolio"
	"backtest_accounts/pkg/concurrency"
	"backtest_accounts/pkg/telemetry"

	"golang.org/x/sync/errgroup"
)

// App holds the wired dependencies of one backtest run.
type App struct {
	Cfg     *config.Config
	Logger  core.ILogger
	Env     *env.Environment
	Account *portfolio.Account
	Store   core.IStateStore
	Runner  *backtest.Runner
	Bars    []backtest.DailyBar

	pool          *concurrency.WorkerPool
	telemetry     *telemetry.Telemetry
	metricsServer *metrics.Server
}

// NewApp creates an App by bootstrapping all dependencies in order: config,
// logger, telemetry, scenario data, store, account, runner.
func NewApp(configPath string) (*App, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger, err := InitLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	tel, err := telemetry.Setup("backtest_accounts")
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	source, bars, err := backtest.LoadScenario(cfg.Base.DataPath)
	if err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}

	var store core.IStateStore
	if cfg.System.DatabasePath != "" {
		store, err = storage.NewSQLiteStore(cfg.System.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
	} else {
		store = storage.NewMemoryStore()
	}

	environment := env.New(source, logger, cfg)

	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:       "valuation",
		MaxWorkers: cfg.System.MaxWorkers,
	}, logger)

	account := portfolio.NewAccount(environment, cfg.StartCash(), pool)
	runner := backtest.NewRunner(environment, account, store)

	app := &App{
		Cfg:       cfg,
		Logger:    logger,
		Env:       environment,
		Account:   account,
		Store:     store,
		Runner:    runner,
		Bars:      bars,
		pool:      pool,
		telemetry: tel,
	}
	if cfg.Telemetry.EnableMetrics {
		app.metricsServer = metrics.NewServer(cfg.Telemetry.MetricsPort, logger)
	}
	return app, nil
}

// Run executes the replay, serving Prometheus metrics alongside when
// enabled, and shuts down on SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.metricsServer != nil {
		a.metricsServer.Start()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if _, err := a.Runner.Restore(ctx); err != nil {
			return err
		}
		return a.Runner.Run(ctx, a.Bars)
	})

	err := g.Wait()
	a.shutdown()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error("backtest stopped with error", "error", err)
		return err
	}

	a.Logger.Info("backtest finished",
		"cash", a.Account.Cash(),
		"total_value", a.Account.TotalValue())
	return nil
}

func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.metricsServer != nil {
		if err := a.metricsServer.Stop(ctx); err != nil {
			a.Logger.Warn("metrics server shutdown failed", "error", err)
		}
	}
	a.pool.Stop()
	if err := a.Store.Close(); err != nil {
		a.Logger.Warn("store close failed", "error", err)
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.Logger.Warn("telemetry shutdown failed", "error", err)
	}
}
