// Package main runs the dashboard daemon: scheduled collection and
// evaluation, channel event watching, and the HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Feustey/lightdash/internal/ai"
	"github.com/Feustey/lightdash/internal/analytics"
	"github.com/Feustey/lightdash/internal/api"
	"github.com/Feustey/lightdash/internal/collector"
	"github.com/Feustey/lightdash/internal/config"
	"github.com/Feustey/lightdash/internal/graph"
	"github.com/Feustey/lightdash/internal/ledger"
	"github.com/Feustey/lightdash/internal/lnd"
	"github.com/Feustey/lightdash/internal/lnd/stub"
	"github.com/Feustey/lightdash/internal/logging"
	"github.com/Feustey/lightdash/internal/observability"
	"github.com/Feustey/lightdash/internal/pipeline"
	"github.com/Feustey/lightdash/internal/scoring"
	"github.com/Feustey/lightdash/internal/storage"
	"github.com/Feustey/lightdash/internal/storage/clickhouse"
	"github.com/Feustey/lightdash/internal/storage/memory"
	"github.com/Feustey/lightdash/internal/storage/migrations"
	"github.com/Feustey/lightdash/internal/storage/postgres"
)

const (
	cronRunTimeout  = 5 * time.Minute
	shutdownTimeout = 15 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	stores, closeStores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	metrics := observability.NewMetrics("lightdash")

	// A stub:// REST URL swaps in the deterministic fake node, which pairs
	// with the memory backend for running the daemon without infrastructure.
	var node lnd.Client
	if strings.HasPrefix(cfg.LND.RESTURL, "stub:") {
		node = stub.NewNode()
	} else {
		node = lnd.NewRESTClient(cfg.LND.RESTURL, cfg.LND.Macaroon)
	}
	info, err := node.GetInfo(ctx)
	if err != nil {
		return fmt.Errorf("reach lightning node: %w", err)
	}
	logger.Info("connected to lightning node",
		zap.String("pubkey", info.IdentityPubkey),
		zap.String("alias", info.Alias),
		zap.String("version", info.Version))

	var analyticsClient analytics.Client
	if cfg.Analytics.BaseURL != "" {
		analyticsClient = analytics.NewHTTPClient(cfg.Analytics.BaseURL, cfg.Analytics.APIKey)
	}
	var graphClient graph.Client
	if cfg.Graph.BaseURL != "" {
		graphClient = graph.NewHTTPClient(cfg.Graph.BaseURL)
	}

	col := collector.New(collector.Options{
		Node:          node,
		Analytics:     analyticsClient,
		SnapshotStore: stores.snapshots,
		ChannelStore:  stores.channels,
		Metrics:       metrics,
		Logger:        logger,
	})

	scorer, err := buildScorer(cfg)
	if err != nil {
		return err
	}

	ldg := ledger.New(stores.actions, cfg.Ledger.Cooldown)

	runner := pipeline.New(pipeline.Options{
		SnapshotStore: stores.snapshots,
		ChannelStore:  stores.channels,
		GraphClient:   graphClient,
		Scorer:        scorer,
		Ledger:        ldg,
		Metrics:       metrics,
		Logger:        logger,
	})

	narrator, err := buildNarrator(cfg, logger)
	if err != nil {
		return err
	}

	stats := api.NewRunStats()

	server := api.NewServer(api.Options{
		Ledger:        ldg,
		SnapshotStore: stores.snapshots,
		Runner:        runner,
		Narrator:      narrator,
		Metrics:       metrics,
		Logger:        logger,
		Pubkeys:       []string{info.IdentityPubkey},
		Stats:         stats,
	})

	scheduler, err := startScheduler(ctx, cfg, col, runner, info.IdentityPubkey, stats, logger)
	if err != nil {
		return err
	}
	defer func() { <-scheduler.Stop().Done() }()

	if cfg.LND.EventsWSURL != "" {
		ws, err := lnd.NewWSClient(ctx, cfg.LND.EventsWSURL, nil)
		if err != nil {
			logger.Warn("channel event stream unavailable", zap.Error(err))
		} else {
			defer ws.Close()
			go col.WatchChannelEvents(ctx, ws.Events())
		}
	}

	httpServer := &http.Server{Addr: cfg.Server.Addr, Handler: server}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

type storeSet struct {
	actions   storage.ActionStore
	snapshots storage.SnapshotStore
	channels  storage.ChannelStore
}

func openStores(ctx context.Context, cfg *config.Config) (*storeSet, func(), error) {
	if cfg.Storage.Backend == config.BackendMemory {
		return &storeSet{
			actions:   memory.NewActionStore(),
			snapshots: memory.NewSnapshotStore(),
			channels:  memory.NewChannelStore(),
		}, func() {}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	conn, err := clickhouse.NewConn(ctx, cfg.Storage.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
		pool.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	closeAll := func() {
		pool.Close()
		conn.Close()
	}
	return &storeSet{
		actions:   postgres.NewActionStore(pool),
		snapshots: clickhouse.NewSnapshotStore(conn),
		channels:  postgres.NewChannelStore(pool),
	}, closeAll, nil
}

func buildScorer(cfg *config.Config) (scoring.Scorer, error) {
	thresholds := scoring.Thresholds{
		FeeTrend:         cfg.Scoring.FeeTrend,
		BalanceSkew:      cfg.Scoring.BalanceSkew,
		FlexibilityFloor: cfg.Scoring.FlexibilityFloor,
	}
	if cfg.Scoring.Strategy == config.StrategyRules {
		return scoring.NewRuleScorer(thresholds), nil
	}

	params, err := scoring.LoadModelParams(cfg.Scoring.ModelParamsPath)
	if err != nil {
		return nil, err
	}
	return scoring.NewModelScorer(params), nil
}

func buildNarrator(cfg *config.Config, logger *zap.Logger) (*ai.Generator, error) {
	if !cfg.AI.Enabled {
		return ai.NewGenerator(nil, logger), nil
	}
	client, err := ai.NewHTTPClient(cfg.AI.Endpoint, cfg.AI.APIKey, cfg.AI.Model, logger)
	if err != nil {
		return nil, err
	}
	return ai.NewGenerator(client, logger), nil
}

func startScheduler(ctx context.Context, cfg *config.Config, col *collector.Collector, runner *pipeline.Runner, pubkey string, stats *api.RunStats, logger *zap.Logger) (*cron.Cron, error) {
	cronLogger := cronZapLogger{logger.Named("cron")}
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cronLogger)))

	_, err := c.AddFunc(cfg.Collector.CollectSpec, func() {
		rctx, cancel := context.WithTimeout(ctx, cronRunTimeout)
		defer cancel()
		if _, err := col.Run(rctx); err != nil {
			logger.Error("scheduled collection failed", zap.Error(err))
			return
		}
		stats.RecordCollection()
	})
	if err != nil {
		return nil, fmt.Errorf("schedule collection: %w", err)
	}

	_, err = c.AddFunc(cfg.Collector.EvaluateSpec, func() {
		rctx, cancel := context.WithTimeout(ctx, cronRunTimeout)
		defer cancel()
		result, err := runner.Run(rctx, []string{pubkey})
		if err != nil {
			logger.Error("scheduled evaluation failed", zap.Error(err))
			return
		}
		if len(result.Errors) > 0 {
			logger.Warn("evaluation completed with errors", zap.Strings("errors", result.Errors))
		}
		stats.RecordEvaluation()
	})
	if err != nil {
		return nil, fmt.Errorf("schedule evaluation: %w", err)
	}

	c.Start()
	logger.Info("scheduler started",
		zap.String("collect_spec", cfg.Collector.CollectSpec),
		zap.String("evaluate_spec", cfg.Collector.EvaluateSpec))
	return c, nil
}

// cronZapLogger adapts zap to the cron logger interface.
type cronZapLogger struct {
	logger *zap.Logger
}

func (l cronZapLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Infow(msg, keysAndValues...)
}

func (l cronZapLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
