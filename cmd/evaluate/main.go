// Package main runs a one-shot evaluation pass: load the latest stored
// snapshots, score them, and record any new actions. Useful for cron-less
// deployments and for inspecting what the pipeline would do.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Feustey/lightdash/internal/config"
	"github.com/Feustey/lightdash/internal/graph"
	"github.com/Feustey/lightdash/internal/ledger"
	"github.com/Feustey/lightdash/internal/lnd"
	"github.com/Feustey/lightdash/internal/logging"
	"github.com/Feustey/lightdash/internal/pipeline"
	"github.com/Feustey/lightdash/internal/scoring"
	"github.com/Feustey/lightdash/internal/storage/clickhouse"
	"github.com/Feustey/lightdash/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	pubkey := flag.String("pubkey", "", "Node pubkey to evaluate (default: ask the node)")
	dryRun := flag.Bool("dry-run", false, "Score without recording actions")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Storage.Backend != config.BackendDB {
		fmt.Fprintln(os.Stderr, "Error: one-shot evaluation needs the db storage backend; memory stores are empty between runs")
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger, *pubkey, *dryRun); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger, pubkey string, dryRun bool) error {
	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	conn, err := clickhouse.NewConn(ctx, cfg.Storage.ClickhouseDSN)
	if err != nil {
		return err
	}
	defer conn.Close()

	if pubkey == "" {
		node := lnd.NewRESTClient(cfg.LND.RESTURL, cfg.LND.Macaroon)
		info, err := node.GetInfo(ctx)
		if err != nil {
			return fmt.Errorf("resolve pubkey from node: %w", err)
		}
		pubkey = info.IdentityPubkey
	}

	scorer, err := buildScorer(cfg)
	if err != nil {
		return err
	}

	var graphClient graph.Client
	if cfg.Graph.BaseURL != "" {
		graphClient = graph.NewHTTPClient(cfg.Graph.BaseURL)
	}

	runner := pipeline.New(pipeline.Options{
		SnapshotStore: clickhouse.NewSnapshotStore(conn),
		ChannelStore:  postgres.NewChannelStore(pool),
		GraphClient:   graphClient,
		Scorer:        scorer,
		Ledger:        ledger.New(postgres.NewActionStore(pool), cfg.Ledger.Cooldown),
		Logger:        logger,
	})

	if dryRun {
		fv, recs, err := runner.Evaluate(ctx, pubkey)
		if err != nil {
			return err
		}
		fmt.Printf("Features for %s:\n", pubkey)
		fmt.Printf("  balance ratio:     %.3f\n", fv.BalanceRatio)
		fmt.Printf("  fee per forward:   %.3f\n", fv.FeePerForward)
		fmt.Printf("  avg uptime:        %.3f\n", fv.AvgChannelUptime)
		fmt.Printf("  flexibility score: %.3f\n", fv.LiquidityFlexibilityScore)
		printTrend("capacity trend", fv.CapacityTrend)
		printTrend("channel count trend", fv.ChannelCountTrend)
		printTrend("fee trend", fv.FeeTrend)
		fmt.Printf("Recommendations: %d\n", len(recs))
		for _, rec := range recs {
			fmt.Printf("  [%s] %s (%.0f%%): %s\n", rec.Priority, rec.Kind, rec.Confidence*100, rec.Reason)
		}
		return nil
	}

	result, err := runner.Run(ctx, []string{pubkey})
	if err != nil {
		return err
	}

	fmt.Printf("Evaluation completed:\n")
	fmt.Printf("  Nodes evaluated: %d\n", result.NodesEvaluated)
	fmt.Printf("  Recommendations: %d\n", result.Recommendations)
	fmt.Printf("  Actions created: %d\n", result.ActionsCreated)
	fmt.Printf("  Deduplicated:    %d\n", result.ActionsDeduplicated)
	if len(result.Errors) > 0 {
		fmt.Printf("  Errors: %d\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("    - %s\n", e)
		}
	}
	return nil
}

func printTrend(name string, v *float64) {
	if v == nil {
		fmt.Printf("  %s: unavailable (no prior snapshot)\n", name)
		return
	}
	fmt.Printf("  %s: %+.3f\n", name, *v)
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
