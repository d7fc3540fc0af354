// Package pipeline coordinates one evaluation pass over tracked nodes.
// Flow per node: load snapshots → aggregate features → score → record actions.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Feustey/lightdash/internal/domain"
	"github.com/Feustey/lightdash/internal/features"
	"github.com/Feustey/lightdash/internal/graph"
	"github.com/Feustey/lightdash/internal/ledger"
	"github.com/Feustey/lightdash/internal/normalization"
	"github.com/Feustey/lightdash/internal/observability"
	"github.com/Feustey/lightdash/internal/scoring"
	"github.com/Feustey/lightdash/internal/storage"
)

// DefaultFlexibility stands in for the flexibility score when the graph
// provider is unavailable. It sits above the low-flexibility rule's floor
// so the rule never fires on missing data.
const DefaultFlexibility = 100.0

// Runner executes the evaluation pipeline over a set of node pubkeys.
type Runner struct {
	snapshotStore storage.SnapshotStore
	channelStore  storage.ChannelStore
	graphClient   graph.Client
	scorer        scoring.Scorer
	ledger        *ledger.Ledger
	metrics       *observability.Metrics
	logger        *zap.Logger
}

// Options for creating a Runner. SnapshotStore, ChannelStore, Scorer and
// Ledger are required; GraphClient, Metrics and Logger may be nil.
type Options struct {
	SnapshotStore storage.SnapshotStore
	ChannelStore  storage.ChannelStore
	GraphClient   graph.Client
	Scorer        scoring.Scorer
	Ledger        *ledger.Ledger
	Metrics       *observability.Metrics
	Logger        *zap.Logger
}

// New creates a new Runner.
func New(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		snapshotStore: opts.SnapshotStore,
		channelStore:  opts.ChannelStore,
		graphClient:   opts.GraphClient,
		scorer:        opts.Scorer,
		ledger:        opts.Ledger,
		metrics:       opts.Metrics,
		logger:        logger.Named("pipeline"),
	}
}

// RunResult contains counters from one evaluation pass.
type RunResult struct {
	NodesEvaluated      int
	NodesSkipped        int
	Recommendations     int
	ActionsCreated      int
	ActionsDeduplicated int
	Errors              []string
}

// Run evaluates every pubkey in order. Malformed pubkeys and per-node
// failures are recorded and skipped; they never abort the pass.
func (r *Runner) Run(ctx context.Context, pubkeys []string) (*RunResult, error) {
	result := &RunResult{}

	for _, pubkey := range pubkeys {
		if err := normalization.ValidatePubkey(pubkey); err != nil {
			result.NodesSkipped++
			result.Errors = append(result.Errors, fmt.Sprintf("node %s: %v", pubkey, err))
			r.countSkip()
			r.logger.Warn("skipping node with malformed pubkey",
				zap.String("pubkey", pubkey), zap.Error(err))
			continue
		}

		if err := r.evaluateNode(ctx, pubkey, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("node %s: %v", pubkey, err))
			r.countEvaluation("error")
			r.logger.Error("node evaluation failed",
				zap.String("pubkey", pubkey), zap.Error(err))
			continue
		}
		result.NodesEvaluated++
		r.countEvaluation("ok")
	}

	if r.metrics != nil && len(result.Errors) == 0 {
		r.metrics.LastSuccessfulEvaluation.SetToCurrentTime()
	}
	return result, nil
}

// Evaluate runs the pipeline for a single node and returns the feature
// vector and recommendations without touching the ledger. Used by the
// read-only features endpoint.
func (r *Runner) Evaluate(ctx context.Context, pubkey string) (domain.FeatureVector, []domain.Recommendation, error) {
	if err := normalization.ValidatePubkey(pubkey); err != nil {
		return domain.FeatureVector{}, nil, err
	}
	fv, err := r.buildFeatures(ctx, pubkey)
	if err != nil {
		return domain.FeatureVector{}, nil, err
	}
	return fv, r.scorer.Evaluate(fv), nil
}

func (r *Runner) evaluateNode(ctx context.Context, pubkey string, result *RunResult) error {
	fv, err := r.buildFeatures(ctx, pubkey)
	if err != nil {
		return err
	}

	recs := r.scorer.Evaluate(fv)
	result.Recommendations += len(recs)

	for _, rec := range recs {
		r.countRecommendation(rec.Kind)

		action, created, err := r.ledger.Create(ctx, rec)
		if err != nil {
			return fmt.Errorf("record %s: %w", rec.Kind, err)
		}
		if created {
			result.ActionsCreated++
			r.countActionCreated(rec.Kind)
			r.logger.Info("action created",
				zap.String("pubkey", pubkey),
				zap.String("action_id", action.ID),
				zap.String("kind", string(rec.Kind)),
				zap.String("priority", string(rec.Priority)),
				zap.Float64("confidence", rec.Confidence))
		} else {
			result.ActionsDeduplicated++
			r.countDedup()
			r.logger.Debug("recommendation deduplicated",
				zap.String("pubkey", pubkey),
				zap.String("action_id", action.ID),
				zap.String("kind", string(rec.Kind)))
		}
	}
	return nil
}

func (r *Runner) buildFeatures(ctx context.Context, pubkey string) (domain.FeatureVector, error) {
	snap, err := r.snapshotStore.Latest(ctx, pubkey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.FeatureVector{}, fmt.Errorf("no snapshot: %w", err)
		}
		return domain.FeatureVector{}, fmt.Errorf("load snapshot: %w", err)
	}

	channels, err := r.channelStore.GetByNode(ctx, pubkey)
	if err != nil {
		return domain.FeatureVector{}, fmt.Errorf("load channels: %w", err)
	}

	prev, err := r.snapshotStore.LatestBefore(ctx, pubkey, snap.ObservedAt)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return domain.FeatureVector{}, fmt.Errorf("load previous snapshot: %w", err)
		}
		prev = nil
	}

	flexibility := r.fetchFlexibility(ctx, pubkey)

	return features.Aggregate(snap, channels, prev, flexibility), nil
}

// fetchFlexibility asks the graph provider for the node's flexibility
// score. Provider failures fall back to a neutral score rather than zero,
// which would spuriously read as critically low flexibility.
func (r *Runner) fetchFlexibility(ctx context.Context, pubkey string) float64 {
	if r.graphClient == nil {
		return DefaultFlexibility
	}

	start := time.Now()
	score, err := r.graphClient.FlexibilityScore(ctx, pubkey)
	if r.metrics != nil {
		r.metrics.ProviderCallLatency.WithLabelValues("graph", "flexibility").
			Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if r.metrics != nil {
			r.metrics.ProviderCallErrors.WithLabelValues("graph", "flexibility").Inc()
		}
		r.logger.Warn("graph provider unavailable, using neutral flexibility",
			zap.String("pubkey", pubkey), zap.Error(err))
		return DefaultFlexibility
	}
	return score
}

func (r *Runner) countSkip() {
	if r.metrics != nil {
		r.metrics.NodesSkipped.Inc()
	}
}

func (r *Runner) countEvaluation(status string) {
	if r.metrics != nil {
		r.metrics.EvaluationsTotal.WithLabelValues(status).Inc()
	}
}

func (r *Runner) countRecommendation(kind domain.ActionKind) {
	if r.metrics != nil {
		r.metrics.RecommendationsEmitted.WithLabelValues(string(kind)).Inc()
	}
}

func (r *Runner) countActionCreated(kind domain.ActionKind) {
	if r.metrics != nil {
		r.metrics.ActionsCreated.WithLabelValues(string(kind)).Inc()
	}
}

func (r *Runner) countDedup() {
	if r.metrics != nil {
		r.metrics.ActionsDeduplicated.Inc()
	}
}
