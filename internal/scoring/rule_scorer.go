package scoring

import (
	"fmt"
	"math"

	"github.com/Feustey/lightdash/internal/domain"
)

// Thresholds holds the trigger levels for the rule-based scorer. The
// defaults come from operational experience with mid-size routing nodes;
// deployments may tune them via configuration.
type Thresholds struct {
	// FeeTrend is the absolute relative fee change that triggers a fee
	// update recommendation.
	FeeTrend float64
	// BalanceSkew is the deviation of balance_ratio from 0.5 that
	// triggers a rebalance recommendation.
	BalanceSkew float64
	// FlexibilityFloor is the liquidity flexibility score below which a
	// distribution optimization is recommended.
	FlexibilityFloor float64
}

// DefaultThresholds returns the standard trigger levels.
func DefaultThresholds() Thresholds {
	return Thresholds{
		FeeTrend:         0.10,
		BalanceSkew:      0.20,
		FlexibilityFloor: 10.0,
	}
}

// RuleScorer evaluates a fixed, ordered table of threshold rules. Rules
// are independent: one pass can emit up to four recommendations, always in
// table order regardless of confidence.
type RuleScorer struct {
	thresholds Thresholds
}

// NewRuleScorer creates a rule-based scorer with the given thresholds.
func NewRuleScorer(thresholds Thresholds) *RuleScorer {
	return &RuleScorer{thresholds: thresholds}
}

// Compile-time interface check.
var _ Scorer = (*RuleScorer)(nil)

// Evaluate applies the rule table in its fixed order:
// capacity growth, fee imbalance, balance skew, low flexibility.
func (s *RuleScorer) Evaluate(fv domain.FeatureVector) []domain.Recommendation {
	var recs []domain.Recommendation

	if r, ok := s.capacityGrowth(fv); ok {
		recs = append(recs, r)
	}
	if r, ok := s.feeImbalance(fv); ok {
		recs = append(recs, r)
	}
	if r, ok := s.balanceSkew(fv); ok {
		recs = append(recs, r)
	}
	if r, ok := s.lowFlexibility(fv); ok {
		recs = append(recs, r)
	}

	return recs
}

func (s *RuleScorer) capacityGrowth(fv domain.FeatureVector) (domain.Recommendation, bool) {
	if fv.CapacityTrend == nil || fv.ChannelCountTrend == nil || *fv.ChannelCountTrend <= 0 {
		return domain.Recommendation{}, false
	}

	growth := *fv.ChannelCountTrend
	return domain.Recommendation{
		Kind:       domain.ActionIncreaseCapacity,
		Priority:   domain.PriorityHigh,
		Confidence: clampConfidence(0.6 + growth),
		Reason:     fmt.Sprintf("channel count grew %.1f%% since the previous snapshot; additional capacity would cover the new demand", growth*100),
	}, true
}

func (s *RuleScorer) feeImbalance(fv domain.FeatureVector) (domain.Recommendation, bool) {
	if fv.FeeTrend == nil || math.Abs(*fv.FeeTrend) <= s.thresholds.FeeTrend {
		return domain.Recommendation{}, false
	}

	magnitude := math.Abs(*fv.FeeTrend)
	direction := "rose"
	if *fv.FeeTrend < 0 {
		direction = "fell"
	}
	return domain.Recommendation{
		Kind:       domain.ActionUpdateFees,
		Priority:   domain.PriorityMedium,
		Confidence: clampConfidence(0.5 + magnitude),
		Reason:     fmt.Sprintf("fee per forward %s %.1f%% since the previous snapshot; fee policy may need adjusting", direction, magnitude*100),
	}, true
}

func (s *RuleScorer) balanceSkew(fv domain.FeatureVector) (domain.Recommendation, bool) {
	deviation := math.Abs(fv.BalanceRatio - 0.5)
	if deviation <= s.thresholds.BalanceSkew {
		return domain.Recommendation{}, false
	}

	side := "outbound"
	if fv.BalanceRatio < 0.5 {
		side = "inbound"
	}
	return domain.Recommendation{
		Kind:       domain.ActionRebalance,
		Priority:   domain.PriorityHigh,
		Confidence: clampConfidence(0.5 + deviation),
		Reason:     fmt.Sprintf("liquidity is %.1f%% skewed toward %s balance; rebalancing would restore routing headroom", deviation*100, side),
	}, true
}

func (s *RuleScorer) lowFlexibility(fv domain.FeatureVector) (domain.Recommendation, bool) {
	score := fv.LiquidityFlexibilityScore
	if score >= s.thresholds.FlexibilityFloor {
		return domain.Recommendation{}, false
	}

	return domain.Recommendation{
		Kind:       domain.ActionOptimizeDistribution,
		Priority:   domain.PriorityMedium,
		Confidence: clampConfidence(1.0 - score/s.thresholds.FlexibilityFloor),
		Reason:     fmt.Sprintf("liquidity flexibility score %.1f is below the %.1f floor; liquidity should be spread across better-connected peers", score, s.thresholds.FlexibilityFloor),
	}, true
}

// clampConfidence bounds a confidence value to [0.05, 0.99].
func clampConfidence(c float64) float64 {
	if c < 0.05 {
		return 0.05
	}
	if c > 0.99 {
		return 0.99
	}
	return c
}
