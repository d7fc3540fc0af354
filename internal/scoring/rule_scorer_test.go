package scoring

import (
	"strings"
	"testing"

	"github.com/Feustey/lightdash/internal/domain"
)

func ptr(v float64) *float64 {
	return &v
}

func TestRuleScorer_AllFourRulesInFixedOrder(t *testing.T) {
	fv := domain.FeatureVector{
		BalanceRatio:              0.95, // skew 0.45 > 0.20
		LiquidityFlexibilityScore: 5.0,  // below 10.0 floor
		CapacityTrend:             ptr(0.2),
		ChannelCountTrend:         ptr(0.5), // > 0
		FeeTrend:                  ptr(0.3), // |0.3| > 0.10
	}

	recs := NewRuleScorer(DefaultThresholds()).Evaluate(fv)

	if len(recs) != 4 {
		t.Fatalf("expected 4 recommendations, got %d", len(recs))
	}

	wantOrder := []domain.ActionKind{
		domain.ActionIncreaseCapacity,
		domain.ActionUpdateFees,
		domain.ActionRebalance,
		domain.ActionOptimizeDistribution,
	}
	for i, want := range wantOrder {
		if recs[i].Kind != want {
			t.Errorf("position %d: expected %s, got %s", i, want, recs[i].Kind)
		}
	}

	wantPriorities := []domain.Priority{
		domain.PriorityHigh,
		domain.PriorityMedium,
		domain.PriorityHigh,
		domain.PriorityMedium,
	}
	for i, want := range wantPriorities {
		if recs[i].Priority != want {
			t.Errorf("position %d: expected priority %s, got %s", i, want, recs[i].Priority)
		}
	}

	for i, r := range recs {
		if r.Confidence <= 0 || r.Confidence > 1 {
			t.Errorf("position %d: confidence %f out of range", i, r.Confidence)
		}
		if r.Reason == "" {
			t.Errorf("position %d: empty reason", i)
		}
	}
}

func TestRuleScorer_NoTriggersYieldsEmpty(t *testing.T) {
	fv := domain.FeatureVector{
		BalanceRatio:              0.55, // skew 0.05
		LiquidityFlexibilityScore: 42.0,
		CapacityTrend:             ptr(0.01),
		ChannelCountTrend:         ptr(0.0), // not > 0
		FeeTrend:                  ptr(0.05),
	}

	recs := NewRuleScorer(DefaultThresholds()).Evaluate(fv)

	if len(recs) != 0 {
		t.Errorf("expected no recommendations, got %d: %+v", len(recs), recs)
	}
}

func TestRuleScorer_UnavailableTrendsSuppressRules(t *testing.T) {
	// First observation: no trends, but a heavy skew and low flexibility.
	fv := domain.FeatureVector{
		BalanceRatio:              0.05,
		LiquidityFlexibilityScore: 2.0,
	}

	recs := NewRuleScorer(DefaultThresholds()).Evaluate(fv)

	if len(recs) != 2 {
		t.Fatalf("expected 2 recommendations, got %d", len(recs))
	}
	if recs[0].Kind != domain.ActionRebalance {
		t.Errorf("expected first recommendation REBALANCE, got %s", recs[0].Kind)
	}
	if recs[1].Kind != domain.ActionOptimizeDistribution {
		t.Errorf("expected second recommendation OPTIMIZE_DISTRIBUTION, got %s", recs[1].Kind)
	}
}

func TestRuleScorer_SkewReasonMentionsDeviation(t *testing.T) {
	fv := domain.FeatureVector{
		BalanceRatio:              0.95,
		LiquidityFlexibilityScore: 50.0,
	}

	recs := NewRuleScorer(DefaultThresholds()).Evaluate(fv)

	if len(recs) != 1 {
		t.Fatalf("expected 1 recommendation, got %d", len(recs))
	}
	if recs[0].Kind != domain.ActionRebalance {
		t.Fatalf("expected REBALANCE, got %s", recs[0].Kind)
	}
	if !strings.Contains(recs[0].Reason, "45.0%") {
		t.Errorf("expected reason to mention 45.0%% deviation, got %q", recs[0].Reason)
	}
	if !strings.Contains(recs[0].Reason, "outbound") {
		t.Errorf("expected local-heavy skew to mention outbound balance, got %q", recs[0].Reason)
	}
}

func TestRuleScorer_CapacityGrowthScenario(t *testing.T) {
	// Channel count 3 -> 5 with capacity trend available.
	fv := domain.FeatureVector{
		BalanceRatio:              0.5,
		LiquidityFlexibilityScore: 50.0,
		CapacityTrend:             ptr(0.0),
		ChannelCountTrend:         ptr(2.0 / 3.0),
	}

	recs := NewRuleScorer(DefaultThresholds()).Evaluate(fv)

	if len(recs) != 1 {
		t.Fatalf("expected 1 recommendation, got %d", len(recs))
	}
	if recs[0].Kind != domain.ActionIncreaseCapacity {
		t.Errorf("expected INCREASE_CAPACITY, got %s", recs[0].Kind)
	}
	if recs[0].Priority != domain.PriorityHigh {
		t.Errorf("expected HIGH priority, got %s", recs[0].Priority)
	}
}

func TestRuleScorer_FeeTrendBoundary(t *testing.T) {
	thresholds := DefaultThresholds()

	// Exactly at threshold does not trigger.
	fv := domain.FeatureVector{BalanceRatio: 0.5, LiquidityFlexibilityScore: 50.0, FeeTrend: ptr(0.10)}
	if recs := NewRuleScorer(thresholds).Evaluate(fv); len(recs) != 0 {
		t.Errorf("expected no trigger at exact threshold, got %+v", recs)
	}

	// Negative trend past the threshold triggers on magnitude.
	fv.FeeTrend = ptr(-0.25)
	recs := NewRuleScorer(thresholds).Evaluate(fv)
	if len(recs) != 1 || recs[0].Kind != domain.ActionUpdateFees {
		t.Fatalf("expected UPDATE_FEES trigger, got %+v", recs)
	}
	if !strings.Contains(recs[0].Reason, "fell 25.0%") {
		t.Errorf("expected reason to mention the drop, got %q", recs[0].Reason)
	}
}

func TestRuleScorer_ConfigurableThresholds(t *testing.T) {
	tight := Thresholds{FeeTrend: 0.01, BalanceSkew: 0.01, FlexibilityFloor: 100.0}
	fv := domain.FeatureVector{
		BalanceRatio:              0.55,
		LiquidityFlexibilityScore: 42.0,
		FeeTrend:                  ptr(0.05),
	}

	recs := NewRuleScorer(tight).Evaluate(fv)

	if len(recs) != 3 {
		t.Errorf("expected 3 recommendations under tight thresholds, got %d", len(recs))
	}
}
