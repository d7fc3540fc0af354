package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/Feustey/lightdash/internal/domain"
)

// Trigger and priority bands for the learned model. A kind is recommended
// when its probability clears the trigger; the high band promotes it from
// Medium to High priority.
const (
	modelTriggerThreshold = 0.70
	modelHighBand         = 0.85
)

// modelKindOrder fixes the evaluation order so repeated passes over the
// same features produce recommendations in a stable sequence.
var modelKindOrder = []domain.ActionKind{
	domain.ActionIncreaseCapacity,
	domain.ActionUpdateFees,
	domain.ActionRebalance,
	domain.ActionOptimizeDistribution,
	domain.ActionOpenChannel,
	domain.ActionCloseChannel,
}

// ModelParams holds per-kind logistic regression parameters trained offline
// on historical snapshot deltas. Weight vectors are indexed in
// FeatureVector.Array order and must have length FeatureDim.
type ModelParams struct {
	Weights map[domain.ActionKind][]float64 `json:"weights"`
	Biases  map[domain.ActionKind]float64   `json:"biases"`
}

// LoadModelParams reads trained parameters from a JSON file.
func LoadModelParams(path string) (ModelParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ModelParams{}, fmt.Errorf("read model params: %w", err)
	}

	var params ModelParams
	if err := json.Unmarshal(data, &params); err != nil {
		return ModelParams{}, fmt.Errorf("parse model params: %w", err)
	}
	for kind, weights := range params.Weights {
		if len(weights) != domain.FeatureDim {
			return ModelParams{}, fmt.Errorf("model params: kind %s has %d weights, want %d",
				kind, len(weights), domain.FeatureDim)
		}
	}
	return params, nil
}

// ModelScorer scores features with a per-kind logistic model. It satisfies
// the same contract as RuleScorer so the two are interchangeable.
type ModelScorer struct {
	params ModelParams
}

// NewModelScorer creates a model-based scorer. Kinds without a weight
// vector, and weight vectors with the wrong dimension, are never triggered.
func NewModelScorer(params ModelParams) *ModelScorer {
	return &ModelScorer{params: params}
}

// Compile-time interface check.
var _ Scorer = (*ModelScorer)(nil)

// Evaluate emits one recommendation per action kind whose probability
// clears the trigger threshold, in fixed kind order.
func (s *ModelScorer) Evaluate(fv domain.FeatureVector) []domain.Recommendation {
	x := fv.Array()

	var recs []domain.Recommendation
	for _, kind := range modelKindOrder {
		weights, ok := s.params.Weights[kind]
		if !ok || len(weights) != domain.FeatureDim {
			continue
		}

		z := s.params.Biases[kind]
		for i, w := range weights {
			z += w * x[i]
		}
		p := sigmoid(z)
		if p < modelTriggerThreshold {
			continue
		}

		priority := domain.PriorityMedium
		if p >= modelHighBand {
			priority = domain.PriorityHigh
		}

		recs = append(recs, domain.Recommendation{
			Kind:       kind,
			Priority:   priority,
			Confidence: p,
			Reason:     fmt.Sprintf("model scored %s at %.1f%% probability from the current feature set", kind, p*100),
		})
	}

	return recs
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
