package scoring

import "github.com/Feustey/lightdash/internal/domain"

// Scorer maps a feature vector to zero or more recommendations. The rule
// table and the learned model satisfy the same contract, so everything
// downstream is strategy-agnostic.
//
// Implementations never fail on a valid FeatureVector; unavailable trend
// fields suppress the rules that depend on them.
type Scorer interface {
	Evaluate(fv domain.FeatureVector) []domain.Recommendation
}
