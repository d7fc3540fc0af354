package domain

// FeatureVector holds the derived scalar features for one node, recomputed
// on every scoring pass. Trend fields are computed against the immediately
// preceding snapshot for the same pubkey and are nil when no prior snapshot
// exists; nil is distinct from zero, which is a valid trend value.
type FeatureVector struct {
	Pubkey                    string
	BalanceRatio              float64 // local/(local+remote), 0.5 when total is 0
	FeePerForward             float64 // fees_earned/num_forwards, 0 when no forwards
	AvgChannelUptime          float64 // mean over active channels, 0 if none
	LiquidityFlexibilityScore float64 // externally computed centrality metric

	CapacityTrend     *float64 // relative capacity change vs previous snapshot
	ChannelCountTrend *float64 // relative channel count change vs previous snapshot
	FeeTrend          *float64 // relative fee-per-forward change vs previous snapshot
}

// Array returns the features as a fixed-order numeric slice for the
// learned-model scorer. Unavailable trends are encoded as 0 with the
// corresponding availability flag set to 0.
func (f FeatureVector) Array() []float64 {
	arr := []float64{
		f.BalanceRatio,
		f.FeePerForward,
		f.AvgChannelUptime,
		f.LiquidityFlexibilityScore,
		0, 0, // capacity trend, availability
		0, 0, // channel count trend, availability
		0, 0, // fee trend, availability
	}
	if f.CapacityTrend != nil {
		arr[4] = *f.CapacityTrend
		arr[5] = 1
	}
	if f.ChannelCountTrend != nil {
		arr[6] = *f.ChannelCountTrend
		arr[7] = 1
	}
	if f.FeeTrend != nil {
		arr[8] = *f.FeeTrend
		arr[9] = 1
	}
	return arr
}

// FeatureDim is the length of the slice returned by FeatureVector.Array.
const FeatureDim = 10
