package features

import (
	"github.com/Feustey/lightdash/internal/domain"
)

// Aggregate derives the scalar feature set for one node from its canonical
// snapshot and channel list. prev is the immediately preceding snapshot for
// the same pubkey; pass nil on first observation, which leaves the trend
// fields unavailable. flexibilityScore is the externally computed
// centrality metric for the node.
//
// Pure and deterministic: identical inputs always produce an identical
// FeatureVector.
func Aggregate(snap *domain.NodeSnapshot, channels []*domain.ChannelRecord, prev *domain.NodeSnapshot, flexibilityScore float64) domain.FeatureVector {
	fv := domain.FeatureVector{
		Pubkey:                    snap.Pubkey,
		LiquidityFlexibilityScore: flexibilityScore,
	}

	// Balance, fee and uptime aggregates consider active channels only.
	// Inactive and closing channels still count toward channel_count on
	// the snapshot, but their liquidity is not spendable.
	var (
		localSum    uint64
		remoteSum   uint64
		forwardsSum uint64
		feesSum     uint64
		uptimeSum   float64
		activeCount int
	)
	for _, ch := range channels {
		if ch.Status != domain.ChannelActive {
			continue
		}
		localSum += ch.LocalBalance
		remoteSum += ch.RemoteBalance
		forwardsSum += uint64(ch.NumForwards)
		feesSum += ch.FeesEarned
		uptimeSum += ch.Uptime
		activeCount++
	}

	fv.BalanceRatio = balanceRatio(localSum, remoteSum)
	fv.FeePerForward = feePerForward(feesSum, forwardsSum)
	if activeCount > 0 {
		fv.AvgChannelUptime = uptimeSum / float64(activeCount)
	}

	if prev != nil {
		fv.CapacityTrend = relativeTrend(float64(snap.TotalCapacity), float64(prev.TotalCapacity))
		fv.ChannelCountTrend = relativeTrend(float64(snap.ChannelCount), float64(prev.ChannelCount))
		fv.FeeTrend = relativeTrend(
			feePerForward(snap.TotalFeesEarned, snap.TotalForwards),
			feePerForward(prev.TotalFeesEarned, prev.TotalForwards),
		)
	}

	return fv
}

// balanceRatio is local/(local+remote), defaulting to 0.5 when the node
// holds no balance at all.
func balanceRatio(local, remote uint64) float64 {
	total := local + remote
	if total == 0 {
		return 0.5
	}
	return float64(local) / float64(total)
}

// feePerForward is fees/forwards, 0 when there are no forwards. Nonzero
// fees with zero forwards is malformed provider data and still yields 0.
func feePerForward(fees, forwards uint64) float64 {
	if forwards == 0 {
		return 0
	}
	return float64(fees) / float64(forwards)
}

// relativeTrend returns (current-previous)/previous. A zero baseline with a
// zero current value is a flat trend; a zero baseline with a nonzero
// current value has no meaningful relative change, so the trend stays
// unavailable.
func relativeTrend(current, previous float64) *float64 {
	if previous == 0 {
		if current == 0 {
			zero := 0.0
			return &zero
		}
		return nil
	}
	trend := (current - previous) / previous
	return &trend
}
