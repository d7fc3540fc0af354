package normalization

import (
	"fmt"
	"time"

	"github.com/Feustey/lightdash/internal/domain"
)

// ErrMalformedInput is returned when the mandatory node identity field is
// absent or structurally invalid. All other degraded-data conditions are
// handled by default substitution, never by failing the normalization.
var ErrMalformedInput = fmt.Errorf("malformed input")

const pubkeyLen = 66

// Normalize converts loosely typed provider records into the canonical
// NodeSnapshot plus ChannelRecord list. Pure function, no I/O.
//
// Snapshot totals are summed from the channel list. Missing optional fields
// default to zero values; only an unusable pubkey fails the call.
func Normalize(raw RawNode, rawChannels []RawChannel, observedAt time.Time) (*domain.NodeSnapshot, []*domain.ChannelRecord, error) {
	if err := ValidatePubkey(raw.Pubkey); err != nil {
		return nil, nil, err
	}

	snap := &domain.NodeSnapshot{
		Pubkey:           raw.Pubkey,
		Alias:            raw.Alias,
		UptimePercentage: raw.UptimePercentage,
		ObservedAt:       observedAt,
	}

	channels := make([]*domain.ChannelRecord, 0, len(rawChannels))
	for _, rc := range rawChannels {
		if rc.ChannelID == "" {
			// A channel without an identity cannot be stored or trended;
			// skip it rather than fail the node.
			continue
		}

		ch := &domain.ChannelRecord{
			ChannelID:     rc.ChannelID,
			NodePubkey:    raw.Pubkey,
			Capacity:      rc.Capacity,
			LocalBalance:  rc.LocalBalance,
			RemoteBalance: rc.RemoteBalance,
			NumForwards:   rc.NumForwards,
			FeesEarned:    rc.FeesEarned,
			Uptime:        clamp01(rc.Uptime),
			Status:        mapStatus(rc.Status),
			ObservedAt:    observedAt,
		}
		channels = append(channels, ch)

		snap.TotalCapacity += ch.Capacity
		snap.TotalLocalBalance += ch.LocalBalance
		snap.TotalRemoteBalance += ch.RemoteBalance
		snap.TotalFeesEarned += ch.FeesEarned
		snap.TotalForwards += uint64(ch.NumForwards)
		snap.ChannelCount++
		if ch.Status == domain.ChannelActive {
			snap.ActiveChannelCount++
		}
	}

	// Providers disagree about commit fees and reserves, so capacity and
	// balance totals rarely reconcile exactly. Record the gap instead of
	// correcting it.
	snap.BalanceDiscrepancy = int64(snap.TotalCapacity) - int64(snap.TotalLocalBalance) - int64(snap.TotalRemoteBalance)

	return snap, channels, nil
}

// ValidatePubkey checks the structural validity of a node public key:
// 66 lowercase-insensitive hex characters.
func ValidatePubkey(pubkey string) error {
	if pubkey == "" {
		return fmt.Errorf("%w: missing pubkey", ErrMalformedInput)
	}
	if len(pubkey) != pubkeyLen {
		return fmt.Errorf("%w: pubkey length %d, want %d", ErrMalformedInput, len(pubkey), pubkeyLen)
	}
	for i := 0; i < len(pubkey); i++ {
		c := pubkey[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return fmt.Errorf("%w: pubkey contains non-hex character %q", ErrMalformedInput, c)
		}
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
