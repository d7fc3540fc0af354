package lnd

import "github.com/Feustey/lightdash/internal/normalization"

// ToRaw adapts this provider's shapes to the normalizer's loose input.
// Forwarding events are attributed to their outgoing channel, which is the
// side that earns the fee. uptimePercentage comes from the analytics
// provider and passes through untouched.
func ToRaw(info *NodeInfo, channels []Channel, forwards []ForwardingEvent, uptimePercentage float64) (normalization.RawNode, []normalization.RawChannel) {
	raw := normalization.RawNode{
		UptimePercentage: uptimePercentage,
	}
	if info != nil {
		raw.Pubkey = info.IdentityPubkey
		raw.Alias = info.Alias
		raw.Version = info.Version
	}

	type channelActivity struct {
		forwards uint32
		fees     uint64
	}
	activity := make(map[string]channelActivity, len(channels))
	for _, fwd := range forwards {
		a := activity[fwd.ChanIDOut]
		a.forwards++
		a.fees += fwd.Fee
		activity[fwd.ChanIDOut] = a
	}

	rawChannels := make([]normalization.RawChannel, 0, len(channels))
	for _, ch := range channels {
		status := "inactive"
		if ch.Active {
			status = "active"
		}

		var uptime float64
		if ch.Lifetime > 0 {
			uptime = float64(ch.Uptime) / float64(ch.Lifetime)
		}

		a := activity[ch.ChanID]
		rawChannels = append(rawChannels, normalization.RawChannel{
			ChannelID:     ch.ChanID,
			Capacity:      ch.Capacity,
			LocalBalance:  ch.LocalBalance,
			RemoteBalance: ch.RemoteBalance,
			NumForwards:   a.forwards,
			FeesEarned:    a.fees,
			Uptime:        uptime,
			Status:        status,
		})
	}

	return raw, rawChannels
}
