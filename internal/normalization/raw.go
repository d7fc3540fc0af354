package normalization

import "github.com/Feustey/lightdash/internal/domain"

// RawNode is a loosely typed node record as delivered by a provider.
// Every field except Pubkey is optional; adapters in the provider packages
// fill in what they have and leave the rest zero.
type RawNode struct {
	Pubkey  string
	Alias   string
	Country string
	Version string

	// UptimePercentage in [0,100], from the analytics provider. Zero when
	// the provider did not report it.
	UptimePercentage float64
}

// RawChannel is a loosely typed channel record as delivered by a provider.
type RawChannel struct {
	ChannelID     string
	Capacity      uint64
	LocalBalance  uint64
	RemoteBalance uint64
	NumForwards   uint32
	FeesEarned    uint64
	Uptime        float64 // [0,1]
	Status        string  // provider-specific, mapped tolerantly
}

// mapStatus converts a provider status string to the canonical enum.
// Unknown values map to Inactive so they never count toward active-channel
// aggregates.
func mapStatus(s string) domain.ChannelStatus {
	switch s {
	case "active", "ACTIVE", "Active", "open", "OPEN", "1", "true":
		return domain.ChannelActive
	case "pending", "PENDING", "Pending", "opening", "OPENING":
		return domain.ChannelPending
	case "closing", "CLOSING", "Closing", "force_closing", "FORCE_CLOSING":
		return domain.ChannelClosing
	default:
		return domain.ChannelInactive
	}
}
