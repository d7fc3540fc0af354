package domain

import "time"

// NodeSnapshot is the canonical, provider-independent view of a node at a
// point in time. Corresponds to the node_snapshots table in ClickHouse.
type NodeSnapshot struct {
	Pubkey             string    // 66 hex chars, unique node identity
	Alias              string    // display name, may be empty
	TotalCapacity      uint64    // sum of channel capacities, sats
	ChannelCount       uint32    // all channels, regardless of status
	ActiveChannelCount uint32    // channels with status Active
	TotalLocalBalance  uint64    // sats
	TotalRemoteBalance uint64    // sats
	TotalFeesEarned    uint64    // lifetime routing fees across channels, sats
	TotalForwards      uint64    // lifetime forward count across channels
	UptimePercentage   float64   // [0,100], from the analytics provider
	ObservedAt         time.Time // collection time

	// BalanceDiscrepancy is capacity minus (local + remote), in sats.
	// Providers are inconsistent about commit fees and reserves, so a
	// nonzero value is reportable but never fatal.
	BalanceDiscrepancy int64
}
