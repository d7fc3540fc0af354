package domain

import "time"

// ChannelStatus is the lifecycle state of a channel.
type ChannelStatus string

const (
	ChannelActive   ChannelStatus = "ACTIVE"
	ChannelInactive ChannelStatus = "INACTIVE"
	ChannelPending  ChannelStatus = "PENDING"
	ChannelClosing  ChannelStatus = "CLOSING"
)

// ChannelRecord is one channel belonging to a node.
// Corresponds to the channels table in PostgreSQL. Records are created on
// first observation and updated on each poll; they are never deleted, only
// status-transitioned, so closed channels keep their history.
type ChannelRecord struct {
	ChannelID     string // unique within a node
	NodePubkey    string // owning node
	Capacity      uint64 // sats
	LocalBalance  uint64 // sats
	RemoteBalance uint64 // sats
	NumForwards   uint32 // lifetime
	FeesEarned    uint64 // lifetime, sats
	Uptime        float64
	Status        ChannelStatus
	ObservedAt    time.Time
}
