package lnd

import "context"

// Client defines the Lightning node REST interface consumed by the
// collector. The node's RPC is an opaque black box; this client only
// reads state, it never constructs transactions or touches channel keys.
type Client interface {
	// GetInfo retrieves the node's identity and summary counters.
	GetInfo(ctx context.Context) (*NodeInfo, error)

	// ListChannels retrieves all open channels.
	ListChannels(ctx context.Context) ([]Channel, error)

	// ForwardingHistory retrieves routed payments within the window,
	// paginating internally.
	ForwardingHistory(ctx context.Context, req ForwardingHistoryRequest) ([]ForwardingEvent, error)
}

// NodeInfo is the node's own view of itself.
type NodeInfo struct {
	IdentityPubkey     string
	Alias              string
	Version            string
	NumActiveChannels  uint32
	NumPendingChannels uint32
	BlockHeight        uint32
	SyncedToChain      bool
}

// Channel is one open channel as reported by the node.
type Channel struct {
	ChanID        string
	RemotePubkey  string
	Capacity      uint64
	LocalBalance  uint64
	RemoteBalance uint64
	Active        bool
	Private       bool
	// Uptime and Lifetime are monitored seconds for the remote peer.
	Uptime   uint64
	Lifetime uint64
	// TotalSatoshisSent/Received are lifetime transfer volumes.
	TotalSatoshisSent     uint64
	TotalSatoshisReceived uint64
}

// ForwardingHistoryRequest bounds a forwarding history query.
type ForwardingHistoryRequest struct {
	StartTime uint64 // unix seconds, 0 means node default (24h ago)
	EndTime   uint64 // unix seconds, 0 means now
}

// ForwardingEvent is one routed payment.
type ForwardingEvent struct {
	Timestamp uint64 // unix seconds
	ChanIDIn  string
	ChanIDOut string
	AmtIn     uint64 // msat
	AmtOut    uint64 // msat
	Fee       uint64 // sats
	FeeMsat   uint64
}
