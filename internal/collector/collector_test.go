package collector

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Feustey/lightdash/internal/analytics"
	"github.com/Feustey/lightdash/internal/domain"
	"github.com/Feustey/lightdash/internal/lnd"
	"github.com/Feustey/lightdash/internal/storage/memory"
)

const testPubkey = "02eec7245d6b7d2ccb30380bfbe2a3648cd7a942653f5aa340edcea1f283686619"

type stubNode struct {
	info     *lnd.NodeInfo
	channels []lnd.Channel
	forwards []lnd.ForwardingEvent

	infoErr     error
	channelsErr error
	forwardsErr error

	forwardingReq lnd.ForwardingHistoryRequest
	runs          int
}

func (s *stubNode) GetInfo(ctx context.Context) (*lnd.NodeInfo, error) {
	s.runs++
	return s.info, s.infoErr
}

func (s *stubNode) ListChannels(ctx context.Context) ([]lnd.Channel, error) {
	return s.channels, s.channelsErr
}

func (s *stubNode) ForwardingHistory(ctx context.Context, req lnd.ForwardingHistoryRequest) ([]lnd.ForwardingEvent, error) {
	s.forwardingReq = req
	return s.forwards, s.forwardsErr
}

type stubAnalytics struct {
	stats *analytics.NodeStats
	err   error
}

func (s *stubAnalytics) NodeStats(ctx context.Context, pubkey string) (*analytics.NodeStats, error) {
	return s.stats, s.err
}

func healthyNode() *stubNode {
	return &stubNode{
		info: &lnd.NodeInfo{
			IdentityPubkey:    testPubkey,
			Alias:             "carol",
			Version:           "0.18.0-beta",
			NumActiveChannels: 2,
			SyncedToChain:     true,
		},
		channels: []lnd.Channel{
			{
				ChanID:        "700x1x0",
				Capacity:      5_000_000,
				LocalBalance:  3_000_000,
				RemoteBalance: 2_000_000,
				Active:        true,
				Uptime:        990,
				Lifetime:      1000,
			},
			{
				ChanID:        "700x2x0",
				Capacity:      2_000_000,
				LocalBalance:  500_000,
				RemoteBalance: 1_500_000,
				Active:        true,
				Uptime:        800,
				Lifetime:      1000,
			},
		},
		forwards: []lnd.ForwardingEvent{
			{ChanIDIn: "700x2x0", ChanIDOut: "700x1x0", Fee: 10},
			{ChanIDIn: "700x2x0", ChanIDOut: "700x1x0", Fee: 15},
		},
	}
}

func newTestCollector(node *stubNode, stats analytics.Client) (*Collector, *memory.SnapshotStore, *memory.ChannelStore) {
	snapshots := memory.NewSnapshotStore()
	channels := memory.NewChannelStore()
	c := New(Options{
		Node:          node,
		Analytics:     stats,
		SnapshotStore: snapshots,
		ChannelStore:  channels,
	})
	return c, snapshots, channels
}

func TestCollector_RunStoresSnapshotAndChannels(t *testing.T) {
	node := healthyNode()
	c, snapshots, channels := newTestCollector(node, &stubAnalytics{
		stats: &analytics.NodeStats{UptimePercentage: 99.9},
	})
	ctx := context.Background()

	result, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !result.SnapshotStored {
		t.Error("expected the snapshot to be stored")
	}
	if result.ChannelsUpserted != 2 {
		t.Errorf("ChannelsUpserted = %d, want 2", result.ChannelsUpserted)
	}
	if result.Pubkey != testPubkey {
		t.Errorf("Pubkey = %s, want %s", result.Pubkey, testPubkey)
	}

	snap, err := snapshots.Latest(ctx, testPubkey)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if snap.TotalCapacity != 7_000_000 {
		t.Errorf("TotalCapacity = %d, want 7000000", snap.TotalCapacity)
	}
	if snap.TotalFeesEarned != 25 {
		t.Errorf("TotalFeesEarned = %d, want 25", snap.TotalFeesEarned)
	}
	if snap.TotalForwards != 2 {
		t.Errorf("TotalForwards = %d, want 2", snap.TotalForwards)
	}
	if snap.UptimePercentage != 99.9 {
		t.Errorf("UptimePercentage = %v, want 99.9", snap.UptimePercentage)
	}

	recs, err := channels.GetByNode(ctx, testPubkey)
	if err != nil {
		t.Fatalf("GetByNode failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("stored %d channel records, want 2", len(recs))
	}
	for _, rec := range recs {
		if rec.Status != domain.ChannelActive {
			t.Errorf("channel %s status = %s, want %s", rec.ChannelID, rec.Status, domain.ChannelActive)
		}
	}
}

func TestCollector_ForwardsAttributedToOutgoingChannel(t *testing.T) {
	node := healthyNode()
	c, _, channels := newTestCollector(node, nil)
	ctx := context.Background()

	if _, err := c.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	out, err := channels.GetByID(ctx, testPubkey, "700x1x0")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if out.NumForwards != 2 {
		t.Errorf("outgoing channel NumForwards = %d, want 2", out.NumForwards)
	}
	if out.FeesEarned != 25 {
		t.Errorf("outgoing channel FeesEarned = %d, want 25", out.FeesEarned)
	}

	in, err := channels.GetByID(ctx, testPubkey, "700x2x0")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if in.NumForwards != 0 {
		t.Errorf("incoming channel NumForwards = %d, want 0", in.NumForwards)
	}
}

func TestCollector_AnalyticsFailureDegradesToZeroUptime(t *testing.T) {
	node := healthyNode()
	c, snapshots, _ := newTestCollector(node, &stubAnalytics{err: fmt.Errorf("timeout")})
	ctx := context.Background()

	if _, err := c.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	snap, err := snapshots.Latest(ctx, testPubkey)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if snap.UptimePercentage != 0 {
		t.Errorf("UptimePercentage = %v, want 0 when the provider is down", snap.UptimePercentage)
	}
}

func TestCollector_NodeFailureAbortsCycle(t *testing.T) {
	node := healthyNode()
	node.infoErr = fmt.Errorf("connection refused")
	c, snapshots, _ := newTestCollector(node, nil)
	ctx := context.Background()

	if _, err := c.Run(ctx); err == nil {
		t.Fatal("expected Run to fail when the node is unreachable")
	}

	if _, err := snapshots.Latest(ctx, testPubkey); err == nil {
		t.Error("expected no snapshot after a failed cycle")
	}
}

func TestCollector_DuplicateSnapshotTolerated(t *testing.T) {
	node := healthyNode()
	c, _, _ := newTestCollector(node, nil)
	ctx := context.Background()

	// Pin the clock so both runs observe the same instant.
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return at }

	first, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	if !first.SnapshotStored {
		t.Error("expected the first run to store a snapshot")
	}

	second, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if second.SnapshotStored {
		t.Error("expected the duplicate snapshot to be skipped, not stored")
	}
	if second.ChannelsUpserted != 2 {
		t.Errorf("ChannelsUpserted = %d, want channel upserts to proceed", second.ChannelsUpserted)
	}
}

func TestCollector_ForwardingWindowBoundsQuery(t *testing.T) {
	node := healthyNode()
	snapshots := memory.NewSnapshotStore()
	channels := memory.NewChannelStore()
	c := New(Options{
		Node:             node,
		SnapshotStore:    snapshots,
		ChannelStore:     channels,
		ForwardingWindow: 6 * time.Hour,
	})

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return at }

	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	wantStart := uint64(at.Add(-6 * time.Hour).Unix())
	if node.forwardingReq.StartTime != wantStart {
		t.Errorf("StartTime = %d, want %d", node.forwardingReq.StartTime, wantStart)
	}
	if node.forwardingReq.EndTime != uint64(at.Unix()) {
		t.Errorf("EndTime = %d, want %d", node.forwardingReq.EndTime, uint64(at.Unix()))
	}
}

func TestCollector_WatchChannelEventsTriggersRun(t *testing.T) {
	node := healthyNode()
	c, snapshots, _ := newTestCollector(node, nil)

	events := make(chan lnd.ChannelEvent, 1)
	events <- lnd.ChannelEvent{Type: "OPEN_CHANNEL", ChannelID: "700x3x0"}
	close(events)

	c.WatchChannelEvents(context.Background(), events)

	if node.runs != 1 {
		t.Errorf("node polled %d times, want 1", node.runs)
	}
	if _, err := snapshots.Latest(context.Background(), testPubkey); err != nil {
		t.Errorf("expected a snapshot after the event-triggered run: %v", err)
	}
}

func TestCollector_WatchChannelEventsThrottlesBursts(t *testing.T) {
	node := healthyNode()
	c, _, _ := newTestCollector(node, nil)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return at }

	events := make(chan lnd.ChannelEvent, 3)
	for i := 0; i < 3; i++ {
		events <- lnd.ChannelEvent{Type: "ACTIVE_CHANNEL", ChannelID: fmt.Sprintf("700x%dx0", i)}
	}
	close(events)

	c.WatchChannelEvents(context.Background(), events)

	if node.runs != 1 {
		t.Errorf("node polled %d times, want 1 (burst throttled)", node.runs)
	}
}
