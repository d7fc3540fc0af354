// Package collector polls the Lightning node and external providers,
// normalizes what it sees, and persists snapshots and channel records.
package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Feustey/lightdash/internal/analytics"
	"github.com/Feustey/lightdash/internal/lnd"
	"github.com/Feustey/lightdash/internal/normalization"
	"github.com/Feustey/lightdash/internal/observability"
	"github.com/Feustey/lightdash/internal/storage"
)

// DefaultForwardingWindow bounds the forwarding history query per run.
const DefaultForwardingWindow = 24 * time.Hour

// Collector runs one collection cycle per invocation. Safe for use from
// a cron scheduler as long as runs do not overlap; Run itself is not
// reentrant-guarded.
type Collector struct {
	node          lnd.Client
	analytics     analytics.Client
	snapshotStore storage.SnapshotStore
	channelStore  storage.ChannelStore
	metrics       *observability.Metrics
	logger        *zap.Logger

	forwardingWindow time.Duration
	now              func() time.Time
}

// Options for creating a Collector. Node, SnapshotStore and ChannelStore
// are required; Analytics, Metrics and Logger may be nil.
type Options struct {
	Node          lnd.Client
	Analytics     analytics.Client
	SnapshotStore storage.SnapshotStore
	ChannelStore  storage.ChannelStore
	Metrics       *observability.Metrics
	Logger        *zap.Logger

	// ForwardingWindow bounds the forwarding history query.
	// Zero means DefaultForwardingWindow.
	ForwardingWindow time.Duration
}

// New creates a new Collector.
func New(opts Options) *Collector {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	window := opts.ForwardingWindow
	if window <= 0 {
		window = DefaultForwardingWindow
	}
	return &Collector{
		node:             opts.Node,
		analytics:        opts.Analytics,
		snapshotStore:    opts.SnapshotStore,
		channelStore:     opts.ChannelStore,
		metrics:          opts.Metrics,
		logger:           logger.Named("collector"),
		forwardingWindow: window,
		now:              time.Now,
	}
}

// RunResult contains counters from one collection cycle.
type RunResult struct {
	Pubkey             string
	SnapshotStored     bool
	ChannelsUpserted   int
	BalanceDiscrepancy int64
}

// Run executes one collection cycle: poll the node, enrich with provider
// stats, normalize, and persist. A duplicate snapshot for the same
// observation instant is tolerated and reported as not stored.
func (c *Collector) Run(ctx context.Context) (*RunResult, error) {
	start := c.now()
	result, err := c.run(ctx, start)
	c.observeRun(start, err)
	return result, err
}

func (c *Collector) run(ctx context.Context, observedAt time.Time) (*RunResult, error) {
	callStart := c.now()
	info, err := c.node.GetInfo(ctx)
	c.observeNodeCall("getinfo", callStart, err)
	if err != nil {
		return nil, fmt.Errorf("get info: %w", err)
	}

	callStart = c.now()
	channels, err := c.node.ListChannels(ctx)
	c.observeNodeCall("listchannels", callStart, err)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	windowStart := observedAt.Add(-c.forwardingWindow)
	callStart = c.now()
	forwards, err := c.node.ForwardingHistory(ctx, lnd.ForwardingHistoryRequest{
		StartTime: uint64(windowStart.Unix()),
		EndTime:   uint64(observedAt.Unix()),
	})
	c.observeNodeCall("forwardinghistory", callStart, err)
	if err != nil {
		return nil, fmt.Errorf("forwarding history: %w", err)
	}

	uptime := c.fetchUptime(ctx, info.IdentityPubkey)

	rawNode, rawChannels := lnd.ToRaw(info, channels, forwards, uptime)
	snap, records, err := normalization.Normalize(rawNode, rawChannels, observedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}

	result := &RunResult{
		Pubkey:             snap.Pubkey,
		BalanceDiscrepancy: snap.BalanceDiscrepancy,
	}

	if err := c.snapshotStore.Insert(ctx, snap); err != nil {
		if !errors.Is(err, storage.ErrDuplicateKey) {
			return nil, fmt.Errorf("store snapshot: %w", err)
		}
		c.logger.Debug("snapshot already stored for this instant",
			zap.String("pubkey", snap.Pubkey), zap.Time("observed_at", snap.ObservedAt))
	} else {
		result.SnapshotStored = true
		if c.metrics != nil {
			c.metrics.SnapshotsStored.Inc()
		}
	}

	if snap.BalanceDiscrepancy != 0 {
		if c.metrics != nil {
			c.metrics.BalanceDiscrepancies.Inc()
		}
		c.logger.Warn("balance discrepancy observed",
			zap.String("pubkey", snap.Pubkey),
			zap.Int64("discrepancy_sats", snap.BalanceDiscrepancy))
	}

	for _, rec := range records {
		if err := c.channelStore.Upsert(ctx, rec); err != nil {
			return nil, fmt.Errorf("upsert channel %s: %w", rec.ChannelID, err)
		}
		result.ChannelsUpserted++
		if c.metrics != nil {
			c.metrics.ChannelsUpserted.Inc()
		}
	}

	c.logger.Info("collection cycle completed",
		zap.String("pubkey", snap.Pubkey),
		zap.Bool("snapshot_stored", result.SnapshotStored),
		zap.Int("channels_upserted", result.ChannelsUpserted),
		zap.Int("forwarding_events", len(forwards)))

	return result, nil
}

// fetchUptime asks the analytics provider for the node's uptime. The
// provider is best-effort; failures degrade to zero uptime rather than
// failing the cycle.
func (c *Collector) fetchUptime(ctx context.Context, pubkey string) float64 {
	if c.analytics == nil {
		return 0
	}

	start := c.now()
	stats, err := c.analytics.NodeStats(ctx, pubkey)
	if c.metrics != nil {
		c.metrics.ProviderCallLatency.WithLabelValues("analytics", "node_stats").
			Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if c.metrics != nil {
			c.metrics.ProviderCallErrors.WithLabelValues("analytics", "node_stats").Inc()
		}
		c.logger.Warn("analytics provider unavailable",
			zap.String("pubkey", pubkey), zap.Error(err))
		return 0
	}
	return stats.UptimePercentage
}

func (c *Collector) observeRun(start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	c.metrics.CollectionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.CollectionsTotal.WithLabelValues("error").Inc()
		return
	}
	c.metrics.CollectionsTotal.WithLabelValues("ok").Inc()
	c.metrics.LastSuccessfulCollection.SetToCurrentTime()
}

// minEventInterval throttles event-triggered collections so a burst of
// channel events does not hammer the node.
const minEventInterval = 30 * time.Second

// WatchChannelEvents runs an extra collection cycle whenever a channel
// opens or closes, so the dashboard does not wait for the next scheduled
// poll. Returns when the context is done or the event channel closes.
func (c *Collector) WatchChannelEvents(ctx context.Context, events <-chan lnd.ChannelEvent) {
	var lastRun time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if c.now().Sub(lastRun) < minEventInterval {
				c.logger.Debug("channel event throttled",
					zap.String("type", ev.Type), zap.String("channel_id", ev.ChannelID))
				continue
			}
			lastRun = c.now()
			c.logger.Info("channel event triggered collection",
				zap.String("type", ev.Type), zap.String("channel_id", ev.ChannelID))
			if _, err := c.Run(ctx); err != nil {
				c.logger.Error("event-triggered collection failed", zap.Error(err))
			}
		}
	}
}

func (c *Collector) observeNodeCall(method string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	c.metrics.ProviderCallLatency.WithLabelValues("lnd", method).
		Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.ProviderCallErrors.WithLabelValues("lnd", method).Inc()
	}
}
