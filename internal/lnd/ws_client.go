package lnd

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ChannelEvent is a push notification about channel lifecycle changes,
// used to nudge an early collection pass instead of waiting for the next
// scheduled one.
type ChannelEvent struct {
	Type      string `json:"type"` // e.g. OPEN_CHANNEL, CLOSED_CHANNEL, ACTIVE_CHANNEL, INACTIVE_CHANNEL
	ChannelID string `json:"channel_id"`
	Pubkey    string `json:"pubkey"`
}

// WSConfig configures the event feed connection.
type WSConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is the maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// Buffer is the event channel capacity; events beyond it are dropped,
	// which is fine because events only trigger a refresh.
	Buffer int
}

// DefaultWSConfig returns default event feed configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       90 * time.Second,
		Buffer:            16,
	}
}

// WSClient consumes the node's channel event websocket feed. It reconnects
// with exponential backoff until closed.
type WSClient struct {
	endpoint string
	config   WSConfig

	events chan ChannelEvent
	closed atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewWSClient connects to the event feed at endpoint and starts reading.
func NewWSClient(ctx context.Context, endpoint string, config *WSConfig) (*WSClient, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	c := &WSClient{
		endpoint: endpoint,
		config:   cfg,
		events:   make(chan ChannelEvent, cfg.Buffer),
		done:     make(chan struct{}),
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop(conn)

	return c, nil
}

// Events returns the channel event stream. The channel is closed when the
// client shuts down.
func (c *WSClient) Events() <-chan ChannelEvent {
	return c.events
}

// Close stops the read loop and closes the event channel.
func (c *WSClient) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)
	c.wg.Wait()
	close(c.events)
	return nil
}

func (c *WSClient) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial event feed: %w", err)
	}
	return conn, nil
}

func (c *WSClient) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()

	delay := c.config.ReconnectDelay

	for {
		if c.closed.Load() {
			conn.Close()
			return
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			conn.Close()

			// Reconnect with backoff until closed.
			select {
			case <-c.done:
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.config.MaxReconnectDelay {
				delay = c.config.MaxReconnectDelay
			}

			next, dialErr := c.dial(context.Background())
			if dialErr != nil {
				// Keep the dead conn; the next iteration fails fast and
				// retries the dial.
				continue
			}
			conn = next
			delay = c.config.ReconnectDelay
			continue
		}

		var event ChannelEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			continue
		}

		select {
		case c.events <- event:
		default:
			// Listener is behind; drop the nudge.
		}
	}
}
