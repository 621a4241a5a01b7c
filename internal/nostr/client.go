package nostr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sandwichfarm/syncstr/internal/config"
)

// Transport can query events from and publish events to relays.
type Transport interface {
	Query(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error)
	Publish(ctx context.Context, event nostr.Event) error
	Close()
}

// ErrNoRelays is returned when publishing through a client without relays
var ErrNoRelays = errors.New("no relays configured")

// Client is the shared transport. It routes requests over one long-lived
// connection pool, by default to the configured shared relays.
type Client struct {
	pool        *nostr.SimplePool
	relayConfig *config.Relays
	relays      []string
	view        bool
}

// New creates a new Nostr client with the given configuration
func New(ctx context.Context, relayConfig *config.Relays) *Client {
	pool := nostr.NewSimplePool(ctx)

	var relays []string
	if relayConfig != nil {
		for _, r := range relayConfig.Shared {
			relays = append(relays, nostr.NormalizeURL(r))
		}
	}

	return &Client{
		pool:        pool,
		relayConfig: relayConfig,
		relays:      relays,
	}
}

// Relays returns the relays the client routes to
func (c *Client) Relays() []string {
	out := make([]string, len(c.relays))
	copy(out, c.relays)
	return out
}

// For returns a transport that routes through the client's pool to address
// only. Closing it leaves the pool open.
func (c *Client) For(address string) Transport {
	return &Client{
		pool:        c.pool,
		relayConfig: c.relayConfig,
		relays:      []string{nostr.NormalizeURL(address)},
		view:        true,
	}
}

// Query fetches events matching the filter from the shared relays and waits
// for EOSE. A client without relays returns no events.
func (c *Client) Query(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error) {
	if len(c.relays) == 0 {
		return nil, nil
	}

	events := make([]*nostr.Event, 0)
	seen := make(map[string]struct{})

	// Use SubManyEose to get events and wait for EOSE
	for relayEvent := range c.pool.SubManyEose(ctx, c.relays, nostr.Filters{filter}) {
		if relayEvent.Event == nil {
			continue
		}
		if _, dup := seen[relayEvent.Event.ID]; dup {
			continue
		}
		seen[relayEvent.Event.ID] = struct{}{}
		events = append(events, relayEvent.Event)
	}

	if len(events) == 0 && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	return events, nil
}

// Publish publishes an event to the shared relays. It succeeds if any relay
// accepted the event.
func (c *Client) Publish(ctx context.Context, event nostr.Event) error {
	if len(c.relays) == 0 {
		return ErrNoRelays
	}

	results := c.pool.PublishMany(ctx, c.relays, event)

	var lastErr error
	successCount := 0

	for result := range results {
		if result.Error != nil {
			lastErr = result.Error
		} else {
			successCount++
		}
	}

	if successCount == 0 {
		if lastErr == nil {
			lastErr = ctx.Err()
		}
		if lastErr == nil {
			lastErr = errors.New("no relay answered")
		}
		return fmt.Errorf("failed to publish to any relay: %w", lastErr)
	}

	return nil
}

// Close closes all relay connections. It is a no-op on views returned by For.
func (c *Client) Close() {
	if c.view {
		return
	}
	c.pool.Close("client shutting down")
}

// Timeouts holds the per-attempt deadlines derived from the relay policy
type Timeouts struct {
	Connect time.Duration
	Fetch   time.Duration
	Publish time.Duration
	Probe   time.Duration
}

// PolicyTimeouts converts the configured millisecond values
func PolicyTimeouts(p config.RelayPolicy) Timeouts {
	return Timeouts{
		Connect: msOr(p.ConnectTimeoutMs, 5*time.Second),
		Fetch:   msOr(p.FetchTimeoutMs, 15*time.Second),
		Publish: msOr(p.PublishTimeoutMs, 15*time.Second),
		Probe:   msOr(p.ProbeTimeoutMs, 5*time.Second),
	}
}

func msOr(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
