package nostr

import (
	"context"
	"fmt"

	"github.com/nbd-wtf/go-nostr"
)

// RelayTransport is an ad-hoc transport bound to exactly one relay.
type RelayTransport struct {
	relay *nostr.Relay
}

// DialRelay connects to address. The context bounds the connection phase only.
func DialRelay(ctx context.Context, address string) (*RelayTransport, error) {
	relay, err := nostr.RelayConnect(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	return &RelayTransport{relay: relay}, nil
}

// URL returns the relay address
func (t *RelayTransport) URL() string {
	return t.relay.URL
}

// Connected reports whether the underlying connection is still open
func (t *RelayTransport) Connected() bool {
	return t.relay.IsConnected()
}

func (t *RelayTransport) Query(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error) {
	events, err := t.relay.QuerySync(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.relay.URL, err)
	}
	return events, nil
}

func (t *RelayTransport) Publish(ctx context.Context, event nostr.Event) error {
	if err := t.relay.Publish(ctx, event); err != nil {
		return fmt.Errorf("publish to %s: %w", t.relay.URL, err)
	}
	return nil
}

func (t *RelayTransport) Close() {
	t.relay.Close()
}
