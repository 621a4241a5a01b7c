// Package nostrtest provides in-memory transports and signed fixtures for
// tests.
package nostrtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/nbd-wtf/go-nostr"
	internalnostr "github.com/sandwichfarm/syncstr/internal/nostr"
)

// Transport is an in-memory internalnostr.Transport.
type Transport struct {
	mu sync.Mutex

	// Events are served by Query, filtered by the query filter.
	Events   []*nostr.Event
	QueryErr error
	// PublishFunc decides the result of each publish. Nil accepts everything.
	PublishFunc func(event nostr.Event) error

	Queries   []nostr.Filter
	Published []nostr.Event
	Closed    bool
}

func (t *Transport) Query(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Queries = append(t.Queries, filter)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.QueryErr != nil {
		return nil, t.QueryErr
	}

	var out []*nostr.Event
	for _, ev := range t.Events {
		if filter.Matches(ev) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (t *Transport) Publish(ctx context.Context, event nostr.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if t.PublishFunc != nil {
		if err := t.PublishFunc(event); err != nil {
			return err
		}
	}
	t.Published = append(t.Published, event)
	return nil
}

func (t *Transport) Close() {
	t.mu.Lock()
	t.Closed = true
	t.mu.Unlock()
}

// QueryCount returns the number of queries served
func (t *Transport) QueryCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Queries)
}

// PublishedIDs returns the ids of accepted events in publish order
func (t *Transport) PublishedIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, len(t.Published))
	for i, ev := range t.Published {
		ids[i] = ev.ID
	}
	return ids
}

// Dialer hands out in-memory transports by address.
type Dialer struct {
	mu sync.Mutex

	Transports map[string]*Transport
	Err        error
	Dials      []string
}

// NewDialer returns a dialer serving t for address
func NewDialer(address string, t *Transport) *Dialer {
	return &Dialer{Transports: map[string]*Transport{address: t}}
}

// Dial implements internalnostr.Dialer
func (d *Dialer) Dial(ctx context.Context, address string) (internalnostr.Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Dials = append(d.Dials, address)
	if d.Err != nil {
		return nil, d.Err
	}
	t, ok := d.Transports[address]
	if !ok {
		return nil, fmt.Errorf("failed to connect to %s: connection refused", address)
	}
	return t, nil
}

// DialCount returns the number of dial attempts
func (d *Dialer) DialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Dials)
}
