package profile

import (
	"context"
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sandwichfarm/syncstr/internal/config"
	"github.com/sandwichfarm/syncstr/internal/kinds"
	internalnostr "github.com/sandwichfarm/syncstr/internal/nostr"
	"github.com/sandwichfarm/syncstr/internal/ops"
)

// Aggregator fetches the latest profile events of one identity from a source
// relay. The shared transport is tried first; when it returns nothing or
// fails, the source relay is queried directly.
type Aggregator struct {
	shared        internalnostr.Transport
	dial          internalnostr.Dialer
	table         kinds.Table
	limit         int
	timeout       time.Duration
	allowInsecure bool

	logger  *ops.Logger
	metrics ops.Metrics
}

// NewAggregator creates an aggregator using the fetch and relay policy settings of cfg
func NewAggregator(shared internalnostr.Transport, cfg *config.Config, table kinds.Table, logger *ops.Logger, metrics ops.Metrics) *Aggregator {
	if logger == nil {
		logger = ops.Default()
	}
	if metrics == nil {
		metrics = ops.NewMetrics(nil)
	}
	return &Aggregator{
		shared:        shared,
		dial:          internalnostr.DefaultDialer,
		table:         table,
		limit:         cfg.Fetch.Limit,
		timeout:       internalnostr.PolicyTimeouts(cfg.Relays.Policy).Fetch,
		allowInsecure: cfg.Relays.Policy.AllowInsecure,
		logger:        logger.WithComponent("aggregator"),
		metrics:       metrics,
	}
}

// SetDialer replaces the dialer used for the direct route
func (a *Aggregator) SetDialer(dial internalnostr.Dialer) {
	a.dial = dial
}

// Table returns the kind table used for folding
func (a *Aggregator) Table() kinds.Table {
	return a.table
}

// Filter returns the query issued for pubkey
func (a *Aggregator) Filter(pubkey string) nostr.Filter {
	return nostr.Filter{
		Kinds:   a.table.Kinds(),
		Authors: []string{pubkey},
		Limit:   a.limit,
	}
}

// Fetch returns the profile data of pubkey as seen by source. An empty result
// after both routes is not an error.
func (a *Aggregator) Fetch(ctx context.Context, pubkey, source string) (Data, error) {
	if pubkey == "" {
		return nil, ErrEmptyIdentity
	}
	if err := internalnostr.CheckRelayURL(source, a.allowInsecure); err != nil {
		return nil, err
	}

	logger := a.logger.WithOperation("fetch")
	filter := a.Filter(pubkey)

	direct := internalnostr.DirectRoute(source, a.dial)
	defer direct.Close()

	routes := []*internalnostr.Route{direct}
	if a.shared != nil {
		routes = []*internalnostr.Route{internalnostr.SharedRoute(a.shared, source), direct}
	}

	var events []*nostr.Event
	attempts, err := internalnostr.Fallback(ctx, routes, a.timeout, func(ctx context.Context, route *internalnostr.Route, t internalnostr.Transport) (bool, error) {
		start := time.Now()
		got, err := t.Query(ctx, filter)
		logger.LogFetchAttempt(source, route.Name, len(got), time.Since(start), err)
		a.metrics.ObserveFetch(route.Name, len(got), err)
		if err != nil {
			return false, err
		}
		events = got
		return len(got) > 0, nil
	})
	if err != nil {
		return nil, &FetchError{Source: source, Attempts: attempts, Cause: err}
	}

	data := Fold(events, a.table)
	logger.Info("profile fetched",
		"source", source,
		"pubkey", pubkey,
		"events", len(events),
		"slots", data.Len(),
		"attempts", len(attempts))

	return data, nil
}

// Describe summarises each populated slot in kind order
func (a *Aggregator) Describe(data Data) []string {
	out := make([]string, 0, data.Len())
	for _, ev := range data.Events() {
		out = append(out, fmt.Sprintf("%s: %s", a.table.Label(ev.Kind), a.table.Describe(ev)))
	}
	return out
}
