package sync

import (
	"context"
	"errors"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sandwichfarm/syncstr/internal/config"
	internalnostr "github.com/sandwichfarm/syncstr/internal/nostr"
	"github.com/sandwichfarm/syncstr/internal/ops"
)

// ErrNoEvents is returned when Sync is called with nothing selected
var ErrNoEvents = errors.New("no events to sync")

// Executor replays events to a target relay one at a time. Each event is
// published through the shared transport first and through a direct
// connection to the target when that fails.
type Executor struct {
	shared        internalnostr.Transport
	dial          internalnostr.Dialer
	timeout       time.Duration
	allowInsecure bool

	logger  *ops.Logger
	metrics ops.Metrics
}

// NewExecutor creates an executor using the relay policy of cfg
func NewExecutor(shared internalnostr.Transport, cfg *config.Config, logger *ops.Logger, metrics ops.Metrics) *Executor {
	if logger == nil {
		logger = ops.Default()
	}
	if metrics == nil {
		metrics = ops.NewMetrics(nil)
	}
	return &Executor{
		shared:        shared,
		dial:          internalnostr.DefaultDialer,
		timeout:       internalnostr.PolicyTimeouts(cfg.Relays.Policy).Publish,
		allowInsecure: cfg.Relays.Policy.AllowInsecure,
		logger:        logger.WithComponent("executor"),
		metrics:       metrics,
	}
}

// SetDialer replaces the dialer used for the direct route
func (e *Executor) SetDialer(dial internalnostr.Dialer) {
	e.dial = dial
}

// Sync publishes events to target in input order. Individual failures are
// recorded in the outcome; only an empty selection or an invalid target fail
// the call. Events left when ctx is cancelled are recorded as failed.
func (e *Executor) Sync(ctx context.Context, events []*nostr.Event, target string) (*Outcome, error) {
	if len(events) == 0 {
		return nil, ErrNoEvents
	}
	if err := internalnostr.CheckRelayURL(target, e.allowInsecure); err != nil {
		return nil, err
	}

	logger := e.logger.WithOperation("sync")
	start := time.Now()

	// One direct connection serves every event of this run
	direct := internalnostr.DirectRoute(target, e.dial)
	defer direct.Close()

	routes := []*internalnostr.Route{direct}
	if e.shared != nil {
		routes = []*internalnostr.Route{internalnostr.SharedRoute(e.shared, target), direct}
	}

	outcome := newOutcome(target, len(events))
	for _, ev := range events {
		outcome.record(e.publish(ctx, logger, routes, ev, target))
	}

	status := outcome.Status()
	logger.LogSyncOutcome(target, string(status), outcome.SuccessCount, outcome.ErrorCount, outcome.Total, time.Since(start))
	e.metrics.ObserveSync(string(status), outcome.SuccessCount, outcome.ErrorCount)

	return outcome, nil
}

func (e *Executor) publish(ctx context.Context, logger *ops.Logger, routes []*internalnostr.Route, ev *nostr.Event, target string) Result {
	if ev == nil {
		return Result{Err: errors.New("nil event")}
	}

	var accepted string
	attempts, err := internalnostr.Fallback(ctx, routes, e.timeout, func(ctx context.Context, route *internalnostr.Route, t internalnostr.Transport) (bool, error) {
		start := time.Now()
		err := t.Publish(ctx, *ev)
		logger.LogPublishAttempt(target, route.Name, ev.ID, ev.Kind, time.Since(start), err)
		e.metrics.ObservePublish(route.Name, err)
		if err != nil {
			return false, err
		}
		accepted = route.Name
		return true, nil
	})

	if err == nil && accepted != "" {
		return Result{Event: ev, Succeeded: true, Route: accepted}
	}

	route := internalnostr.RouteShared
	if n := len(attempts); n > 0 {
		route = attempts[n-1].Route
	}
	if err == nil {
		err = errors.New("no route accepted the event")
	}
	return Result{
		Event: ev,
		Err: &internalnostr.PublishError{
			Route:   route,
			Relay:   target,
			EventID: ev.ID,
			Kind:    ev.Kind,
			Cause:   err,
		},
	}
}
