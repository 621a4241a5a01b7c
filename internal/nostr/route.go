package nostr

import (
	"context"
	"sync"
	"time"
)

// Route names
const (
	RouteShared = "shared"
	RouteDirect = "direct"
)

// Dialer opens an ad-hoc transport bound to one address.
type Dialer func(ctx context.Context, address string) (Transport, error)

// DefaultDialer dials with DialRelay.
func DefaultDialer(ctx context.Context, address string) (Transport, error) {
	t, err := DialRelay(ctx, address)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Route is one way of obtaining a transport. Routes are tried in order by
// Fallback.
type Route struct {
	Name    string
	Address string

	acquire func(ctx context.Context) (Transport, error)
	release func()
}

// SharedRoute routes through the shared transport. Transports that can be
// pointed at one relay (such as Client) are narrowed to address. Closing the
// route leaves the shared transport open.
func SharedRoute(t Transport, address string) *Route {
	if r, ok := t.(interface{ For(string) Transport }); ok && address != "" {
		t = r.For(address)
	}
	return &Route{
		Name:    RouteShared,
		Address: address,
		acquire: func(context.Context) (Transport, error) { return t, nil },
		release: func() {},
	}
}

// DirectRoute dials address on first use and keeps the connection while it
// stays open. The owner must Close the route.
func DirectRoute(address string, dial Dialer) *Route {
	if dial == nil {
		dial = DefaultDialer
	}

	var (
		mu   sync.Mutex
		conn Transport
	)

	return &Route{
		Name:    RouteDirect,
		Address: address,
		acquire: func(ctx context.Context) (Transport, error) {
			mu.Lock()
			defer mu.Unlock()

			if conn != nil {
				if c, ok := conn.(interface{ Connected() bool }); !ok || c.Connected() {
					return conn, nil
				}
				conn.Close()
				conn = nil
			}

			t, err := dial(ctx, address)
			if err != nil {
				return nil, err
			}
			conn = t
			return conn, nil
		},
		release: func() {
			mu.Lock()
			defer mu.Unlock()
			if conn != nil {
				conn.Close()
				conn = nil
			}
		},
	}
}

// Transport returns the route's transport
func (r *Route) Transport(ctx context.Context) (Transport, error) {
	return r.acquire(ctx)
}

// Close releases any connection the route opened
func (r *Route) Close() {
	r.release()
}

// Attempt records one route tried by Fallback
type Attempt struct {
	Route   string
	Err     error
	Elapsed time.Duration
}

// Fallback tries routes in order, each under its own timeout, until try
// reports done. It stops early when ctx is cancelled and never falls back
// after that. The returned error is the final attempt's error.
func Fallback(ctx context.Context, routes []*Route, timeout time.Duration, try func(ctx context.Context, route *Route, t Transport) (done bool, err error)) ([]Attempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	attempts := make([]Attempt, 0, len(routes))
	var lastErr error

	for _, route := range routes {
		if len(attempts) > 0 && ctx.Err() != nil {
			break
		}

		start := time.Now()
		done, err := runAttempt(ctx, route, timeout, try)
		attempts = append(attempts, Attempt{
			Route:   route.Name,
			Err:     err,
			Elapsed: time.Since(start),
		})
		lastErr = err

		if done {
			break
		}
	}

	return attempts, lastErr
}

func runAttempt(ctx context.Context, route *Route, timeout time.Duration, try func(context.Context, *Route, Transport) (bool, error)) (bool, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	t, err := route.Transport(ctx)
	if err != nil {
		return false, err
	}
	return try(ctx, route, t)
}
