package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/fiatjaf/eventstore"
	"github.com/fiatjaf/eventstore/slicestore"
	"github.com/fiatjaf/khatru"
	"github.com/nbd-wtf/go-nostr"
	"github.com/sandwichfarm/syncstr/internal/config"
)

// ErrReadOnly is the reason given to clients publishing to a read-only relay
var ErrReadOnly = errors.New("blocked: this relay serves a read-only snapshot")

// Storage is an in-memory relay. It serves a loaded snapshot to any Nostr
// client and, when writable, accepts events as a local sync target.
type Storage struct {
	relay    *khatru.Relay
	store    *slicestore.SliceStore
	config   *config.Serve
	writable bool
}

// New creates an empty in-memory relay
func New(cfg *config.Serve, writable bool) (*Storage, error) {
	store := &slicestore.SliceStore{}
	if err := store.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize event store: %w", err)
	}

	s := &Storage{
		relay:    khatru.NewRelay(),
		store:    store,
		config:   cfg,
		writable: writable,
	}

	s.relay.Info.Name = cfg.Name
	s.relay.Info.Description = "profile snapshot relay"
	if !writable {
		s.relay.Info.Description = "read-only profile snapshot relay"
	}

	s.relay.StoreEvent = append(s.relay.StoreEvent, store.SaveEvent)
	s.relay.ReplaceEvent = append(s.relay.ReplaceEvent, store.ReplaceEvent)
	s.relay.QueryEvents = append(s.relay.QueryEvents, store.QueryEvents)
	s.relay.CountEvents = append(s.relay.CountEvents, store.CountEvents)
	s.relay.DeleteEvent = append(s.relay.DeleteEvent, store.DeleteEvent)
	s.relay.RejectEvent = append(s.relay.RejectEvent, s.rejectWrites)

	return s, nil
}

func (s *Storage) rejectWrites(ctx context.Context, event *nostr.Event) (bool, string) {
	if s.writable {
		return false, ""
	}
	return true, ErrReadOnly.Error()
}

// Relay returns the underlying Khatru relay instance
func (s *Storage) Relay() *khatru.Relay {
	return s.relay
}

// Load stores events, keeping only the newest of each replaceable kind.
// Events with invalid signatures are skipped and counted.
func (s *Storage) Load(ctx context.Context, events []*nostr.Event) (loaded, skipped int, err error) {
	for _, event := range events {
		if ok, _ := event.CheckSignature(); !ok {
			skipped++
			continue
		}

		if nostr.IsReplaceableKind(event.Kind) {
			err = s.store.ReplaceEvent(ctx, event)
		} else {
			err = s.store.SaveEvent(ctx, event)
			if errors.Is(err, eventstore.ErrDupEvent) {
				err = nil
			}
		}
		if err != nil {
			return loaded, skipped, fmt.Errorf("failed to store event %s: %w", event.ID, err)
		}
		loaded++
	}
	return loaded, skipped, nil
}

// QueryEvents queries the store using Nostr filters
func (s *Storage) QueryEvents(ctx context.Context, filter nostr.Filter) ([]*nostr.Event, error) {
	ch, err := s.store.QueryEvents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	// Collect events from channel
	var events []*nostr.Event
	for event := range ch {
		events = append(events, event)
	}

	return events, nil
}

// Count returns the number of events matching filter
func (s *Storage) Count(ctx context.Context, filter nostr.Filter) (int64, error) {
	return s.store.CountEvents(ctx, filter)
}

// Address returns the listen address from the serve config
func (s *Storage) Address() string {
	return net.JoinHostPort(s.config.Bind, strconv.Itoa(s.config.Port))
}

// ListenAndServe serves the relay until ctx is cancelled
func (s *Storage) ListenAndServe(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		errc <- s.relay.Start(s.config.Bind, s.config.Port)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("relay server stopped: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.relay.Shutdown(shutdownCtx)
		return nil
	}
}

// Close releases the store
func (s *Storage) Close() {
	s.store.Close()
}
