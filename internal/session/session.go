package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sandwichfarm/syncstr/internal/backup"
	"github.com/sandwichfarm/syncstr/internal/ops"
	"github.com/sandwichfarm/syncstr/internal/profile"
	"github.com/sandwichfarm/syncstr/internal/sync"
)

// ErrNothingSelected is returned by Sync when no viewed event is selected
var ErrNothingSelected = errors.New("no events selected")

// Session wires the engine components around one State. Each completed
// operation replaces the state; concurrent operations race and the last to
// finish wins.
type Session struct {
	state atomic.Pointer[State]

	aggregator *profile.Aggregator
	executor   *sync.Executor
	codec      *backup.Codec
	logger     *ops.Logger

	now func() time.Time
}

// New creates a session in the initial Live state
func New(aggregator *profile.Aggregator, executor *sync.Executor, codec *backup.Codec, logger *ops.Logger) *Session {
	if logger == nil {
		logger = ops.Default()
	}
	s := &Session{
		aggregator: aggregator,
		executor:   executor,
		codec:      codec,
		logger:     logger.WithComponent("session"),
		now:        time.Now,
	}
	initial := NewState()
	s.state.Store(&initial)
	return s
}

// State returns the current state
func (s *Session) State() State {
	return *s.state.Load()
}

func (s *Session) update(fn func(State) State) State {
	for {
		cur := s.state.Load()
		next := fn(*cur)
		if s.state.CompareAndSwap(cur, &next) {
			return next
		}
	}
}

// Fetch loads live profile data for pubkey from source
func (s *Session) Fetch(ctx context.Context, pubkey, source string) (profile.Data, error) {
	data, err := s.aggregator.Fetch(ctx, pubkey, source)
	if err != nil {
		return nil, err
	}
	s.update(func(st State) State { return st.WithLive(source, data) })
	return data, nil
}

// Select replaces the selection
func (s *Session) Select(ids ...string) State {
	return s.update(func(st State) State { return st.Select(ids...) })
}

// SelectKinds selects viewed events by kind
func (s *Session) SelectKinds(ks ...int) State {
	return s.update(func(st State) State { return st.SelectKinds(ks...) })
}

// SelectAll selects every viewed event
func (s *Session) SelectAll() State {
	return s.update(func(st State) State { return st.SelectAll() })
}

// Sync publishes the selected events to target and records the outcome
func (s *Session) Sync(ctx context.Context, target string) (*sync.Outcome, error) {
	events := s.State().Selected()
	if len(events) == 0 {
		return nil, ErrNothingSelected
	}

	outcome, err := s.executor.Sync(ctx, events, target)
	if err != nil {
		return nil, err
	}
	s.update(func(st State) State { return st.WithOutcome(outcome) })
	return outcome, nil
}

// Export snapshots the viewed data for pubkey
func (s *Session) Export(pubkey string) (*backup.Snapshot, error) {
	data, _ := s.State().View()
	snap, err := s.codec.Export(data, pubkey, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to export profile: %w", err)
	}
	return snap, nil
}

// Restore validates a snapshot file and switches to Restored mode
func (s *Session) Restore(raw []byte) (*backup.Snapshot, error) {
	data, snap, err := s.codec.Import(raw)
	if err != nil {
		return nil, err
	}

	s.update(func(st State) State { return st.EnterRestored(snap.Events, data) })
	s.logger.Info("snapshot loaded",
		"npub", snap.Npub,
		"events", len(snap.Events),
		"created_at", snap.Metadata.CreatedAt)
	return snap, nil
}

// ExitRestored returns to live data
func (s *Session) ExitRestored() State {
	return s.update(func(st State) State { return st.ExitRestored() })
}
