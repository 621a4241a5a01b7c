package session

import (
	"github.com/nbd-wtf/go-nostr"
	"github.com/sandwichfarm/syncstr/internal/profile"
	"github.com/sandwichfarm/syncstr/internal/sync"
)

// Mode selects which profile data the session exposes
type Mode int

const (
	Live Mode = iota
	Restored
)

func (m Mode) String() string {
	if m == Restored {
		return "restored"
	}
	return "live"
}

// RestoredSource labels data that came from a snapshot rather than a relay
const RestoredSource = "Uploaded Backup"

// State is an immutable session snapshot. Every transition returns a new
// value and leaves the receiver untouched.
type State struct {
	mode Mode

	liveSource string
	live       profile.Data

	restored       profile.Data
	restoredEvents []*nostr.Event

	selected map[string]struct{}
	outcome  *sync.Outcome
}

// NewState returns the initial, empty Live state
func NewState() State {
	return State{mode: Live}
}

// Mode returns the current mode
func (s State) Mode() Mode {
	return s.mode
}

// EnterRestored switches to Restored, viewing data and keeping the raw
// snapshot events. The selection is cleared.
func (s State) EnterRestored(events []*nostr.Event, data profile.Data) State {
	next := s
	next.mode = Restored
	next.restored = data
	next.restoredEvents = append([]*nostr.Event(nil), events...)
	next.selected = nil
	return next
}

// ExitRestored switches back to Live and discards the restored data. The live
// data is whatever the last fetch produced.
func (s State) ExitRestored() State {
	next := s
	next.mode = Live
	next.restored = nil
	next.restoredEvents = nil
	next.selected = nil
	return next
}

// WithLive records a fetch result. The selection is reset when the source
// changes. While Restored the new data is kept but not exposed.
func (s State) WithLive(source string, data profile.Data) State {
	next := s
	if source != s.liveSource && s.mode == Live {
		next.selected = nil
	}
	next.liveSource = source
	next.live = data
	return next
}

// WithOutcome records the last sync outcome
func (s State) WithOutcome(o *sync.Outcome) State {
	next := s
	next.outcome = o
	return next
}

// View returns the data downstream consumers should see and its source label.
// Restored data is authoritative until ExitRestored.
func (s State) View() (profile.Data, string) {
	if s.mode == Restored {
		return s.restored, RestoredSource
	}
	return s.live, s.liveSource
}

// RestoredEvents returns the raw events of the loaded snapshot
func (s State) RestoredEvents() []*nostr.Event {
	return append([]*nostr.Event(nil), s.restoredEvents...)
}

// LiveSource returns the relay the live data was fetched from
func (s State) LiveSource() string {
	return s.liveSource
}

// Outcome returns the last sync outcome, or nil
func (s State) Outcome() *sync.Outcome {
	return s.outcome
}

// Select replaces the selection with the given event ids
func (s State) Select(ids ...string) State {
	next := s
	next.selected = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		next.selected[id] = struct{}{}
	}
	return next
}

// SelectKinds selects the viewed events of the given kinds
func (s State) SelectKinds(ks ...int) State {
	want := make(map[int]bool, len(ks))
	for _, k := range ks {
		want[k] = true
	}

	data, _ := s.View()
	ids := make([]string, 0, len(ks))
	for _, ev := range data.Events() {
		if want[ev.Kind] {
			ids = append(ids, ev.ID)
		}
	}
	return s.Select(ids...)
}

// SelectAll selects every viewed event
func (s State) SelectAll() State {
	data, _ := s.View()
	ids := make([]string, 0, data.Len())
	for _, ev := range data.Events() {
		ids = append(ids, ev.ID)
	}
	return s.Select(ids...)
}

// Selected resolves the selection against the current view, in kind order.
// Ids that are not in view are ignored.
func (s State) Selected() []*nostr.Event {
	data, _ := s.View()
	out := make([]*nostr.Event, 0, len(s.selected))
	for _, ev := range data.Events() {
		if _, ok := s.selected[ev.ID]; ok {
			out = append(out, ev)
		}
	}
	return out
}
