package profile

import (
	"sort"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sandwichfarm/syncstr/internal/kinds"
)

// Data holds at most one event per slot: the newest event of the slot's kind.
type Data map[kinds.Slot]*nostr.Event

// Fold builds profile data from a batch of events. Kinds not in the table are
// dropped. For repeated kinds the greatest created_at wins; on a tie the event
// seen later in the batch wins.
func Fold(events []*nostr.Event, table kinds.Table) Data {
	data := make(Data)
	for _, ev := range events {
		if ev == nil {
			continue
		}
		slot, ok := table.Slot(ev.Kind)
		if !ok {
			continue
		}
		if cur, ok := data[slot]; ok && cur.CreatedAt > ev.CreatedAt {
			continue
		}
		data[slot] = ev
	}
	return data
}

// Len returns the number of populated slots
func (d Data) Len() int {
	return len(d)
}

// Get returns the event in slot, or nil
func (d Data) Get(slot kinds.Slot) *nostr.Event {
	return d[slot]
}

// Events returns the populated events ordered by kind.
func (d Data) Events() []*nostr.Event {
	out := make([]*nostr.Event, 0, len(d))
	for _, ev := range d {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// ByID finds a populated event by id
func (d Data) ByID(id string) (*nostr.Event, bool) {
	for _, ev := range d {
		if ev.ID == id {
			return ev, true
		}
	}
	return nil, false
}
