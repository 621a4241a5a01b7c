package kinds

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nbd-wtf/go-nostr"
)

// Slot names one field of a profile snapshot. Each slot holds at most one event.
type Slot string

const (
	Metadata     Slot = "metadata"
	Contacts     Slot = "contacts"
	MuteList     Slot = "muteList"
	PinnedNotes  Slot = "pinnedNotes"
	RelayList    Slot = "relayList"
	Bookmarks    Slot = "bookmarks"
	Communities  Slot = "communities"
	SearchRelays Slot = "searchRelays"
	Interests    Slot = "interests"
	EmojiList    Slot = "emojiList"
	DMRelays     Slot = "dmRelays"
)

// Entry binds an event kind to its slot.
type Entry struct {
	Kind  int
	Slot  Slot
	Label string
	// CountTags lists the tag names counted by Describe. Empty means no summary.
	CountTags []string
	Noun      string
}

// defaultEntries is the fixed profile kind set.
var defaultEntries = []Entry{
	{Kind: 0, Slot: Metadata, Label: "Profile Metadata"},
	{Kind: 3, Slot: Contacts, Label: "Contact List", CountTags: []string{"p"}, Noun: "contacts"},
	{Kind: 10000, Slot: MuteList, Label: "Mute List", CountTags: []string{"p", "t", "word", "e"}, Noun: "muted items"},
	{Kind: 10001, Slot: PinnedNotes, Label: "Pinned Notes", CountTags: []string{"e"}, Noun: "pinned notes"},
	{Kind: 10002, Slot: RelayList, Label: "Relay List", CountTags: []string{"r"}, Noun: "relays"},
	{Kind: 10003, Slot: Bookmarks, Label: "Bookmarks", CountTags: []string{"e", "a", "t", "r"}, Noun: "bookmarks"},
	{Kind: 10004, Slot: Communities, Label: "Communities", CountTags: []string{"a"}, Noun: "communities"},
	{Kind: 10007, Slot: SearchRelays, Label: "Search Relays", CountTags: []string{"relay"}, Noun: "search relays"},
	{Kind: 10015, Slot: Interests, Label: "Interests", CountTags: []string{"t", "a"}, Noun: "interests"},
	{Kind: 10030, Slot: EmojiList, Label: "Emoji List", CountTags: []string{"emoji", "a"}, Noun: "emojis/sets"},
	{Kind: 10050, Slot: DMRelays, Label: "DM Relays", CountTags: []string{"relay"}, Noun: "DM relays"},
}

// Table is an immutable kind→slot lookup shared by the aggregator, the
// snapshot codec and the session controller.
type Table struct {
	byKind map[int]Entry
	bySlot map[Slot]Entry
	kinds  []int
}

// Default is the table for the fixed profile kind set.
var Default = mustTable(defaultEntries)

func mustTable(entries []Entry) Table {
	t, err := NewTable(entries...)
	if err != nil {
		panic(err)
	}
	return t
}

// NewTable builds a table, rejecting duplicate kinds or slots.
func NewTable(entries ...Entry) (Table, error) {
	t := Table{
		byKind: make(map[int]Entry, len(entries)),
		bySlot: make(map[Slot]Entry, len(entries)),
		kinds:  make([]int, 0, len(entries)),
	}
	for _, e := range entries {
		if e.Slot == "" {
			return Table{}, fmt.Errorf("kind %d has no slot name", e.Kind)
		}
		if e.Kind < 0 {
			return Table{}, fmt.Errorf("invalid kind %d", e.Kind)
		}
		if prev, ok := t.byKind[e.Kind]; ok {
			return Table{}, fmt.Errorf("kind %d already mapped to slot %s", e.Kind, prev.Slot)
		}
		if prev, ok := t.bySlot[e.Slot]; ok {
			return Table{}, fmt.Errorf("slot %s already mapped to kind %d", e.Slot, prev.Kind)
		}
		t.byKind[e.Kind] = e
		t.bySlot[e.Slot] = e
		t.kinds = append(t.kinds, e.Kind)
	}
	sort.Ints(t.kinds)
	return t, nil
}

// With returns a copy of the table extended with extra entries.
func (t Table) With(extra ...Entry) (Table, error) {
	entries := make([]Entry, 0, len(t.kinds)+len(extra))
	for _, k := range t.kinds {
		entries = append(entries, t.byKind[k])
	}
	entries = append(entries, extra...)
	return NewTable(entries...)
}

// WithSlots extends the table from a kind→slot-name mapping (config form).
func (t Table) WithSlots(extra map[int]string) (Table, error) {
	if len(extra) == 0 {
		return t, nil
	}
	entries := make([]Entry, 0, len(extra))
	for kind, name := range extra {
		entries = append(entries, Entry{Kind: kind, Slot: Slot(name), Label: name})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Kind < entries[j].Kind })
	return t.With(entries...)
}

// Slot returns the slot for kind, or false when the kind is not tracked.
func (t Table) Slot(kind int) (Slot, bool) {
	e, ok := t.byKind[kind]
	return e.Slot, ok
}

// Kind returns the kind stored in slot.
func (t Table) Kind(slot Slot) (int, bool) {
	e, ok := t.bySlot[slot]
	return e.Kind, ok
}

// Entry returns the full entry for kind.
func (t Table) Entry(kind int) (Entry, bool) {
	e, ok := t.byKind[kind]
	return e, ok
}

// Kinds returns the tracked kinds in ascending order.
func (t Table) Kinds() []int {
	out := make([]int, len(t.kinds))
	copy(out, t.kinds)
	return out
}

// Slots returns the slots in kind order.
func (t Table) Slots() []Slot {
	out := make([]Slot, 0, len(t.kinds))
	for _, k := range t.kinds {
		out = append(out, t.byKind[k].Slot)
	}
	return out
}

// Len returns the number of tracked kinds.
func (t Table) Len() int {
	return len(t.kinds)
}

// Label returns a human-readable name for kind.
func (t Table) Label(kind int) string {
	if e, ok := t.byKind[kind]; ok && e.Label != "" {
		return e.Label
	}
	return fmt.Sprintf("Kind %d", kind)
}

// Describe summarises an event the way the profile card shows it:
// the display name for metadata, a tag count for lists.
func (t Table) Describe(event *nostr.Event) string {
	if event == nil {
		return ""
	}
	if event.Kind == 0 {
		return describeMetadata(event.Content)
	}

	e, ok := t.byKind[event.Kind]
	if !ok || len(e.CountTags) == 0 {
		return ""
	}

	n := 0
	for _, tag := range event.Tags {
		if len(tag) == 0 {
			continue
		}
		for _, name := range e.CountTags {
			if tag[0] == name {
				n++
				break
			}
		}
	}
	return fmt.Sprintf("%d %s", n, e.Noun)
}

// ParseKinds parses a comma separated kind list such as "0,3,10002".
func ParseKinds(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		k, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || k < 0 {
			return nil, fmt.Errorf("invalid kind %q", p)
		}
		out = append(out, k)
	}
	return out, nil
}
