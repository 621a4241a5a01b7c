package session

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sandwichfarm/syncstr/internal/kinds"
	"github.com/sandwichfarm/syncstr/internal/profile"
	"github.com/sandwichfarm/syncstr/internal/sync"
)

func event(id string, kind int) *nostr.Event {
	return &nostr.Event{ID: id, Kind: kind, CreatedAt: 1}
}

func restoredFrom(events ...*nostr.Event) ([]*nostr.Event, profile.Data) {
	return events, profile.Fold(events, kinds.Default)
}

func TestBackupModeScenario(t *testing.T) {
	live := profile.Fold([]*nostr.Event{event("live-meta", 0)}, kinds.Default)
	st := NewState().WithLive("wss://source.test", live)

	if st.Mode() != Live {
		t.Fatalf("expected Live initial mode, got %s", st.Mode())
	}

	e1, e2 := event("e1", 3), event("e2", 10002)
	restored := st.EnterRestored([]*nostr.Event{e1, e2}, profile.Fold([]*nostr.Event{e1, e2}, kinds.Default))

	data, source := restored.View()
	if restored.Mode() != Restored || source != RestoredSource {
		t.Errorf("expected restored view, got %s / %q", restored.Mode(), source)
	}
	if data.Len() != 2 || data.Get(kinds.Contacts) != e1 || data.Get(kinds.RelayList) != e2 {
		t.Errorf("restored view should hold only e1 and e2, got %v", data)
	}
	if data.Get(kinds.Metadata) != nil {
		t.Error("live data leaked into restored view")
	}

	// Live data fetched while restored is not observed
	shadowed := restored.WithLive("wss://source.test", profile.Fold([]*nostr.Event{event("new-meta", 0)}, kinds.Default))
	if d, _ := shadowed.View(); d.Get(kinds.Metadata) != nil {
		t.Error("restored data must stay authoritative")
	}

	back := shadowed.ExitRestored()
	data, source = back.View()
	if back.Mode() != Live || source != "wss://source.test" {
		t.Errorf("expected live view, got %s / %q", back.Mode(), source)
	}
	if data.Len() != 1 || data.Get(kinds.Metadata).ID != "new-meta" {
		t.Errorf("expected last live data, got %v", data)
	}
	if len(back.RestoredEvents()) != 0 {
		t.Error("restored events should be discarded")
	}

	// Transitions never modify their receiver
	if st.Mode() != Live {
		t.Error("EnterRestored modified its receiver")
	}
	if d, _ := restored.View(); d.Len() != 2 {
		t.Error("ExitRestored modified an earlier state")
	}
}

func TestExitRestoredWithoutLiveData(t *testing.T) {
	st := NewState().EnterRestored(restoredFrom(event("e1", 0))).ExitRestored()

	data, source := st.View()
	if data.Len() != 0 || source != "" {
		t.Errorf("expected empty live view, got %v / %q", data, source)
	}
}

func TestSelection(t *testing.T) {
	events := []*nostr.Event{event("meta", 0), event("follows", 3), event("relays", 10002)}
	st := NewState().WithLive("wss://a.test", profile.Fold(events, kinds.Default))

	tests := []struct {
		name  string
		state State
		want  []string
	}{
		{"none", st, nil},
		{"all", st.SelectAll(), []string{"meta", "follows", "relays"}},
		{"by id ignores unknown", st.Select("relays", "missing"), []string{"relays"}},
		{"by kind", st.SelectKinds(3, 10002), []string{"follows", "relays"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.state.Selected()
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %d events", tt.want, len(got))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("position %d: expected %s, got %s", i, id, got[i].ID)
				}
			}
		})
	}
}

func TestSelectionReset(t *testing.T) {
	data := profile.Fold([]*nostr.Event{event("meta", 0)}, kinds.Default)
	st := NewState().WithLive("wss://a.test", data).SelectAll()

	if len(st.WithLive("wss://a.test", data).Selected()) != 1 {
		t.Error("refetching the same source should keep the selection")
	}
	if len(st.WithLive("wss://b.test", data).Selected()) != 0 {
		t.Error("changing the source should reset the selection")
	}
	if len(st.EnterRestored(restoredFrom(event("meta", 0))).Selected()) != 0 {
		t.Error("entering restored mode should reset the selection")
	}
}

func TestWithOutcome(t *testing.T) {
	o := &sync.Outcome{Total: 1, SuccessCount: 1}
	st := NewState().WithOutcome(o)
	if st.Outcome() != o {
		t.Error("expected outcome to be recorded")
	}
	if NewState().Outcome() != nil {
		t.Error("initial state has no outcome")
	}
}

func TestEnterRestoredUsesImportedData(t *testing.T) {
	meta, note := event("meta", 0), event("note", 1)
	imported := profile.Data{kinds.Metadata: meta}

	st := NewState().EnterRestored([]*nostr.Event{meta, note}, imported)

	data, _ := st.View()
	if data.Len() != 1 || data.Get(kinds.Metadata) != meta {
		t.Errorf("expected the imported data as the view, got %v", data)
	}

	// Raw events keep kinds the table does not map
	raw := st.RestoredEvents()
	if len(raw) != 2 || raw[1] != note {
		t.Errorf("expected both snapshot events, got %v", raw)
	}
}
