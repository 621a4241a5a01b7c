package storage

import (
	"context"
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sandwichfarm/syncstr/internal/config"
	"github.com/sandwichfarm/syncstr/internal/nostr/nostrtest"
)

func setupTestStorage(t *testing.T, writable bool) *Storage {
	t.Helper()

	st, err := New(&config.Default().Serve, writable)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(st.Close)
	return st
}

func TestNew(t *testing.T) {
	st := setupTestStorage(t, false)

	if st.Relay() == nil {
		t.Fatal("expected relay to be initialized")
	}
	if st.Relay().Info.Name != "syncstr snapshot" {
		t.Errorf("unexpected relay name %q", st.Relay().Info.Name)
	}
	if st.Address() != "127.0.0.1:7447" {
		t.Errorf("unexpected address %s", st.Address())
	}
}

func TestLoadKeepsNewestReplaceable(t *testing.T) {
	ctx := context.Background()
	st := setupTestStorage(t, false)
	sk, pk := nostrtest.Keypair(t)

	older := nostrtest.SignedEvent(t, sk, 3, 1000, "")
	newer := nostrtest.SignedEvent(t, sk, 3, 2000, "")
	meta := nostrtest.SignedEvent(t, sk, 0, 1000, `{"name":"alice"}`)
	note := nostrtest.SignedEvent(t, sk, 1, 1000, "hello")

	tampered := nostrtest.SignedEvent(t, sk, 10002, 1000, "")
	tampered.Content = "changed after signing"

	loaded, skipped, err := st.Load(ctx, []*nostr.Event{newer, older, meta, note, note, tampered})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if skipped != 1 {
		t.Errorf("expected 1 skipped event, got %d", skipped)
	}
	if loaded != 5 {
		t.Errorf("expected 5 loaded events, got %d", loaded)
	}

	contacts, err := st.QueryEvents(ctx, nostr.Filter{Kinds: []int{3}, Authors: []string{pk}})
	if err != nil {
		t.Fatalf("QueryEvents failed: %v", err)
	}
	if len(contacts) != 1 || contacts[0].ID != newer.ID {
		t.Errorf("expected only the newest contact list, got %d events", len(contacts))
	}

	count, err := st.Count(ctx, nostr.Filter{Authors: []string{pk}})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 stored events, got %d", count)
	}
}

func TestRejectWrites(t *testing.T) {
	ev := &nostr.Event{Kind: 0}

	if reject, msg := setupTestStorage(t, false).rejectWrites(context.Background(), ev); !reject || msg == "" {
		t.Error("read-only relay should reject events")
	}
	if reject, _ := setupTestStorage(t, true).rejectWrites(context.Background(), ev); reject {
		t.Error("writable relay should accept events")
	}
}
