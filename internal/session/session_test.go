package session

import (
	"context"
	"errors"
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sandwichfarm/syncstr/internal/backup"
	"github.com/sandwichfarm/syncstr/internal/config"
	"github.com/sandwichfarm/syncstr/internal/kinds"
	"github.com/sandwichfarm/syncstr/internal/nostr/nostrtest"
	"github.com/sandwichfarm/syncstr/internal/ops"
	"github.com/sandwichfarm/syncstr/internal/profile"
	"github.com/sandwichfarm/syncstr/internal/sync"
)

const (
	source = "wss://source.test"
	target = "wss://target.test"
)

type fixture struct {
	session *Session
	source  *nostrtest.Transport
	target  *nostrtest.Transport
	pubkey  string
	events  []*nostr.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sk, pk := nostrtest.Keypair(t)
	events := []*nostr.Event{
		nostrtest.SignedEvent(t, sk, 0, 1700000000, `{"name":"alice"}`),
		nostrtest.SignedEvent(t, sk, 3, 1700000000, ""),
		nostrtest.SignedEvent(t, sk, 10002, 1700000000, "", nostr.Tag{"r", target}),
	}

	src := &nostrtest.Transport{Events: events}
	dst := &nostrtest.Transport{}
	dialer := &nostrtest.Dialer{Transports: map[string]*nostrtest.Transport{source: src, target: dst}}

	cfg := config.Default()
	logger := ops.Discard()

	agg := profile.NewAggregator(nil, cfg, kinds.Default, logger, nil)
	agg.SetDialer(dialer.Dial)
	exec := sync.NewExecutor(nil, cfg, logger, nil)
	exec.SetDialer(dialer.Dial)

	return &fixture{
		session: New(agg, exec, backup.NewCodec(kinds.Default, ""), logger),
		source:  src,
		target:  dst,
		pubkey:  pk,
		events:  events,
	}
}

func TestSessionFetchAndSync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.session.Sync(ctx, target); !errors.Is(err, ErrNothingSelected) {
		t.Errorf("expected ErrNothingSelected, got %v", err)
	}

	data, err := f.session.Fetch(ctx, f.pubkey, source)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if data.Len() != 3 {
		t.Fatalf("expected 3 slots, got %d", data.Len())
	}

	f.session.SelectKinds(0, 10002)
	outcome, err := f.session.Sync(ctx, target)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if outcome.Status() != sync.StatusComplete || outcome.Total != 2 {
		t.Errorf("unexpected outcome %+v", outcome)
	}
	if f.session.State().Outcome() != outcome {
		t.Error("outcome not recorded in state")
	}

	ids := f.target.PublishedIDs()
	if len(ids) != 2 || ids[0] != f.events[0].ID || ids[1] != f.events[2].ID {
		t.Errorf("unexpected published events %v", ids)
	}
}

func TestSessionExportRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.session.Export(f.pubkey); !errors.Is(err, backup.ErrNoProfileData) {
		t.Errorf("expected ErrNoProfileData before fetching, got %v", err)
	}

	if _, err := f.session.Fetch(ctx, f.pubkey, source); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	snap, err := f.session.Export(f.pubkey)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	// Keep only the metadata event in the file
	snap.Events = snap.Events[:1]
	snap.Metadata.TotalEvents = 1
	raw, err := backup.NewCodec(kinds.Default, "").Marshal(snap, false)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.session.Restore(raw); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	st := f.session.State()
	data, label := st.View()
	if st.Mode() != Restored || label != RestoredSource || data.Len() != 1 {
		t.Errorf("expected restored view with 1 slot, got %s %q %d", st.Mode(), label, data.Len())
	}

	// Sync replays the restored set
	f.session.SelectAll()
	outcome, err := f.session.Sync(ctx, target)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if outcome.Total != 1 {
		t.Errorf("expected 1 restored event synced, got %d", outcome.Total)
	}

	st = f.session.ExitRestored()
	data, label = st.View()
	if st.Mode() != Live || label != source || data.Len() != 3 {
		t.Errorf("expected live view back, got %s %q %d", st.Mode(), label, data.Len())
	}
}

func TestSessionRestoreInvalid(t *testing.T) {
	f := newFixture(t)

	_, err := f.session.Restore([]byte(`{"version":"2.0.0","timestamp":1,"npub":"n","pubkey":"p","events":[]}`))
	var verr *backup.ValidationError
	if !errors.As(err, &verr) || verr.Code != backup.CodeUnsupportedVersion {
		t.Fatalf("expected unsupported version, got %v", err)
	}
	if f.session.State().Mode() != Live {
		t.Error("failed restore must not change mode")
	}
}
