package backup

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	"github.com/nbd-wtf/go-nostr"
	"github.com/sandwichfarm/syncstr/internal/kinds"
	"github.com/sandwichfarm/syncstr/internal/nostr/nostrtest"
	"github.com/sandwichfarm/syncstr/internal/profile"
)

func testProfile(t *testing.T) (profile.Data, string) {
	t.Helper()
	sk, pk := nostrtest.Keypair(t)
	events := []*nostr.Event{
		nostrtest.SignedEvent(t, sk, 0, 1700000000, `{"name":"alice"}`),
		nostrtest.SignedEvent(t, sk, 3, 1700000001, "", nostr.Tag{"p", pk}),
		nostrtest.SignedEvent(t, sk, 10002, 1700000002, "", nostr.Tag{"r", "wss://relay.test", "write"}),
	}
	return profile.Fold(events, kinds.Default), pk
}

func TestExport(t *testing.T) {
	data, pk := testProfile(t)
	codec := NewCodec(kinds.Default, "")
	now := time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)

	snap, err := codec.Export(data, pk, now)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if snap.Version != "1.0.0" {
		t.Errorf("unexpected version %s", snap.Version)
	}
	if snap.Timestamp != now.UnixMilli() {
		t.Errorf("unexpected timestamp %d", snap.Timestamp)
	}
	if !strings.HasPrefix(snap.Npub, "npub1") || snap.Pubkey != pk {
		t.Errorf("unexpected identity %s / %s", snap.Npub, snap.Pubkey)
	}
	if snap.Metadata.TotalEvents != len(snap.Events) || len(snap.Events) != 3 {
		t.Errorf("total %d does not match %d events", snap.Metadata.TotalEvents, len(snap.Events))
	}
	if snap.Metadata.EventCounts[0] != 1 || snap.Metadata.EventCounts[10002] != 1 {
		t.Errorf("unexpected counts %v", snap.Metadata.EventCounts)
	}
	if snap.Metadata.CreatedAt != "2024-03-05T10:30:00.000Z" {
		t.Errorf("unexpected createdAt %s", snap.Metadata.CreatedAt)
	}
}

func TestExportErrors(t *testing.T) {
	codec := NewCodec(kinds.Default, "")

	if _, err := codec.Export(profile.Data{}, "ab", time.Now()); !errors.Is(err, ErrNoProfileData) {
		t.Errorf("expected ErrNoProfileData, got %v", err)
	}

	data, _ := testProfile(t)
	if _, err := codec.Export(data, "not-hex", time.Now()); err == nil {
		t.Error("expected error for invalid pubkey")
	}
}

func TestRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "zstd"
		}
		t.Run(name, func(t *testing.T) {
			data, pk := testProfile(t)
			codec := NewCodec(kinds.Default, "")

			snap, err := codec.Export(data, pk, time.Now())
			if err != nil {
				t.Fatalf("Export failed: %v", err)
			}
			raw, err := codec.Marshal(snap, compress)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if compress != bytes.HasPrefix(raw, zstdMagic) {
				t.Errorf("compressed=%v but magic prefix mismatch", compress)
			}

			restored, back, err := codec.Import(raw)
			if err != nil {
				t.Fatalf("Import failed: %v", err)
			}

			if restored.Len() != data.Len() {
				t.Fatalf("expected %d slots, got %d", data.Len(), restored.Len())
			}
			for slot, want := range data {
				got := restored.Get(slot)
				if got == nil {
					t.Errorf("slot %s missing after import", slot)
					continue
				}
				if got.ID != want.ID || got.Sig != want.Sig || got.PubKey != want.PubKey ||
					got.Kind != want.Kind || got.CreatedAt != want.CreatedAt ||
					got.Content != want.Content || len(got.Tags) != len(want.Tags) {
					t.Errorf("slot %s differs:\n got %+v\nwant %+v", slot, got, want)
				}
				if ok, err := got.CheckSignature(); err != nil || !ok {
					t.Errorf("slot %s: signature no longer verifies", slot)
				}
			}

			if back.Npub != snap.Npub || back.Pubkey != pk || back.Version != Version {
				t.Errorf("unexpected snapshot header %+v", back)
			}
		})
	}
}

// snapshotJSON returns a valid snapshot document as a generic map for mutation
func snapshotJSON(t *testing.T) map[string]any {
	t.Helper()
	data, pk := testProfile(t)
	codec := NewCodec(kinds.Default, "")
	snap, err := codec.Export(data, pk, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	raw, err := codec.Marshal(snap, false)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}
	return doc
}

func encode(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestImportVersions(t *testing.T) {
	tests := []struct {
		version any
		wantErr bool
	}{
		{"1.0.0", false},
		{"1.5.0", false},
		{"2.0.0", true},
		{"0.9", true},
		{1.0, true},
	}

	codec := NewCodec(kinds.Default, "")
	for _, tt := range tests {
		t.Run(strings.TrimSpace(string(encode(t, tt.version))), func(t *testing.T) {
			doc := snapshotJSON(t)
			doc["version"] = tt.version

			data, _, err := codec.Import(encode(t, doc))
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("expected import to succeed, got %v", err)
				}
				if data.Len() != 3 {
					t.Errorf("expected 3 slots, got %d", data.Len())
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Code != CodeUnsupportedVersion {
				t.Fatalf("expected unsupported version error, got %v", err)
			}
			if !strings.Contains(err.Error(), "version not supported") {
				t.Errorf("unexpected message %q", err.Error())
			}
			if data != nil {
				t.Error("no data expected on failure")
			}
		})
	}
}

func TestImportValidation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(doc map[string]any)
		raw      []byte
		code     string
		field    string
		index    int
		contains string
	}{
		{
			name:     "not json",
			raw:      []byte("not json at all"),
			code:     CodeNotObject,
			index:    -1,
			contains: "not a valid JSON object",
		},
		{
			name:  "array",
			raw:   []byte(`[1,2,3]`),
			code:  CodeNotObject,
			index: -1,
		},
		{
			name:  "scalar",
			raw:   []byte(`"hello"`),
			code:  CodeNotObject,
			index: -1,
		},
		{
			name:     "missing npub",
			mutate:   func(doc map[string]any) { delete(doc, "npub") },
			code:     CodeMissingField,
			field:    "npub",
			index:    -1,
			contains: "missing required fields",
		},
		{
			name:   "empty pubkey counts as missing",
			mutate: func(doc map[string]any) { doc["pubkey"] = "" },
			code:   CodeMissingField,
			field:  "pubkey",
			index:  -1,
		},
		{
			name:   "zero timestamp counts as missing",
			mutate: func(doc map[string]any) { doc["timestamp"] = 0 },
			code:   CodeMissingField,
			field:  "timestamp",
			index:  -1,
		},
		{
			name:   "missing version checked before version value",
			mutate: func(doc map[string]any) { delete(doc, "version"); doc["events"] = "x" },
			code:   CodeMissingField,
			field:  "version",
			index:  -1,
		},
		{
			name:     "events not array",
			mutate:   func(doc map[string]any) { doc["events"] = map[string]any{"0": 1} },
			code:     CodeEventsNotArray,
			field:    "events",
			index:    -1,
			contains: "events must be an array",
		},
		{
			name: "third event missing sig",
			mutate: func(doc map[string]any) {
				delete(doc["events"].([]any)[2].(map[string]any), "sig")
			},
			code:     CodeMalformedEvent,
			field:    "sig",
			index:    2,
			contains: "events are malformed",
		},
		{
			name: "kind as string",
			mutate: func(doc map[string]any) {
				doc["events"].([]any)[0].(map[string]any)["kind"] = "0"
			},
			code:  CodeMalformedEvent,
			field: "kind",
			index: 0,
		},
		{
			name: "event not object",
			mutate: func(doc map[string]any) {
				doc["events"].([]any)[1] = "event"
			},
			code:  CodeMalformedEvent,
			index: 1,
		},
	}

	codec := NewCodec(kinds.Default, "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := tt.raw
			if tt.mutate != nil {
				doc := snapshotJSON(t)
				tt.mutate(doc)
				raw = encode(t, doc)
			}

			data, snap, err := codec.Import(raw)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Code != tt.code {
				t.Errorf("expected code %s, got %s (%v)", tt.code, verr.Code, err)
			}
			if tt.field != "" && verr.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, verr.Field)
			}
			if verr.Index != tt.index {
				t.Errorf("expected index %d, got %d", tt.index, verr.Index)
			}
			if tt.contains != "" && !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("expected message to contain %q, got %q", tt.contains, err.Error())
			}
			if data != nil || snap != nil {
				t.Error("no partial import expected")
			}
		})
	}
}

func TestImportCorruptCompressed(t *testing.T) {
	raw := append(append([]byte{}, zstdMagic...), []byte("garbage")...)
	_, _, err := NewCodec(kinds.Default, "").Import(raw)

	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Code != CodeCorrupt {
		t.Fatalf("expected corrupt error, got %v", err)
	}
}

func TestImportRejectsOversizedCompressed(t *testing.T) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	raw := enc.EncodeAll(make([]byte, maxInflatedSize+1), nil)
	enc.Close()

	if len(raw) > 1<<20 {
		t.Fatalf("expected a small compressed input, got %d bytes", len(raw))
	}

	_, _, err = NewCodec(kinds.Default, "").Import(raw)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Code != CodeCorrupt {
		t.Fatalf("expected corrupt error for oversized input, got %v", err)
	}
}

func TestImportDropsUnknownKinds(t *testing.T) {
	doc := snapshotJSON(t)
	sk, _ := nostrtest.Keypair(t)
	note := nostrtest.SignedEvent(t, sk, 1, 1700000000, "hello")

	var noteDoc map[string]any
	if err := json.Unmarshal(encode(t, note), &noteDoc); err != nil {
		t.Fatal(err)
	}
	doc["events"] = append(doc["events"].([]any), noteDoc)

	data, snap, err := NewCodec(kinds.Default, "").Import(encode(t, doc))
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if data.Len() != 3 {
		t.Errorf("expected 3 slots, got %d", data.Len())
	}
	if len(snap.Events) != 4 || snap.Metadata.TotalEvents != 4 {
		t.Errorf("snapshot should keep all events, got %d", len(snap.Events))
	}
}

func TestFilename(t *testing.T) {
	date := time.Date(2024, 3, 5, 23, 0, 0, 0, time.UTC)
	npub := "npub1qqqqqqqqqqqqqqqqqqqq"

	tests := []struct {
		product    string
		compressed bool
		want       string
	}{
		{"", false, "syncstr-backup-npub1qqqqqqq-2024-03-05.json"},
		{"", true, "syncstr-backup-npub1qqqqqqq-2024-03-05.json.zst"},
		{"mirror", false, "mirror-backup-npub1qqqqqqq-2024-03-05.json"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := NewCodec(kinds.Default, tt.product).Filename(npub, date, tt.compressed)
			if got != tt.want {
				t.Errorf("Filename() = %s, want %s", got, tt.want)
			}
		})
	}
}
