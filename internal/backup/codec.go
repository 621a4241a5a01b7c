package backup

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
	"github.com/sandwichfarm/syncstr/internal/kinds"
	"github.com/sandwichfarm/syncstr/internal/profile"
	"github.com/tidwall/gjson"
)

// Version is written into every exported snapshot
const Version = "1.0.0"

// SupportedMajor is the version prefix accepted on import
const SupportedMajor = "1."

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// maxInflatedSize caps the decoded size of a compressed snapshot
const maxInflatedSize = 32 << 20

// Snapshot is the offline form of a profile
type Snapshot struct {
	Version   string         `json:"version"`
	Timestamp int64          `json:"timestamp"` // unix milliseconds
	Npub      string         `json:"npub"`
	Pubkey    string         `json:"pubkey"`
	Events    []*nostr.Event `json:"events"`
	Metadata  Metadata       `json:"metadata"`
}

// Metadata summarises the snapshot contents
type Metadata struct {
	EventCounts map[int]int `json:"eventCounts"`
	TotalEvents int         `json:"totalEvents"`
	CreatedAt   string      `json:"createdAt"`
}

// Codec converts between profile data and snapshot files
type Codec struct {
	table   kinds.Table
	product string
}

// NewCodec creates a codec folding through table. Product prefixes filenames.
func NewCodec(table kinds.Table, product string) *Codec {
	if product == "" {
		product = "syncstr"
	}
	return &Codec{table: table, product: product}
}

// Export builds a snapshot of data owned by pubkey. It does no I/O.
func (c *Codec) Export(data profile.Data, pubkey string, now time.Time) (*Snapshot, error) {
	if data.Len() == 0 {
		return nil, ErrNoProfileData
	}

	npub, err := nip19.EncodePublicKey(pubkey)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pubkey: %w", err)
	}

	events := data.Events()
	counts := make(map[int]int, len(events))
	for _, ev := range events {
		counts[ev.Kind]++
	}

	now = now.UTC()
	return &Snapshot{
		Version:   Version,
		Timestamp: now.UnixMilli(),
		Npub:      npub,
		Pubkey:    pubkey,
		Events:    events,
		Metadata: Metadata{
			EventCounts: counts,
			TotalEvents: len(events),
			CreatedAt:   now.Format("2006-01-02T15:04:05.000Z07:00"),
		},
	}, nil
}

// Marshal encodes s as indented JSON, zstd-compressed when compress is set
func (c *Codec) Marshal(s *Snapshot, compress bool) ([]byte, error) {
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if !compress {
		return out, nil
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(out, nil), nil
}

// Import validates raw and rebuilds profile data from its events. Compressed
// input is detected and inflated. The first defect rejects the whole file.
func (c *Codec) Import(raw []byte) (profile.Data, *Snapshot, error) {
	if bytes.HasPrefix(raw, zstdMagic) {
		inflated, err := inflate(raw)
		if err != nil {
			return nil, nil, &ValidationError{Code: CodeCorrupt, Index: -1, Detail: err.Error()}
		}
		raw = inflated
	}

	if !gjson.ValidBytes(raw) {
		return nil, nil, invalid(CodeNotObject, "")
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, nil, invalid(CodeNotObject, "")
	}

	for _, field := range []string{"version", "timestamp", "npub", "pubkey", "events"} {
		if !truthy(root.Get(field)) {
			return nil, nil, invalid(CodeMissingField, field)
		}
	}

	version := root.Get("version")
	if version.Type != gjson.String || !strings.HasPrefix(version.Str, SupportedMajor) {
		verr := invalid(CodeUnsupportedVersion, "version")
		verr.Detail = version.String()
		return nil, nil, verr
	}

	eventsField := root.Get("events")
	if !eventsField.IsArray() {
		return nil, nil, invalid(CodeEventsNotArray, "events")
	}

	elems := eventsField.Array()
	events := make([]*nostr.Event, 0, len(elems))
	for i, elem := range elems {
		ev, err := decodeEvent(elem)
		if err != nil {
			err.Index = i
			return nil, nil, err
		}
		events = append(events, ev)
	}

	snap := &Snapshot{
		Version:   version.Str,
		Timestamp: root.Get("timestamp").Int(),
		Npub:      root.Get("npub").String(),
		Pubkey:    root.Get("pubkey").String(),
		Events:    events,
		Metadata:  readMetadata(root.Get("metadata"), events),
	}

	return profile.Fold(events, c.table), snap, nil
}

// decodeEvent checks the fields a replayable event needs, then decodes it
func decodeEvent(elem gjson.Result) (*nostr.Event, *ValidationError) {
	if !elem.IsObject() {
		return nil, &ValidationError{Code: CodeMalformedEvent, Detail: "not an object"}
	}
	for _, field := range []string{"id", "pubkey", "kind", "created_at", "sig"} {
		v := elem.Get(field)
		ok := truthy(v)
		if field == "kind" {
			ok = v.Type == gjson.Number
		}
		if !ok {
			return nil, &ValidationError{Code: CodeMalformedEvent, Field: field}
		}
	}

	var ev nostr.Event
	if err := json.Unmarshal([]byte(elem.Raw), &ev); err != nil {
		return nil, &ValidationError{Code: CodeMalformedEvent, Detail: err.Error()}
	}
	return &ev, nil
}

// truthy mirrors the loose presence check older snapshot readers used:
// null, false, 0 and "" count as missing.
func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null:
		return false
	case gjson.False:
		return false
	case gjson.Number:
		return v.Num != 0
	case gjson.String:
		return v.Str != ""
	}
	return v.Exists()
}

// readMetadata keeps the stored creation time and recounts the events
func readMetadata(v gjson.Result, events []*nostr.Event) Metadata {
	md := Metadata{
		EventCounts: make(map[int]int),
		TotalEvents: len(events),
		CreatedAt:   v.Get("createdAt").String(),
	}
	for _, ev := range events {
		md.EventCounts[ev.Kind]++
	}
	return md
}

func inflate(raw []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxInflatedSize))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(raw, nil)
}

// Filename returns <product>-backup-<npub prefix>-<YYYY-MM-DD>.json, with a
// .zst suffix for compressed snapshots.
func (c *Codec) Filename(npub string, date time.Time, compressed bool) string {
	prefix := npub
	if len(prefix) > 12 {
		prefix = prefix[:12]
	}
	name := fmt.Sprintf("%s-backup-%s-%s.json", c.product, prefix, date.UTC().Format("2006-01-02"))
	if compressed {
		name += ".zst"
	}
	return name
}
