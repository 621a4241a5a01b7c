package nostr

import (
	"fmt"
	"strings"

	"github.com/nbd-wtf/go-nostr"
)

// RelayHint is one entry of a NIP-65 relay list
type RelayHint struct {
	Pubkey    string
	Relay     string
	CanRead   bool
	CanWrite  bool
	Freshness int64
}

// ParseRelayHints extracts relay hints from a NIP-65 kind 10002 event
func ParseRelayHints(event *nostr.Event) ([]*RelayHint, error) {
	if event == nil {
		return nil, fmt.Errorf("no relay list event")
	}
	if event.Kind != 10002 {
		return nil, fmt.Errorf("expected kind 10002, got %d", event.Kind)
	}

	hints := make([]*RelayHint, 0, len(event.Tags))

	for _, tag := range event.Tags {
		if len(tag) < 2 || tag[0] != "r" {
			continue
		}

		relay := strings.TrimSpace(tag[1])
		if relay == "" {
			continue
		}

		hint := &RelayHint{
			Pubkey:    event.PubKey,
			Relay:     relay,
			CanRead:   true,
			CanWrite:  true,
			Freshness: int64(event.CreatedAt),
		}

		// Check for read/write markers
		if len(tag) >= 3 {
			switch strings.ToLower(tag[2]) {
			case "read":
				hint.CanWrite = false
			case "write":
				hint.CanRead = false
			}
		}

		hints = append(hints, hint)
	}

	return hints, nil
}

// OutboxRelays returns the normalized write relays of a relay list, without
// duplicates, in list order. Addresses that fail validation are skipped.
func OutboxRelays(hints []*RelayHint, allowInsecure bool) []string {
	seen := make(map[string]bool)
	var out []string
	for _, h := range hints {
		if !h.CanWrite {
			continue
		}
		url := NormalizeRelayURL(h.Relay)
		if seen[url] || CheckRelayURL(url, allowInsecure) != nil {
			continue
		}
		seen[url] = true
		out = append(out, url)
	}
	return out
}
