package nostr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nbd-wtf/go-nostr"
)

// ErrInvalidAddress is returned for relay addresses that fail validation
var ErrInvalidAddress = errors.New("invalid relay address")

// NormalizeRelayURL trims input and adds wss:// to bare domains such as
// "relay.example".
func NormalizeRelayURL(input string) string {
	s := strings.TrimSpace(input)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") && strings.Contains(s, ".") {
		s = "wss://" + s
	}
	return s
}

// CheckRelayURL requires a wss:// address, or ws:// when allowInsecure is set.
func CheckRelayURL(url string, allowInsecure bool) error {
	switch {
	case strings.HasPrefix(url, "wss://"):
	case strings.HasPrefix(url, "ws://"):
		if !allowInsecure {
			return fmt.Errorf("%w: %s (insecure ws:// not allowed)", ErrInvalidAddress, url)
		}
	default:
		return fmt.Errorf("%w: %q (must start with wss://)", ErrInvalidAddress, url)
	}

	if !nostr.IsValidRelayURL(url) {
		return fmt.Errorf("%w: %s", ErrInvalidAddress, url)
	}
	return nil
}
