package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

// ErrEmpty is returned when no identity was supplied.
var ErrEmpty = errors.New("identity is empty")

// Identity is a resolved profile owner.
type Identity struct {
	Pubkey string   // 64-char hex public key
	Npub   string   // NIP-19 encoding of Pubkey
	Relays []string // relay hints carried by an nprofile, if any
}

// Parse resolves a user-supplied identity. Accepts npub, nprofile, or hex,
// with or without a "nostr:" prefix.
func Parse(input string) (*Identity, error) {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "nostr:")
	if input == "" {
		return nil, ErrEmpty
	}

	if !strings.HasPrefix(input, "npub1") && !strings.HasPrefix(input, "nprofile1") {
		return FromPubkey(strings.ToLower(input))
	}

	prefix, decoded, err := nip19.Decode(input)
	if err != nil {
		return nil, fmt.Errorf("failed to decode NIP-19: %w", err)
	}

	switch prefix {
	case "npub":
		return FromPubkey(decoded.(string))

	case "nprofile":
		profile := decoded.(nostr.ProfilePointer)
		id, err := FromPubkey(profile.PublicKey)
		if err != nil {
			return nil, err
		}
		id.Relays = profile.Relays
		return id, nil

	default:
		return nil, fmt.Errorf("unsupported NIP-19 type for identity: %s", prefix)
	}
}

// FromPubkey builds an Identity from a hex public key.
func FromPubkey(pubkey string) (*Identity, error) {
	if !nostr.IsValidPublicKey(pubkey) {
		return nil, fmt.Errorf("invalid public key: %s", Short(pubkey))
	}

	npub, err := nip19.EncodePublicKey(pubkey)
	if err != nil {
		return nil, fmt.Errorf("failed to encode npub: %w", err)
	}

	return &Identity{Pubkey: pubkey, Npub: npub}, nil
}

// Short truncates a key for display.
func Short(key string) string {
	if len(key) <= 16 {
		return key
	}
	return key[:8] + "..." + key[len(key)-8:]
}

func (i *Identity) String() string {
	return i.Npub
}
