package nostrtest

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
)

// Keypair returns a fresh secret key and its public key
func Keypair(t testing.TB) (sk, pk string) {
	t.Helper()
	sk = nostr.GeneratePrivateKey()
	pk, err := nostr.GetPublicKey(sk)
	if err != nil {
		t.Fatalf("failed to derive public key: %v", err)
	}
	return sk, pk
}

// SignedEvent builds and signs an event of kind at createdAt
func SignedEvent(t testing.TB, sk string, kind int, createdAt int64, content string, tags ...nostr.Tag) *nostr.Event {
	t.Helper()
	ev := &nostr.Event{
		Kind:      kind,
		CreatedAt: nostr.Timestamp(createdAt),
		Tags:      nostr.Tags(tags),
		Content:   content,
	}
	if ev.Tags == nil {
		ev.Tags = nostr.Tags{}
	}
	if err := ev.Sign(sk); err != nil {
		t.Fatalf("failed to sign event: %v", err)
	}
	return ev
}
