package profile

import (
	"errors"
	"fmt"

	internalnostr "github.com/sandwichfarm/syncstr/internal/nostr"
)

// ErrEmptyIdentity is returned when no pubkey was given
var ErrEmptyIdentity = errors.New("identity is required")

// FetchError reports a profile fetch where every route failed.
type FetchError struct {
	Source   string
	Attempts []internalnostr.Attempt
	Cause    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch profile from %s after %d attempt(s): %v", e.Source, len(e.Attempts), e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}
