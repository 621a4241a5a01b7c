package nostr

import "fmt"

// PublishError is a failed publish of one event through one route.
type PublishError struct {
	Route   string
	Relay   string
	EventID string
	Kind    int
	Cause   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish event %s (kind %d) to %s via %s route: %v",
		shortID(e.EventID), e.Kind, e.Relay, e.Route, e.Cause)
}

func (e *PublishError) Unwrap() error {
	return e.Cause
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
