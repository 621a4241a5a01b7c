package sync

import (
	"fmt"

	"github.com/nbd-wtf/go-nostr"
)

// Status classifies a finished sync run
type Status string

const (
	StatusComplete Status = "complete"
	StatusPartial  Status = "partial"
	StatusFailed   Status = "failed"
)

// Result is the publish result of one event
type Result struct {
	Event     *nostr.Event
	Succeeded bool
	// Route that accepted the event, empty on failure
	Route string
	Err   error
}

// Outcome collects per-event results in input order.
// SuccessCount + ErrorCount == Total == len(Results) always holds.
type Outcome struct {
	Target       string
	Results      []Result
	SuccessCount int
	ErrorCount   int
	Total        int
}

func newOutcome(target string, n int) *Outcome {
	return &Outcome{
		Target:  target,
		Results: make([]Result, 0, n),
	}
}

func (o *Outcome) record(r Result) {
	o.Results = append(o.Results, r)
	o.Total++
	if r.Succeeded {
		o.SuccessCount++
	} else {
		o.ErrorCount++
	}
}

// Status returns complete, partial or failed
func (o *Outcome) Status() Status {
	switch {
	case o.ErrorCount == 0:
		return StatusComplete
	case o.SuccessCount > 0:
		return StatusPartial
	default:
		return StatusFailed
	}
}

// Summary renders a one-line result message
func (o *Outcome) Summary() string {
	switch o.Status() {
	case StatusComplete:
		return fmt.Sprintf("Successfully synced %d events", o.SuccessCount)
	case StatusPartial:
		return fmt.Sprintf("Synced %d/%d events. %d failed.", o.SuccessCount, o.Total, o.ErrorCount)
	default:
		return "Failed to sync any events to the target relay."
	}
}

// Failed returns the results that did not succeed
func (o *Outcome) Failed() []Result {
	var out []Result
	for _, r := range o.Results {
		if !r.Succeeded {
			out = append(out, r)
		}
	}
	return out
}
