package nostr

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip11"
)

// Probe error classes
const (
	ProbeErrTimeout = "timeout"
	ProbeErrNetwork = "network"
	ProbeErrInvalid = "invalid"
	ProbeErrOther   = "other"
)

// ProbeResult describes a relay connection test
type ProbeResult struct {
	URL       string
	Connected bool
	Latency   time.Duration
	ErrorKind string
	Err       error

	// From the NIP-11 relay information document, when served
	Name     string
	Software string
	Version  string
}

// Message returns a short human-readable status
func (r *ProbeResult) Message() string {
	if r.Connected {
		return "Connected"
	}
	switch r.ErrorKind {
	case ProbeErrInvalid:
		return "Invalid relay URL"
	case ProbeErrTimeout:
		return "Connection timeout"
	case ProbeErrNetwork:
		return "Network error"
	}
	if r.Err != nil {
		return r.Err.Error()
	}
	return "Connection failed"
}

// Probe checks that url answers a minimal query within timeout. Any answer,
// including zero events, counts as connected.
func Probe(ctx context.Context, url string, timeout time.Duration, dial Dialer) *ProbeResult {
	result := &ProbeResult{URL: url}

	if err := CheckRelayURL(url, true); err != nil {
		result.ErrorKind = ProbeErrInvalid
		result.Err = err
		return result
	}
	if dial == nil {
		dial = DefaultDialer
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	t, err := dial(probeCtx, url)
	if err == nil {
		defer t.Close()
		_, err = t.Query(probeCtx, nostr.Filter{Kinds: []int{1}, Limit: 1})
	}
	result.Latency = time.Since(start)

	if err != nil {
		result.Err = err
		result.ErrorKind = classifyProbeError(probeCtx, err)
		return result
	}
	result.Connected = true

	// Relay information is optional
	if info, err := nip11.Fetch(probeCtx, url); err == nil {
		result.Name = info.Name
		result.Software = info.Software
		result.Version = info.Version
	}

	return result
}

func classifyProbeError(ctx context.Context, err error) string {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return ProbeErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ProbeErrTimeout
		}
		return ProbeErrNetwork
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return ProbeErrTimeout
	case strings.Contains(msg, "network"), strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return ProbeErrNetwork
	}
	return ProbeErrOther
}
