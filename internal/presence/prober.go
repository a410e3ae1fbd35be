// Package presence decides whether watched devices are on the network
// and when a detection counts as a new arrival.
package presence

import (
	"context"
	"errors"
	"math"
	"os/exec"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Prober reports whether an address answers a reachability probe.
// A failed or inconclusive probe is reported as absent.
type Prober interface {
	Probe(ctx context.Context, address string) bool
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, address string) bool

// Probe calls f(ctx, address).
func (f ProberFunc) Probe(ctx context.Context, address string) bool {
	return f(ctx, address)
}

// PingProber probes by running the system ping binary once.
type PingProber struct {
	Binary  string
	Count   int
	Timeout time.Duration
}

// NewPingProber creates a prober with defaults for empty values.
func NewPingProber(binary string, count int, timeout time.Duration) *PingProber {
	if binary == "" {
		binary = "ping"
	}
	if count <= 0 {
		count = 1
	}
	if timeout <= 0 {
		timeout = time.Second
	}
	return &PingProber{Binary: binary, Count: count, Timeout: timeout}
}

// Args returns the ping arguments for an address.
// -w is the overall deadline in whole seconds, rounded up.
func (p *PingProber) Args(address string) []string {
	deadline := int(math.Ceil(p.Timeout.Seconds()))
	if deadline < 1 {
		deadline = 1
	}
	return []string{
		"-c", strconv.Itoa(p.Count),
		"-w", strconv.Itoa(deadline),
		address,
	}
}

// Probe runs a single ping. No retries: packet loss reads as absence
// and corrects itself on the next poll.
func (p *PingProber) Probe(ctx context.Context, address string) bool {
	// Hard stop slightly after ping's own deadline in case it hangs on DNS.
	ctx, cancel := context.WithTimeout(ctx, p.Timeout+2*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.Binary, p.Args(address)...)
	err := cmd.Run()
	if err == nil {
		return true
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		log.Debug().Str("address", address).Int("exit_code", exitErr.ExitCode()).Msg("Probe got no reply")
	} else {
		log.Warn().Err(err).Str("address", address).Str("binary", p.Binary).Msg("Probe could not run")
	}
	return false
}
