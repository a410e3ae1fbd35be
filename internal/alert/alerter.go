package alert

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Action is what to do with the selected lights.
type Action string

const (
	ActionFlash  Action = "flash"
	ActionToggle Action = "toggle"
)

// Target describes how to signal one device.
type Target struct {
	Device   string
	Color    []float32
	Strategy Strategy
	Action   Action
}

// Result describes a completed alert.
type Result struct {
	ID       string
	Device   string
	Action   Action
	Lights   []string
	Duration time.Duration
}

// Alerter selects lights for a target and runs its action on them.
type Alerter struct {
	mu      sync.Mutex // at most one sequence runs at a time
	bridge  Bridge
	flasher *Flasher
}

// NewAlerter creates an alerter.
func NewAlerter(bridge Bridge, flasher *Flasher) *Alerter {
	return &Alerter{bridge: bridge, flasher: flasher}
}

// Alert signals target's arrival. Returns ErrNoLight when the strategy
// finds nothing reachable; no light is touched in that case.
func (a *Alerter) Alert(ctx context.Context, target Target) (*Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	started := time.Now()

	lights := target.Strategy.Select(ctx, a.bridge)
	if len(lights) == 0 {
		return nil, ErrNoLight
	}

	res := &Result{
		ID:     uuid.NewString(),
		Device: target.Device,
		Action: target.Action,
		Lights: make([]string, len(lights)),
	}
	for i, l := range lights {
		res.Lights[i] = l.Name
	}

	log.Debug().
		Str("alert_id", res.ID).
		Str("device", target.Device).
		Str("strategy", target.Strategy.String()).
		Strs("lights", res.Lights).
		Msg("Lights selected")

	var err error
	switch target.Action {
	case ActionToggle:
		err = a.flasher.Toggle(ctx, lights)
	default:
		err = a.flasher.Flash(ctx, lights, target.Color)
	}
	res.Duration = time.Since(started)
	return res, err
}
