package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dokzlo13/presenced/internal/hue"
)

var errBridgeDown = errors.New("bridge unreachable")

type setCall struct {
	light  string
	update hue.Update
}

// fakeBridge applies updates to in-memory light state the way the
// bridge does: transition time only lasts for the command that carries it.
type fakeBridge struct {
	lights    map[string]*hue.LightState
	groups    map[string][]string
	calls     []setCall
	gets      []string
	failAfter int // fail SetLight calls after this many succeed; 0 = never
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{
		lights: make(map[string]*hue.LightState),
		groups: make(map[string][]string),
	}
}

func (f *fakeBridge) add(name string, s hue.LightState) {
	f.lights[name] = &s
}

func (f *fakeBridge) Light(_ context.Context, name string) (*hue.Light, error) {
	f.gets = append(f.gets, name)
	s, ok := f.lights[name]
	if !ok {
		return nil, fmt.Errorf("light %q: %w", name, hue.ErrNotFound)
	}
	cp := *s
	cp.Xy = append([]float32(nil), s.Xy...)
	return &hue.Light{Name: name, State: cp}, nil
}

func (f *fakeBridge) SetLight(ctx context.Context, name string, u hue.Update) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.failAfter > 0 && len(f.calls) >= f.failAfter {
		return errBridgeDown
	}
	f.calls = append(f.calls, setCall{light: name, update: u})

	s := f.lights[name]
	s.On = u.On
	if u.Bri != nil {
		s.Bri = *u.Bri
	}
	if u.Hue != nil {
		s.Hue = *u.Hue
		s.ColorMode = hue.ColorModeHS
	}
	if u.Sat != nil {
		s.Sat = *u.Sat
	}
	if len(u.Xy) > 0 {
		s.Xy = append([]float32(nil), u.Xy...)
		s.ColorMode = hue.ColorModeXY
	}
	if u.Ct != nil {
		s.Ct = *u.Ct
		s.ColorMode = hue.ColorModeCT
	}
	s.TransitionTime = 0
	if u.TransitionTime != nil {
		s.TransitionTime = *u.TransitionTime
	}
	return nil
}

func (f *fakeBridge) Group(_ context.Context, name string) ([]string, error) {
	lights, ok := f.groups[name]
	if !ok {
		return nil, fmt.Errorf("group %q: %w", name, hue.ErrNotFound)
	}
	return lights, nil
}

// briSequence returns the brightness values sent to a light, in order.
func (f *fakeBridge) briSequence(name string) []uint8 {
	var out []uint8
	for _, c := range f.calls {
		if c.light == name && c.update.Bri != nil {
			out = append(out, *c.update.Bri)
		}
	}
	return out
}

// recordingSleep records waits without sleeping. cancelAfter > 0
// cancels the context on that call.
type recordingSleep struct {
	waits       []time.Duration
	cancelAfter int
	cancel      context.CancelFunc
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	if r.cancelAfter > 0 && len(r.waits) == r.cancelAfter {
		r.cancel()
	}
	return ctx.Err()
}
