package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/presenced/internal/hue"
)

// restoreTimeout bounds the restore attempt after a shutdown interrupts a flash.
const restoreTimeout = 5 * time.Second

// Range is a low/high brightness pair.
type Range struct {
	Low  uint8
	High uint8
}

// FlashConfig parameterizes the flash sequence.
type FlashConfig struct {
	Count          int           // low/high cycles
	Delay          time.Duration // extra wait after each transition
	TransitionTime uint16        // deciseconds
	Bright         Range         // used when the light is already on
	Dim            Range         // used when the light is off
}

// DefaultFlashConfig returns two slow flashes.
func DefaultFlashConfig() FlashConfig {
	return FlashConfig{
		Count:          2,
		Delay:          time.Second,
		TransitionTime: 30,
		Bright:         Range{Low: 25, High: 240},
		Dim:            Range{Low: 2, High: 25},
	}
}

// StepWait is how long each brightness step is held. It covers the
// transition so every step is visually complete before the next one.
func (c FlashConfig) StepWait() time.Duration {
	return time.Duration(c.TransitionTime)*100*time.Millisecond + c.Delay
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Flasher runs flash and toggle sequences against the bridge.
type Flasher struct {
	bridge Bridge
	cfg    FlashConfig
	sleep  SleepFunc
}

// NewFlasher creates a flasher. A nil sleep uses Sleep.
func NewFlasher(bridge Bridge, cfg FlashConfig, sleep SleepFunc) *Flasher {
	if sleep == nil {
		sleep = Sleep
	}
	return &Flasher{bridge: bridge, cfg: cfg, sleep: sleep}
}

type flashTarget struct {
	name     string
	original hue.LightState
	bounds   Range
}

// Flash pulses the lights in color, then puts them back the way they were.
// The lights' State must be current; it is the snapshot that gets restored.
//
// A bridge failure aborts the sequence without restoring. A cancelled
// context restores on a detached, short-lived context before returning.
func (f *Flasher) Flash(ctx context.Context, lights []hue.Light, color []float32) error {
	targets := make([]flashTarget, len(lights))
	for i, l := range lights {
		bounds := f.cfg.Dim
		if l.State.On {
			bounds = f.cfg.Bright
		}
		targets[i] = flashTarget{name: l.Name, original: l.State, bounds: bounds}
	}

	tt := hue.Uint16(f.cfg.TransitionTime)
	wait := f.cfg.StepWait()

	setAll := func(level func(Range) uint8, xy []float32) error {
		for _, t := range targets {
			err := f.bridge.SetLight(ctx, t.name, hue.Update{
				On:             true,
				Bri:            hue.Uint8(level(t.bounds)),
				Xy:             xy,
				TransitionTime: tt,
			})
			if err != nil {
				return fmt.Errorf("flash %q: %w", t.name, err)
			}
		}
		return nil
	}
	low := func(r Range) uint8 { return r.Low }
	high := func(r Range) uint8 { return r.High }

	err := setAll(low, color)
	for i := 0; err == nil && i < f.cfg.Count; i++ {
		if err = setAll(low, nil); err != nil {
			break
		}
		if err = f.sleep(ctx, wait); err != nil {
			break
		}
		if err = setAll(high, nil); err != nil {
			break
		}
		err = f.sleep(ctx, wait)
	}

	if err != nil {
		if ctx.Err() == nil {
			log.Error().Err(err).Msg("Flash aborted, lights not restored")
			return err
		}
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), restoreTimeout)
		defer cancel()
		log.Warn().Msg("Flash interrupted, restoring lights")
		return errors.Join(ctx.Err(), f.restore(rctx, targets))
	}

	return f.restore(ctx, targets)
}

func (f *Flasher) restore(ctx context.Context, targets []flashTarget) error {
	var errs []error
	for _, t := range targets {
		if err := f.bridge.SetLight(ctx, t.name, restoreUpdate(t.original)); err != nil {
			log.Error().Err(err).Str("light", t.name).Msg("Failed to restore light")
			errs = append(errs, fmt.Errorf("restore %q: %w", t.name, err))
		}
	}
	return errors.Join(errs...)
}

// restoreUpdate builds the update that returns a light to its snapshot.
// An originally-off light is just switched off with no transition time.
func restoreUpdate(s hue.LightState) hue.Update {
	if !s.On {
		return hue.Update{On: false}
	}

	u := hue.Update{On: true}
	if s.Bri > 0 {
		u.Bri = hue.Uint8(s.Bri)
	}
	if s.TransitionTime > 0 {
		u.TransitionTime = hue.Uint16(s.TransitionTime)
	}

	switch {
	case s.ColorMode == hue.ColorModeCT && s.Ct > 0:
		u.Ct = hue.Uint16(s.Ct)
	case s.ColorMode == hue.ColorModeHS:
		u.Hue = hue.Uint16(s.Hue)
		u.Sat = hue.Uint8(s.Sat)
	case len(s.Xy) == 2:
		u.Xy = append([]float32(nil), s.Xy...)
	case s.Hue > 0 || s.Sat > 0:
		u.Hue = hue.Uint16(s.Hue)
		u.Sat = hue.Uint8(s.Sat)
	}
	return u
}

// Toggle switches every light on when none is on, and off otherwise.
func (f *Flasher) Toggle(ctx context.Context, lights []hue.Light) error {
	powerOn := true
	for _, l := range lights {
		if l.State.On {
			powerOn = false
			break
		}
	}

	for _, l := range lights {
		if err := f.bridge.SetLight(ctx, l.Name, hue.Update{On: powerOn}); err != nil {
			return fmt.Errorf("toggle %q: %w", l.Name, err)
		}
	}
	log.Debug().Bool("on", powerOn).Int("lights", len(lights)).Msg("Lights toggled")
	return nil
}
