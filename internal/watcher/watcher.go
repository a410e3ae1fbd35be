// Package watcher runs the polling loop: probe every device, debounce
// the result and signal arrivals on the lights.
package watcher

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/presenced/internal/alert"
	"github.com/dokzlo13/presenced/internal/eventbus"
	"github.com/dokzlo13/presenced/internal/presence"
)

// Device is one watched device.
type Device struct {
	Name    string
	Address string
	Target  alert.Target
}

// Alerter signals an arrival on the lights.
type Alerter interface {
	Alert(ctx context.Context, target alert.Target) (*alert.Result, error)
}

// Publisher receives presence and alert events.
type Publisher interface {
	Publish(event eventbus.Event)
}

// Watcher probes devices sequentially; only one flash sequence runs at a
// time because alerts are executed inline.
type Watcher struct {
	devices  []Device
	prober   presence.Prober
	tracker  *presence.Tracker
	alerter  Alerter
	bus      Publisher
	interval time.Duration
	now      func() time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithPublisher sends events to p.
func WithPublisher(p Publisher) Option {
	return func(w *Watcher) { w.bus = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Watcher) { w.now = now }
}

// New creates a watcher.
func New(devices []Device, prober presence.Prober, tracker *presence.Tracker, alerter Alerter, interval time.Duration, opts ...Option) *Watcher {
	w := &Watcher{
		devices:  devices,
		prober:   prober,
		tracker:  tracker,
		alerter:  alerter,
		interval: interval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run executes a cycle immediately and then one per interval until ctx
// is cancelled. The interval is measured from the end of a cycle.
func (w *Watcher) Run(ctx context.Context) {
	log.Info().
		Int("devices", len(w.devices)).
		Dur("interval", w.interval).
		Dur("cooldown", w.tracker.Cooldown()).
		Msg("Watcher started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Watcher stopped")
			return
		case <-timer.C:
			w.Cycle(ctx)
			timer.Reset(w.interval)
		}
	}
}

// Cycle probes every device once, in configuration order.
func (w *Watcher) Cycle(ctx context.Context) {
	for _, d := range w.devices {
		if ctx.Err() != nil {
			return
		}
		w.check(ctx, d)
	}
}

func (w *Watcher) check(ctx context.Context, d Device) {
	present := w.prober.Probe(ctx, d.Address)
	if ctx.Err() != nil {
		// An interrupted probe says nothing about the device.
		return
	}

	obs := w.tracker.Observe(d.Name, present, w.now())

	log.Debug().
		Str("device", d.Name).
		Str("address", d.Address).
		Bool("present", present).
		Dur("since_last_seen", obs.Since).
		Msg("Probed device")

	if obs.Arrived {
		log.Info().Str("device", d.Name).Msg("Device arrived")
		w.publish(eventbus.EventTypeArrived, d.Name, nil)
	}
	if obs.Departed {
		log.Info().Str("device", d.Name).Msg("Device departed")
		w.publish(eventbus.EventTypeDeparted, d.Name, nil)
	}
	if !obs.Alert {
		return
	}

	res, err := w.alerter.Alert(ctx, d.Target)
	switch {
	case errors.Is(err, alert.ErrNoLight):
		log.Info().
			Str("device", d.Name).
			Str("strategy", d.Target.Strategy.String()).
			Msg("No light available, skipping alert")
		w.publish(eventbus.EventTypeNoLight, d.Name, map[string]any{
			"strategy": d.Target.Strategy.String(),
		})
	case err != nil:
		ev := log.Error().Err(err).Str("device", d.Name)
		data := map[string]any{"error": err.Error()}
		if res != nil {
			ev = ev.Str("alert_id", res.ID).Strs("lights", res.Lights)
			data["alert_id"] = res.ID
			data["lights"] = res.Lights
		}
		ev.Msg("Alert failed")
		w.publish(eventbus.EventTypeAlertFailed, d.Name, data)
	default:
		log.Info().
			Str("alert_id", res.ID).
			Str("device", d.Name).
			Str("action", string(res.Action)).
			Strs("lights", res.Lights).
			Dur("took", res.Duration).
			Msg("ALERT")
		w.publish(eventbus.EventTypeAlert, d.Name, map[string]any{
			"alert_id": res.ID,
			"action":   string(res.Action),
			"lights":   res.Lights,
		})
	}
}

func (w *Watcher) publish(t eventbus.EventType, device string, data map[string]any) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(eventbus.Event{
		Type:   t,
		Device: device,
		Time:   w.now(),
		Data:   data,
	})
}
