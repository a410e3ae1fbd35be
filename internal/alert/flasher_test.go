package alert

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/dokzlo13/presenced/internal/hue"
)

var firebrick = []float32{0.6621, 0.3023}

func flashOne(t *testing.T, b *fakeBridge, name string, sleep SleepFunc) error {
	t.Helper()
	light, err := b.Light(context.Background(), name)
	if err != nil {
		t.Fatalf("Light() error = %v", err)
	}
	f := NewFlasher(b, DefaultFlashConfig(), sleep)
	return f.Flash(context.Background(), []hue.Light{*light}, firebrick)
}

func TestFlash_InitiallyOnRestoresState(t *testing.T) {
	b := newFakeBridge()
	b.add("Bedroom bed", hue.LightState{
		On: true, Reachable: true, Bri: 200,
		Xy: []float32{0.5, 0.5}, ColorMode: hue.ColorModeXY, TransitionTime: 4,
	})
	rec := &recordingSleep{}

	if err := flashOne(t, b, "Bedroom bed", rec.sleep); err != nil {
		t.Fatalf("Flash() error = %v", err)
	}

	// Bright range: initial low, then low/high twice.
	if got, want := b.briSequence("Bedroom bed"), []uint8{25, 25, 240, 25, 240, 200}; !reflect.DeepEqual(got, want) {
		t.Errorf("brightness sequence = %v, want %v", got, want)
	}

	// The color is set on the first step.
	if first := b.calls[0].update; !reflect.DeepEqual(first.Xy, firebrick) || !first.On {
		t.Errorf("first update = %+v, want on with firebrick", first)
	}

	// Each step waits transition (3s) + delay (1s).
	wantWaits := []time.Duration{4 * time.Second, 4 * time.Second, 4 * time.Second, 4 * time.Second}
	if !reflect.DeepEqual(rec.waits, wantWaits) {
		t.Errorf("waits = %v, want %v", rec.waits, wantWaits)
	}

	s := b.lights["Bedroom bed"]
	if !s.On || s.Bri != 200 || s.TransitionTime != 4 {
		t.Errorf("final state = %+v, want on, bri 200, transition 4", s)
	}
	if !reflect.DeepEqual(s.Xy, []float32{0.5, 0.5}) {
		t.Errorf("final xy = %v, want [0.5 0.5]", s.Xy)
	}
}

func TestFlash_InitiallyOffEndsOff(t *testing.T) {
	b := newFakeBridge()
	b.add("Bedroom desk", hue.LightState{Reachable: true, Bri: 10, Xy: []float32{0.3, 0.3}})
	rec := &recordingSleep{}

	if err := flashOne(t, b, "Bedroom desk", rec.sleep); err != nil {
		t.Fatalf("Flash() error = %v", err)
	}

	// Dim range for a dark room.
	if got, want := b.briSequence("Bedroom desk"), []uint8{2, 2, 25, 2, 25}; !reflect.DeepEqual(got, want) {
		t.Errorf("brightness sequence = %v, want %v", got, want)
	}

	last := b.calls[len(b.calls)-1].update
	if !reflect.DeepEqual(last, hue.Update{On: false}) {
		t.Errorf("last update = %+v, want plain off", last)
	}

	s := b.lights["Bedroom desk"]
	if s.On || s.TransitionTime != 0 {
		t.Errorf("final state = %+v, want off with default transition", s)
	}
}

func TestFlash_BridgeFailureSkipsRestore(t *testing.T) {
	b := newFakeBridge()
	b.add("Bedroom bed", hue.LightState{On: true, Reachable: true, Bri: 200, Xy: []float32{0.5, 0.5}})
	b.failAfter = 3

	err := flashOne(t, b, "Bedroom bed", (&recordingSleep{}).sleep)
	if !errors.Is(err, errBridgeDown) {
		t.Fatalf("Flash() error = %v, want errBridgeDown", err)
	}
	if len(b.calls) != 3 {
		t.Errorf("calls = %d, want 3 (no restore after failure)", len(b.calls))
	}

	s := b.lights["Bedroom bed"]
	if !reflect.DeepEqual(s.Xy, firebrick) {
		t.Errorf("xy = %v, want flash color left in place", s.Xy)
	}
}

func TestFlash_CancelRestores(t *testing.T) {
	b := newFakeBridge()
	b.add("Bedroom bed", hue.LightState{On: true, Reachable: true, Bri: 200, Xy: []float32{0.5, 0.5}})
	light, _ := b.Light(context.Background(), "Bedroom bed")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &recordingSleep{cancelAfter: 1, cancel: cancel}

	f := NewFlasher(b, DefaultFlashConfig(), rec.sleep)
	err := f.Flash(ctx, []hue.Light{*light}, firebrick)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Flash() error = %v, want context.Canceled", err)
	}
	if len(rec.waits) != 1 {
		t.Errorf("waits = %d, want 1", len(rec.waits))
	}

	s := b.lights["Bedroom bed"]
	if s.Bri != 200 || !reflect.DeepEqual(s.Xy, []float32{0.5, 0.5}) {
		t.Errorf("final state = %+v, want restored", s)
	}
}

func TestFlash_MultipleLightsUseOwnBounds(t *testing.T) {
	b := newFakeBridge()
	b.add("Basement lamp", hue.LightState{Reachable: true})
	b.add("Basement strip", hue.LightState{On: true, Reachable: true, Bri: 100, Xy: []float32{0.4, 0.4}})

	lamp, _ := b.Light(context.Background(), "Basement lamp")
	strip, _ := b.Light(context.Background(), "Basement strip")

	cfg := DefaultFlashConfig()
	cfg.Count = 1
	rec := &recordingSleep{}
	f := NewFlasher(b, cfg, rec.sleep)

	if err := f.Flash(context.Background(), []hue.Light{*lamp, *strip}, firebrick); err != nil {
		t.Fatalf("Flash() error = %v", err)
	}

	if got, want := b.briSequence("Basement lamp"), []uint8{2, 2, 25}; !reflect.DeepEqual(got, want) {
		t.Errorf("lamp sequence = %v, want %v", got, want)
	}
	if got, want := b.briSequence("Basement strip"), []uint8{25, 25, 240, 100}; !reflect.DeepEqual(got, want) {
		t.Errorf("strip sequence = %v, want %v", got, want)
	}
	// One wait per step, shared by both lights.
	if len(rec.waits) != 2 {
		t.Errorf("waits = %d, want 2", len(rec.waits))
	}
	if b.lights["Basement lamp"].On {
		t.Error("lamp should end off")
	}
}

func TestRestoreUpdate_ColorModes(t *testing.T) {
	tests := []struct {
		name  string
		state hue.LightState
		want  hue.Update
	}{
		{
			name:  "off",
			state: hue.LightState{Bri: 100, Xy: []float32{0.1, 0.1}},
			want:  hue.Update{On: false},
		},
		{
			name:  "xy",
			state: hue.LightState{On: true, Bri: 200, Xy: []float32{0.5, 0.5}, ColorMode: hue.ColorModeXY},
			want:  hue.Update{On: true, Bri: hue.Uint8(200), Xy: []float32{0.5, 0.5}},
		},
		{
			name:  "ct",
			state: hue.LightState{On: true, Bri: 150, Ct: 366, Xy: []float32{0.4, 0.4}, ColorMode: hue.ColorModeCT},
			want:  hue.Update{On: true, Bri: hue.Uint8(150), Ct: hue.Uint16(366)},
		},
		{
			name:  "hs",
			state: hue.LightState{On: true, Bri: 90, Hue: 8000, Sat: 140, ColorMode: hue.ColorModeHS},
			want:  hue.Update{On: true, Bri: hue.Uint8(90), Hue: hue.Uint16(8000), Sat: hue.Uint8(140)},
		},
		{
			name:  "transition",
			state: hue.LightState{On: true, Bri: 50, TransitionTime: 10},
			want:  hue.Update{On: true, Bri: hue.Uint8(50), TransitionTime: hue.Uint16(10)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := restoreUpdate(tt.state); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("restoreUpdate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestToggle(t *testing.T) {
	tests := []struct {
		name   string
		states []hue.LightState
		wantOn bool
	}{
		{"all off turns on", []hue.LightState{off, off}, true},
		{"any on turns off", []hue.LightState{off, on}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBridge()
			var lights []hue.Light
			for i, s := range tt.states {
				name := string(rune('a' + i))
				b.add(name, s)
				lights = append(lights, hue.Light{Name: name, State: s})
			}

			f := NewFlasher(b, DefaultFlashConfig(), (&recordingSleep{}).sleep)
			if err := f.Toggle(context.Background(), lights); err != nil {
				t.Fatalf("Toggle() error = %v", err)
			}
			for _, l := range lights {
				if b.lights[l.Name].On != tt.wantOn {
					t.Errorf("%s on = %v, want %v", l.Name, b.lights[l.Name].On, tt.wantOn)
				}
			}
		})
	}
}

func TestStepWait(t *testing.T) {
	cfg := FlashConfig{TransitionTime: 30, Delay: time.Second}
	if got := cfg.StepWait(); got != 4*time.Second {
		t.Errorf("StepWait() = %v, want 4s", got)
	}
}
