package hue

import "github.com/amimof/huego"

// Color modes reported by the bridge
const (
	ColorModeXY = "xy"
	ColorModeCT = "ct"
	ColorModeHS = "hs"
)

// LightState is the state of a light as reported by the bridge (v1 API)
type LightState struct {
	On             bool
	Reachable      bool
	Bri            uint8     // brightness (1-254)
	Hue            uint16    // hue (0-65535)
	Sat            uint8     // saturation (0-254)
	Xy             []float32 // CIE xy color coordinates
	Ct             uint16    // color temperature in mirek (153-500)
	ColorMode      string    // xy, ct or hs
	TransitionTime uint16    // deciseconds
}

// Light is a named light together with its current state
type Light struct {
	ID    int
	Name  string
	State LightState
}

// Update is a state change for a light.
// Nil fields are left untouched by the bridge. On is always sent.
type Update struct {
	On             bool
	Bri            *uint8
	Hue            *uint16
	Sat            *uint8
	Xy             []float32
	Ct             *uint16
	TransitionTime *uint16 // 0 cannot be sent; the bridge default (4) applies
}

// Uint8 returns a pointer to v
func Uint8(v uint8) *uint8 {
	return &v
}

// Uint16 returns a pointer to v
func Uint16(v uint16) *uint16 {
	return &v
}

func stateFromHuego(s *huego.State) LightState {
	if s == nil {
		return LightState{}
	}
	var xy []float32
	if len(s.Xy) > 0 {
		xy = append([]float32(nil), s.Xy...)
	}
	return LightState{
		On:             s.On,
		Reachable:      s.Reachable,
		Bri:            s.Bri,
		Hue:            s.Hue,
		Sat:            s.Sat,
		Xy:             xy,
		Ct:             s.Ct,
		ColorMode:      s.ColorMode,
		TransitionTime: s.TransitionTime,
	}
}

func (u Update) toHuego() huego.State {
	state := huego.State{On: u.On}
	if u.Bri != nil {
		state.Bri = *u.Bri
	}
	if u.Hue != nil {
		state.Hue = *u.Hue
	}
	if u.Sat != nil {
		state.Sat = *u.Sat
	}
	if len(u.Xy) > 0 {
		state.Xy = u.Xy
	}
	if u.Ct != nil {
		state.Ct = *u.Ct
	}
	if u.TransitionTime != nil {
		state.TransitionTime = *u.TransitionTime
	}
	return state
}
