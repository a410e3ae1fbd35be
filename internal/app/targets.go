package app

import (
	"github.com/dokzlo13/presenced/internal/alert"
	"github.com/dokzlo13/presenced/internal/config"
	"github.com/dokzlo13/presenced/internal/watcher"
)

// BuildDevices converts validated device configuration into watcher devices.
func BuildDevices(devices []config.DeviceConfig) []watcher.Device {
	out := make([]watcher.Device, 0, len(devices))
	for _, d := range devices {
		out = append(out, watcher.Device{
			Name:    d.Name,
			Address: d.Address,
			Target: alert.Target{
				Device:   d.Name,
				Color:    d.Color.XY(),
				Strategy: buildStrategy(d),
				Action:   buildAction(d.Action),
			},
		})
	}
	return out
}

func buildStrategy(d config.DeviceConfig) alert.Strategy {
	if d.Group != "" {
		return alert.GroupStrategy{Group: d.Group}
	}

	names := make([]string, len(d.Priority))
	for i, p := range d.Priority {
		names[i] = p.Light
	}
	s := alert.NewPriorityStrategy(names...)
	for i, p := range d.Priority {
		if p.RequireOn != nil {
			s.Candidates[i].RequireOn = *p.RequireOn
		}
	}
	return s
}

func buildAction(action string) alert.Action {
	if action == config.ActionToggle {
		return alert.ActionToggle
	}
	return alert.ActionFlash
}

// flashConfig maps the flash settings onto the sequencer's parameters.
func flashConfig(cfg config.FlashConfig) alert.FlashConfig {
	return alert.FlashConfig{
		Count:          cfg.Count,
		Delay:          cfg.Delay.Duration(),
		TransitionTime: cfg.TransitionTime,
		Bright:         alert.Range{Low: cfg.Bright.Low, High: cfg.Bright.High},
		Dim:            alert.Range{Low: cfg.Dim.Low, High: cfg.Dim.High},
	}
}

func deviceNames(devices []config.DeviceConfig) []string {
	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Name
	}
	return names
}
