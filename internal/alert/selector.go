// Package alert picks lights near a device and signals its arrival on them.
package alert

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/presenced/internal/hue"
)

// ErrNoLight is returned when no candidate light is reachable.
var ErrNoLight = errors.New("no reachable light")

// Bridge is the subset of the lighting controller the alerter needs.
type Bridge interface {
	Light(ctx context.Context, name string) (*hue.Light, error)
	SetLight(ctx context.Context, name string, update hue.Update) error
	Group(ctx context.Context, name string) ([]string, error)
}

// Strategy selects the lights to signal on.
// An empty selection means nothing suitable is reachable.
type Strategy interface {
	Select(ctx context.Context, b Bridge) []hue.Light
	String() string
}

// Candidate is one entry of a priority list.
type Candidate struct {
	Name      string
	RequireOn bool // skip unless the light is already on
}

// PriorityStrategy returns the first candidate that is reachable and,
// when required, already on.
type PriorityStrategy struct {
	Candidates []Candidate
}

// NewPriorityStrategy builds a priority list from light names. Every
// entry except the last requires the light to be on; the last is the
// fallback used whenever it is reachable.
func NewPriorityStrategy(names ...string) PriorityStrategy {
	cands := make([]Candidate, len(names))
	for i, n := range names {
		cands[i] = Candidate{Name: n, RequireOn: i < len(names)-1}
	}
	return PriorityStrategy{Candidates: cands}
}

// Select implements Strategy.
func (s PriorityStrategy) Select(ctx context.Context, b Bridge) []hue.Light {
	for _, c := range s.Candidates {
		light, err := b.Light(ctx, c.Name)
		if err != nil {
			log.Warn().Err(err).Str("light", c.Name).Msg("Skipping candidate light")
			continue
		}
		if !light.State.Reachable {
			log.Debug().Str("light", c.Name).Msg("Candidate light unreachable")
			continue
		}
		if c.RequireOn && !light.State.On {
			log.Debug().Str("light", c.Name).Msg("Candidate light is off")
			continue
		}
		return []hue.Light{*light}
	}
	return nil
}

func (s PriorityStrategy) String() string {
	names := make([]string, len(s.Candidates))
	for i, c := range s.Candidates {
		names[i] = c.Name
	}
	return "priority[" + strings.Join(names, ", ") + "]"
}

// GroupStrategy returns every reachable light of a named group.
type GroupStrategy struct {
	Group string
}

// Select implements Strategy.
func (s GroupStrategy) Select(ctx context.Context, b Bridge) []hue.Light {
	names, err := b.Group(ctx, s.Group)
	if err != nil {
		log.Warn().Err(err).Str("group", s.Group).Msg("Failed to look up group")
		return nil
	}

	var lights []hue.Light
	for _, name := range names {
		light, err := b.Light(ctx, name)
		if err != nil {
			log.Warn().Err(err).Str("group", s.Group).Str("light", name).Msg("Skipping group light")
			continue
		}
		if !light.State.Reachable {
			continue
		}
		lights = append(lights, *light)
	}
	return lights
}

func (s GroupStrategy) String() string {
	return fmt.Sprintf("group[%s]", s.Group)
}
