package hue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/amimof/huego"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// ErrNotFound is returned when a light or group name is unknown to the bridge.
var ErrNotFound = errors.New("not found on bridge")

// Client provides name-based access to lights and groups (v1 API).
// All bridge calls are rate limited; the bridge drops commands above ~10/s.
type Client struct {
	address string
	bridge  *huego.Bridge
	limiter *rate.Limiter
	index   *Index
}

// NewClient creates a new Hue client
func NewClient(address, token string, rateLimitRPS float64, indexTTL time.Duration) *Client {
	if rateLimitRPS == 0 {
		rateLimitRPS = 10.0
	}
	burst := int(rateLimitRPS)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		address: address,
		bridge:  huego.New(address, token),
		limiter: rate.NewLimiter(rate.Limit(rateLimitRPS), burst),
		index:   NewIndex(indexTTL),
	}
}

// Connect verifies the bridge is reachable and loads the name index
func (c *Client) Connect(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	cfg, err := c.bridge.GetConfig()
	if err != nil {
		return fmt.Errorf("failed to connect to Hue bridge: %w", err)
	}

	if err := c.refreshIndex(ctx); err != nil {
		return fmt.Errorf("failed to load lights and groups: %w", err)
	}

	log.Info().
		Str("address", c.address).
		Str("name", cfg.Name).
		Msg("Connected to Hue bridge")
	return nil
}

// Address returns the bridge address
func (c *Client) Address() string {
	return c.address
}

func (c *Client) refreshIndex(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	lights, err := c.bridge.GetLights()
	if err != nil {
		return err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	groups, err := c.bridge.GetGroups()
	if err != nil {
		return err
	}

	lightIDs := make(map[string]int, len(lights))
	for _, l := range lights {
		lightIDs[l.Name] = l.ID
	}

	groupLights := make(map[string][]int, len(groups))
	for _, g := range groups {
		ids := make([]int, 0, len(g.Lights))
		for _, raw := range g.Lights {
			id, err := strconv.Atoi(raw)
			if err != nil {
				log.Warn().Str("group", g.Name).Str("light", raw).Msg("Skipping group member with non-numeric ID")
				continue
			}
			ids = append(ids, id)
		}
		groupLights[g.Name] = ids
	}

	c.index.Set(lightIDs, groupLights)

	log.Debug().
		Int("lights", len(lightIDs)).
		Int("groups", len(groupLights)).
		Msg("Bridge name index refreshed")
	return nil
}

// resolve looks a name up in the index, refreshing it when stale or on a miss.
func resolve[T any](ctx context.Context, c *Client, lookup func() (T, bool)) (T, bool, error) {
	if !c.index.IsStale() {
		if v, ok := lookup(); ok {
			return v, true, nil
		}
	}
	if err := c.refreshIndex(ctx); err != nil {
		var zero T
		return zero, false, err
	}
	v, ok := lookup()
	return v, ok, nil
}

// Light returns a light with fresh state by name
func (c *Client) Light(ctx context.Context, name string) (*Light, error) {
	id, ok, err := resolve(ctx, c, func() (int, bool) { return c.index.LightID(name) })
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("light %q: %w", name, ErrNotFound)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	light, err := c.bridge.GetLight(id)
	if err != nil {
		return nil, fmt.Errorf("get light %q: %w", name, err)
	}

	return &Light{
		ID:    light.ID,
		Name:  light.Name,
		State: stateFromHuego(light.State),
	}, nil
}

// SetLight applies an update to a light by name
func (c *Client) SetLight(ctx context.Context, name string, update Update) error {
	id, ok, err := resolve(ctx, c, func() (int, bool) { return c.index.LightID(name) })
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("light %q: %w", name, ErrNotFound)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	state := update.toHuego()
	log.Debug().
		Str("light", name).
		Interface("state", state).
		Msg("Applying state to light")

	if _, err := c.bridge.SetLightState(id, state); err != nil {
		return fmt.Errorf("set light %q: %w", name, err)
	}
	return nil
}

// Group returns the names of the lights in a group
func (c *Client) Group(ctx context.Context, name string) ([]string, error) {
	ids, ok, err := resolve(ctx, c, func() ([]int, bool) { return c.index.GroupLights(name) })
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("group %q: %w", name, ErrNotFound)
	}

	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if n, ok := c.index.LightName(id); ok {
			names = append(names, n)
		}
	}
	return names, nil
}
