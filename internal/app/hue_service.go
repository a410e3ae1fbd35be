package app

import (
	"context"

	"github.com/dokzlo13/presenced/internal/alert"
	"github.com/dokzlo13/presenced/internal/config"
	"github.com/dokzlo13/presenced/internal/hue"
)

// HueService wraps the light-side components: bridge client, flash
// sequencer and alerter.
type HueService struct {
	cfg *config.Config

	Client  *hue.Client
	Flasher *alert.Flasher
	Alerter *alert.Alerter
}

// NewHueService creates a HueService with all components initialized but not connected.
func NewHueService(cfg *config.Config) *HueService {
	client := hue.NewClient(
		cfg.Hue.Bridge,
		cfg.Hue.Token,
		cfg.Hue.RateLimitRPS,
		cfg.Hue.IndexTTL.Duration(),
	)
	flasher := alert.NewFlasher(client, flashConfig(cfg.Flash), nil)

	return &HueService{
		cfg:     cfg,
		Client:  client,
		Flasher: flasher,
		Alerter: alert.NewAlerter(client, flasher),
	}
}

// Start connects to the Hue bridge and loads the light and group index.
func (s *HueService) Start(ctx context.Context) error {
	return s.Client.Connect(ctx)
}
