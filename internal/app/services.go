package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/presenced/internal/config"
	"github.com/dokzlo13/presenced/internal/eventbus"
	"github.com/dokzlo13/presenced/internal/mqtt"
	"github.com/dokzlo13/presenced/internal/presence"
	"github.com/dokzlo13/presenced/internal/watcher"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	Bus     *eventbus.Bus
	Tracker *presence.Tracker
	Prober  presence.Prober

	// High-level services
	Hue     *HueService
	Watcher *watcher.Watcher
	MQTT    *mqtt.Publisher // nil unless enabled
	Health  *HealthService

	watcherDone chan struct{}
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	policy, err := presence.ParsePolicy(cfg.Watch.LastSeenPolicy)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}

	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())
	s.Tracker = presence.NewTracker(cfg.Watch.Cooldown.Duration(), policy, time.Now(), deviceNames(cfg.Devices)...)
	s.Prober = presence.NewPingProber(cfg.Probe.Binary, cfg.Probe.Count, cfg.Probe.Timeout.Duration())

	s.Hue = NewHueService(cfg)

	s.Watcher = watcher.New(
		BuildDevices(cfg.Devices),
		s.Prober,
		s.Tracker,
		s.Hue.Alerter,
		cfg.Watch.Interval.Duration(),
		watcher.WithPublisher(s.Bus),
	)

	if cfg.MQTT.Enabled {
		s.MQTT = mqtt.New(cfg.MQTT, deviceNames(cfg.Devices))
	}

	s.Health = NewHealthService(cfg, s.Tracker)

	return s, nil
}

// Start starts all services in the correct order.
func (s *Services) Start(ctx context.Context) error {
	// Health server comes up first so /ready reports the bridge connect.
	s.Health.Start(ctx)

	if err := s.Hue.Start(ctx); err != nil {
		return err
	}
	s.Health.SetReady(true)

	if s.MQTT != nil {
		if err := s.MQTT.Start(ctx); err != nil {
			return err
		}
		s.Bus.Subscribe(s.MQTT.HandleEvent, eventbus.AllEventTypes...)
	}

	s.watcherDone = make(chan struct{})
	go func() {
		defer close(s.watcherDone)
		s.Watcher.Run(ctx)
	}()

	return nil
}

// Stop gracefully stops all services. The context passed to Start must
// already be cancelled.
func (s *Services) Stop() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownTimeout())
	defer cancel()

	// An interrupted flash restores the lights before the watcher returns.
	if s.watcherDone != nil {
		select {
		case <-s.watcherDone:
		case <-shutdownCtx.Done():
			log.Warn().Msg("Watcher did not stop in time")
		}
	}

	s.Bus.Close(shutdownCtx)

	if s.MQTT != nil {
		if err := s.MQTT.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("mqtt disconnect: %w", err)
		}
	}
	return nil
}
