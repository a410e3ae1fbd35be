// Package mqtt mirrors device presence and alert events to an MQTT
// broker, with Home Assistant discovery for one presence sensor per
// watched device.
package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/presenced/internal/config"
	"github.com/dokzlo13/presenced/internal/eventbus"
)

const (
	PayloadHome = "home"
	PayloadAway = "away"

	publishTimeout = 5 * time.Second
	connectTimeout = 30 * time.Second
)

// Publisher keeps a broker connection and publishes presence state
// (retained) and alert events. Presence is republished after every
// reconnect so the broker never serves stale retained values.
type Publisher struct {
	cfg      config.MQTTConfig
	devices  []string
	clientID string
	device   DeviceInfo

	mu       sync.Mutex
	ctx      context.Context
	cm       *autopaho.ConnectionManager
	presence map[string]string
}

// New creates a Publisher for the given device names. Call Start to
// connect.
func New(cfg config.MQTTConfig, devices []string) *Publisher {
	return &Publisher{
		cfg:      cfg,
		devices:  devices,
		clientID: "presenced-" + uuid.NewString()[:8],
		device:   NewDeviceInfo(cfg.TopicPrefix),
		presence: make(map[string]string),
	}
}

// Start connects to the broker. It returns once the first connection is
// up or the connect timeout passes; autopaho keeps retrying in the
// background either way.
func (p *Publisher) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(p.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	// The connection outlives ctx so Stop can still announce offline.
	connCtx := context.WithoutCancel(ctx)

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: p.cfg.Username,
		ConnectPassword: []byte(p.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   p.availabilityTopic(),
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			log.Info().Str("broker", p.cfg.Broker).Str("client_id", p.clientID).Msg("MQTT connected")
			p.publishDiscovery(connCtx, cm)
			p.publishAvailability(connCtx, cm, "online")
			p.republishPresence(connCtx, cm)
		},
		OnConnectError: func(err error) {
			log.Warn().Err(err).Str("broker", p.cfg.Broker).Msg("MQTT connection error")
		},
		ClientConfig: paho.ClientConfig{
			ClientID: p.clientID,
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(connCtx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	p.mu.Lock()
	p.ctx = connCtx
	p.cm = cm
	p.mu.Unlock()

	awaitCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := cm.AwaitConnection(awaitCtx); err != nil {
		log.Warn().Err(err).Msg("MQTT initial connection timed out, retrying in background")
	}
	return nil
}

// Stop publishes offline availability and disconnects.
func (p *Publisher) Stop(ctx context.Context) error {
	p.mu.Lock()
	cm := p.cm
	p.mu.Unlock()
	if cm == nil {
		return nil
	}
	p.publishAvailability(ctx, cm, "offline")
	return cm.Disconnect(ctx)
}

// HandleEvent is an eventbus.Handler.
func (p *Publisher) HandleEvent(e eventbus.Event) {
	p.mu.Lock()
	ctx, cm := p.ctx, p.cm
	switch e.Type {
	case eventbus.EventTypeArrived:
		p.presence[e.Device] = PayloadHome
	case eventbus.EventTypeDeparted:
		p.presence[e.Device] = PayloadAway
	}
	p.mu.Unlock()

	if cm == nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	switch e.Type {
	case eventbus.EventTypeArrived:
		p.publish(pubCtx, cm, p.presenceTopic(e.Device), []byte(PayloadHome), true)
	case eventbus.EventTypeDeparted:
		p.publish(pubCtx, cm, p.presenceTopic(e.Device), []byte(PayloadAway), true)
	}

	payload, err := eventPayload(e)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(e.Type)).Msg("Failed to encode MQTT event")
		return
	}
	p.publish(pubCtx, cm, p.eventTopic(e.Device), payload, false)
}

// --- Topic helpers ---

func (p *Publisher) availabilityTopic() string {
	return p.cfg.TopicPrefix + "/availability"
}

func (p *Publisher) presenceTopic(device string) string {
	return p.cfg.TopicPrefix + "/" + slug(device) + "/presence"
}

func (p *Publisher) eventTopic(device string) string {
	return p.cfg.TopicPrefix + "/" + slug(device) + "/event"
}

func (p *Publisher) discoveryTopic(device string) string {
	return p.cfg.DiscoveryPrefix + "/binary_sensor/" + slug(p.cfg.TopicPrefix) + "/" + slug(device) + "/config"
}

// --- Payloads ---

type eventMessage struct {
	Type   string         `json:"type"`
	Device string         `json:"device"`
	Time   time.Time      `json:"time"`
	Data   map[string]any `json:"data,omitempty"`
}

func eventPayload(e eventbus.Event) ([]byte, error) {
	return json.Marshal(eventMessage{
		Type:   string(e.Type),
		Device: e.Device,
		Time:   e.Time,
		Data:   e.Data,
	})
}

func (p *Publisher) sensorConfig(device string) BinarySensorConfig {
	id := slug(p.cfg.TopicPrefix) + "_" + slug(device)
	return BinarySensorConfig{
		Name:                device,
		UniqueID:            id,
		ObjectID:            id,
		StateTopic:          p.presenceTopic(device),
		AvailabilityTopic:   p.availabilityTopic(),
		JsonAttributesTopic: p.eventTopic(device),
		PayloadOn:           PayloadHome,
		PayloadOff:          PayloadAway,
		DeviceClass:         "presence",
		Icon:                "mdi:account-network",
		Device:              p.device,
	}
}

// --- Publishing ---

func (p *Publisher) publish(ctx context.Context, cm *autopaho.ConnectionManager, topic string, payload []byte, retain bool) {
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     1,
		Retain:  retain,
	}); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("MQTT publish failed")
		return
	}
	log.Debug().Str("topic", topic).Msg("MQTT message published")
}

func (p *Publisher) publishDiscovery(ctx context.Context, cm *autopaho.ConnectionManager) {
	if p.cfg.DiscoveryPrefix == "" {
		return
	}
	for _, d := range p.devices {
		payload, err := json.Marshal(p.sensorConfig(d))
		if err != nil {
			log.Error().Err(err).Str("device", d).Msg("Failed to encode discovery payload")
			continue
		}
		p.publish(ctx, cm, p.discoveryTopic(d), payload, true)
	}
}

func (p *Publisher) publishAvailability(ctx context.Context, cm *autopaho.ConnectionManager, status string) {
	p.publish(ctx, cm, p.availabilityTopic(), []byte(status), true)
}

func (p *Publisher) republishPresence(ctx context.Context, cm *autopaho.ConnectionManager) {
	p.mu.Lock()
	state := make(map[string]string, len(p.devices))
	for _, d := range p.devices {
		if v, ok := p.presence[d]; ok {
			state[d] = v
		} else {
			state[d] = PayloadAway
		}
	}
	p.mu.Unlock()

	for d, v := range state {
		p.publish(ctx, cm, p.presenceTopic(d), []byte(v), true)
	}
}
