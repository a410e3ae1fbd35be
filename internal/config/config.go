package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Hue             HueConfig         `yaml:"hue"`
	Watch           WatchConfig       `yaml:"watch"`
	Probe           ProbeConfig       `yaml:"probe"`
	Flash           FlashConfig       `yaml:"flash"`
	Devices         []DeviceConfig    `yaml:"devices"`
	MQTT            MQTTConfig        `yaml:"mqtt"`
	Log             LogConfig         `yaml:"log"`
	Healthcheck     HealthcheckConfig `yaml:"healthcheck"`
	EventBus        EventBusConfig    `yaml:"eventbus"`
	ShutdownTimeout Duration          `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// HueConfig contains Hue bridge connection settings
type HueConfig struct {
	Bridge       string   `yaml:"bridge"`
	Token        string   `yaml:"token"`
	RateLimitRPS float64  `yaml:"rate_limit_rps"` // Bridge requests per second (default: 10)
	IndexTTL     Duration `yaml:"index_ttl"`      // How long light/group name lookups are cached (default: 5m)
}

// Last-seen update policies
const (
	PolicyReachable = "reachable" // update last_seen on every reachable probe
	PolicyAlert     = "alert"     // update last_seen only when an alert fires
)

// WatchConfig contains polling loop settings
type WatchConfig struct {
	Interval       Duration `yaml:"interval"`         // Sleep between poll cycles (default: 10s)
	Cooldown       Duration `yaml:"cooldown"`         // Minimum time between alerts per device (default: 15m)
	LastSeenPolicy string   `yaml:"last_seen_policy"` // "reachable" (default) or "alert"
}

// ProbeConfig contains reachability probe settings
type ProbeConfig struct {
	Binary  string   `yaml:"binary"`  // Ping executable (default: ping)
	Count   int      `yaml:"count"`   // Echo requests per probe (default: 1)
	Timeout Duration `yaml:"timeout"` // Probe deadline (default: 1s)
}

// BrightnessRange is a low/high brightness pair used while flashing
type BrightnessRange struct {
	Low  uint8 `yaml:"low"`
	High uint8 `yaml:"high"`
}

// FlashConfig contains flash sequence settings
type FlashConfig struct {
	Count          int             `yaml:"count"`           // Low/high cycles (default: 2)
	Delay          Duration        `yaml:"delay"`           // Extra wait after each transition (default: 1s)
	TransitionTime uint16          `yaml:"transition_time"` // Deciseconds (default: 30)
	Bright         BrightnessRange `yaml:"bright"`          // Used when the light is already on (default: 25/240)
	Dim            BrightnessRange `yaml:"dim"`             // Used when the light is off (default: 2/25)
}

// Alert actions
const (
	ActionFlash  = "flash"
	ActionToggle = "toggle"
)

// DeviceConfig describes a watched network device
type DeviceConfig struct {
	Name     string          `yaml:"name"`
	Address  string          `yaml:"address"`
	Color    Color           `yaml:"color"`
	Group    string          `yaml:"group"`    // Group strategy: flash every reachable light in the group
	Priority []PriorityLight `yaml:"priority"` // Priority strategy: first suitable light wins
	Action   string          `yaml:"action"`   // "flash" (default) or "toggle"
}

// PriorityLight is one candidate of a priority list.
// Accepts either a bare light name or {light, require_on}.
type PriorityLight struct {
	Light     string `yaml:"light"`
	RequireOn *bool  `yaml:"require_on"`
}

// UnmarshalYAML implements yaml.Unmarshaler for PriorityLight
func (p *PriorityLight) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&p.Light)
	}
	type plain PriorityLight
	return value.Decode((*plain)(p))
}

// MQTTConfig contains optional MQTT publishing settings
type MQTTConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Broker          string `yaml:"broker"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	TopicPrefix     string `yaml:"topic_prefix"`     // default: presenced
	DiscoveryPrefix string `yaml:"discovery_prefix"` // Home Assistant discovery prefix (default: homeassistant)
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	Colors  bool   `yaml:"colors"`
	UseJSON bool   `yaml:"json"`
}

// GetLevel returns the log level
func (c *LogConfig) GetLevel() string {
	return c.Level
}

// HealthcheckConfig contains health check server settings
type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// GetHost returns the listen host
func (c *HealthcheckConfig) GetHost() string {
	return c.Host
}

// GetPort returns the listen port
func (c *HealthcheckConfig) GetPort() int {
	return c.Port
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 2)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 100)
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 2
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 100
	}
	return c.QueueSize
}

// GetShutdownTimeout returns the shutdown timeout
func (c *Config) GetShutdownTimeout() time.Duration {
	return c.ShutdownTimeout.Duration()
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse parses configuration from raw YAML, applies defaults and validates it
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) setDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// Hue defaults
	if cfg.Hue.RateLimitRPS == 0 {
		cfg.Hue.RateLimitRPS = 10.0 // 10 requests per second
	}
	if cfg.Hue.IndexTTL == 0 {
		cfg.Hue.IndexTTL = Duration(5 * time.Minute)
	}

	// Watch defaults
	if cfg.Watch.Interval == 0 {
		cfg.Watch.Interval = Duration(10 * time.Second)
	}
	if cfg.Watch.Cooldown == 0 {
		cfg.Watch.Cooldown = Duration(15 * time.Minute)
	}
	if cfg.Watch.LastSeenPolicy == "" {
		cfg.Watch.LastSeenPolicy = PolicyReachable
	}

	// Probe defaults
	if cfg.Probe.Binary == "" {
		cfg.Probe.Binary = "ping"
	}
	if cfg.Probe.Count == 0 {
		cfg.Probe.Count = 1
	}
	if cfg.Probe.Timeout == 0 {
		cfg.Probe.Timeout = Duration(1 * time.Second)
	}

	// Flash defaults
	if cfg.Flash.Count == 0 {
		cfg.Flash.Count = 2
	}
	if cfg.Flash.Delay == 0 {
		cfg.Flash.Delay = Duration(1 * time.Second)
	}
	if cfg.Flash.TransitionTime == 0 {
		cfg.Flash.TransitionTime = 30
	}
	if cfg.Flash.Bright == (BrightnessRange{}) {
		cfg.Flash.Bright = BrightnessRange{Low: 25, High: 240}
	}
	if cfg.Flash.Dim == (BrightnessRange{}) {
		cfg.Flash.Dim = BrightnessRange{Low: 2, High: 25}
	}

	for i := range cfg.Devices {
		if cfg.Devices[i].Action == "" {
			cfg.Devices[i].Action = ActionFlash
		}
	}

	// MQTT defaults
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "presenced"
	}
	if cfg.MQTT.DiscoveryPrefix == "" {
		cfg.MQTT.DiscoveryPrefix = "homeassistant"
	}

	// Healthcheck defaults
	if cfg.Healthcheck.Port == 0 {
		cfg.Healthcheck.Port = 9090
	}
	if cfg.Healthcheck.Host == "" {
		cfg.Healthcheck.Host = "0.0.0.0"
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// Validate checks the configuration for errors that would prevent startup
func (cfg *Config) Validate() error {
	var errs []error

	if cfg.Hue.Bridge == "" {
		errs = append(errs, errors.New("hue.bridge is required"))
	}
	if cfg.Watch.LastSeenPolicy != PolicyReachable && cfg.Watch.LastSeenPolicy != PolicyAlert {
		errs = append(errs, fmt.Errorf("watch.last_seen_policy must be %q or %q, got %q",
			PolicyReachable, PolicyAlert, cfg.Watch.LastSeenPolicy))
	}
	if cfg.Probe.Count < 0 {
		errs = append(errs, errors.New("probe.count cannot be negative"))
	}
	if cfg.Flash.Count < 0 {
		errs = append(errs, errors.New("flash.count cannot be negative"))
	}
	if cfg.Flash.Bright.Low > cfg.Flash.Bright.High {
		errs = append(errs, errors.New("flash.bright.low must not exceed flash.bright.high"))
	}
	if cfg.Flash.Dim.Low > cfg.Flash.Dim.High {
		errs = append(errs, errors.New("flash.dim.low must not exceed flash.dim.high"))
	}
	if cfg.MQTT.Enabled && cfg.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required when mqtt is enabled"))
	}

	if len(cfg.Devices) == 0 {
		errs = append(errs, errors.New("at least one device must be configured"))
	}
	seen := make(map[string]bool)
	for i, d := range cfg.Devices {
		where := fmt.Sprintf("devices[%d]", i)
		if d.Name == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", where))
		} else {
			where = fmt.Sprintf("device %q", d.Name)
			if seen[d.Name] {
				errs = append(errs, fmt.Errorf("%s: duplicate name", where))
			}
			seen[d.Name] = true
		}
		if d.Address == "" {
			errs = append(errs, fmt.Errorf("%s: address is required", where))
		}
		if !d.Color.Valid() {
			errs = append(errs, fmt.Errorf("%s: color is required", where))
		}
		switch {
		case d.Group == "" && len(d.Priority) == 0:
			errs = append(errs, fmt.Errorf("%s: one of group or priority is required", where))
		case d.Group != "" && len(d.Priority) > 0:
			errs = append(errs, fmt.Errorf("%s: group and priority are mutually exclusive", where))
		}
		for j, p := range d.Priority {
			if strings.TrimSpace(p.Light) == "" {
				errs = append(errs, fmt.Errorf("%s: priority[%d] has no light name", where, j))
			}
		}
		if d.Action != ActionFlash && d.Action != ActionToggle {
			errs = append(errs, fmt.Errorf("%s: action must be %q or %q, got %q", where, ActionFlash, ActionToggle, d.Action))
		}
	}

	return errors.Join(errs...)
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
