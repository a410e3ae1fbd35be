package mqtt

import (
	"strings"
	"unicode"
)

// Version is reported to Home Assistant as the device software version.
var Version = "dev"

// DeviceInfo is the Home Assistant device registry block shared by every
// entity this instance announces, so they group under one device page.
type DeviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SWVersion    string   `json:"sw_version"`
}

// BinarySensorConfig is the discovery payload for one watched device.
type BinarySensorConfig struct {
	Name                string     `json:"name"`
	UniqueID            string     `json:"unique_id"`
	ObjectID            string     `json:"object_id,omitempty"`
	StateTopic          string     `json:"state_topic"`
	AvailabilityTopic   string     `json:"availability_topic"`
	JsonAttributesTopic string     `json:"json_attributes_topic,omitempty"`
	PayloadOn           string     `json:"payload_on"`
	PayloadOff          string     `json:"payload_off"`
	DeviceClass         string     `json:"device_class,omitempty"`
	Icon                string     `json:"icon,omitempty"`
	Device              DeviceInfo `json:"device"`
}

// NewDeviceInfo describes the daemon instance publishing under prefix.
func NewDeviceInfo(prefix string) DeviceInfo {
	return DeviceInfo{
		Identifiers:  []string{slug(prefix)},
		Name:         prefix,
		Manufacturer: "presenced",
		Model:        "Presence watcher",
		SWVersion:    Version,
	}
}

// slug makes a device name safe for topic segments and HA object IDs.
func slug(name string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
