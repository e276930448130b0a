package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the AirCore MQTT namespace.
//
// Purifiers publish readings to aircore/readings/{device_id}; the backend
// publishes availability and command notifications under aircore/system
// and aircore/commands.
const (
	// TopicPrefix is the base for all AirCore topics.
	TopicPrefix = "aircore"

	// TopicPrefixSystem is the base for backend lifecycle topics.
	TopicPrefixSystem = "aircore/system"
)

// Topics provides builders for AirCore MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	t := topics.DeviceReadings("purifier-01")
//	// Returns: "aircore/readings/purifier-01"
type Topics struct{}

// DeviceReadings returns the topic a purifier publishes status payloads to.
//
// Example: aircore/readings/purifier-01
func (Topics) DeviceReadings(deviceID string) string {
	return fmt.Sprintf("%s/readings/%s", TopicPrefix, deviceID)
}

// DeviceCommands returns the topic the backend publishes queued-command
// notifications to. Purifiers still drain over HTTP; the MQTT notification
// just prompts an early poll.
//
// Example: aircore/commands/purifier-01
func (Topics) DeviceCommands(deviceID string) string {
	return fmt.Sprintf("%s/commands/%s", TopicPrefix, deviceID)
}

// DeviceStatus returns the topic for backend-derived device status events
// (online/offline flips, fresh readings).
//
// Example: aircore/status/purifier-01
func (Topics) DeviceStatus(deviceID string) string {
	return fmt.Sprintf("%s/status/%s", TopicPrefix, deviceID)
}

// SystemStatus returns the backend availability topic. Used for the LWT.
//
// Example: aircore/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllDeviceReadings returns a pattern matching readings from every purifier.
//
// Pattern: aircore/readings/+
func (Topics) AllDeviceReadings() string {
	return fmt.Sprintf("%s/readings/+", TopicPrefix)
}

// AllDeviceStatus returns a pattern matching all status events.
//
// Pattern: aircore/status/+
func (Topics) AllDeviceStatus() string {
	return fmt.Sprintf("%s/status/+", TopicPrefix)
}

// AllTopics returns a pattern matching all AirCore topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: aircore/#
func (Topics) AllTopics() string {
	return "aircore/#"
}

// ReadingsDeviceID extracts the device ID from a readings topic.
// Returns empty string if the topic is not a single-level readings topic.
func ReadingsDeviceID(topic string) string {
	id, ok := strings.CutPrefix(topic, TopicPrefix+"/readings/")
	if !ok || id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}
