package device

import (
	"regexp"
	"time"
)

// SystemModeOnline is the mode a purifier reports during normal operation.
// Any other mode (e.g. "standby", "error") marks the reported status as
// not online, independent of liveness inference.
const SystemModeOnline = "online"

// deviceIDPattern defines the valid format for device IDs:
// alphanumeric with dots, colons, hyphens, underscores, 1-64 characters.
// Covers both MAC-derived IDs (a4:cf:12:09:fe:01) and assigned slugs.
var deviceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._:-]{1,64}$`)

// IsValidDeviceID checks if a device ID meets format requirements.
func IsValidDeviceID(id string) bool {
	return deviceIDPattern.MatchString(id)
}

// Device represents a registered air purifier.
type Device struct {
	ID       string `json:"device_id"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`

	// APIUsername and APIPasswordHash are the per-device credentials the
	// purifier firmware uses to authenticate reading pushes. Devices that
	// were auto-provisioned from their first reading have none.
	APIUsername     string `json:"api_username,omitempty"`
	APIPasswordHash string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// Reading is a single immutable telemetry sample pushed by a purifier.
type Reading struct {
	ID               int64     `json:"id"`
	DeviceID         string    `json:"device_id"`
	SystemMode       string    `json:"system_mode"`
	InputAirQuality  float64   `json:"input_air_quality"`
	OutputAirQuality float64   `json:"output_air_quality"`
	Efficiency       float64   `json:"efficiency"`
	FanState         bool      `json:"fan_state"`
	AutoMode         bool      `json:"auto_mode"`
	CreatedAt        time.Time `json:"created_at"`
}

// CurrentStatus is the last-write-wins snapshot of a device.
// Exactly one row exists per device that has ever reported.
type CurrentStatus struct {
	DeviceID         string    `json:"device_id"`
	SystemMode       string    `json:"system_mode"`
	InputAirQuality  float64   `json:"input_air_quality"`
	OutputAirQuality float64   `json:"output_air_quality"`
	Efficiency       float64   `json:"efficiency"`
	FanState         bool      `json:"fan_state"`
	AutoMode         bool      `json:"auto_mode"`
	Online           bool      `json:"online"`
	LastSeen         time.Time `json:"last_seen"`
	IPAddress        string    `json:"ip_address,omitempty"`
}

// Stats holds aggregate reading statistics for a device over a time window.
type Stats struct {
	ReadingCount  int     `json:"reading_count"`
	AvgInput      float64 `json:"avg_input_air_quality"`
	MinInput      float64 `json:"min_input_air_quality"`
	MaxInput      float64 `json:"max_input_air_quality"`
	AvgOutput     float64 `json:"avg_output_air_quality"`
	MinOutput     float64 `json:"min_output_air_quality"`
	MaxOutput     float64 `json:"max_output_air_quality"`
	AvgEfficiency float64 `json:"avg_efficiency"`
	FanOnCount    int     `json:"fan_on_count"`
}

// Logger is the minimal logging interface the device package needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
