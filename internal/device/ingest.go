package device

import (
	"context"
	"fmt"
	"time"
)

// ReadingInput is a decoded telemetry payload from a purifier, before
// persistence. The same shape arrives over HTTP and MQTT.
type ReadingInput struct {
	SystemMode       string  `json:"system_mode"`
	InputAirQuality  float64 `json:"input_air_quality"`
	OutputAirQuality float64 `json:"output_air_quality"`
	Efficiency       float64 `json:"efficiency"`
	FanState         bool    `json:"fan_state"`
	AutoMode         bool    `json:"auto_mode"`
}

// Telemetry receives a mirror of every accepted reading.
// Implemented by the InfluxDB client; writes must not block.
type Telemetry interface {
	WriteAirQuality(deviceID string, input, output, efficiency float64, fanOn bool)
}

// Ingestor processes incoming readings: it auto-provisions unknown devices,
// appends the reading to the immutable log, and upserts the current-status
// snapshot.
//
// The reading insert and the status upsert are two independent writes. If
// the upsert fails the reading is NOT rolled back: a persisted reading with
// a stale snapshot heals on the device's next report, and losing telemetry
// to keep the snapshot consistent would be the worse trade.
type Ingestor struct {
	devices  Repository
	readings ReadingRepository
	status   StatusRepository

	logger    Logger
	telemetry Telemetry
	onStatus  func(CurrentStatus)
	now       func() time.Time
}

// NewIngestor creates an Ingestor over the given repositories.
func NewIngestor(devices Repository, readings ReadingRepository, status StatusRepository) *Ingestor {
	return &Ingestor{
		devices:  devices,
		readings: readings,
		status:   status,
		now:      time.Now,
	}
}

// SetLogger sets an optional logger for provisioning and partial-write events.
func (i *Ingestor) SetLogger(logger Logger) {
	i.logger = logger
}

// SetTelemetry sets an optional telemetry mirror for accepted readings.
func (i *Ingestor) SetTelemetry(t Telemetry) {
	i.telemetry = t
}

// SetOnStatus sets a callback invoked after every successful status upsert.
// Used to broadcast live status to WebSocket clients.
func (i *Ingestor) SetOnStatus(fn func(CurrentStatus)) {
	i.onStatus = fn
}

// SetClock overrides the time source. Tests only.
func (i *Ingestor) SetClock(now func() time.Time) {
	i.now = now
}

// Ingest processes one reading from a purifier.
//
// The returned snapshot reflects what was written to current_status.
// ip may be empty (MQTT ingest has no peer address).
func (i *Ingestor) Ingest(ctx context.Context, deviceID string, in ReadingInput, ip string) (*CurrentStatus, error) {
	if !IsValidDeviceID(deviceID) {
		return nil, ErrInvalidDeviceID
	}
	if in.SystemMode == "" {
		return nil, fmt.Errorf("%w: system_mode is required", ErrInvalidReading)
	}

	_, created, err := i.devices.FindOrCreate(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("provisioning device: %w", err)
	}
	if created && i.logger != nil {
		i.logger.Info("auto-provisioned device from first reading", "device_id", deviceID)
	}

	now := i.now().UTC().Truncate(time.Second)

	reading := &Reading{
		DeviceID:         deviceID,
		SystemMode:       in.SystemMode,
		InputAirQuality:  in.InputAirQuality,
		OutputAirQuality: in.OutputAirQuality,
		Efficiency:       in.Efficiency,
		FanState:         in.FanState,
		AutoMode:         in.AutoMode,
		CreatedAt:        now,
	}
	if err := i.readings.Insert(ctx, reading); err != nil {
		return nil, fmt.Errorf("recording reading: %w", err)
	}

	st := &CurrentStatus{
		DeviceID:         deviceID,
		SystemMode:       in.SystemMode,
		InputAirQuality:  in.InputAirQuality,
		OutputAirQuality: in.OutputAirQuality,
		Efficiency:       in.Efficiency,
		FanState:         in.FanState,
		AutoMode:         in.AutoMode,
		Online:           in.SystemMode == SystemModeOnline,
		LastSeen:         now,
		IPAddress:        ip,
	}
	if err := i.status.Upsert(ctx, st); err != nil {
		// The reading above stays committed; see the type comment.
		if i.logger != nil {
			i.logger.Warn("reading stored but status upsert failed",
				"device_id", deviceID, "error", err)
		}
		return nil, fmt.Errorf("updating current status: %w", err)
	}

	if i.telemetry != nil {
		i.telemetry.WriteAirQuality(deviceID, in.InputAirQuality, in.OutputAirQuality, in.Efficiency, in.FanState)
	}
	if i.onStatus != nil {
		i.onStatus(*st)
	}

	return st, nil
}
