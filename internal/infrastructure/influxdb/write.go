package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteAirQuality writes a purifier reading as an air_quality measurement.
//
// This is the primary method for mirroring ingested readings. The write is
// non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	client.WriteAirQuality("purifier-01", 320.5, 41.2, 87.1, true)
func (c *Client) WriteAirQuality(deviceID string, input, output, efficiency float64, fanOn bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"air_quality",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"input":      input,
			"output":     output,
			"efficiency": efficiency,
			"fan_on":     fanOn,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDeviceOnline writes an online/offline transition for a device.
//
// Recorded both on ingest-driven flips and on sweeper-driven offline marks,
// so dashboards can chart availability over time.
func (c *Client) WriteDeviceOnline(deviceID string, online bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_online",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"online": online,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
