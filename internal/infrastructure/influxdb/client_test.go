package influxdb_test

import (
	"context"
	"errors"
	"testing"

	"github.com/electronicsideas/aircore/internal/infrastructure/config"
	"github.com/electronicsideas/aircore/internal/infrastructure/influxdb"
)

// testConfig returns a configuration for the local dev InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "aircore-dev-token",
		Org:           "aircore",
		Bucket:        "telemetry",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// skipIfNoInfluxDB skips the test if InfluxDB is not running locally.
func skipIfNoInfluxDB(t *testing.T) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Skip("InfluxDB not available, skipping integration test")
	}
	return client
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect(disabled) error = %v, want ErrDisabled", err)
	}
}

func TestWriteAirQuality(t *testing.T) {
	client := skipIfNoInfluxDB(t)
	defer client.Close()

	var writeErr error
	client.SetOnError(func(err error) { writeErr = err })

	client.WriteAirQuality("purifier-test", 320.5, 41.2, 87.1, true)
	client.WriteDeviceOnline("purifier-test", true)
	client.Flush()

	if writeErr != nil {
		t.Errorf("async write error = %v", writeErr)
	}

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}
