// Package device implements the purifier fleet domain: registration,
// telemetry ingestion, current-status snapshots, liveness inference,
// per-device settings, and aggregate statistics.
//
// Persistence follows the repository pattern over database/sql with
// SQLite-backed implementations. Timestamps are stored as RFC3339 UTC
// text, booleans as 0/1 integers.
//
// The ingestion path is the heart of the package:
//
//	ingestor := device.NewIngestor(devices, readings, status)
//	st, err := ingestor.Ingest(ctx, "a4:cf:12:09:fe:01", input, remoteIP)
//
// Liveness is inferred, never reported: a device is online when it has
// pushed a reading recently. See Monitor for the dual-threshold scheme.
package device
