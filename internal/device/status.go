package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// StatusRepository defines the interface for current-status persistence.
type StatusRepository interface {
	// Upsert writes the snapshot for a device, replacing any previous row.
	// Last write wins; there is no versioning or conflict detection.
	Upsert(ctx context.Context, st *CurrentStatus) error

	// GetByDevice returns the snapshot for a device, or ErrStatusNotFound
	// if the device has never reported.
	GetByDevice(ctx context.Context, deviceID string) (*CurrentStatus, error)

	// List returns the snapshots for all devices that have ever reported.
	List(ctx context.Context) ([]CurrentStatus, error)

	// MarkStaleOffline flips the stored online flag to false for every
	// device still marked online whose last_seen is older than cutoff.
	// Returns the number of rows flipped.
	MarkStaleOffline(ctx context.Context, cutoff time.Time) (int64, error)
}

// SQLiteStatusRepository implements StatusRepository using SQLite.
type SQLiteStatusRepository struct {
	db *sql.DB
}

// NewSQLiteStatusRepository creates a new SQLite-backed status repository.
func NewSQLiteStatusRepository(db *sql.DB) *SQLiteStatusRepository {
	return &SQLiteStatusRepository{db: db}
}

const statusColumns = "device_id, system_mode, input_air_quality, output_air_quality, efficiency, fan_state, auto_mode, online, last_seen, ip_address"

// Upsert writes the current status snapshot for a device.
func (r *SQLiteStatusRepository) Upsert(ctx context.Context, st *CurrentStatus) error {
	if st.DeviceID == "" {
		return ErrInvalidDeviceID
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO current_status (device_id, system_mode, input_air_quality, output_air_quality, efficiency, fan_state, auto_mode, online, last_seen, ip_address)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(device_id) DO UPDATE SET
		     system_mode = excluded.system_mode,
		     input_air_quality = excluded.input_air_quality,
		     output_air_quality = excluded.output_air_quality,
		     efficiency = excluded.efficiency,
		     fan_state = excluded.fan_state,
		     auto_mode = excluded.auto_mode,
		     online = excluded.online,
		     last_seen = excluded.last_seen,
		     ip_address = excluded.ip_address`,
		st.DeviceID, st.SystemMode,
		st.InputAirQuality, st.OutputAirQuality, st.Efficiency,
		boolToInt(st.FanState), boolToInt(st.AutoMode), boolToInt(st.Online),
		st.LastSeen.UTC().Format(time.RFC3339),
		nullString(st.IPAddress),
	)
	if err != nil {
		return fmt.Errorf("upserting current status: %w", err)
	}
	return nil
}

// GetByDevice returns the current status snapshot for a device.
func (r *SQLiteStatusRepository) GetByDevice(ctx context.Context, deviceID string) (*CurrentStatus, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+statusColumns+" FROM current_status WHERE device_id = ?", deviceID)
	return scanStatus(row)
}

// List returns the snapshots for all reporting devices.
func (r *SQLiteStatusRepository) List(ctx context.Context) ([]CurrentStatus, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+statusColumns+" FROM current_status ORDER BY device_id ASC")
	if err != nil {
		return nil, fmt.Errorf("listing current status: %w", err)
	}
	defer rows.Close()

	statuses := []CurrentStatus{}
	for rows.Next() {
		st, err := scanStatus(rows)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating current status: %w", err)
	}
	return statuses, nil
}

// MarkStaleOffline flips online to false for rows older than cutoff.
func (r *SQLiteStatusRepository) MarkStaleOffline(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"UPDATE current_status SET online = 0 WHERE online = 1 AND last_seen < ?",
		cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("marking stale devices offline: %w", err)
	}

	flipped, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return flipped, nil
}

// scanStatus scans a current status from a row or rows.
func scanStatus(s scanner) (*CurrentStatus, error) {
	var st CurrentStatus
	var input, output, efficiency sql.NullFloat64
	var fanState, autoMode, online int
	var lastSeen string
	var ip sql.NullString

	err := s.Scan(&st.DeviceID, &st.SystemMode, &input, &output, &efficiency,
		&fanState, &autoMode, &online, &lastSeen, &ip)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStatusNotFound
		}
		return nil, fmt.Errorf("scanning current status: %w", err)
	}

	st.InputAirQuality = input.Float64
	st.OutputAirQuality = output.Float64
	st.Efficiency = efficiency.Float64
	st.FanState = fanState != 0
	st.AutoMode = autoMode != 0
	st.Online = online != 0
	if ip.Valid {
		st.IPAddress = ip.String
	}
	st.LastSeen, _ = time.Parse(time.RFC3339, lastSeen) //nolint:errcheck // format is controlled

	return &st, nil
}
