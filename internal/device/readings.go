package device

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// History query bounds.
const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// ReadingRepository defines the interface for reading persistence.
type ReadingRepository interface {
	// Insert appends an immutable reading row. The reading's ID and
	// CreatedAt are populated on return.
	Insert(ctx context.Context, r *Reading) error

	// ListSince returns readings for a device newer than since,
	// newest first, capped at limit (default 100, max 1000).
	ListSince(ctx context.Context, deviceID string, since time.Time, limit int) ([]Reading, error)

	// StatsSince returns aggregate statistics over readings newer than since.
	StatsSince(ctx context.Context, deviceID string, since time.Time) (*Stats, error)
}

// SQLiteReadingRepository implements ReadingRepository using SQLite.
type SQLiteReadingRepository struct {
	db *sql.DB
}

// NewSQLiteReadingRepository creates a new SQLite-backed reading repository.
func NewSQLiteReadingRepository(db *sql.DB) *SQLiteReadingRepository {
	return &SQLiteReadingRepository{db: db}
}

// Insert appends a reading row.
func (r *SQLiteReadingRepository) Insert(ctx context.Context, reading *Reading) error {
	if reading.DeviceID == "" {
		return ErrInvalidDeviceID
	}
	if reading.SystemMode == "" {
		return fmt.Errorf("%w: system_mode is required", ErrInvalidReading)
	}

	if reading.CreatedAt.IsZero() {
		reading.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO readings (device_id, system_mode, input_air_quality, output_air_quality, efficiency, fan_state, auto_mode, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		reading.DeviceID, reading.SystemMode,
		reading.InputAirQuality, reading.OutputAirQuality, reading.Efficiency,
		boolToInt(reading.FanState), boolToInt(reading.AutoMode),
		reading.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting reading: %w", err)
	}

	reading.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading insert id: %w", err)
	}
	return nil
}

// ListSince returns readings newer than since, newest first.
func (r *SQLiteReadingRepository) ListSince(ctx context.Context, deviceID string, since time.Time, limit int) ([]Reading, error) {
	if deviceID == "" {
		return nil, ErrInvalidDeviceID
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, system_mode, input_air_quality, output_air_quality, efficiency, fan_state, auto_mode, created_at
		 FROM readings
		 WHERE device_id = ? AND created_at >= ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		deviceID, since.UTC().Format(time.RFC3339), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	readings := make([]Reading, 0, limit)
	for rows.Next() {
		var rd Reading
		var input, output, efficiency sql.NullFloat64
		var fanState, autoMode int
		var createdAt string

		if err := rows.Scan(&rd.ID, &rd.DeviceID, &rd.SystemMode,
			&input, &output, &efficiency, &fanState, &autoMode, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}

		rd.InputAirQuality = input.Float64
		rd.OutputAirQuality = output.Float64
		rd.Efficiency = efficiency.Float64
		rd.FanState = fanState != 0
		rd.AutoMode = autoMode != 0
		rd.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled

		readings = append(readings, rd)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}
	return readings, nil
}

// StatsSince returns aggregate statistics over readings newer than since.
// A device with no readings in the window gets a zero-valued Stats, not an error.
func (r *SQLiteReadingRepository) StatsSince(ctx context.Context, deviceID string, since time.Time) (*Stats, error) {
	if deviceID == "" {
		return nil, ErrInvalidDeviceID
	}

	var st Stats
	var avgIn, minIn, maxIn, avgOut, minOut, maxOut, avgEff sql.NullFloat64

	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        AVG(input_air_quality), MIN(input_air_quality), MAX(input_air_quality),
		        AVG(output_air_quality), MIN(output_air_quality), MAX(output_air_quality),
		        AVG(efficiency),
		        COALESCE(SUM(fan_state), 0)
		 FROM readings
		 WHERE device_id = ? AND created_at >= ?`,
		deviceID, since.UTC().Format(time.RFC3339),
	).Scan(&st.ReadingCount,
		&avgIn, &minIn, &maxIn,
		&avgOut, &minOut, &maxOut,
		&avgEff, &st.FanOnCount)
	if err != nil {
		return nil, fmt.Errorf("querying reading stats: %w", err)
	}

	st.AvgInput = avgIn.Float64
	st.MinInput = minIn.Float64
	st.MaxInput = maxIn.Float64
	st.AvgOutput = avgOut.Float64
	st.MinOutput = minOut.Float64
	st.MaxOutput = maxOut.Float64
	st.AvgEfficiency = avgEff.Float64

	return &st, nil
}
