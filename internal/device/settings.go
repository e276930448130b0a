package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Auto-mode threshold bounds (air quality sensor units).
const (
	// DefaultThreshold is returned for devices that never stored a setting.
	DefaultThreshold = 300

	MinThreshold = 100
	MaxThreshold = 2000
)

// SettingsRepository defines the interface for per-device settings persistence.
type SettingsRepository interface {
	// GetThreshold returns the stored auto-mode threshold for a device,
	// or DefaultThreshold if the device has no settings row.
	GetThreshold(ctx context.Context, deviceID string) (int, error)

	// SetThreshold validates and upserts the auto-mode threshold.
	SetThreshold(ctx context.Context, deviceID string, threshold int) error
}

// SQLiteSettingsRepository implements SettingsRepository using SQLite.
type SQLiteSettingsRepository struct {
	db *sql.DB
}

// NewSQLiteSettingsRepository creates a new SQLite-backed settings repository.
func NewSQLiteSettingsRepository(db *sql.DB) *SQLiteSettingsRepository {
	return &SQLiteSettingsRepository{db: db}
}

// GetThreshold returns the stored threshold, defaulting when absent.
func (r *SQLiteSettingsRepository) GetThreshold(ctx context.Context, deviceID string) (int, error) {
	if deviceID == "" {
		return 0, ErrInvalidDeviceID
	}

	var threshold int
	err := r.db.QueryRowContext(ctx,
		"SELECT threshold FROM settings WHERE device_id = ?", deviceID,
	).Scan(&threshold)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultThreshold, nil
	}
	if err != nil {
		return 0, fmt.Errorf("querying settings: %w", err)
	}
	return threshold, nil
}

// SetThreshold validates and upserts the threshold for a device.
func (r *SQLiteSettingsRepository) SetThreshold(ctx context.Context, deviceID string, threshold int) error {
	if deviceID == "" {
		return ErrInvalidDeviceID
	}
	if threshold < MinThreshold || threshold > MaxThreshold {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidThreshold, threshold, MinThreshold, MaxThreshold)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settings (device_id, threshold, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(device_id) DO UPDATE SET
		     threshold = excluded.threshold,
		     updated_at = excluded.updated_at`,
		deviceID, threshold, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting settings: %w", err)
	}
	return nil
}
