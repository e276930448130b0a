package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence.
type Repository interface {
	Create(ctx context.Context, dev *Device) error
	GetByID(ctx context.Context, id string) (*Device, error)
	GetByAPIUsername(ctx context.Context, username string) (*Device, error)
	List(ctx context.Context) ([]Device, error)
	Update(ctx context.Context, dev *Device) error
	Delete(ctx context.Context, id string) error

	// FindOrCreate returns the device with the given ID, provisioning a
	// bare row if none exists. The boolean reports whether a row was created.
	FindOrCreate(ctx context.Context, id string) (*Device, bool, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed device repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = "device_id, name, location, api_username, api_password_hash, created_at"

// Create inserts a new device row.
func (r *SQLiteRepository) Create(ctx context.Context, dev *Device) error {
	if !IsValidDeviceID(dev.ID) {
		return ErrInvalidDeviceID
	}
	if dev.Name == "" {
		dev.Name = dev.ID
	}

	now := time.Now().UTC().Truncate(time.Second)
	dev.CreatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO devices (device_id, name, location, api_username, api_password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		dev.ID, dev.Name, dev.Location,
		nullString(dev.APIUsername), nullString(dev.APIPasswordHash),
		now.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("creating device: %w", err)
	}
	return nil
}

// GetByID retrieves a device by its unique ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE device_id = ?", id)
	return scanDevice(row)
}

// GetByAPIUsername retrieves a device by its API username.
// Used by the ingest endpoint to authenticate purifier pushes.
func (r *SQLiteRepository) GetByAPIUsername(ctx context.Context, username string) (*Device, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE api_username = ?", username)
	return scanDevice(row)
}

// List returns all devices ordered by creation date.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+deviceColumns+" FROM devices ORDER BY created_at ASC, device_id ASC")
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defer rows.Close()

	devices := []Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// Update modifies a device's mutable fields (name, location).
func (r *SQLiteRepository) Update(ctx context.Context, dev *Device) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE devices SET name = ?, location = ? WHERE device_id = ?",
		dev.Name, dev.Location, dev.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// Delete removes a device and its dependent rows.
// Readings are kept for offline analysis; status, queue and settings go.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	result, err := tx.ExecContext(ctx, "DELETE FROM devices WHERE device_id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrDeviceNotFound
	}

	for _, table := range []string{"current_status", "command_queue", "settings"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE device_id = ?", id); err != nil {
			return fmt.Errorf("deleting device %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing device delete: %w", err)
	}
	return nil
}

// FindOrCreate returns the device with the given ID, auto-provisioning a
// bare row the first time a purifier reports in.
func (r *SQLiteRepository) FindOrCreate(ctx context.Context, id string) (*Device, bool, error) {
	dev, err := r.GetByID(ctx, id)
	if err == nil {
		return dev, false, nil
	}
	if !errors.Is(err, ErrDeviceNotFound) {
		return nil, false, err
	}

	dev = &Device{ID: id}
	if createErr := r.Create(ctx, dev); createErr != nil {
		// Lost a provisioning race; the row exists now.
		if errors.Is(createErr, ErrDeviceExists) {
			existing, getErr := r.GetByID(ctx, id)
			return existing, false, getErr
		}
		return nil, false, createErr
	}
	return dev, true, nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a device from a row or rows.
func scanDevice(s scanner) (*Device, error) {
	var d Device
	var apiUsername, apiPasswordHash sql.NullString
	var createdAt string

	err := s.Scan(&d.ID, &d.Name, &d.Location, &apiUsername, &apiPasswordHash, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("scanning device: %w", err)
	}

	if apiUsername.Valid {
		d.APIUsername = apiUsername.String
	}
	if apiPasswordHash.Valid {
		d.APIPasswordHash = apiPasswordHash.String
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled

	return &d, nil
}

// Helper functions shared by the SQLite repositories in this package.

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "unique constraint"))
}
