package command

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Queue defines the interface for the durable command queue.
type Queue interface {
	// Enqueue validates and appends a command for a device, returning the
	// new command's ID. Invalid commands are rejected before any write.
	Enqueue(ctx context.Context, deviceID, name, value string) (int64, error)

	// Pending returns all pending commands for a device in FIFO order
	// (created_at, then id for same-second inserts). It is a read-only
	// peek: repeated calls return the same set until statuses change.
	Pending(ctx context.Context, deviceID string) ([]Command, error)

	// ListByDevice returns commands for a device, newest first, optionally
	// filtered by status (empty filter means all).
	ListByDevice(ctx context.Context, deviceID string, filter Status) ([]Command, error)

	// Get returns a single command by ID.
	Get(ctx context.Context, id int64) (*Command, error)

	// SetStatus moves a command to a new status. Terminal statuses record
	// processed_at. Transitions are forward-only; see validTransition.
	SetStatus(ctx context.Context, id int64, status Status) error
}

// SQLiteQueue implements Queue using SQLite.
type SQLiteQueue struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteQueue creates a new SQLite-backed command queue.
func NewSQLiteQueue(db *sql.DB) *SQLiteQueue {
	return &SQLiteQueue{db: db, now: time.Now}
}

// SetClock overrides the time source. Tests only.
func (q *SQLiteQueue) SetClock(now func() time.Time) {
	q.now = now
}

const commandColumns = "id, device_id, command, value, status, created_at, processed_at"

// Enqueue validates and appends a command.
func (q *SQLiteQueue) Enqueue(ctx context.Context, deviceID, name, value string) (int64, error) {
	if deviceID == "" {
		return 0, fmt.Errorf("%w: device id is required", ErrInvalidCommand)
	}
	if err := Validate(name, value); err != nil {
		return 0, err
	}

	result, err := q.db.ExecContext(ctx,
		`INSERT INTO command_queue (device_id, command, value, status, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		deviceID, name, value, string(StatusPending),
		q.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("enqueuing command: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("command insert id: %w", err)
	}
	return id, nil
}

// Pending returns the device's pending commands in FIFO order.
//
// The secondary id sort keeps ordering deterministic when several commands
// share a created_at second (RFC3339 text has second resolution).
func (q *SQLiteQueue) Pending(ctx context.Context, deviceID string) ([]Command, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+commandColumns+`
		 FROM command_queue
		 WHERE device_id = ? AND status = ?
		 ORDER BY created_at ASC, id ASC`,
		deviceID, string(StatusPending),
	)
	if err != nil {
		return nil, fmt.Errorf("querying pending commands: %w", err)
	}
	defer rows.Close()

	return scanCommands(rows)
}

// ListByDevice returns commands newest first, optionally filtered by status.
func (q *SQLiteQueue) ListByDevice(ctx context.Context, deviceID string, filter Status) ([]Command, error) {
	if filter != "" && !filter.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, filter)
	}

	query := `SELECT ` + commandColumns + ` FROM command_queue WHERE device_id = ?`
	args := []any{deviceID}
	if filter != "" {
		query += " AND status = ?"
		args = append(args, string(filter))
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying commands: %w", err)
	}
	defer rows.Close()

	return scanCommands(rows)
}

// Get returns a single command by ID.
func (q *SQLiteQueue) Get(ctx context.Context, id int64) (*Command, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+commandColumns+" FROM command_queue WHERE id = ?", id)

	cmd, err := scanCommand(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCommandNotFound
		}
		return nil, err
	}
	return cmd, nil
}

// SetStatus moves a command to a new status, enforcing forward-only
// transitions. Completed and failed commands record processed_at.
func (q *SQLiteQueue) SetStatus(ctx context.Context, id int64, status Status) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	var current string
	err = tx.QueryRowContext(ctx,
		"SELECT status FROM command_queue WHERE id = ?", id,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrCommandNotFound
	}
	if err != nil {
		return fmt.Errorf("querying command status: %w", err)
	}

	if !validTransition(Status(current), status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
	}

	var processedAt any
	if status.IsTerminal() {
		processedAt = q.now().UTC().Format(time.RFC3339)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE command_queue SET status = ?, processed_at = ? WHERE id = ?",
		string(status), processedAt, id,
	); err != nil {
		return fmt.Errorf("updating command status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing status update: %w", err)
	}
	return nil
}

// validTransition reports whether a status change moves forward.
//
//	pending    -> processing | completed | failed
//	processing -> completed | failed
//	terminal   -> nothing
//
// pending may jump straight to a terminal state: simple firmware executes
// commands synchronously and never reports processing.
func validTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing || to.IsTerminal()
	case StatusProcessing:
		return to.IsTerminal()
	default:
		return false
	}
}

// scanCommands scans all rows into a slice.
func scanCommands(rows *sql.Rows) ([]Command, error) {
	commands := []Command{}
	for rows.Next() {
		cmd, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		commands = append(commands, *cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating commands: %w", err)
	}
	return commands, nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// scanCommand scans a command from a row or rows.
func scanCommand(s scanner) (*Command, error) {
	var cmd Command
	var status, createdAt string
	var processedAt sql.NullString

	err := s.Scan(&cmd.ID, &cmd.DeviceID, &cmd.Name, &cmd.Value, &status, &createdAt, &processedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning command: %w", err)
	}

	cmd.Status = Status(status)
	cmd.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	if processedAt.Valid {
		t, parseErr := time.Parse(time.RFC3339, processedAt.String)
		if parseErr == nil {
			cmd.ProcessedAt = &t
		}
	}

	return &cmd, nil
}
