package command

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupQueueTestDB creates an in-memory SQLite database with the command_queue table.
func setupQueueTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE command_queue (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id TEXT NOT NULL,
			command TEXT NOT NULL,
			value TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TEXT NOT NULL,
			processed_at TEXT
		) STRICT;
		CREATE INDEX idx_command_queue_pending ON command_queue(device_id, status, created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestEnqueue(t *testing.T) {
	db := setupQueueTestDB(t)
	q := NewSQLiteQueue(db)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, "dev-1", NameFan, "on")
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if id == 0 {
		t.Error("Enqueue() id = 0, want non-zero")
	}

	cmd, err := q.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if cmd.Status != StatusPending {
		t.Errorf("Status = %q, want pending", cmd.Status)
	}
	if cmd.ProcessedAt != nil {
		t.Error("ProcessedAt should be nil for a pending command")
	}
}

func TestEnqueue_Validation(t *testing.T) {
	db := setupQueueTestDB(t)
	q := NewSQLiteQueue(db)
	ctx := context.Background()

	tests := []struct {
		name    string
		command string
		value   string
		wantErr error
	}{
		{"unknown command", "reboot", "now", ErrInvalidCommand},
		{"fan bad value", NameFan, "maybe", ErrInvalidValue},
		{"fan wrong case", NameFan, "ON", ErrInvalidValue},
		{"auto lower case", NameAuto, "on", ErrInvalidValue},
		{"threshold not a number", NameThreshold, "high", ErrInvalidValue},
		{"threshold too low", NameThreshold, "99", ErrInvalidValue},
		{"threshold too high", NameThreshold, "2001", ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := q.Enqueue(ctx, "dev-1", tt.command, tt.value)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Enqueue() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	// Nothing may reach the table when validation fails.
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM command_queue").Scan(&count); err != nil {
		t.Fatalf("count query error = %v", err)
	}
	if count != 0 {
		t.Errorf("command_queue rows = %d, want 0 after rejected enqueues", count)
	}
}

func TestPending_FIFOOrder(t *testing.T) {
	db := setupQueueTestDB(t)
	q := NewSQLiteQueue(db)
	ctx := context.Background()

	// Same created_at second for all three: the id tiebreak keeps FIFO order.
	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	q.SetClock(func() time.Time { return base })

	first, err := q.Enqueue(ctx, "dev-1", NameFan, "on")
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	second, err := q.Enqueue(ctx, "dev-1", NameAuto, "ON")
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	third, err := q.Enqueue(ctx, "dev-1", NameThreshold, "500")
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	// Another device's commands must not leak in.
	if _, err := q.Enqueue(ctx, "dev-2", NameFan, "off"); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	pending, err := q.Pending(ctx, "dev-1")
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("Pending() length = %d, want 3", len(pending))
	}

	wantOrder := []int64{first, second, third}
	for i, cmd := range pending {
		if cmd.ID != wantOrder[i] {
			t.Errorf("pending[%d].ID = %d, want %d", i, cmd.ID, wantOrder[i])
		}
	}
}

func TestPending_IsReadOnlyPeek(t *testing.T) {
	db := setupQueueTestDB(t)
	q := NewSQLiteQueue(db)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, "dev-1", NameFan, "on"); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	// A drain must not consume: the same set comes back until acknowledged.
	for i := 0; i < 3; i++ {
		pending, err := q.Pending(ctx, "dev-1")
		if err != nil {
			t.Fatalf("Pending() call %d error = %v", i, err)
		}
		if len(pending) != 1 {
			t.Fatalf("Pending() call %d length = %d, want 1", i, len(pending))
		}
	}
}

func TestSetStatus_TerminalSetsProcessedAt(t *testing.T) {
	db := setupQueueTestDB(t)
	q := NewSQLiteQueue(db)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, "dev-1", NameFan, "off")
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	if err := q.SetStatus(ctx, id, StatusProcessing); err != nil {
		t.Fatalf("SetStatus(processing) error = %v", err)
	}
	cmd, err := q.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if cmd.ProcessedAt != nil {
		t.Error("ProcessedAt set for processing, want nil")
	}

	if err := q.SetStatus(ctx, id, StatusCompleted); err != nil {
		t.Fatalf("SetStatus(completed) error = %v", err)
	}
	cmd, err = q.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if cmd.Status != StatusCompleted {
		t.Errorf("Status = %q, want completed", cmd.Status)
	}
	if cmd.ProcessedAt == nil {
		t.Error("ProcessedAt = nil, want set for completed command")
	}

	// Completed commands no longer show up in a drain.
	pending, err := q.Pending(ctx, "dev-1")
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("Pending() length = %d, want 0", len(pending))
	}
}

func TestSetStatus_FailedSetsProcessedAt(t *testing.T) {
	db := setupQueueTestDB(t)
	q := NewSQLiteQueue(db)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, "dev-1", NameThreshold, "1500")
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	// pending -> failed directly: firmware that executes synchronously
	// never reports processing.
	if err := q.SetStatus(ctx, id, StatusFailed); err != nil {
		t.Fatalf("SetStatus(failed) error = %v", err)
	}

	cmd, err := q.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if cmd.Status != StatusFailed {
		t.Errorf("Status = %q, want failed", cmd.Status)
	}
	if cmd.ProcessedAt == nil {
		t.Error("ProcessedAt = nil, want set for failed command")
	}
}

func TestSetStatus_NotFound(t *testing.T) {
	db := setupQueueTestDB(t)
	q := NewSQLiteQueue(db)
	ctx := context.Background()

	err := q.SetStatus(ctx, 9999, StatusCompleted)
	if !errors.Is(err, ErrCommandNotFound) {
		t.Errorf("SetStatus() error = %v, want ErrCommandNotFound", err)
	}
}

func TestSetStatus_InvalidTransitions(t *testing.T) {
	db := setupQueueTestDB(t)
	q := NewSQLiteQueue(db)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, "dev-1", NameFan, "on")
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := q.SetStatus(ctx, id, StatusCompleted); err != nil {
		t.Fatalf("SetStatus(completed) error = %v", err)
	}

	// Terminal states are immutable.
	for _, to := range []Status{StatusPending, StatusProcessing, StatusFailed} {
		if err := q.SetStatus(ctx, id, to); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("SetStatus(completed -> %s) error = %v, want ErrInvalidTransition", to, err)
		}
	}

	// processing cannot go back to pending.
	id2, err := q.Enqueue(ctx, "dev-1", NameFan, "off")
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := q.SetStatus(ctx, id2, StatusProcessing); err != nil {
		t.Fatalf("SetStatus(processing) error = %v", err)
	}
	if err := q.SetStatus(ctx, id2, StatusPending); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("SetStatus(processing -> pending) error = %v, want ErrInvalidTransition", err)
	}
}

func TestSetStatus_InvalidStatus(t *testing.T) {
	db := setupQueueTestDB(t)
	q := NewSQLiteQueue(db)
	ctx := context.Background()

	err := q.SetStatus(ctx, 1, Status("cancelled"))
	if !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("SetStatus() error = %v, want ErrInvalidStatus", err)
	}
}

func TestListByDevice_StatusFilter(t *testing.T) {
	db := setupQueueTestDB(t)
	q := NewSQLiteQueue(db)
	ctx := context.Background()

	id1, err := q.Enqueue(ctx, "dev-1", NameFan, "on")
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if _, err := q.Enqueue(ctx, "dev-1", NameAuto, "OFF"); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := q.SetStatus(ctx, id1, StatusCompleted); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	all, err := q.ListByDevice(ctx, "dev-1", "")
	if err != nil {
		t.Fatalf("ListByDevice() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("ListByDevice(all) length = %d, want 2", len(all))
	}

	completed, err := q.ListByDevice(ctx, "dev-1", StatusCompleted)
	if err != nil {
		t.Fatalf("ListByDevice() error = %v", err)
	}
	if len(completed) != 1 || completed[0].ID != id1 {
		t.Errorf("ListByDevice(completed) = %v, want only command %d", completed, id1)
	}

	if _, err := q.ListByDevice(ctx, "dev-1", Status("bogus")); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("ListByDevice(bogus) error = %v, want ErrInvalidStatus", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	db := setupQueueTestDB(t)
	q := NewSQLiteQueue(db)

	_, err := q.Get(context.Background(), 42)
	if !errors.Is(err, ErrCommandNotFound) {
		t.Errorf("Get() error = %v, want ErrCommandNotFound", err)
	}
}
