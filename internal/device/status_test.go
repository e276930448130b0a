package device

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestUpsert_InsertThenUpdate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteStatusRepository(db)
	ctx := context.Background()

	first := &CurrentStatus{
		DeviceID:         "st-1",
		SystemMode:       "online",
		InputAirQuality:  420,
		OutputAirQuality: 85,
		Efficiency:       79.8,
		FanState:         true,
		AutoMode:         true,
		Online:           true,
		LastSeen:         time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC),
		IPAddress:        "192.168.1.40",
	}
	if err := repo.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := repo.GetByDevice(ctx, "st-1")
	if err != nil {
		t.Fatalf("GetByDevice() error = %v", err)
	}
	if got.InputAirQuality != 420 || !got.FanState || !got.Online {
		t.Errorf("GetByDevice() = %+v, does not match upserted snapshot", got)
	}
	if got.IPAddress != "192.168.1.40" {
		t.Errorf("IPAddress = %q, want %q", got.IPAddress, "192.168.1.40")
	}

	// Second upsert replaces the row wholesale.
	second := &CurrentStatus{
		DeviceID:   "st-1",
		SystemMode: "standby",
		FanState:   false,
		Online:     false,
		LastSeen:   time.Date(2026, 8, 29, 10, 5, 0, 0, time.UTC),
	}
	if err := repo.Upsert(ctx, second); err != nil {
		t.Fatalf("Upsert() second error = %v", err)
	}

	got, err = repo.GetByDevice(ctx, "st-1")
	if err != nil {
		t.Fatalf("GetByDevice() error = %v", err)
	}
	if got.SystemMode != "standby" || got.Online || got.FanState {
		t.Errorf("Upsert() did not overwrite snapshot: %+v", got)
	}
	if got.InputAirQuality != 0 {
		t.Errorf("InputAirQuality = %v after overwrite, want 0", got.InputAirQuality)
	}
	if !got.LastSeen.Equal(second.LastSeen) {
		t.Errorf("LastSeen = %v, want %v", got.LastSeen, second.LastSeen)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM current_status WHERE device_id = 'st-1'").Scan(&count); err != nil {
		t.Fatalf("counting rows: %v", err)
	}
	if count != 1 {
		t.Errorf("current_status has %d rows for device, want exactly 1", count)
	}
}

func TestUpsert_EmptyDeviceID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteStatusRepository(db)

	err := repo.Upsert(context.Background(), &CurrentStatus{SystemMode: "online", LastSeen: time.Now()})
	if !errors.Is(err, ErrInvalidDeviceID) {
		t.Errorf("Upsert() error = %v, want ErrInvalidDeviceID", err)
	}
}

func TestGetByDevice_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteStatusRepository(db)

	if _, err := repo.GetByDevice(context.Background(), "never-reported"); !errors.Is(err, ErrStatusNotFound) {
		t.Errorf("GetByDevice() error = %v, want ErrStatusNotFound", err)
	}
}

func TestStatusList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteStatusRepository(db)
	ctx := context.Background()

	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	for _, id := range []string{"lst-b", "lst-a"} {
		if err := repo.Upsert(ctx, &CurrentStatus{DeviceID: id, SystemMode: "online", LastSeen: now}); err != nil {
			t.Fatalf("Upsert(%s) error = %v", id, err)
		}
	}

	statuses, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("List() returned %d snapshots, want 2", len(statuses))
	}
	if statuses[0].DeviceID != "lst-a" || statuses[1].DeviceID != "lst-b" {
		t.Errorf("List() order = [%s %s], want sorted by device_id", statuses[0].DeviceID, statuses[1].DeviceID)
	}
}

func TestMarkStaleOffline(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteStatusRepository(db)
	ctx := context.Background()

	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	rows := []struct {
		id       string
		lastSeen time.Time
		online   bool
	}{
		{"fresh", now.Add(-time.Minute), true},
		{"stale-online", now.Add(-10 * time.Minute), true},
		{"stale-offline", now.Add(-10 * time.Minute), false},
	}
	for _, row := range rows {
		st := &CurrentStatus{DeviceID: row.id, SystemMode: "online", Online: row.online, LastSeen: row.lastSeen}
		if err := repo.Upsert(ctx, st); err != nil {
			t.Fatalf("Upsert(%s) error = %v", row.id, err)
		}
	}

	flipped, err := repo.MarkStaleOffline(ctx, now.Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("MarkStaleOffline() error = %v", err)
	}
	if flipped != 1 {
		t.Errorf("MarkStaleOffline() flipped = %d, want 1", flipped)
	}

	fresh, err := repo.GetByDevice(ctx, "fresh")
	if err != nil {
		t.Fatalf("GetByDevice(fresh) error = %v", err)
	}
	if !fresh.Online {
		t.Error("fresh device flipped offline, want untouched")
	}

	stale, err := repo.GetByDevice(ctx, "stale-online")
	if err != nil {
		t.Fatalf("GetByDevice(stale-online) error = %v", err)
	}
	if stale.Online {
		t.Error("stale device still online after sweep")
	}

	// Idempotent: a second sweep finds nothing left to flip.
	flipped, err = repo.MarkStaleOffline(ctx, now.Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("MarkStaleOffline() second error = %v", err)
	}
	if flipped != 0 {
		t.Errorf("MarkStaleOffline() second flipped = %d, want 0", flipped)
	}
}
