package device

import (
	"context"
	"errors"
	"testing"
	"time"
)

func insertTestReading(t *testing.T, repo *SQLiteReadingRepository, deviceID string, at time.Time, input float64) *Reading {
	t.Helper()

	rd := &Reading{
		DeviceID:         deviceID,
		SystemMode:       "online",
		InputAirQuality:  input,
		OutputAirQuality: input / 4,
		Efficiency:       75,
		FanState:         true,
		CreatedAt:        at,
	}
	if err := repo.Insert(context.Background(), rd); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	return rd
}

func TestInsert(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteReadingRepository(db)

	rd := &Reading{DeviceID: "rd-1", SystemMode: "online", InputAirQuality: 300}
	if err := repo.Insert(context.Background(), rd); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if rd.ID == 0 {
		t.Error("Insert() did not populate ID")
	}
	if rd.CreatedAt.IsZero() {
		t.Error("Insert() did not populate CreatedAt")
	}
}

func TestInsert_Validation(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteReadingRepository(db)
	ctx := context.Background()

	if err := repo.Insert(ctx, &Reading{SystemMode: "online"}); !errors.Is(err, ErrInvalidDeviceID) {
		t.Errorf("Insert() without device error = %v, want ErrInvalidDeviceID", err)
	}
	if err := repo.Insert(ctx, &Reading{DeviceID: "rd-1"}); !errors.Is(err, ErrInvalidReading) {
		t.Errorf("Insert() without system_mode error = %v, want ErrInvalidReading", err)
	}
}

func TestListSince(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteReadingRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		insertTestReading(t, repo, "hist-1", base.Add(time.Duration(i)*time.Minute), float64(100+i))
	}
	insertTestReading(t, repo, "hist-other", base, 999)

	readings, err := repo.ListSince(ctx, "hist-1", base.Add(90*time.Second), 0)
	if err != nil {
		t.Fatalf("ListSince() error = %v", err)
	}
	// Readings at +2m, +3m, +4m qualify; newest first.
	if len(readings) != 3 {
		t.Fatalf("ListSince() returned %d readings, want 3", len(readings))
	}
	if readings[0].InputAirQuality != 104 || readings[2].InputAirQuality != 102 {
		t.Errorf("ListSince() order = [%v %v %v], want newest first",
			readings[0].InputAirQuality, readings[1].InputAirQuality, readings[2].InputAirQuality)
	}
	for _, rd := range readings {
		if rd.DeviceID != "hist-1" {
			t.Errorf("ListSince() leaked reading for device %q", rd.DeviceID)
		}
	}
}

func TestListSince_Limit(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteReadingRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		insertTestReading(t, repo, "lim-1", base.Add(time.Duration(i)*time.Second), float64(i))
	}

	readings, err := repo.ListSince(ctx, "lim-1", base, 4)
	if err != nil {
		t.Fatalf("ListSince() error = %v", err)
	}
	if len(readings) != 4 {
		t.Fatalf("ListSince() returned %d readings, want limit 4", len(readings))
	}
	if readings[0].InputAirQuality != 9 {
		t.Errorf("ListSince() first = %v, want newest reading", readings[0].InputAirQuality)
	}

	// Oversized limits are clamped rather than rejected.
	if _, err := repo.ListSince(ctx, "lim-1", base, maxHistoryLimit+1); err != nil {
		t.Fatalf("ListSince() with oversized limit error = %v", err)
	}
}

func TestListSince_EmptyWindow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteReadingRepository(db)

	readings, err := repo.ListSince(context.Background(), "nobody", time.Now().Add(-time.Hour), 0)
	if err != nil {
		t.Fatalf("ListSince() error = %v", err)
	}
	if len(readings) != 0 {
		t.Errorf("ListSince() returned %d readings for unknown device, want 0", len(readings))
	}
}

func TestStatsSince(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteReadingRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	samples := []struct {
		input, output float64
		fanOn         bool
	}{
		{100, 25, true},
		{200, 50, true},
		{300, 75, false},
	}
	for i, s := range samples {
		rd := &Reading{
			DeviceID:         "stat-1",
			SystemMode:       "online",
			InputAirQuality:  s.input,
			OutputAirQuality: s.output,
			Efficiency:       75,
			FanState:         s.fanOn,
			CreatedAt:        base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Insert(ctx, rd); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	stats, err := repo.StatsSince(ctx, "stat-1", base)
	if err != nil {
		t.Fatalf("StatsSince() error = %v", err)
	}
	if stats.ReadingCount != 3 {
		t.Errorf("ReadingCount = %d, want 3", stats.ReadingCount)
	}
	if stats.AvgInput != 200 {
		t.Errorf("AvgInput = %v, want 200", stats.AvgInput)
	}
	if stats.MinInput != 100 || stats.MaxInput != 300 {
		t.Errorf("input range = [%v, %v], want [100, 300]", stats.MinInput, stats.MaxInput)
	}
	if stats.AvgOutput != 50 {
		t.Errorf("AvgOutput = %v, want 50", stats.AvgOutput)
	}
	if stats.FanOnCount != 2 {
		t.Errorf("FanOnCount = %d, want 2", stats.FanOnCount)
	}

	// Window excludes the first two samples.
	stats, err = repo.StatsSince(ctx, "stat-1", base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("StatsSince() windowed error = %v", err)
	}
	if stats.ReadingCount != 1 || stats.AvgInput != 300 {
		t.Errorf("windowed stats = %+v, want only the last sample", stats)
	}
}

func TestStatsSince_EmptyWindow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteReadingRepository(db)

	stats, err := repo.StatsSince(context.Background(), "nobody", time.Now())
	if err != nil {
		t.Fatalf("StatsSince() error = %v", err)
	}
	if stats.ReadingCount != 0 || stats.AvgInput != 0 || stats.FanOnCount != 0 {
		t.Errorf("StatsSince() empty window = %+v, want zero values", stats)
	}
}
