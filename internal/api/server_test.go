package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/electronicsideas/aircore/internal/auth"
	"github.com/electronicsideas/aircore/internal/command"
	"github.com/electronicsideas/aircore/internal/device"
	"github.com/electronicsideas/aircore/internal/infrastructure/config"
	"github.com/electronicsideas/aircore/internal/infrastructure/logging"
)

const testJWTSecret = "test-secret-key-for-api-tests"

// testEnv bundles a fully wired server with direct repository access so
// tests can seed data without going through the HTTP surface.
type testEnv struct {
	handler  http.Handler
	server   *Server
	db       *sql.DB
	devices  device.Repository
	queue    command.Queue
	users    auth.UserRepository
	ingestor *device.Ingestor

	adminToken string
	userToken  string
}

// newTestEnv creates an API server backed by an in-memory database, with
// one admin ("admin") and one regular user ("viewer") pre-created.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})

	schema := `
		CREATE TABLE devices (
			device_id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			api_username TEXT UNIQUE,
			api_password_hash TEXT,
			created_at TEXT NOT NULL
		) STRICT;
		CREATE TABLE readings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id TEXT NOT NULL,
			system_mode TEXT NOT NULL,
			input_air_quality REAL,
			output_air_quality REAL,
			efficiency REAL,
			fan_state INTEGER NOT NULL DEFAULT 0,
			auto_mode INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		) STRICT;
		CREATE TABLE current_status (
			device_id TEXT PRIMARY KEY,
			system_mode TEXT NOT NULL,
			input_air_quality REAL,
			output_air_quality REAL,
			efficiency REAL,
			fan_state INTEGER NOT NULL DEFAULT 0,
			auto_mode INTEGER NOT NULL DEFAULT 0,
			online INTEGER NOT NULL DEFAULT 0,
			last_seen TEXT NOT NULL,
			ip_address TEXT
		) STRICT;
		CREATE TABLE command_queue (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id TEXT NOT NULL,
			command TEXT NOT NULL,
			value TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TEXT NOT NULL,
			processed_at TEXT
		) STRICT;
		CREATE TABLE settings (
			device_id TEXT PRIMARY KEY,
			threshold INTEGER NOT NULL DEFAULT 300,
			updated_at TEXT NOT NULL
		) STRICT;
		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			is_admin INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create test schema: %v", err)
	}

	devices := device.NewSQLiteRepository(db)
	status := device.NewSQLiteStatusRepository(db)
	readings := device.NewSQLiteReadingRepository(db)
	settings := device.NewSQLiteSettingsRepository(db)
	queue := command.NewSQLiteQueue(db)
	users := auth.NewUserRepository(db)
	ingestor := device.NewIngestor(devices, readings, status)
	monitor := device.NewMonitor(status, 0, 0, 0)

	server, err := New(Deps{
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{Secret: testJWTSecret, AccessTokenTTL: 60},
		},
		Logger:   logging.Default(),
		Devices:  devices,
		Status:   status,
		Readings: readings,
		Settings: settings,
		Ingestor: ingestor,
		Monitor:  monitor,
		Queue:    queue,
		Users:    users,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	env := &testEnv{
		handler:  server.buildRouter(),
		server:   server,
		db:       db,
		devices:  devices,
		queue:    queue,
		users:    users,
		ingestor: ingestor,
	}

	env.adminToken = env.createUser(t, "admin", "admin-password", true)
	env.userToken = env.createUser(t, "viewer", "viewer-password", false)

	return env
}

// createUser creates a user directly and returns a valid JWT for it.
func (e *testEnv) createUser(t *testing.T, username, password string, isAdmin bool) string {
	t.Helper()

	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	user := &auth.User{Username: username, PasswordHash: hash, IsAdmin: isAdmin}
	if err := e.users.Create(context.Background(), user); err != nil {
		t.Fatalf("creating user %s: %v", username, err)
	}

	token, err := auth.GenerateToken(user, testJWTSecret, 60)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	return token
}

// createDevice registers a device with credentials and returns its plaintext password.
func (e *testEnv) createDevice(t *testing.T, deviceID string) string {
	t.Helper()

	rec := e.request(t, http.MethodPost, "/api/devices", e.adminToken,
		map[string]any{"device_id": deviceID, "name": deviceID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("creating device %s: status %d, body %s", deviceID, rec.Code, rec.Body.String())
	}

	var resp createDeviceResponse
	decodeBody(t, rec, &resp)
	return resp.APIPassword
}

// request performs a JSON request against the test router.
func (e *testEnv) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshalling request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// deviceRequest performs a JSON request with device Basic credentials.
func (e *testEnv) deviceRequest(t *testing.T, method, path, username, password string, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshalling request body: %v", err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(username, password)

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
}

func TestNew_MissingDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() with empty deps error = nil, want error")
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health status = %d, want 200", rec.Code)
	}

	var resp struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	decodeBody(t, rec, &resp)
	if resp.Status != "ok" {
		t.Errorf("health status = %q, want ok", resp.Status)
	}
	if resp.Version != "test" {
		t.Errorf("health version = %q, want test", resp.Version)
	}
}

type failingCheck struct{}

func (failingCheck) HealthCheck(ctx context.Context) error {
	return fmt.Errorf("connection refused")
}

func TestHealth_Degraded(t *testing.T) {
	env := newTestEnv(t)
	env.server.checks = map[string]HealthChecker{"mqtt": failingCheck{}}

	rec := env.request(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("GET /health status = %d, want 503", rec.Code)
	}

	var resp struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	decodeBody(t, rec, &resp)
	if resp.Status != "degraded" {
		t.Errorf("health status = %q, want degraded", resp.Status)
	}
	if resp.Components["mqtt"] != "connection refused" {
		t.Errorf("mqtt component = %q, want failure message", resp.Components["mqtt"])
	}
}
