package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/pettracker-core/internal/entity"
	"github.com/nerrad567/pettracker-core/internal/home"
	"github.com/nerrad567/pettracker-core/internal/infrastructure/config"
	"github.com/nerrad567/pettracker-core/internal/infrastructure/database"
	"github.com/nerrad567/pettracker-core/internal/infrastructure/logging"
	"github.com/nerrad567/pettracker-core/internal/schema"
	"github.com/nerrad567/pettracker-core/internal/service"
	"github.com/nerrad567/pettracker-core/internal/twin"
	_ "github.com/nerrad567/pettracker-core/migrations"
)

// testServer creates a Server over a real home manager backed by in-memory
// SQLite. opts adjust the dependencies before the server is built.
func testServer(t *testing.T, opts ...func(*Deps)) (*Server, http.Handler) {
	t.Helper()

	db, err := database.Open(database.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	schemas, err := schema.NewDefaultRegistry("")
	if err != nil {
		t.Fatalf("NewDefaultRegistry() error = %v", err)
	}
	store := entity.NewStore(entity.NewSQLiteRepository(db.DB), schemas)
	twins := twin.NewAggregator(store, service.NewEngine(config.DefaultRoomName, nil))

	manager, err := home.NewManager(home.Deps{
		Store:           store,
		Twins:           twins,
		DefaultRoomName: config.DefaultRoomName,
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	log := logging.NewWithWriter(config.LoggingConfig{Level: "error", Format: "text"}, "test", io.Discard)
	deps := Deps{
		Config:   config.APIConfig{Host: "127.0.0.1", Port: 0},
		Logger:   log,
		Homes:    manager,
		Registry: prometheus.NewRegistry(),
		DB:       db.DB,
		Twins:    twins,
		Version:  "test",
	}
	for _, opt := range opts {
		opt(&deps)
	}
	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv, srv.buildRouter()
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

// mustCreate posts body and returns the created entity.
func mustCreate(t *testing.T, h http.Handler, path string, body any) entity.Entity {
	t.Helper()
	rec := doRequest(t, h, http.MethodPost, path, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST %s status = %d, want 201: %s", path, rec.Code, rec.Body.String())
	}
	return decode[entity.Entity](t, rec)
}

func TestNew_MissingDependencies(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() expected error without logger")
	}
	log := logging.NewWithWriter(config.LoggingConfig{}, "test", io.Discard)
	if _, err := New(Deps{Logger: log}); err == nil {
		t.Error("New() expected error without home manager")
	}
}

func TestHandleHealth(t *testing.T) {
	_, h := testServer(t)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v, want status ok and version test", body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}
}

func TestRequestID_Echoed(t *testing.T) {
	_, h := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}
}

func TestHandleMetrics(t *testing.T) {
	_, h := testServer(t)

	doRequest(t, h, http.MethodGet, "/api/v1/health", nil)
	rec := doRequest(t, h, http.MethodGet, "/api/v1/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `pettracker_http_requests_total{method="GET",status="200"}`) {
		t.Errorf("metrics output missing request counter:\n%s", rec.Body.String())
	}
}

func TestHandleSystem(t *testing.T) {
	_, h := testServer(t)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/system", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	m := decode[SystemMetrics](t, rec)
	if m.Version != "test" {
		t.Errorf("Version = %q, want test", m.Version)
	}
	if m.Twins.Live != 0 {
		t.Errorf("Twins.Live = %d, want 0", m.Twins.Live)
	}
	if m.Database.OpenConnections < 1 {
		t.Errorf("Database.OpenConnections = %d, want >= 1", m.Database.OpenConnections)
	}
}

func TestSmartHomeLifecycle(t *testing.T) {
	_, h := testServer(t)

	sh := mustCreate(t, h, "/api/v1/smart-homes", map[string]any{
		"profile": map[string]any{"user": "alice", "pet_name": "Rex"},
	})
	defaultID := sh.String(entity.FieldDefaultRoom)
	if defaultID == "" {
		t.Fatal("smart home created without default room")
	}

	kitchen := mustCreate(t, h, "/api/v1/rooms", map[string]any{
		"profile": map[string]any{"name": "Kitchen"},
	})
	door := mustCreate(t, h, "/api/v1/doors", map[string]any{
		"profile": map[string]any{"name": "Kitchen door", "seq_number": 1},
	})

	rec := doRequest(t, h, http.MethodPatch, "/api/v1/smart-homes/"+sh.ID, map[string]any{
		"data": map[string]any{
			"list_of_rooms":   []string{kitchen.ID},
			"list_of_devices": []string{door.ID},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("PATCH status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	updated := decode[entity.Entity](t, rec)
	if got := updated.Strings(entity.FieldRooms); len(got) != 2 {
		t.Errorf("list_of_rooms = %v, want default and kitchen", got)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/doors/"+door.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET door status = %d, want 200", rec.Code)
	}
	gotDoor := decode[entity.Entity](t, rec)
	if got := gotDoor.String(entity.FieldEntryRoom); got != defaultID {
		t.Errorf("door entry room = %q, want default room %q", got, defaultID)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/smart-homes/"+sh.ID+"/position", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("position status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	pos := decode[map[string]any](t, rec)
	if pos["room_id"] != defaultID || pos["room_name"] != config.DefaultRoomName {
		t.Errorf("position = %v, want default room", pos)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/smart-homes/"+sh.ID+"/analytics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("analytics status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if got := decode[map[string]any](t, rec)["count"]; got != float64(2) {
		t.Errorf("analytics count = %v, want 2", got)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/smart-homes/"+sh.ID+"/services", nil)
	if !strings.Contains(rec.Body.String(), service.NameRoomAnalytics) {
		t.Errorf("services = %s, want %s listed", rec.Body.String(), service.NameRoomAnalytics)
	}

	// Rooms and doors still associated block the delete.
	rec = doRequest(t, h, http.MethodDelete, "/api/v1/smart-homes/"+sh.ID, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("DELETE with rooms status = %d, want 409", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPut, "/api/v1/smart-homes/"+sh.ID, map[string]any{
		"data": map[string]any{"list_of_rooms": []string{}, "list_of_devices": []string{}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	gotEnt := decode[entity.Entity](t, rec)
	if got := gotEnt.Strings(entity.FieldRooms); len(got) != 1 || got[0] != defaultID {
		t.Errorf("list_of_rooms after PUT = %v, want [%s]", got, defaultID)
	}

	rec = doRequest(t, h, http.MethodDelete, "/api/v1/smart-homes/"+sh.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want 204: %s", rec.Code, rec.Body.String())
	}
	rec = doRequest(t, h, http.MethodGet, "/api/v1/rooms/"+defaultID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("default room after delete status = %d, want 404", rec.Code)
	}
}

func TestHandleList_Filters(t *testing.T) {
	_, h := testServer(t)

	kitchen := mustCreate(t, h, "/api/v1/rooms", map[string]any{
		"profile": map[string]any{"name": "Kitchen"},
		"data":    map[string]any{"denial_status": true},
	})
	mustCreate(t, h, "/api/v1/rooms", map[string]any{
		"profile": map[string]any{"name": "Hall"},
	})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/rooms?denial_status=true", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode[struct {
		Rooms []entity.Entity `json:"rooms"`
		Count int             `json:"count"`
	}](t, rec)
	if body.Count != 1 || body.Rooms[0].ID != kitchen.ID {
		t.Errorf("filtered rooms = %+v, want only kitchen", body)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/doors", nil)
	if got := decode[map[string]any](t, rec)["doors"]; got == nil {
		t.Error("empty list encoded as null, want []")
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/rooms?colour=red", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown filter status = %d, want 400", rec.Code)
	}
}

func TestErrorResponses(t *testing.T) {
	_, h := testServer(t)
	sh := mustCreate(t, h, "/api/v1/smart-homes", map[string]any{
		"profile": map[string]any{"user": "alice"},
	})

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid json",
			method:     http.MethodPost,
			path:       "/api/v1/rooms",
			body:       "{not json",
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeBadRequest,
		},
		{
			name:       "unknown body field",
			method:     http.MethodPost,
			path:       "/api/v1/rooms",
			body:       map[string]any{"name": "Kitchen"},
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeBadRequest,
		},
		{
			name:       "schema violation",
			method:     http.MethodPost,
			path:       "/api/v1/doors",
			body:       map[string]any{"profile": map[string]any{"name": "Door"}},
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeValidation,
		},
		{
			name:       "reserved room name",
			method:     http.MethodPost,
			path:       "/api/v1/rooms",
			body:       map[string]any{"profile": map[string]any{"name": config.DefaultRoomName}},
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeBadRequest,
		},
		{
			name:       "missing room",
			method:     http.MethodGet,
			path:       "/api/v1/rooms/missing",
			wantStatus: http.StatusNotFound,
			wantCode:   ErrCodeNotFound,
		},
		{
			name:       "missing smart home position",
			method:     http.MethodGet,
			path:       "/api/v1/smart-homes/missing/position",
			wantStatus: http.StatusNotFound,
			wantCode:   ErrCodeNotFound,
		},
		{
			name:       "duplicate user",
			method:     http.MethodPost,
			path:       "/api/v1/smart-homes",
			body:       map[string]any{"profile": map[string]any{"user": "alice"}},
			wantStatus: http.StatusConflict,
			wantCode:   ErrCodeConflict,
		},
		{
			name:       "default room is immutable",
			method:     http.MethodDelete,
			path:       "/api/v1/rooms/" + sh.String(entity.FieldDefaultRoom),
			wantStatus: http.StatusConflict,
			wantCode:   ErrCodeConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, tt.method, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if got := decode[Error](t, rec); got.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestValidationError_ListsViolations(t *testing.T) {
	_, h := testServer(t)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/doors", map[string]any{
		"profile": map[string]any{"name": "Door", "seq_number": -1},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	got := decode[Error](t, rec)
	if len(got.Violations) == 0 {
		t.Fatal("violations missing from response")
	}
	if got.Violations[0].Field != "profile.seq_number" {
		t.Errorf("violation field = %q, want profile.seq_number", got.Violations[0].Field)
	}
}

func TestWriteDomainError(t *testing.T) {
	srv, _ := testServer(t)

	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{fmt.Errorf("twin: %w", service.ErrMultipleOccupancy), http.StatusInternalServerError, ErrCodeConsistency},
		{service.ErrDefaultRoom, http.StatusInternalServerError, ErrCodeConsistency},
		{fmt.Errorf("wrapped: %w", home.ErrSeqNumberTaken), http.StatusConflict, ErrCodeConflict},
		{home.ErrForeignRoom, http.StatusBadRequest, ErrCodeBadRequest},
		{entity.ErrReferenced, http.StatusConflict, ErrCodeConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError, ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.writeDomainError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := decode[Error](t, rec); got.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	srv, _ := testServer(t)

	h := srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, h := testServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/rooms", nil)
	req.Header.Set("Origin", "http://panel.local")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://panel.local" {
		t.Errorf("Allow-Origin = %q, want http://panel.local", got)
	}

	srv.cfg.CORS.AllowedOrigins = []string{"http://other.local"}
	if srv.isAllowedOrigin("http://panel.local") {
		t.Error("isAllowedOrigin() = true for origin outside the list")
	}
}
