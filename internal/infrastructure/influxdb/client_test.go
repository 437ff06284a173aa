package influxdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/pettracker-core/internal/infrastructure/config"
)

// fakeInflux serves the two endpoints the client uses: /ping and /api/v2/write.
type fakeInflux struct {
	*httptest.Server

	mu        sync.Mutex
	writes    []string
	writeCode int
}

func newFakeInflux(t *testing.T) *fakeInflux {
	t.Helper()

	f := &fakeInflux{writeCode: http.StatusNoContent}
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/v2/write", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body) //nolint:errcheck // Test server
		f.mu.Lock()
		f.writes = append(f.writes, string(body))
		code := f.writeCode
		f.mu.Unlock()
		w.WriteHeader(code)
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)

	return f
}

func (f *fakeInflux) body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.writes, "\n")
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "pettracker-test-token",
		Org:           "pettracker",
		Bucket:        "events",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func connectTest(t *testing.T) (*Client, *fakeInflux) {
	t.Helper()

	server := newFakeInflux(t)
	client, err := Connect(testConfig(server.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup

	return client, server
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Enabled = false

	client, err := Connect(cfg)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
	if client != nil {
		t.Error("Connect() returned a client while disabled")
	}
}

func TestConnect_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	_, err := Connect(testConfig(server.URL))
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	server := newFakeInflux(t)
	cfg := testConfig(server.URL)
	cfg.BatchSize = -1
	cfg.FlushInterval = 0

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() with non-positive batch settings error = %v", err)
	}
	defer client.Close() //nolint:errcheck // Test cleanup

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
}

func TestHealthCheck(t *testing.T) {
	client, _ := connectTest(t)

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	client.Close() //nolint:errcheck // Closing to test disconnected state
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}
}

func TestWriteMeasurement(t *testing.T) {
	client, server := connectTest(t)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	client.WriteMeasurement("alice", "room", "room-1", "pet_access", 840, at)
	client.Flush()

	body := server.body()
	for _, want := range []string{"pet_events,", "customer=alice", "entity_type=room", "entity_id=room-1", "kind=pet_access", "value=840"} {
		if !strings.Contains(body, want) {
			t.Errorf("written line protocol %q missing %q", body, want)
		}
	}
}

func TestWriteRoomAnalytics(t *testing.T) {
	client, server := connectTest(t)

	client.WriteRoomAnalytics("alice", "room-1", "Kitchen", map[string]any{
		"tot_time_pet_inside":               120.0,
		"num_of_times_it_entered_that_room": 3,
		"name":                              "Kitchen",
	}, time.Now())
	client.Flush()

	body := server.body()
	for _, want := range []string{"room_stats,", "room_name=Kitchen", "tot_time_pet_inside=120", "num_of_times_it_entered_that_room=3i"} {
		if !strings.Contains(body, want) {
			t.Errorf("written line protocol %q missing %q", body, want)
		}
	}
	if strings.Contains(body, `name="Kitchen"`) {
		t.Error("string statistic written as a field")
	}
}

func TestWriteRoomAnalytics_NoNumericFields(t *testing.T) {
	client, server := connectTest(t)

	client.WriteRoomAnalytics("alice", "room-1", "Kitchen", map[string]any{"name": "Kitchen"}, time.Now())
	client.Flush()

	if body := server.body(); body != "" {
		t.Errorf("expected no write, got %q", body)
	}
}

func TestWriteFailureCallback(t *testing.T) {
	client, server := connectTest(t)

	server.mu.Lock()
	server.writeCode = http.StatusBadRequest
	server.mu.Unlock()

	errCh := make(chan error, 1)
	client.SetOnError(func(err error) {
		select {
		case errCh <- err:
		default:
		}
	})

	client.WriteMeasurement("alice", "door", "door-1", "entry", 1, time.Now())
	client.Flush()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrWriteFailed) {
			t.Errorf("callback error = %v, want ErrWriteFailed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("write failure callback not invoked")
	}
}

func TestWriteAfterClose(t *testing.T) {
	client, server := connectTest(t)

	client.Close() //nolint:errcheck // Closing to test disconnected writes
	client.WriteMeasurement("alice", "door", "door-1", "exit", 1, time.Now())
	client.Flush()

	if body := server.body(); body != "" {
		t.Errorf("write after Close reached the server: %q", body)
	}
}

func TestClose_Nil(t *testing.T) {
	var client *Client
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}
