package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/pettracker-core/internal/auth"
)

var testSecret = strings.Repeat("k", 32)

func withAuth(d *Deps) {
	d.Config.Auth.JWTSecret = testSecret
}

func issue(t *testing.T, customer string) string {
	t.Helper()
	token, err := auth.IssueToken("tester", customer, testSecret, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	return token
}

func doAuthRequest(h http.Handler, method, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddleware(t *testing.T) {
	_, h := testServer(t, withAuth)

	expired, err := auth.IssueToken("tester", "", testSecret, time.Minute, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	tests := []struct {
		name          string
		path          string
		authorization string
		wantStatus    int
	}{
		{"health is public", "/api/v1/health", "", http.StatusOK},
		{"metrics are public", "/api/v1/metrics", "", http.StatusOK},
		{"missing token", "/api/v1/rooms", "", http.StatusUnauthorized},
		{"wrong scheme", "/api/v1/rooms", "Basic " + issue(t, ""), http.StatusUnauthorized},
		{"garbage token", "/api/v1/rooms", "Bearer nope", http.StatusUnauthorized},
		{"expired token", "/api/v1/rooms", "Bearer " + expired, http.StatusUnauthorized},
		{"operator token", "/api/v1/rooms", "Bearer " + issue(t, ""), http.StatusOK},
		{"lowercase scheme", "/api/v1/system", "bearer " + issue(t, ""), http.StatusOK},
		{"customer token on rest", "/api/v1/rooms", "Bearer " + issue(t, "alice"), http.StatusForbidden},
		{"query token outside ws", "/api/v1/rooms?token=" + issue(t, ""), "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doAuthRequest(h, http.MethodGet, tt.path, tt.authorization)
			if rec.Code != tt.wantStatus {
				t.Errorf("GET %s status = %d, want %d: %s", tt.path, rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestAuthMiddleware_DisabledWithoutSecret(t *testing.T) {
	_, h := testServer(t)

	rec := doAuthRequest(h, http.MethodGet, "/api/v1/rooms", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with auth disabled", rec.Code)
	}
}

func TestAuthMiddleware_ErrorBody(t *testing.T) {
	_, h := testServer(t, withAuth)

	rec := doAuthRequest(h, http.MethodGet, "/api/v1/smart-homes", "")
	body := decode[Error](t, rec)
	if body.Code != ErrCodeUnauthorized || body.Status != http.StatusUnauthorized {
		t.Errorf("error body = %+v, want %s/401", body, ErrCodeUnauthorized)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		target string
		header string
		want   string
	}{
		{"header", "/api/v1/rooms", "Bearer abc", "abc"},
		{"header padded", "/api/v1/rooms", "Bearer  abc ", "abc"},
		{"other scheme", "/api/v1/rooms", "Token abc", ""},
		{"ws query", "/api/v1/ws?token=abc", "", "abc"},
		{"header wins on ws", "/api/v1/ws?token=abc", "Bearer def", "def"},
		{"query ignored elsewhere", "/api/v1/rooms?token=abc", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if got := bearerToken(req); got != tt.want {
				t.Errorf("bearerToken() = %q, want %q", got, tt.want)
			}
		})
	}
}
