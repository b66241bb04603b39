package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestStatusRecorder(t *testing.T) {
	rec := newStatusRecorder(httptest.NewRecorder())
	if rec.status != http.StatusOK {
		t.Errorf("initial status = %d, want %d", rec.status, http.StatusOK)
	}

	rec.WriteHeader(http.StatusNotFound)
	rec.WriteHeader(http.StatusInternalServerError)
	if rec.status != http.StatusNotFound {
		t.Errorf("status = %d, want first written %d", rec.status, http.StatusNotFound)
	}
}

func TestStatusRecorderImplicitOK(t *testing.T) {
	rec := newStatusRecorder(httptest.NewRecorder())
	if _, err := rec.Write([]byte("ok")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if rec.status != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.status, http.StatusOK)
	}
}

func TestHTTPMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	SetGlobal(m)
	defer SetGlobal(nil)

	r := chi.NewRouter()
	r.Use(HTTPMiddleware)
	r.Get("/api/v1/users/{userID}/schedules", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/u-1/schedules", nil))

	got := counterValue(t, m.APIRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/users/{userID}/schedules", "404"))
	if got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}
	if got := counterValue(t, m.APIErrorsTotal.WithLabelValues("not_found")); got != 1 {
		t.Errorf("not_found errors = %v, want 1", got)
	}
}

func TestHTTPMiddlewareNoMetrics(t *testing.T) {
	SetGlobal(nil)

	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRouteLabelFallback(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/v1/users/alice/automation", "/api/v1/users/{userID}/automation"},
		{"/api/v1/dispatch/reports/550e8400-e29b-41d4-a716-446655440000", "/api/v1/dispatch/reports/{id}"},
		{"/health", "/health"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if got := routeLabel(req); got != tt.want {
			t.Errorf("routeLabel(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestIsUUID(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"550e8400-e29b-41d4-a716-446655440000", true},
		{"550E8400-E29B-41D4-A716-446655440000", true},
		{"not-a-uuid", false},
		{"550e8400e29b41d4a716446655440000", false},
		{"", false},
		{"550e8400-e29b-41d4-a716-44665544000", false},
	}
	for _, tt := range tests {
		if got := isUUID(tt.input); got != tt.expected {
			t.Errorf("isUUID(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestCategorizeStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected string
	}{
		{500, "server_error"},
		{502, "server_error"},
		{409, "conflict"},
		{401, "auth_error"},
		{403, "auth_error"},
		{404, "not_found"},
		{400, "bad_request"},
		{422, "bad_request"},
		{405, "client_error"},
		{200, "unknown"},
	}
	for _, tt := range tests {
		if got := categorizeStatus(tt.status); got != tt.expected {
			t.Errorf("categorizeStatus(%d) = %q, want %q", tt.status, got, tt.expected)
		}
	}
}
