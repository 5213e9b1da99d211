package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jensholdgaard/cpl-auction/internal/clock"
	"github.com/jensholdgaard/cpl-auction/internal/health"
)

var testClk = clock.Mock{T: time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)}

func TestLivenessHandler(t *testing.T) {
	h := health.NewHandler(testClk)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	h.LivenessHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}
	var s health.Status
	if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
		t.Fatal(err)
	}
	if s.Status != "ok" {
		t.Errorf("got status %q, want %q", s.Status, "ok")
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name       string
		ready      bool
		checkers   []health.Checker
		wantCode   int
		wantStatus string
	}{
		{
			name:       "not ready",
			ready:      false,
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "not_ready",
		},
		{
			name:       "ready no checkers",
			ready:      true,
			wantCode:   http.StatusOK,
			wantStatus: "ready",
		},
		{
			name:  "ready all checks pass",
			ready: true,
			checkers: []health.Checker{
				{Name: "db", Check: func(ctx context.Context) error { return nil }},
			},
			wantCode:   http.StatusOK,
			wantStatus: "ready",
		},
		{
			name:  "ready but check fails",
			ready: true,
			checkers: []health.Checker{
				{Name: "db", Check: func(ctx context.Context) error { return errors.New("connection refused") }},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "not_ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := health.NewHandler(testClk, tt.checkers...)
			h.SetReady(tt.ready)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

			h.ReadinessHandler().ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("got status %d, want %d", rec.Code, tt.wantCode)
			}
			var s health.Status
			if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
				t.Fatal(err)
			}
			if s.Status != tt.wantStatus {
				t.Errorf("got status %q, want %q", s.Status, tt.wantStatus)
			}
		})
	}
}

func TestInfoHandler(t *testing.T) {
	h := health.NewHandler(testClk)

	rec := httptest.NewRecorder()
	h.InfoHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/statusz", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("without info: got status %d, want %d", rec.Code, http.StatusNotFound)
	}

	h.SetInfo(func() any {
		return map[string]int{"total": 40, "assigned": 10}
	})
	rec = httptest.NewRecorder()
	h.InfoHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/statusz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}
	var got map[string]int
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got["total"] != 40 || got["assigned"] != 10 {
		t.Errorf("got %v", got)
	}
}

func TestRoutes(t *testing.T) {
	h := health.NewHandler(testClk)
	h.SetReady(true)
	mux := http.NewServeMux()
	h.Routes(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s: got status %d, want %d", path, rec.Code, http.StatusOK)
		}
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /healthz: got status %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}
