package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func up(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("unreachable") }

func TestReadiness(t *testing.T) {
	cases := []struct {
		name     string
		postgres PingFunc
		redis    PingFunc
		status   string
		code     int
	}{
		{name: "all up", postgres: up, redis: up, status: "ok", code: http.StatusOK},
		{name: "cache down", postgres: up, redis: down, status: "degraded", code: http.StatusOK},
		{name: "database down", postgres: down, redis: up, status: "error", code: http.StatusServiceUnavailable},
		{name: "no cache configured", postgres: up, redis: nil, status: "ok", code: http.StatusOK},
	}
	for _, tc := range cases {
		h := NewHealthHandler(tc.postgres, tc.redis, "test", "v0")
		rw := httptest.NewRecorder()
		h.Readiness(rw, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		if rw.Code != tc.code {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.code, rw.Code)
		}
		var resp ReadinessResponse
		if err := json.NewDecoder(rw.Body).Decode(&resp); err != nil {
			t.Fatalf("%s: decode: %v", tc.name, err)
		}
		if resp.Status != tc.status {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.status, resp.Status)
		}
	}
}

func TestLiveness(t *testing.T) {
	rw := httptest.NewRecorder()
	NewHealthHandler(nil, nil, "test", "v1").Liveness(rw, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
}
