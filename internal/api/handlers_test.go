package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hackgods/coach-slot-availability/internal/availability"
)

type fakeService struct {
	lastQuery availability.Query
	lastYear  int
	lastMonth time.Month
	day       availability.DayResult
	days      map[string]bool
	err       error
}

func (f *fakeService) Day(_ context.Context, q availability.Query) (availability.DayResult, error) {
	f.lastQuery = q
	return f.day, f.err
}

func (f *fakeService) Month(_ context.Context, q availability.Query, year int, month time.Month) (map[string]bool, error) {
	f.lastQuery = q
	f.lastYear, f.lastMonth = year, month
	return f.days, f.err
}

func newTestRouter(svc AvailabilityService) http.Handler {
	return NewRouter(RouterConfig{
		Service: svc,
		Policy:  availability.DefaultPolicy(),
		Env:     "test",
		Version: "v0",
		Now:     func() time.Time { return time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC) },
	})
}

func decodeError(t *testing.T, rw *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rw.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp
}

func TestSlotsHandler(t *testing.T) {
	start := time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC)
	svc := &fakeService{day: availability.DayResult{
		Date:     "2026-10-20",
		TimeZone: "UTC",
		Slots: []availability.Slot{{
			ID: availability.SlotID(start, time.UTC), Start: start, End: start.Add(time.Hour), Label: "9:00 AM",
		}},
	}}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/availability/slots?service_id=s1&coach_id=c1&location_id=l1&date=2026-10-20&duration=30", nil)
	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	if rw.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected a request id header")
	}
	want := availability.Query{ServiceID: "s1", CoachID: "c1", LocationID: "l1", Date: availability.Date{Year: 2026, Month: time.October, Day: 20}, DurationMinutes: 30}
	if svc.lastQuery != want {
		t.Fatalf("unexpected query %+v", svc.lastQuery)
	}

	var resp SlotsResponse
	if err := json.NewDecoder(rw.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ServiceID != "s1" || len(resp.Slots) != 1 || resp.Slots[0].ID != "2026-10-20T09:00:00Z" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestSlotsHandlerValidation(t *testing.T) {
	router := newTestRouter(&fakeService{})
	cases := []struct {
		url  string
		code string
	}{
		{url: "/availability/slots?date=2026-10-20", code: "missing_service_id"},
		{url: "/availability/slots?service_id=s1&date=20-10-2026", code: "invalid_date"},
		{url: "/availability/slots?service_id=s1&date=2026-10-20&duration=abc", code: "invalid_duration"},
		{url: "/availability/month?service_id=s1&month=2026-13", code: "invalid_month"},
	}
	for _, tc := range cases {
		rw := httptest.NewRecorder()
		router.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, tc.url, nil))
		if rw.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.url, rw.Code)
		}
		if got := decodeError(t, rw); got.Error != tc.code {
			t.Fatalf("%s: expected %s, got %s", tc.url, tc.code, got.Error)
		}
	}
}

func TestSlotsHandlerMapsErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{err: availability.ErrInvalidDuration, status: http.StatusUnprocessableEntity},
		{err: context.DeadlineExceeded, status: http.StatusGatewayTimeout},
		{err: errors.New("connection refused"), status: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		router := newTestRouter(&fakeService{err: tc.err})
		rw := httptest.NewRecorder()
		router.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/availability/slots?service_id=s1&date=2026-10-20", nil))
		if rw.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rw.Code)
		}
	}
}

func TestMonthHandler(t *testing.T) {
	svc := &fakeService{days: map[string]bool{"2026-10-20": true, "2026-10-21": false}}
	router := newTestRouter(svc)

	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/availability/month?service_id=s1&location_id=l1&month=2026-10", nil))
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	if svc.lastYear != 2026 || svc.lastMonth != time.October {
		t.Fatalf("unexpected month %d-%d", svc.lastYear, svc.lastMonth)
	}
	var resp MonthResponse
	if err := json.NewDecoder(rw.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Month != "2026-10" || !resp.Days["2026-10-20"] || resp.Days["2026-10-21"] {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestEvaluateHandler(t *testing.T) {
	router := newTestRouter(&fakeService{})
	body := `{
		"service": {"id":"s1","duration_minutes":60,"requires_coach":true},
		"coach": {"id":"c1"},
		"location": {"id":"l1","hours":{"tuesday":{"is_open":true,"open_time":"09:00","close_time":"12:00"}}},
		"date": "2026-10-20",
		"coach_events": [{"id":"avail_1","label":"Open","start":"2026-10-20T09:00:00Z","end":"2026-10-20T12:00:00Z"}],
		"slot_start_interval_minutes": 60
	}`

	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, httptest.NewRequest(http.MethodPost, "/availability/evaluate", strings.NewReader(body)))
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	var resp SlotsResponse
	if err := json.NewDecoder(rw.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Slots) != 3 || resp.Slots[0].Label != "9:00 AM" {
		t.Fatalf("unexpected slots %+v", resp.Slots)
	}

	rw = httptest.NewRecorder()
	router.ServeHTTP(rw, httptest.NewRequest(http.MethodPost, "/availability/evaluate", strings.NewReader(`{"date":"tomorrow"}`)))
	if rw.Code != http.StatusBadRequest || decodeError(t, rw).Error != "invalid_input" {
		t.Fatalf("expected invalid_input, got %d", rw.Code)
	}

	rw = httptest.NewRecorder()
	router.ServeHTTP(rw, httptest.NewRequest(http.MethodPost, "/availability/evaluate", strings.NewReader(`{`)))
	if rw.Code != http.StatusBadRequest || decodeError(t, rw).Error != "invalid_request_body" {
		t.Fatalf("expected invalid_request_body, got %d", rw.Code)
	}
}
