package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/hackgods/coach-slot-availability/internal/availability"
)

const maxEvaluateBody = 4 << 20

func slotsHandler(svc AvailabilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, ok := parseQuery(w, r)
		if !ok {
			return
		}

		date, err := availability.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		q.Date = date

		day, err := svc.Day(r.Context(), q)
		if err != nil {
			handleAvailabilityError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, SlotsResponse{ServiceID: q.ServiceID, DayResult: day})
	}
}

func monthHandler(svc AvailabilityService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, ok := parseQuery(w, r)
		if !ok {
			return
		}

		m, err := time.Parse("2006-01", r.URL.Query().Get("month"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_month", "month must be YYYY-MM")
			return
		}

		days, err := svc.Month(r.Context(), q, m.Year(), m.Month())
		if err != nil {
			handleAvailabilityError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, MonthResponse{
			ServiceID: q.ServiceID,
			Month:     availability.MonthKey(m.Year(), m.Month()),
			Days:      days,
		})
	}
}

func evaluateHandler(policy availability.Policy, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req availability.EvaluateRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEvaluateBody)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		res, err := policy.Evaluate(req, now())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, SlotsResponse{ServiceID: req.Service.ID, DayResult: res})
	}
}

// parseQuery reads the identifiers shared by the slot and month endpoints.
func parseQuery(w http.ResponseWriter, r *http.Request) (availability.Query, bool) {
	v := r.URL.Query()
	q := availability.Query{
		ServiceID:  v.Get("service_id"),
		CoachID:    v.Get("coach_id"),
		ResourceID: v.Get("resource_id"),
		LocationID: v.Get("location_id"),
	}
	if q.ServiceID == "" {
		writeError(w, http.StatusBadRequest, "missing_service_id", "service_id is required")
		return q, false
	}
	if raw := v.Get("duration"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_duration", "duration must be a positive number of minutes")
			return q, false
		}
		q.DurationMinutes = n
	}
	return q, true
}

func handleAvailabilityError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, availability.ErrInvalidDuration):
		writeError(w, http.StatusUnprocessableEntity, "invalid_duration", err.Error())
	case errors.Is(err, availability.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", "availability computation timed out")
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "cancelled", "request cancelled")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
