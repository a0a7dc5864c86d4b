package api

import (
	"github.com/hackgods/coach-slot-availability/internal/availability"
)

type SlotsResponse struct {
	ServiceID string `json:"service_id"`
	availability.DayResult
}

type MonthResponse struct {
	ServiceID string          `json:"service_id"`
	Month     string          `json:"month"`
	Days      map[string]bool `json:"days"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
