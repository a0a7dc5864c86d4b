package availability

import (
	"strings"
	"time"
)

// Window is a half-open interval of absolute instants.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w Window) Valid() bool {
	return w.End.After(w.Start)
}

// Overlaps reports whether [start,end) overlaps w.
func (w Window) Overlaps(start, end time.Time) bool {
	return start.Before(w.End) && end.After(w.Start)
}

// Intersect returns the overlap of two windows, if it has positive length.
func (w Window) Intersect(o Window) (Window, bool) {
	start := w.Start
	if o.Start.After(start) {
		start = o.Start
	}
	end := w.End
	if o.End.Before(end) {
		end = o.End
	}
	out := Window{Start: start, End: end}
	return out, out.Valid()
}

type ServiceType string

const (
	ServiceTypeAppointment ServiceType = "appointment"
	ServiceTypeClass       ServiceType = "class"
	ServiceTypeGroup       ServiceType = "group"
)

type Service struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name,omitempty"`
	DurationMinutes    int         `json:"duration_minutes"`
	IsVariableDuration bool        `json:"is_variable_duration"`
	AllowedDurations   []int       `json:"allowed_durations,omitempty"`
	RequiresCoach      bool        `json:"requires_coach"`
	RequiresResource   bool        `json:"requires_resource"`
	Type               ServiceType `json:"service_type"`
}

// ClassLike reports whether the service is booked through class sessions
// rather than generated slots.
func (s Service) ClassLike() bool {
	t := ServiceType(strings.ToLower(string(s.Type)))
	return t == ServiceTypeClass || t == ServiceTypeGroup
}

// AllowsDuration reports whether minutes is an acceptable override.
func (s Service) AllowsDuration(minutes int) bool {
	if minutes <= 0 || !s.IsVariableDuration {
		return false
	}
	if len(s.AllowedDurations) == 0 {
		return true
	}
	for _, d := range s.AllowedDurations {
		if d == minutes {
			return true
		}
	}
	return false
}

type Coach struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingPending   BookingStatus = "pending"
	BookingCancelled BookingStatus = "cancelled"
)

type BookingKind string

const (
	// BookingKindAppointment is an ordinary booking on a coach's calendar.
	BookingKindAppointment  BookingKind = "booking"
	BookingKindClassSession BookingKind = "class_session"
	BookingKindResource     BookingKind = "resource_booking"
)

// Booking is a normalized busy interval used for conflict checks.
type Booking struct {
	ID string `json:"id"`
	Window
	Status       BookingStatus `json:"status,omitempty"`
	Kind         BookingKind   `json:"kind"`
	CoachID      string        `json:"coach_id,omitempty"`
	ResourceIDs  []string      `json:"resource_ids,omitempty"`
	BookableType string        `json:"bookable_type,omitempty"`
	BookableID   string        `json:"bookable_id,omitempty"`
}

func (b Booking) Cancelled() bool {
	return strings.EqualFold(string(b.Status), string(BookingCancelled))
}

func (b Booking) usesResource(id string) bool {
	for _, r := range b.ResourceIDs {
		if r == id {
			return true
		}
	}
	return false
}

type ClosureType string

const (
	ClosureDaily     ClosureType = "daily"
	ClosureDateRange ClosureType = "date_range"
)

// Closure blocks part of a resource's time for the listed service types.
// Daily closures recur weekly on DayOfWeek (0 = Sunday) between the local
// clock bounds; date-range closures cover an absolute instant range.
type Closure struct {
	IsActive            bool          `json:"is_active"`
	BlockedServiceTypes []ServiceType `json:"blocked_service_types"`
	Type                ClosureType   `json:"closure_type"`
	DayOfWeek           *int          `json:"day_of_week,omitempty"`
	StartTimeLocal      string        `json:"start_time_local,omitempty"`
	EndTimeLocal        string        `json:"end_time_local,omitempty"`
	StartTimeUTC        *time.Time    `json:"start_time_utc,omitempty"`
	EndTimeUTC          *time.Time    `json:"end_time_utc,omitempty"`
}

func (c Closure) blocks(t ServiceType) bool {
	if !c.IsActive {
		return false
	}
	for _, st := range c.BlockedServiceTypes {
		if strings.EqualFold(string(st), string(t)) {
			return true
		}
	}
	return false
}

type Resource struct {
	ID             string    `json:"id"`
	Name           string    `json:"name,omitempty"`
	LocationID     string    `json:"location_id,omitempty"`
	ResourceTypeID string    `json:"resource_type_id,omitempty"`
	Active         bool      `json:"active"`
	Closures       []Closure `json:"closures,omitempty"`
}

func resourceIDs(rs []Resource) []string {
	ids := make([]string, 0, len(rs))
	for _, r := range rs {
		ids = append(ids, r.ID)
	}
	return ids
}

// DayHours is one weekday's operating hours, "HH:mm" with optional seconds.
type DayHours struct {
	IsOpen    bool   `json:"is_open"`
	OpenTime  string `json:"open_time"`
	CloseTime string `json:"close_time"`
}

// Location carries weekly operating hours keyed by lowercase weekday name
// ("monday" ... "sunday"). A missing key means the day is unconfigured.
type Location struct {
	ID    string              `json:"id"`
	Name  string              `json:"name,omitempty"`
	Hours map[string]DayHours `json:"hours"`
}

func (l Location) HoursFor(day time.Weekday) (DayHours, bool) {
	if l.Hours == nil {
		return DayHours{}, false
	}
	h, ok := l.Hours[strings.ToLower(day.String())]
	return h, ok
}

// Slot is a bookable start time. Capacity and AvailableResourceIDs are only
// set when a resource is auto-assigned from a pool.
type Slot struct {
	ID                   string    `json:"id"`
	Start                time.Time `json:"start"`
	End                  time.Time `json:"end"`
	Label                string    `json:"label"`
	Capacity             *int      `json:"capacity,omitempty"`
	AvailableResourceIDs []string  `json:"available_resource_ids,omitempty"`
}

type ClassOccurrence struct {
	ID               string    `json:"id"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	ResourceID       string    `json:"resource_id,omitempty"`
	Capacity         *int      `json:"capacity,omitempty"`
	ActiveAttendees  *int      `json:"active_attendees,omitempty"`
	Available        *int      `json:"available,omitempty"`
	Coach            *Coach    `json:"coach,omitempty"`
	Location         string    `json:"location,omitempty"`
	AlreadyAttending bool      `json:"already_attending"`
	OnWaitlist       bool      `json:"on_waitlist"`
	WaitlistCount    int       `json:"waitlist_count"`
}

// ClassGroup is the canonical input shape for the class normalizer.
type ClassGroup struct {
	Coach Coach             `json:"coach"`
	Slots []ClassOccurrence `json:"slots"`
}

type ClassSlot struct {
	ClassOccurrence
	Remaining *int   `json:"remaining,omitempty"`
	IsFull    bool   `json:"is_full"`
	IsPast    bool   `json:"is_past"`
	Label     string `json:"label"`
}

type ClassSlotGroup struct {
	Coach Coach       `json:"coach"`
	Slots []ClassSlot `json:"slots"`
}

type ClassSchedule struct {
	Groups []ClassSlotGroup `json:"groups"`
	Flat   []ClassSlot      `json:"flat"`
}
