package availability

import (
	"strings"
	"time"
)

// EventKind is the closed set of schedule entry variants the engine
// understands.
type EventKind int

const (
	KindAvailability EventKind = iota + 1
	KindBooking
	KindClassSession
)

func (k EventKind) String() string {
	switch k {
	case KindAvailability:
		return "availability"
	case KindBooking:
		return "booking"
	case KindClassSession:
		return "class_session"
	default:
		return "unknown"
	}
}

const (
	typeTagAvailability = "availability"
	typeTagBooking      = "booking"
	typeTagClassSession = "class_session"
)

// RawEvent is a coach schedule entry as delivered by the data layer.
type RawEvent struct {
	ID          string         `json:"id"`
	Label       string         `json:"label"`
	Start       time.Time      `json:"start"`
	End         time.Time      `json:"end"`
	Type        string         `json:"type,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
	CoachID     string         `json:"coach_id,omitempty"`
	Status      string         `json:"status,omitempty"`
	ResourceIDs []string       `json:"resource_ids,omitempty"`
}

// TypeTag returns the explicit type, falling back to properties["type"].
func (e RawEvent) TypeTag() string {
	if e.Type != "" {
		return strings.ToLower(e.Type)
	}
	if v, ok := e.Properties["type"].(string); ok {
		return strings.ToLower(v)
	}
	return ""
}

// Event is a classified schedule entry.
type Event struct {
	Kind        EventKind
	ID          string
	Label       string
	Window      Window
	CoachID     string
	Status      BookingStatus
	ResourceIDs []string
}

// Classify assigns raw its variant. Class sessions win over availability,
// availability over bookings. Entries matching nothing, or with an empty
// window, are rejected.
func (p Policy) Classify(raw RawEvent) (Event, bool) {
	w := Window{Start: raw.Start, End: raw.End}
	if !w.Valid() {
		return Event{}, false
	}
	ev := Event{
		ID:          raw.ID,
		Label:       raw.Label,
		Window:      w,
		CoachID:     raw.CoachID,
		Status:      BookingStatus(strings.ToLower(raw.Status)),
		ResourceIDs: raw.ResourceIDs,
	}
	tag := raw.TypeTag()
	switch {
	case tag == typeTagClassSession:
		ev.Kind = KindClassSession
	case tag == typeTagAvailability || hasAnyPrefix(raw.ID, p.AvailabilityPrefixes) || p.isOpenLabel(raw.Label):
		ev.Kind = KindAvailability
	case hasAnyPrefix(raw.ID, p.BookingPrefixes) || tag == typeTagBooking:
		ev.Kind = KindBooking
	default:
		return Event{}, false
	}
	return ev, true
}

// ClassifyEvents classifies a batch, dropping entries that fail.
func (p Policy) ClassifyEvents(raws []RawEvent) []Event {
	out := make([]Event, 0, len(raws))
	for _, r := range raws {
		if ev, ok := p.Classify(r); ok {
			out = append(out, ev)
		}
	}
	return out
}

func (p Policy) isOpenLabel(label string) bool {
	label = strings.TrimSpace(label)
	for _, l := range p.OpenLabels {
		if strings.EqualFold(label, l) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// StripBookingID removes the first matching booking marker from id. Two
// bookings with the same stripped id are the same booking.
func (p Policy) StripBookingID(id string) string {
	for _, prefix := range p.BookingPrefixes {
		if strings.HasPrefix(id, prefix) {
			return strings.TrimPrefix(id, prefix)
		}
	}
	return id
}

// booking converts a busy event. coachID fills in a missing coach link.
func (e Event) booking(coachID string) Booking {
	b := Booking{
		ID:          e.ID,
		Window:      e.Window,
		Status:      e.Status,
		Kind:        BookingKindAppointment,
		CoachID:     e.CoachID,
		ResourceIDs: e.ResourceIDs,
	}
	if e.Kind == KindClassSession {
		b.Kind = BookingKindClassSession
	}
	if b.CoachID == "" {
		b.CoachID = coachID
	}
	return b
}

type ResourceRef struct {
	ID string `json:"id"`
}

// RawBooking is a resource booking in any of the shapes the data layer
// produces: a resources list, a bookable type/id pair, or resource ids.
type RawBooking struct {
	ID           string        `json:"id"`
	Start        time.Time     `json:"start"`
	End          time.Time     `json:"end"`
	Status       string        `json:"status,omitempty"`
	Type         string        `json:"type,omitempty"`
	CoachID      string        `json:"coach_id,omitempty"`
	Resources    []ResourceRef `json:"resources,omitempty"`
	BookableType string        `json:"bookable_type,omitempty"`
	BookableID   string        `json:"bookable_id,omitempty"`
	ResourceIDs  []string      `json:"resource_ids,omitempty"`
}

const bookableTypeResource = "resource"

// NormalizeBooking maps raw onto the canonical Booking.
func NormalizeBooking(raw RawBooking) (Booking, bool) {
	w := Window{Start: raw.Start, End: raw.End}
	if !w.Valid() {
		return Booking{}, false
	}
	b := Booking{
		ID:           raw.ID,
		Window:       w,
		Status:       BookingStatus(strings.ToLower(raw.Status)),
		Kind:         BookingKindResource,
		CoachID:      raw.CoachID,
		BookableType: raw.BookableType,
		BookableID:   raw.BookableID,
	}
	switch strings.ToLower(raw.Type) {
	case typeTagClassSession:
		b.Kind = BookingKindClassSession
	case typeTagBooking:
		b.Kind = BookingKindAppointment
	}

	var ids []string
	for _, r := range raw.Resources {
		ids = appendUnique(ids, r.ID)
	}
	if strings.EqualFold(raw.BookableType, bookableTypeResource) {
		ids = appendUnique(ids, raw.BookableID)
	}
	for _, id := range raw.ResourceIDs {
		ids = appendUnique(ids, id)
	}
	b.ResourceIDs = ids
	return b, true
}

func NormalizeBookings(raws []RawBooking) []Booking {
	out := make([]Booking, 0, len(raws))
	for _, r := range raws {
		if b, ok := NormalizeBooking(r); ok {
			out = append(out, b)
		}
	}
	return out
}

// DedupeBookings collapses bookings sharing a stripped id. The first one
// seen is kept; later duplicates contribute a missing coach link and extra
// resource ids. A live duplicate revives a cancelled first copy.
func (p Policy) DedupeBookings(bs []Booking) []Booking {
	out := make([]Booking, 0, len(bs))
	index := make(map[string]int, len(bs))
	for _, b := range bs {
		key := p.StripBookingID(b.ID)
		if key == "" {
			out = append(out, b)
			continue
		}
		i, seen := index[key]
		if !seen {
			b.ResourceIDs = append([]string(nil), b.ResourceIDs...)
			index[key] = len(out)
			out = append(out, b)
			continue
		}
		if out[i].Cancelled() && !b.Cancelled() {
			out[i].Status = b.Status
		}
		if out[i].CoachID == "" {
			out[i].CoachID = b.CoachID
		}
		for _, id := range b.ResourceIDs {
			out[i].ResourceIDs = appendUnique(out[i].ResourceIDs, id)
		}
	}
	return out
}

func appendUnique(ids []string, id string) []string {
	if id == "" {
		return ids
	}
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
