package availability

import (
	"encoding/json"
	"time"
)

// EvaluateRequest carries a full raw input set so the engine can run without
// the data layer. Event and booking lists accept either a bare array or a
// wrapper object; Classes accepts any class feed shape.
type EvaluateRequest struct {
	Service          Service         `json:"service"`
	Coach            *Coach          `json:"coach,omitempty"`
	Location         *Location       `json:"location,omitempty"`
	Date             string          `json:"date"`
	TimeZone         string          `json:"time_zone,omitempty"`
	CoachEvents      json.RawMessage `json:"coach_events,omitempty"`
	ResourceBookings json.RawMessage `json:"resource_bookings,omitempty"`
	SelectedResource *Resource       `json:"selected_resource,omitempty"`
	ResourcePool     []Resource      `json:"resource_pool,omitempty"`
	Classes          json.RawMessage `json:"classes,omitempty"`
	DurationMinutes  int             `json:"duration_minutes,omitempty"`
	BufferMinutes    any             `json:"slot_buffer_minutes,omitempty"`
	IntervalMinutes  any             `json:"slot_start_interval_minutes,omitempty"`
}

// Evaluate runs the engine over req. Malformed dates, zones or payloads are
// errors; missing data yields an empty result.
func (p Policy) Evaluate(req EvaluateRequest, now time.Time) (DayResult, error) {
	p = p.Normalize().WithSlotSettings(req.BufferMinutes, req.IntervalMinutes)

	date, err := ParseDate(req.Date)
	if err != nil {
		return DayResult{}, err
	}
	zone, err := LoadZone(req.TimeZone)
	if err != nil {
		return DayResult{}, err
	}
	res := DayResult{Date: date.String(), TimeZone: zone.String(), Slots: []Slot{}}

	if req.Service.ClassLike() {
		groups, err := DecodeClassFeed(req.Classes)
		if err != nil {
			return DayResult{}, err
		}
		schedule := NormalizeClasses(groups, date, now, zone)
		res.Classes = &schedule
		return res, nil
	}

	rawEvents, err := DecodeRawEvents(req.CoachEvents)
	if err != nil {
		return DayResult{}, err
	}
	rawBookings, err := DecodeRawBookings(req.ResourceBookings)
	if err != nil {
		return DayResult{}, err
	}
	if req.Location == nil {
		return res, nil
	}

	in := dayInput{
		service:  req.Service,
		coach:    req.Coach,
		location: req.Location,
		date:     date,
		events:   p.ClassifyEvents(rawEvents),
		bookings: NormalizeBookings(rawBookings),
		zone:     zone,
		duration: req.DurationMinutes,
		now:      now,
	}
	if req.Service.RequiresResource {
		hours := operatingHours(*req.Location, date, p)
		if req.SelectedResource != nil {
			if IsFullyBlocked(*req.SelectedResource, date, hours, req.Service.Type, p.minClosureGap(), zone) {
				return res, nil
			}
			in.selected = req.SelectedResource
		} else if req.ResourcePool != nil {
			in.pool = ExcludeFullyBlocked(req.ResourcePool, date, hours, req.Service.Type, p.minClosureGap(), zone)
			if len(in.pool) == 0 {
				return res, nil
			}
		}
	}
	res.Slots = p.slotsFor(in)
	return res, nil
}

type dayInput struct {
	service  Service
	coach    *Coach
	location *Location
	date     Date
	events   []Event
	selected *Resource
	pool     []Resource
	bookings []Booking
	zone     *time.Location
	duration int
	now      time.Time
}

// slotsFor runs resolve, generate and the closure overlay in order.
func (p Policy) slotsFor(in dayInput) []Slot {
	resolved := p.Resolve(ResolveInput{
		Service:          in.service,
		Coach:            in.coach,
		Location:         in.location,
		Date:             in.date,
		CoachEvents:      in.events,
		ResourceBookings: in.bookings,
		Zone:             in.zone,
	})
	slots := p.Generate(GenerateInput{
		Windows:          resolved.Windows,
		Bookings:         resolved.Bookings,
		Date:             in.date,
		Service:          in.service,
		Zone:             in.zone,
		SelectedResource: in.selected,
		ResourcePool:     in.pool,
		DurationMinutes:  in.duration,
		Now:              in.now,
	})
	if !in.service.RequiresResource {
		return slots
	}
	if in.selected != nil {
		return withoutClosures(slots, *in.selected, in.service.Type, in.zone)
	}
	if in.pool == nil {
		return slots
	}
	return FilterSlots(slots, in.pool, in.service.Type, in.zone)
}

// withoutClosures drops slots the explicitly chosen resource is closed for.
// Slots keep no resource fields in this mode.
func withoutClosures(slots []Slot, r Resource, st ServiceType, zone *time.Location) []Slot {
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		if IsBlocked(r, s.Start, s.End, st, zone) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// operatingHours is the window used for full-day closure checks: the
// location's hours when open, else the policy fallback.
func operatingHours(loc Location, d Date, p Policy) OperatingHours {
	if h, ok := loc.HoursFor(d.Weekday()); ok && h.IsOpen {
		return OperatingHours{Open: h.OpenTime, Close: h.CloseTime}
	}
	return OperatingHours{Open: p.FallbackOpen, Close: p.FallbackClose}
}
