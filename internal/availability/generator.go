package availability

import (
	"sort"
	"time"
)

type GenerateInput struct {
	Windows  []Window
	Bookings []Booking
	Date     Date
	Service  Service
	Zone     *time.Location

	// SelectedResource switches on explicit resource checks. Otherwise a
	// non-nil ResourcePool switches on auto-assignment.
	SelectedResource *Resource
	ResourcePool     []Resource

	// DurationMinutes overrides the service duration when positive.
	DurationMinutes int
	Now             time.Time
}

type resourceMode int

const (
	resourceNone resourceMode = iota
	resourceExplicit
	resourceAuto
)

// Generate turns availability windows into ordered, conflict-free slots.
func (p Policy) Generate(in GenerateInput) []Slot {
	p = p.Normalize()
	if in.Zone == nil || in.Date.IsZero() || len(in.Windows) == 0 {
		return nil
	}

	duration := time.Duration(p.durationMinutes(in)) * time.Minute
	day := in.Date.Bounds(in.Zone)

	var active []Booking
	for _, b := range in.Bookings {
		if !b.Cancelled() {
			active = append(active, b)
		}
	}

	seen := make(map[int64]bool)
	var starts []time.Time
	for _, w := range in.Windows {
		if !w.Valid() {
			continue
		}
		for _, t := range p.candidates(w, day, active) {
			if t.Add(duration).After(w.End) || t.Before(in.Now) {
				continue
			}
			if t.Before(day.Start) || !t.Before(day.End) {
				continue
			}
			key := t.UnixNano()
			if seen[key] {
				continue
			}
			seen[key] = true
			starts = append(starts, t)
		}
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	mode := resourceNone
	if in.Service.RequiresResource {
		switch {
		case in.SelectedResource != nil:
			mode = resourceExplicit
		case in.ResourcePool != nil:
			mode = resourceAuto
		}
	}
	pool := resourceIDs(in.ResourcePool)
	inPool := make(map[string]bool, len(pool))
	for _, id := range pool {
		inPool[id] = true
	}

	slots := make([]Slot, 0, len(starts))
	for _, start := range starts {
		end := start.Add(duration)
		booked, conflict := p.evaluate(start, end, active, in, mode, inPool)
		if conflict {
			continue
		}
		slot := Slot{
			ID:    SlotID(start, in.Zone),
			Start: start.In(in.Zone),
			End:   end.In(in.Zone),
			Label: Label(start, in.Zone),
		}
		if mode == resourceAuto {
			capacity := len(pool) - len(booked)
			if capacity <= 0 {
				continue
			}
			free := make([]string, 0, capacity)
			for _, id := range pool {
				if !booked[id] {
					free = append(free, id)
				}
			}
			slot.Capacity = &capacity
			slot.AvailableResourceIDs = free
		}
		slots = append(slots, slot)
	}
	return slots
}

func (p Policy) durationMinutes(in GenerateInput) int {
	if in.DurationMinutes > 0 {
		return in.DurationMinutes
	}
	if in.Service.DurationMinutes > 0 {
		return in.Service.DurationMinutes
	}
	return p.DefaultDurationMinutes
}

// candidates returns grid starts aligned to the interval from local
// midnight, plus the end (plus buffer) of every booking that lands strictly
// inside both the day and w.
func (p Policy) candidates(w, day Window, bookings []Booking) []time.Time {
	step := p.interval()
	offset := w.Start.Sub(day.Start)
	n := offset / step
	if offset%step > 0 {
		n++
	}
	var out []time.Time
	for t := day.Start.Add(n * step); t.Before(w.End); t = t.Add(step) {
		out = append(out, t)
	}

	buffer := p.buffer()
	for _, b := range bookings {
		t := b.End.Add(buffer)
		if t.After(day.Start) && t.Before(day.End) && t.After(w.Start) && t.Before(w.End) {
			out = append(out, t)
		}
	}
	return out
}

// evaluate checks [start,end) against the active bookings. It reports a
// hard conflict (coach or explicit resource) and, in auto mode, which pool
// resources are already taken.
func (p Policy) evaluate(start, end time.Time, bookings []Booking, in GenerateInput, mode resourceMode, inPool map[string]bool) (map[string]bool, bool) {
	buffer := p.buffer()
	booked := make(map[string]bool)
	for _, b := range bookings {
		if !(start.Before(b.End.Add(buffer)) && end.After(b.Start)) {
			continue
		}
		if in.Service.RequiresCoach && coachBlocking(b) {
			return nil, true
		}
		switch mode {
		case resourceExplicit:
			if b.usesResource(in.SelectedResource.ID) {
				return nil, true
			}
		case resourceAuto:
			for _, id := range b.ResourceIDs {
				if inPool[id] {
					booked[id] = true
				}
			}
		}
	}
	return booked, false
}

// coachBlocking reports whether b occupies the coach. Class sessions always
// do.
func coachBlocking(b Booking) bool {
	return b.CoachID != "" || b.Kind == BookingKindAppointment || b.Kind == BookingKindClassSession
}
