package availability

import (
	"sort"
	"time"
)

// ResolveInput is everything needed to compute a day's availability
// windows. ResourceBookings are expected to be scoped already to the
// selected resource or to the pool.
type ResolveInput struct {
	Service          Service
	Coach            *Coach
	Location         *Location
	Date             Date
	CoachEvents      []Event
	ResourceBookings []Booking
	Zone             *time.Location
}

type Resolution struct {
	Windows  []Window
	Bookings []Booking
}

type hoursState int

const (
	hoursUnset hoursState = iota
	hoursClosed
	hoursOpen
)

// Resolve merges coach, location and resource data into availability
// windows and a deduplicated conflict list.
func (p Policy) Resolve(in ResolveInput) Resolution {
	p = p.Normalize()
	svc := in.Service
	if !svc.RequiresCoach && !svc.RequiresResource && !svc.ClassLike() {
		return Resolution{}
	}
	if in.Location == nil || in.Zone == nil || in.Date.IsZero() {
		return Resolution{}
	}

	hours, state := locationWindow(*in.Location, in.Date, in.Zone)
	if state == hoursClosed {
		return Resolution{}
	}

	var bookings []Booking
	if !svc.RequiresCoach {
		var windows []Window
		if state == hoursOpen {
			windows = []Window{hours}
		}
		if svc.RequiresResource {
			bookings = append(bookings, in.ResourceBookings...)
		}
		return Resolution{Windows: windows, Bookings: p.DedupeBookings(bookings)}
	}

	coachID := ""
	if in.Coach != nil {
		coachID = in.Coach.ID
	}
	var coachWindows []Window
	for _, ev := range in.CoachEvents {
		switch ev.Kind {
		case KindAvailability:
			coachWindows = append(coachWindows, ev.Window)
		case KindBooking, KindClassSession:
			bookings = append(bookings, ev.booking(coachID))
		}
	}

	var windows []Window
	switch {
	case len(coachWindows) == 0:
		// The coach is the limiting authority: no windows, no availability.
	case svc.RequiresResource:
		var locWindows []Window
		if state == hoursOpen {
			locWindows = []Window{hours}
		}
		windows = intersectAll(coachWindows, resourceWindows(locWindows, coachWindows))
		bookings = append(bookings, in.ResourceBookings...)
	case state == hoursOpen:
		windows = intersectAll(coachWindows, []Window{hours})
	default:
		windows = append(windows, coachWindows...)
	}

	sortWindows(windows)
	return Resolution{Windows: windows, Bookings: p.DedupeBookings(bookings)}
}

// locationWindow returns the location's window for d and whether the day is
// open, explicitly closed, or not configured.
func locationWindow(loc Location, d Date, zone *time.Location) (Window, hoursState) {
	h, ok := loc.HoursFor(d.Weekday())
	if !ok {
		return Window{}, hoursUnset
	}
	if !h.IsOpen {
		return Window{}, hoursClosed
	}
	w, ok := clockWindow(d, h.OpenTime, h.CloseTime, zone)
	if !ok {
		return Window{}, hoursUnset
	}
	return w, hoursOpen
}

// resourceWindows picks the resource's availability: location hours, else
// the coach's own windows. Resolve only calls it with coach windows present,
// so the policy fallback window never applies here; it bounds the full-day
// closure check instead (see operatingHours).
func resourceWindows(locWindows, coachWindows []Window) []Window {
	if len(locWindows) > 0 {
		return locWindows
	}
	return append([]Window(nil), coachWindows...)
}

func intersectAll(a, b []Window) []Window {
	var out []Window
	for _, x := range a {
		for _, y := range b {
			if w, ok := x.Intersect(y); ok {
				out = append(out, w)
			}
		}
	}
	return out
}

func sortWindows(ws []Window) {
	sort.SliceStable(ws, func(i, j int) bool {
		if ws[i].Start.Equal(ws[j].Start) {
			return ws[i].End.Before(ws[j].End)
		}
		return ws[i].Start.Before(ws[j].Start)
	})
}
