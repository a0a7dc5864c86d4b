package availability

import (
	"time"
)

// OperatingHours bounds a resource's day for the full-day closure check.
type OperatingHours struct {
	Open  string `json:"open_time"`
	Close string `json:"close_time"`
}

// dailyWindow returns the closure's local window on d, if it recurs that
// weekday. Missing bounds default to the whole day.
func (c Closure) dailyWindow(d Date, loc *time.Location) (Window, bool) {
	if c.DayOfWeek == nil || time.Weekday(*c.DayOfWeek) != d.Weekday() {
		return Window{}, false
	}
	start, end := startOfDay, endOfDay
	if c.StartTimeLocal != "" {
		parsed, err := ParseClock(c.StartTimeLocal)
		if err != nil {
			return Window{}, false
		}
		start = parsed
	}
	if c.EndTimeLocal != "" {
		parsed, err := ParseClock(c.EndTimeLocal)
		if err != nil {
			return Window{}, false
		}
		end = parsed
	}
	w := Window{Start: d.At(start, loc), End: d.At(end, loc)}
	return w, w.Valid()
}

func (c Closure) rangeWindow() (Window, bool) {
	if c.StartTimeUTC == nil || c.EndTimeUTC == nil {
		return Window{}, false
	}
	w := Window{Start: *c.StartTimeUTC, End: *c.EndTimeUTC}
	return w, w.Valid()
}

// IsBlocked reports whether any active closure of r that applies to st
// overlaps [start,end).
func IsBlocked(r Resource, start, end time.Time, st ServiceType, loc *time.Location) bool {
	if !end.After(start) {
		return false
	}
	first := DateOf(start, loc)
	last := DateOf(end.Add(-time.Nanosecond), loc)
	for _, c := range r.Closures {
		if !c.blocks(st) {
			continue
		}
		switch c.Type {
		case ClosureDaily:
			for d := first; !after(d, last); d = d.AddDays(1) {
				if w, ok := c.dailyWindow(d, loc); ok && w.Overlaps(start, end) {
					return true
				}
			}
		case ClosureDateRange:
			if w, ok := c.rangeWindow(); ok && w.Overlaps(start, end) {
				return true
			}
		}
	}
	return false
}

func after(a, b Date) bool {
	if a.Year != b.Year {
		return a.Year > b.Year
	}
	if a.Month != b.Month {
		return a.Month > b.Month
	}
	return a.Day > b.Day
}

// IsFullyBlocked reports whether closures leave no gap of at least minGap
// inside the operating hours of d. Unparseable hours fall back to the whole
// day.
func IsFullyBlocked(r Resource, d Date, hours OperatingHours, st ServiceType, minGap time.Duration, loc *time.Location) bool {
	if minGap <= 0 {
		minGap = defaultMinClosureGapMinutes * time.Minute
	}
	open, ok := clockWindow(d, hours.Open, hours.Close, loc)
	if !ok {
		open = d.Bounds(loc)
	}

	var blocks []Window
	for _, c := range r.Closures {
		if !c.blocks(st) {
			continue
		}
		var w Window
		switch c.Type {
		case ClosureDaily:
			w, ok = c.dailyWindow(d, loc)
		case ClosureDateRange:
			w, ok = c.rangeWindow()
		default:
			ok = false
		}
		if !ok {
			continue
		}
		if clipped, ok := w.Intersect(open); ok {
			blocks = append(blocks, clipped)
		}
	}
	if len(blocks) == 0 {
		return open.End.Sub(open.Start) < minGap
	}

	cursor := open.Start
	for _, b := range mergeWindows(blocks) {
		if b.Start.Sub(cursor) >= minGap {
			return false
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	return open.End.Sub(cursor) < minGap
}

// mergeWindows sorts ws and merges overlapping or touching windows.
func mergeWindows(ws []Window) []Window {
	sorted := append([]Window(nil), ws...)
	sortWindows(sorted)
	merged := []Window{sorted[0]}
	for _, w := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !w.Start.After(last.End) {
			if w.End.After(last.End) {
				last.End = w.End
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}

// ExcludeFullyBlocked drops resources that cannot host any slot on d.
func ExcludeFullyBlocked(pool []Resource, d Date, hours OperatingHours, st ServiceType, minGap time.Duration, loc *time.Location) []Resource {
	out := make([]Resource, 0, len(pool))
	for _, r := range pool {
		if !IsFullyBlocked(r, d, hours, st, minGap, loc) {
			out = append(out, r)
		}
	}
	return out
}

// FilterSlots re-checks every slot's resources against closures. Slots
// without a resource list start from the whole pool. Ids not present in the
// pool have no closure data and are kept. Slots left without resources are
// dropped.
func FilterSlots(slots []Slot, pool []Resource, st ServiceType, loc *time.Location) []Slot {
	byID := make(map[string]Resource, len(pool))
	for _, r := range pool {
		byID[r.ID] = r
	}
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		ids := s.AvailableResourceIDs
		if ids == nil {
			ids = resourceIDs(pool)
		}
		kept := make([]string, 0, len(ids))
		for _, id := range ids {
			r, known := byID[id]
			if known && IsBlocked(r, s.Start, s.End, st, loc) {
				continue
			}
			kept = append(kept, id)
		}
		if len(kept) == 0 {
			continue
		}
		s.AvailableResourceIDs = kept
		if s.Capacity != nil {
			capacity := len(kept)
			if *s.Capacity < capacity {
				capacity = *s.Capacity
			}
			s.Capacity = &capacity
		}
		out = append(out, s)
	}
	return out
}
