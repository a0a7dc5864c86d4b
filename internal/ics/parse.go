package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/hackgods/coach-slot-availability/internal/availability"
)

// maxOccurrences caps how many instances a single recurring VEVENT may
// produce inside one window.
const maxOccurrences = 500

var propEventType = ical.ComponentProperty("X-EVENT-TYPE")

var ErrEmptyFeed = errors.New("empty ICS body")

// Parse reads an ICS payload and returns the raw schedule entries that
// overlap window. Recurring events are expanded; events that cannot be read
// are skipped.
func Parse(body []byte, window availability.Window) ([]availability.RawEvent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyFeed
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	var out []availability.RawEvent
	for _, ve := range cal.Events() {
		base, ok := readEvent(ve)
		if !ok {
			continue
		}
		rule := ve.GetProperty(ical.ComponentPropertyRrule)
		if rule == nil || rule.Value == "" {
			if window.Overlaps(base.Start, base.End) {
				out = append(out, base)
			}
			continue
		}
		out = append(out, expand(base, rule.Value, exDates(ve, base.Start.Location()), window)...)
	}
	return out, nil
}

func readEvent(ve *ical.VEvent) (availability.RawEvent, bool) {
	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return availability.RawEvent{}, false
	}
	start, err := ve.GetStartAt()
	if err != nil {
		return availability.RawEvent{}, false
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return availability.RawEvent{}, false
	}

	ev := availability.RawEvent{
		ID:    uid.Value,
		Start: start,
		End:   end,
		Type:  eventType(ve),
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.Label = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil && strings.EqualFold(p.Value, "CANCELLED") {
		ev.Status = string(availability.BookingCancelled)
	}
	return ev, ev.End.After(ev.Start)
}

// eventType prefers X-EVENT-TYPE and falls back to the first CATEGORIES
// value that names a known entry type.
func eventType(ve *ical.VEvent) string {
	if p := ve.GetProperty(propEventType); p != nil && p.Value != "" {
		return strings.ToLower(strings.TrimSpace(p.Value))
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyCategories) {
		for _, c := range strings.Split(p.Value, ",") {
			switch c = strings.ToLower(strings.TrimSpace(c)); c {
			case "availability", "booking", "class_session":
				return c
			}
		}
	}
	return ""
}

func expand(base availability.RawEvent, rawRule string, exclude []time.Time, window availability.Window) []availability.RawEvent {
	r, err := rrule.StrToRRule(rawRule)
	if err != nil {
		return nil
	}
	r.DTStart(base.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range exclude {
		set.ExDate(ex)
	}

	length := base.End.Sub(base.Start)
	loc := base.Start.Location()
	// An instance that began before the window can still overlap it.
	starts := set.Between(window.Start.Add(-length).In(loc), window.End.In(loc), true)
	if len(starts) > maxOccurrences {
		starts = starts[:maxOccurrences]
	}

	out := make([]availability.RawEvent, 0, len(starts))
	for _, s := range starts {
		occ := base
		occ.Start = s
		occ.End = s.Add(length)
		if !window.Overlaps(occ.Start, occ.End) {
			continue
		}
		occ.ID = base.ID + "@" + s.UTC().Format("20060102T150405Z")
		out = append(out, occ)
	}
	return out
}

func exDates(ve *ical.VEvent, loc *time.Location) []time.Time {
	var out []time.Time
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(strings.TrimSpace(part), loc); err == nil {
				out = append(out, t)
			}
		}
	}
	return out
}

// parseICSTime handles the UTC, floating and date-only forms used by EXDATE.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
