package availability

import (
	"reflect"
	"testing"
	"time"
)

func startsOf(slots []Slot, loc *time.Location) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Start.In(loc).Format("15:04"))
	}
	return out
}

func assertStarts(t *testing.T, slots []Slot, loc *time.Location, want ...string) {
	t.Helper()
	got := startsOf(slots, loc)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected starts %v, got %v", want, got)
	}
}

func TestGenerateAddsOffGridStartAfterBooking(t *testing.T) {
	ny := mustZone(t, "America/New_York")
	day := "2026-10-20"
	p := DefaultPolicy()
	p.BufferMinutes = 5

	slots := p.Generate(GenerateInput{
		Windows: []Window{{Start: at(ny, day, 9, 0), End: at(ny, day, 12, 0)}},
		Bookings: []Booking{{
			ID:      "book_1",
			Window:  Window{Start: at(ny, day, 9, 30), End: at(ny, day, 10, 7)},
			Kind:    BookingKindAppointment,
			CoachID: "c1",
		}},
		Date:    mustDate(t, day),
		Service: Service{ID: "s1", RequiresCoach: true, DurationMinutes: 30},
		Zone:    ny,
	})
	assertStarts(t, slots, ny, "09:00", "10:12", "10:15", "10:30", "10:45", "11:00", "11:15", "11:30")

	for i := 1; i < len(slots); i++ {
		if !slots[i-1].Start.Before(slots[i].Start) {
			t.Fatalf("slots not strictly ordered at %d", i)
		}
	}
	for _, s := range slots {
		if s.End.Sub(s.Start) != 30*time.Minute {
			t.Fatalf("unexpected slot length %s", s.End.Sub(s.Start))
		}
	}
}

func TestGenerateClassSessionBlocksCoach(t *testing.T) {
	day := "2026-10-20"
	p := DefaultPolicy()
	p.StartIntervalMinutes = 60

	slots := p.Generate(GenerateInput{
		Windows: []Window{{Start: at(time.UTC, day, 9, 0), End: at(time.UTC, day, 12, 0)}},
		Bookings: []Booking{{
			ID:     "class_7",
			Window: Window{Start: at(time.UTC, day, 10, 0), End: at(time.UTC, day, 11, 0)},
			Kind:   BookingKindClassSession,
		}},
		Date:    mustDate(t, day),
		Service: Service{ID: "s1", RequiresCoach: true, DurationMinutes: 60},
		Zone:    time.UTC,
	})
	assertStarts(t, slots, time.UTC, "09:00", "11:00")
}

func TestGenerateIgnoresCancelledBookings(t *testing.T) {
	day := "2026-10-20"
	p := DefaultPolicy()
	p.StartIntervalMinutes = 60

	slots := p.Generate(GenerateInput{
		Windows: []Window{{Start: at(time.UTC, day, 9, 0), End: at(time.UTC, day, 11, 0)}},
		Bookings: []Booking{{
			ID:      "book_1",
			Window:  Window{Start: at(time.UTC, day, 9, 0), End: at(time.UTC, day, 10, 0)},
			Kind:    BookingKindAppointment,
			Status:  BookingCancelled,
			CoachID: "c1",
		}},
		Date:    mustDate(t, day),
		Service: Service{ID: "s1", RequiresCoach: true, DurationMinutes: 60},
		Zone:    time.UTC,
	})
	assertStarts(t, slots, time.UTC, "09:00", "10:00")
}

func TestGenerateExplicitResourceConflict(t *testing.T) {
	day := "2026-10-20"
	p := DefaultPolicy()
	p.StartIntervalMinutes = 60
	in := GenerateInput{
		Windows:          []Window{{Start: at(time.UTC, day, 9, 0), End: at(time.UTC, day, 11, 0)}},
		Date:             mustDate(t, day),
		Service:          Service{ID: "s1", RequiresResource: true, DurationMinutes: 60},
		Zone:             time.UTC,
		SelectedResource: &Resource{ID: "r1", Active: true},
	}
	booking := Booking{
		ID:     "55",
		Window: Window{Start: at(time.UTC, day, 9, 0), End: at(time.UTC, day, 10, 0)},
		Kind:   BookingKindResource,
	}

	booking.ResourceIDs = []string{"r2"}
	in.Bookings = []Booking{booking}
	assertStarts(t, p.Generate(in), time.UTC, "09:00", "10:00")

	booking.ResourceIDs = []string{"r1"}
	in.Bookings = []Booking{booking}
	slots := p.Generate(in)
	assertStarts(t, slots, time.UTC, "10:00")
	if slots[0].Capacity != nil || slots[0].AvailableResourceIDs != nil {
		t.Fatalf("explicit mode should not report capacity, got %+v", slots[0])
	}
}

func TestGenerateAutoAssignCapacity(t *testing.T) {
	day := "2026-10-20"
	p := DefaultPolicy()
	p.StartIntervalMinutes = 60
	pool := []Resource{{ID: "r1", Active: true}, {ID: "r2", Active: true}, {ID: "r3", Active: true}}
	nine := Window{Start: at(time.UTC, day, 9, 0), End: at(time.UTC, day, 10, 0)}

	in := GenerateInput{
		Windows: []Window{{Start: at(time.UTC, day, 9, 0), End: at(time.UTC, day, 11, 0)}},
		Bookings: []Booking{
			{ID: "1", Window: nine, Kind: BookingKindResource, ResourceIDs: []string{"r1"}},
			{ID: "2", Window: nine, Kind: BookingKindResource, ResourceIDs: []string{"r2", "other"}},
		},
		Date:         mustDate(t, day),
		Service:      Service{ID: "s1", RequiresResource: true, DurationMinutes: 60},
		Zone:         time.UTC,
		ResourcePool: pool,
	}
	slots := p.Generate(in)
	assertStarts(t, slots, time.UTC, "09:00", "10:00")

	for _, s := range slots {
		if s.Capacity == nil || *s.Capacity != len(s.AvailableResourceIDs) {
			t.Fatalf("capacity must match free resources, got %+v", s)
		}
	}
	if !reflect.DeepEqual(slots[0].AvailableResourceIDs, []string{"r3"}) {
		t.Fatalf("expected only r3 free at 09:00, got %v", slots[0].AvailableResourceIDs)
	}
	if *slots[1].Capacity != 3 {
		t.Fatalf("expected full pool at 10:00, got %d", *slots[1].Capacity)
	}

	in.Bookings = append(in.Bookings, Booking{ID: "3", Window: nine, Kind: BookingKindResource, ResourceIDs: []string{"r3"}})
	assertStarts(t, p.Generate(in), time.UTC, "10:00")

	in.Bookings = nil
	in.ResourcePool = []Resource{}
	if got := p.Generate(in); len(got) != 0 {
		t.Fatalf("empty pool must yield no slots, got %d", len(got))
	}
}

func TestGenerateSkipsPastStarts(t *testing.T) {
	day := "2026-10-20"
	p := DefaultPolicy()
	p.StartIntervalMinutes = 60

	slots := p.Generate(GenerateInput{
		Windows: []Window{{Start: at(time.UTC, day, 9, 0), End: at(time.UTC, day, 12, 0)}},
		Date:    mustDate(t, day),
		Service: Service{ID: "s1", RequiresCoach: true, DurationMinutes: 60},
		Zone:    time.UTC,
		Now:     at(time.UTC, day, 10, 30),
	})
	assertStarts(t, slots, time.UTC, "11:00")
}

func TestGenerateDurationOverride(t *testing.T) {
	day := "2026-10-20"
	p := DefaultPolicy()
	p.StartIntervalMinutes = 30

	slots := p.Generate(GenerateInput{
		Windows:         []Window{{Start: at(time.UTC, day, 9, 0), End: at(time.UTC, day, 10, 30)}},
		Date:            mustDate(t, day),
		Service:         Service{ID: "s1", RequiresCoach: true, DurationMinutes: 30},
		Zone:            time.UTC,
		DurationMinutes: 90,
	})
	assertStarts(t, slots, time.UTC, "09:00")
}

func TestGenerateAcrossFallBack(t *testing.T) {
	ny := mustZone(t, "America/New_York")
	date := mustDate(t, "2026-11-01")
	p := DefaultPolicy()
	p.StartIntervalMinutes = 60

	slots := p.Generate(GenerateInput{
		Windows: []Window{{Start: date.At(Clock{}, ny), End: date.At(Clock{Hour: 4}, ny)}},
		Date:    date,
		Service: Service{ID: "s1", RequiresCoach: true, DurationMinutes: 60},
		Zone:    ny,
	})
	if len(slots) != 5 {
		t.Fatalf("expected 5 hourly slots on a 25h day, got %d", len(slots))
	}
	wantLabels := []string{"12:00 AM", "1:00 AM", "1:00 AM", "2:00 AM", "3:00 AM"}
	for i, s := range slots {
		if s.Label != wantLabels[i] {
			t.Fatalf("slot %d: expected label %s, got %s", i, wantLabels[i], s.Label)
		}
	}
	if slots[1].ID != "2026-11-01T01:00:00-04:00" || slots[2].ID != "2026-11-01T01:00:00-05:00" {
		t.Fatalf("expected repeated hour with distinct offsets, got %s and %s", slots[1].ID, slots[2].ID)
	}
}

func TestGenerateCarriesZoneOffset(t *testing.T) {
	tokyo := mustZone(t, "Asia/Tokyo")
	day := "2026-10-20"

	slots := DefaultPolicy().Generate(GenerateInput{
		Windows: []Window{{Start: at(tokyo, day, 8, 0), End: at(tokyo, day, 9, 0)}},
		Date:    mustDate(t, day),
		Service: Service{ID: "s1", RequiresCoach: true, DurationMinutes: 60},
		Zone:    tokyo,
	})
	if len(slots) != 1 {
		t.Fatalf("expected one slot, got %d", len(slots))
	}
	if slots[0].ID != "2026-10-20T08:00:00+09:00" || slots[0].Label != "8:00 AM" {
		t.Fatalf("unexpected slot %+v", slots[0])
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	day := "2026-10-20"
	p := DefaultPolicy()
	p.BufferMinutes = 10
	in := GenerateInput{
		Windows: []Window{
			{Start: at(time.UTC, day, 13, 0), End: at(time.UTC, day, 17, 0)},
			{Start: at(time.UTC, day, 9, 0), End: at(time.UTC, day, 12, 0)},
		},
		Bookings: []Booking{{
			ID:      "book_1",
			Window:  Window{Start: at(time.UTC, day, 14, 0), End: at(time.UTC, day, 14, 50)},
			Kind:    BookingKindAppointment,
			CoachID: "c1",
		}},
		Date:    mustDate(t, day),
		Service: Service{ID: "s1", RequiresCoach: true, DurationMinutes: 45},
		Zone:    time.UTC,
	}
	first := p.Generate(in)
	second := p.Generate(in)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical output across runs")
	}
	if len(first) == 0 || first[0].Start.Hour() != 9 {
		t.Fatalf("expected morning window first, got %v", startsOf(first, time.UTC))
	}
}
