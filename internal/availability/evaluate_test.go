package availability

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEvaluateCoachRequest(t *testing.T) {
	body := []byte(`{
		"service": {"id":"s1","duration_minutes":30,"requires_coach":true,"service_type":"appointment"},
		"coach": {"id":"c1"},
		"location": {"id":"loc","hours":{"tuesday":{"is_open":true,"open_time":"09:00:00","close_time":"11:00:00"}}},
		"date": "2026-10-20",
		"time_zone": "Europe/Berlin",
		"coach_events": {"events":[
			{"id":"avail_1","label":"Open","start":"2026-10-20T07:00:00Z","end":"2026-10-20T10:00:00Z"},
			{"id":"bk_9","label":"Client","start":"2026-10-20T07:30:00Z","end":"2026-10-20T08:00:00Z"}
		]},
		"slot_start_interval_minutes": "30",
		"slot_buffer_minutes": 0
	}`)
	var req EvaluateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		t.Fatalf("decode request: %v", err)
	}

	res, err := DefaultPolicy().Evaluate(req, at(time.UTC, "2026-10-01", 0, 0))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	berlin := mustZone(t, "Europe/Berlin")
	assertStarts(t, res.Slots, berlin, "09:00", "10:00", "10:30")
	if res.Slots[0].ID != "2026-10-20T09:00:00+02:00" {
		t.Fatalf("unexpected slot id %s", res.Slots[0].ID)
	}
	if res.TimeZone != "Europe/Berlin" {
		t.Fatalf("unexpected zone %s", res.TimeZone)
	}
}

func TestEvaluateResourcePoolWithClosure(t *testing.T) {
	body := []byte(`{
		"service": {"id":"s1","duration_minutes":60,"requires_resource":true,"service_type":"appointment"},
		"location": {"id":"loc","hours":{"tuesday":{"is_open":true,"open_time":"09:00","close_time":"12:00"}}},
		"date": "2026-10-20",
		"resource_pool": [
			{"id":"r1","active":true,"closures":[{"is_active":true,"blocked_service_types":["appointment"],"closure_type":"daily","day_of_week":2,"start_time_local":"10:00","end_time_local":"11:00"}]},
			{"id":"r2","active":true}
		],
		"resource_bookings": [{"id":"5","start":"2026-10-20T09:00:00Z","end":"2026-10-20T10:00:00Z","resources":[{"id":"r2"}]}],
		"slot_start_interval_minutes": 60
	}`)
	var req EvaluateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		t.Fatalf("decode request: %v", err)
	}

	res, err := DefaultPolicy().Evaluate(req, time.Time{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	assertStarts(t, res.Slots, time.UTC, "09:00", "10:00", "11:00")
	want := [][]string{{"r1"}, {"r2"}, {"r1", "r2"}}
	for i, s := range res.Slots {
		if len(s.AvailableResourceIDs) != len(want[i]) || *s.Capacity != len(want[i]) {
			t.Fatalf("slot %d: expected %v, got %v (capacity %d)", i, want[i], s.AvailableResourceIDs, *s.Capacity)
		}
		for j := range want[i] {
			if s.AvailableResourceIDs[j] != want[i][j] {
				t.Fatalf("slot %d: expected %v, got %v", i, want[i], s.AvailableResourceIDs)
			}
		}
	}
}

func TestEvaluateClassFeed(t *testing.T) {
	body := []byte(`{
		"service": {"id":"yoga","service_type":"class"},
		"date": "2026-10-20",
		"classes": [{"id":"k1","start":"2026-10-20T18:00:00Z","end":"2026-10-20T19:00:00Z","capacity":10,"active_attendees":10,"coach":{"id":"c1"}}]
	}`)
	var req EvaluateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	res, err := DefaultPolicy().Evaluate(req, at(time.UTC, "2026-10-20", 8, 0))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.Classes == nil || len(res.Classes.Flat) != 1 || !res.Classes.Flat[0].IsFull {
		t.Fatalf("unexpected classes %+v", res.Classes)
	}
	if len(res.Slots) != 0 {
		t.Fatalf("class services produce no generated slots")
	}
}

func TestEvaluateRejectsBadInput(t *testing.T) {
	cases := []EvaluateRequest{
		{Service: Service{ID: "s1", RequiresCoach: true}, Date: "20-10-2026"},
		{Service: Service{ID: "s1", RequiresCoach: true}, Date: "2026-10-20", TimeZone: "Mars/Olympus"},
		{Service: Service{ID: "s1", RequiresCoach: true}, Date: "2026-10-20", CoachEvents: json.RawMessage(`42`)},
	}
	for i, req := range cases {
		if _, err := DefaultPolicy().Evaluate(req, time.Time{}); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func explicitCourtDay(t *testing.T, closures []Closure) dayInput {
	t.Helper()
	day := "2026-10-20"
	return dayInput{
		service:  Service{ID: "coached", DurationMinutes: 60, RequiresCoach: true, RequiresResource: true, Type: ServiceTypeAppointment},
		coach:    &Coach{ID: "c1"},
		location: tuesdayLocation("09:00", "12:00", true),
		date:     mustDate(t, day),
		events: []Event{
			availabilityEvent("avail_1", at(time.UTC, day, 9, 0), at(time.UTC, day, 12, 0)),
			{Kind: KindBooking, ID: "book_42", Status: BookingCancelled, Window: Window{Start: at(time.UTC, day, 9, 0), End: at(time.UTC, day, 10, 0)}},
		},
		selected: &Resource{ID: "r1", Active: true, Closures: closures},
		bookings: []Booking{{
			ID: "42", Status: BookingConfirmed, Kind: BookingKindResource, ResourceIDs: []string{"r1"},
			Window: Window{Start: at(time.UTC, day, 9, 0), End: at(time.UTC, day, 10, 0)},
		}},
		zone: time.UTC,
	}
}

func TestSlotsForConfirmedResourceCopyBlocksDespiteCancelledCoachCopy(t *testing.T) {
	slots := DefaultPolicy().slotsFor(explicitCourtDay(t, nil))
	assertStarts(t, slots, time.UTC, "10:00", "10:15", "10:30", "10:45", "11:00")
}

func TestSlotsForExplicitResourceOmitsResourceFields(t *testing.T) {
	dow := int(time.Tuesday)
	in := explicitCourtDay(t, []Closure{{
		IsActive:            true,
		BlockedServiceTypes: []ServiceType{ServiceTypeAppointment},
		Type:                ClosureDaily,
		DayOfWeek:           &dow,
		StartTimeLocal:      "10:30",
		EndTimeLocal:        "11:00",
	}})

	slots := DefaultPolicy().slotsFor(in)
	assertStarts(t, slots, time.UTC, "11:00")
	for _, s := range slots {
		if s.AvailableResourceIDs != nil || s.Capacity != nil {
			t.Fatalf("explicit resource slots carry no resource fields, got %+v", s)
		}
	}
}
