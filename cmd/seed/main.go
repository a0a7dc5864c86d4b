package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/coach-slot-availability/internal/availability"
	"github.com/hackgods/coach-slot-availability/internal/db"
)

const (
	locationCount  = 3
	coachCount     = 40
	courtsPerSite  = 4
	scheduleDays   = 28
	classesPerWeek = 6
)

var weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, db.DefaultPoolOptions(), zap.NewNop())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	zone, err := availability.LoadZone(os.Getenv("BUSINESS_TIMEZONE"))
	if err != nil {
		log.Fatalf("business timezone: %v", err)
	}

	bg := context.Background()
	if err := seedCatalog(bg, pool, zone); err != nil {
		log.Fatalf("seed catalog: %v", err)
	}
	if err := seedCoaches(bg, pool, coachCount); err != nil {
		log.Fatalf("seed coaches: %v", err)
	}
	if err := seedSchedules(bg, pool, zone, coachCount); err != nil {
		log.Fatalf("seed schedules: %v", err)
	}
	if err := seedClasses(bg, pool, zone); err != nil {
		log.Fatalf("seed classes: %v", err)
	}

	log.Println("seed complete")
}

func locationID(i int) string { return fmt.Sprintf("loc_%d", i+1) }
func coachID(i int) string    { return fmt.Sprintf("coach_%d", i+1) }

func openingHours() ([]byte, error) {
	hours := make(map[string]availability.DayHours, len(weekdays))
	for i, day := range weekdays {
		h := availability.DayHours{IsOpen: true, OpenTime: "07:00", CloseTime: "21:00"}
		switch {
		case i == 6:
			h = availability.DayHours{IsOpen: gofakeit.Bool(), OpenTime: "09:00", CloseTime: "15:00"}
		case i == 5:
			h.OpenTime, h.CloseTime = "08:00", "18:00"
		}
		hours[day] = h
	}
	return json.Marshal(hours)
}

// courtClosures gives roughly one court in four a weekly maintenance window.
func courtClosures() ([]byte, error) {
	closures := []availability.Closure{}
	if gofakeit.Number(0, 3) == 0 {
		dow := gofakeit.Number(1, 5)
		closures = append(closures, availability.Closure{
			IsActive:            true,
			BlockedServiceTypes: []availability.ServiceType{availability.ServiceTypeAppointment},
			Type:                availability.ClosureDaily,
			DayOfWeek:           &dow,
			StartTimeLocal:      "12:00",
			EndTimeLocal:        "14:00",
		})
	}
	return json.Marshal(closures)
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool, zone *time.Location) error {
	log.Println("seeding business settings, services and locations")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	settings := map[string]string{
		"time_zone":                   zone.String(),
		"slot_buffer_minutes":         "5",
		"slot_start_interval_minutes": "15",
	}
	for k, v := range settings {
		if _, err := tx.Exec(ctx, `
			INSERT INTO business_settings (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
		`, k, v); err != nil {
			return err
		}
	}

	services := []struct {
		id, name        string
		duration        int
		allowed         []int
		coach, resource bool
		kind            availability.ServiceType
	}{
		{"svc_private", "Private lesson", 60, []int{30, 60, 90}, true, false, availability.ServiceTypeAppointment},
		{"svc_court", "Court hire", 60, []int{60, 120}, false, true, availability.ServiceTypeAppointment},
		{"svc_coached_court", "Coached court", 60, nil, true, true, availability.ServiceTypeAppointment},
		{"svc_clinic", "Group clinic", 90, nil, false, false, availability.ServiceTypeClass},
	}
	for _, s := range services {
		allowed := s.allowed
		if allowed == nil {
			allowed = []int{}
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO services (id, name, duration_minutes, is_variable_duration, allowed_durations,
			                      requires_coach, requires_resource, service_type)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING
		`, s.id, s.name, s.duration, len(s.allowed) > 0, allowed, s.coach, s.resource, string(s.kind)); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO resource_types (id, name) VALUES ('rt_court', 'Court')
		ON CONFLICT (id) DO NOTHING
	`); err != nil {
		return err
	}
	for _, svc := range []string{"svc_court", "svc_coached_court"} {
		if _, err := tx.Exec(ctx, `
			INSERT INTO service_resource_types (service_id, resource_type_id) VALUES ($1, 'rt_court')
			ON CONFLICT DO NOTHING
		`, svc); err != nil {
			return err
		}
	}

	for i := 0; i < locationCount; i++ {
		hours, err := openingHours()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO locations (id, name, hours) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET hours = EXCLUDED.hours
		`, locationID(i), gofakeit.City()+" Club", hours); err != nil {
			return err
		}

		for c := 0; c < courtsPerSite; c++ {
			closures, err := courtClosures()
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO resources (id, name, location_id, resource_type_id, active, closures)
				VALUES ($1, $2, $3, 'rt_court', TRUE, $4)
				ON CONFLICT (id) DO UPDATE SET closures = EXCLUDED.closures
			`, fmt.Sprintf("%s_court_%d", locationID(i), c+1), fmt.Sprintf("Court %d", c+1), locationID(i), closures); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	log.Println("catalog seeded")
	return nil
}

func seedCoaches(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d coaches", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		if _, err := tx.Exec(ctx, `
			INSERT INTO coaches (id, name) VALUES ($1, $2)
			ON CONFLICT (id) DO NOTHING
		`, coachID(i), gofakeit.Name()); err != nil {
			return err
		}

		loc := locationID(i % locationCount)
		for _, svc := range []string{"svc_private", "svc_coached_court"} {
			if _, err := tx.Exec(ctx, `
				INSERT INTO coach_services (service_id, coach_id, location_id, warm)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT DO NOTHING
			`, svc, coachID(i), loc, i < 10); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	log.Println("coaches seeded")
	return nil
}

// seedSchedules writes, per coach and day, an availability block with a few
// bookings inside it. Coaches are committed in batches.
func seedSchedules(ctx context.Context, pool *pgxpool.Pool, zone *time.Location, count int) error {
	log.Printf("seeding %d days of schedule for %d coaches", scheduleDays, count)

	const batchSize = 10
	today := availability.DateOf(time.Now(), zone)

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		batch := &pgx.Batch{}
		for i := offset; i < end; i++ {
			for d := 0; d < scheduleDays; d++ {
				day := today.AddDays(d)
				if day.Weekday() == time.Sunday {
					continue
				}
				queueCoachDay(batch, coachID(i), locationID(i%locationCount), day, zone)
			}
		}

		if err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			return tx.SendBatch(ctx, batch).Close()
		}); err != nil {
			return err
		}
		log.Printf("schedules seeded: %d/%d", end, count)
	}
	return nil
}

func queueCoachDay(batch *pgx.Batch, coach, loc string, day availability.Date, zone *time.Location) {
	openHour := gofakeit.Number(7, 10)
	closeHour := openHour + gofakeit.Number(5, 9)
	open := day.At(availability.Clock{Hour: openHour}, zone)
	closeAt := day.At(availability.Clock{Hour: closeHour}, zone)

	batch.Queue(`
		INSERT INTO coach_schedule_events (id, coach_id, label, start_time, end_time, event_type)
		VALUES ($1, $2, 'Available', $3, $4, 'availability')
		ON CONFLICT (id) DO NOTHING
	`, "avail_"+uuid.NewString(), coach, open, closeAt)

	for n := gofakeit.Number(0, 4); n > 0; n-- {
		start := open.Add(time.Duration(gofakeit.Number(0, (closeHour-openHour)*4-4)) * 15 * time.Minute)
		length := time.Duration(gofakeit.RandomInt([]int{30, 60, 90})) * time.Minute
		id := uuid.NewString()
		resources := []string{}
		if gofakeit.Bool() {
			resources = append(resources, fmt.Sprintf("%s_court_%d", loc, gofakeit.Number(1, courtsPerSite)))
		}

		batch.Queue(`
			INSERT INTO coach_schedule_events (id, coach_id, label, start_time, end_time, event_type, resource_ids)
			VALUES ($1, $2, $3, $4, $5, 'booking', $6)
			ON CONFLICT (id) DO NOTHING
		`, "book_"+id, coach, gofakeit.Name(), start, start.Add(length), resources)
		batch.Queue(`
			INSERT INTO resource_bookings (id, start_time, end_time, status, booking_type, coach_id, resource_ids)
			VALUES ($1, $2, $3, 'confirmed', 'coach_session', $4, $5)
			ON CONFLICT (id) DO NOTHING
		`, id, start, start.Add(length), coach, resources)
	}
}

func seedClasses(ctx context.Context, pool *pgxpool.Pool, zone *time.Location) error {
	log.Println("seeding class sessions")

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	today := availability.DateOf(time.Now(), zone)
	for week := 0; week < scheduleDays/7; week++ {
		for n := 0; n < classesPerWeek; n++ {
			day := today.AddDays(week*7 + gofakeit.Number(0, 6))
			start := day.At(availability.Clock{Hour: gofakeit.Number(8, 19)}, zone)
			capacity := gofakeit.Number(6, 16)
			loc := gofakeit.Number(0, locationCount-1)

			if _, err := tx.Exec(ctx, `
				INSERT INTO class_sessions (id, service_id, coach_id, resource_id, start_time, end_time,
				                            capacity, active_attendees, location_name, waitlist_count)
				VALUES ($1, 'svc_clinic', $2, $3, $4, $5, $6, $7, $8, $9)
			`, "class_"+uuid.NewString(), coachID(gofakeit.Number(0, coachCount-1)),
				fmt.Sprintf("%s_court_1", locationID(loc)), start, start.Add(90*time.Minute),
				capacity, gofakeit.Number(0, capacity), locationID(loc), gofakeit.Number(0, 3)); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	log.Println("class sessions seeded")
	return nil
}
