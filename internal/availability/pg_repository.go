package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanService(row pgx.Row) (*Service, error) {
	var s Service
	var allowed []int32
	var serviceType string

	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.DurationMinutes,
		&s.IsVariableDuration,
		&allowed,
		&s.RequiresCoach,
		&s.RequiresResource,
		&serviceType,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}

	for _, d := range allowed {
		s.AllowedDurations = append(s.AllowedDurations, int(d))
	}
	s.Type = ServiceType(serviceType)
	return &s, nil
}

func scanResource(row pgx.Row) (*Resource, error) {
	var r Resource
	var closures []byte

	err := row.Scan(
		&r.ID,
		&r.Name,
		&r.LocationID,
		&r.ResourceTypeID,
		&r.Active,
		&closures,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResourceNotFound
		}
		return nil, err
	}

	r.Closures = decodeClosures(closures)
	return &r, nil
}

// decodeClosures skips records that fail to decode instead of rejecting the
// resource.
func decodeClosures(data []byte) []Closure {
	if len(data) == 0 {
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	out := make([]Closure, 0, len(raw))
	for _, item := range raw {
		var c Closure
		if err := json.Unmarshal(item, &c); err != nil {
			continue
		}
		out = append(out, c)
	}
	return out
}

const resourceColumns = `id, name, location_id, resource_type_id, active, closures`

// Interface methods

func (r *PgRepository) GetService(ctx context.Context, id string) (*Service, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, duration_minutes, is_variable_duration, allowed_durations,
		       requires_coach, requires_resource, service_type
		FROM services
		WHERE id = $1
	`, id)
	return scanService(row)
}

func (r *PgRepository) GetLocation(ctx context.Context, id string) (*Location, error) {
	var l Location
	var hours []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, hours
		FROM locations
		WHERE id = $1
	`, id).Scan(&l.ID, &l.Name, &hours)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLocationNotFound
		}
		return nil, err
	}
	if len(hours) > 0 {
		if err := json.Unmarshal(hours, &l.Hours); err != nil {
			return nil, fmt.Errorf("decode hours for location %s: %w", id, err)
		}
	}
	return &l, nil
}

func (r *PgRepository) GetCoach(ctx context.Context, id string) (*Coach, error) {
	var c Coach
	err := r.pool.QueryRow(ctx, `
		SELECT id, name
		FROM coaches
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCoachNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *PgRepository) GetResource(ctx context.Context, id string) (*Resource, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+resourceColumns+`
		FROM resources
		WHERE id = $1
	`, id)
	return scanResource(row)
}

func (r *PgRepository) BusinessSettings(ctx context.Context) (Settings, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT key, value
		FROM business_settings
		WHERE key IN ('time_zone', 'slot_buffer_minutes', 'slot_start_interval_minutes')
	`)
	if err != nil {
		return Settings{}, err
	}
	defer rows.Close()

	var s Settings
	for rows.Next() {
		var key string
		var value *string
		if err := rows.Scan(&key, &value); err != nil {
			return Settings{}, err
		}
		switch key {
		case "time_zone":
			if value != nil {
				s.TimeZone = *value
			}
		case "slot_buffer_minutes":
			s.SlotBufferMinutes = value
		case "slot_start_interval_minutes":
			s.SlotStartIntervalMinutes = value
		}
	}
	if err := rows.Err(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (r *PgRepository) ResourcePool(ctx context.Context, locationID, serviceID string) ([]Resource, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.name, r.location_id, r.resource_type_id, r.active, r.closures
		FROM resources r
		JOIN service_resource_types srt ON srt.resource_type_id = r.resource_type_id
		WHERE srt.service_id = $1
		  AND r.location_id = $2
		  AND r.active
		ORDER BY r.id
	`, serviceID, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []Resource{}
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) ResourceBookings(ctx context.Context, resourceIDs []string, window Window) ([]RawBooking, error) {
	if len(resourceIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, start_time, end_time, status, booking_type, coach_id,
		       bookable_type, bookable_id, resource_ids
		FROM resource_bookings
		WHERE (resource_ids && $1 OR (bookable_type = 'resource' AND bookable_id = ANY($1)))
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time, id
	`, resourceIDs, window.Start, window.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []RawBooking
	for rows.Next() {
		var b RawBooking
		var bookingType, coachID, bookableType, bookableID *string
		if err := rows.Scan(
			&b.ID,
			&b.Start,
			&b.End,
			&b.Status,
			&bookingType,
			&coachID,
			&bookableType,
			&bookableID,
			&b.ResourceIDs,
		); err != nil {
			return nil, err
		}
		b.Type = deref(bookingType)
		b.CoachID = deref(coachID)
		b.BookableType = deref(bookableType)
		b.BookableID = deref(bookableID)
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CoachSchedule returns the coach's calendar entries plus every class
// session the coach teaches, tagged as class sessions.
func (r *PgRepository) CoachSchedule(ctx context.Context, coachID string, window Window) ([]RawEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, label, start_time, end_time, event_type, properties, status, resource_ids
		FROM coach_schedule_events
		WHERE coach_id = $1 AND start_time < $3 AND end_time > $2
		UNION ALL
		SELECT 'class_' || id, 'Class', start_time, end_time, 'class_session', NULL, 'confirmed',
		       array_remove(ARRAY[resource_id], NULL)
		FROM class_sessions
		WHERE coach_id = $1 AND start_time < $3 AND end_time > $2
		ORDER BY 3, 1
	`, coachID, window.Start, window.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []RawEvent
	for rows.Next() {
		var ev RawEvent
		var eventType, status *string
		var props []byte
		if err := rows.Scan(&ev.ID, &ev.Label, &ev.Start, &ev.End, &eventType, &props, &status, &ev.ResourceIDs); err != nil {
			return nil, err
		}
		ev.Type = deref(eventType)
		ev.Status = deref(status)
		ev.CoachID = coachID
		if len(props) > 0 {
			// Unreadable properties only lose the embedded type tag.
			_ = json.Unmarshal(props, &ev.Properties)
		}
		result = append(result, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) ClassOccurrences(ctx context.Context, serviceID string, window Window) ([]ClassOccurrence, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT cs.id, cs.start_time, cs.end_time, cs.resource_id, cs.capacity,
		       cs.active_attendees, cs.location_name, cs.waitlist_count,
		       c.id, c.name
		FROM class_sessions cs
		LEFT JOIN coaches c ON c.id = cs.coach_id
		WHERE cs.service_id = $1
		  AND cs.start_time >= $2
		  AND cs.start_time < $3
		ORDER BY cs.start_time, cs.id
	`, serviceID, window.Start, window.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ClassOccurrence
	for rows.Next() {
		var o ClassOccurrence
		var resourceID, location, coachID, coachName *string
		var capacity, attendees *int32
		var waitlist int32
		if err := rows.Scan(
			&o.ID,
			&o.Start,
			&o.End,
			&resourceID,
			&capacity,
			&attendees,
			&location,
			&waitlist,
			&coachID,
			&coachName,
		); err != nil {
			return nil, err
		}
		o.ResourceID = deref(resourceID)
		o.Location = deref(location)
		o.Capacity = intPtr(capacity)
		o.ActiveAttendees = intPtr(attendees)
		o.WaitlistCount = int(waitlist)
		if coachID != nil {
			o.Coach = &Coach{ID: *coachID, Name: deref(coachName)}
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) WarmTargets(ctx context.Context) ([]WarmTarget, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT service_id, coach_id, location_id
		FROM coach_services
		WHERE warm
		ORDER BY service_id, coach_id, location_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []WarmTarget
	for rows.Next() {
		var t WarmTarget
		if err := rows.Scan(&t.ServiceID, &t.CoachID, &t.LocationID); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intPtr(v *int32) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}

var _ Repository = (*PgRepository)(nil)
var _ ScheduleSource = (*PgRepository)(nil)
