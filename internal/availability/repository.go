package availability

import (
	"context"
	"errors"
	"time"
)

var (
	ErrServiceNotFound  = errors.New("service not found")
	ErrLocationNotFound = errors.New("location not found")
	ErrCoachNotFound    = errors.New("coach not found")
	ErrResourceNotFound = errors.New("resource not found")
)

// Settings are the business-wide values stored as loosely typed text.
type Settings struct {
	TimeZone                 string
	SlotBufferMinutes        *string
	SlotStartIntervalMinutes *string
}

// WarmTarget is a service/coach/location combination worth precomputing.
type WarmTarget struct {
	ServiceID  string
	CoachID    string
	LocationID string
}

// Repository contains every lookup the planner needs from the data layer.
type Repository interface {
	GetService(ctx context.Context, id string) (*Service, error)
	GetLocation(ctx context.Context, id string) (*Location, error)
	GetCoach(ctx context.Context, id string) (*Coach, error)
	GetResource(ctx context.Context, id string) (*Resource, error)
	BusinessSettings(ctx context.Context) (Settings, error)

	// Pool of active resources at a location compatible with a service.
	ResourcePool(ctx context.Context, locationID, serviceID string) ([]Resource, error)

	// Bookings touching any of the resources inside the window.
	ResourceBookings(ctx context.Context, resourceIDs []string, window Window) ([]RawBooking, error)

	ClassOccurrences(ctx context.Context, serviceID string, window Window) ([]ClassOccurrence, error)

	WarmTargets(ctx context.Context) ([]WarmTarget, error)
}

// ScheduleSource provides a coach's raw calendar for a window.
type ScheduleSource interface {
	CoachSchedule(ctx context.Context, coachID string, window Window) ([]RawEvent, error)
}

// Cache stores encoded day results.
type Cache interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Store(ctx context.Context, key string, data []byte, ttl time.Duration) error
}
