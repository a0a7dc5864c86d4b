package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrInvalidDuration = errors.New("duration is not allowed for this service")
	ErrInvalidQuery    = errors.New("invalid availability query")
)

const defaultMonthWorkers = 8

// Query identifies one day of availability for a service.
type Query struct {
	ServiceID       string
	CoachID         string
	ResourceID      string
	LocationID      string
	Date            Date
	DurationMinutes int
}

func (q Query) cacheKey() string {
	return fmt.Sprintf("availability:day:%s:%s:%s:%s:%s:%d",
		q.ServiceID, q.CoachID, q.ResourceID, q.LocationID, q.Date, q.DurationMinutes)
}

// DayResult is either a slot list or, for class-like services, a class
// schedule.
type DayResult struct {
	Date     string         `json:"date"`
	TimeZone string         `json:"time_zone"`
	Slots    []Slot         `json:"slots"`
	Classes  *ClassSchedule `json:"classes,omitempty"`
}

func (r DayResult) HasAvailability() bool {
	if len(r.Slots) > 0 {
		return true
	}
	if r.Classes == nil {
		return false
	}
	for _, c := range r.Classes.Flat {
		if !c.IsPast && !c.IsFull {
			return true
		}
	}
	return false
}

type PlannerOptions struct {
	Policy       Policy
	CacheTTL     time.Duration
	DefaultZone  string
	MonthWorkers int
	Now          func() time.Time
}

// Planner fetches raw data for a day and runs it through the engine.
type Planner struct {
	repo      Repository
	schedules ScheduleSource
	cache     Cache
	logger    *zap.Logger
	opts      PlannerOptions
}

// NewPlanner wires the planner. cache may be nil.
func NewPlanner(repo Repository, schedules ScheduleSource, cache Cache, logger *zap.Logger, opts PlannerOptions) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.Policy = opts.Policy.Normalize()
	if opts.MonthWorkers <= 0 {
		opts.MonthWorkers = defaultMonthWorkers
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Planner{
		repo:      repo,
		schedules: schedules,
		cache:     cache,
		logger:    logger,
		opts:      opts,
	}
}

// Day computes the bookable result for q. Missing service, location, coach
// or resource yield an empty result, not an error.
func (p *Planner) Day(ctx context.Context, q Query) (DayResult, error) {
	if q.ServiceID == "" || q.Date.IsZero() {
		return DayResult{}, ErrInvalidQuery
	}

	if p.cache != nil {
		if data, ok, err := p.cache.Load(ctx, q.cacheKey()); err != nil {
			p.logger.Warn("availability cache load failed", zap.String("key", q.cacheKey()), zap.Error(err))
		} else if ok {
			var cached DayResult
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	res, cacheable, err := p.day(ctx, q)
	if err != nil {
		return DayResult{}, err
	}

	if p.cache != nil && cacheable && !p.dependsOnNow(q.Date, res.TimeZone) {
		if data, err := json.Marshal(res); err == nil {
			if err := p.cache.Store(ctx, q.cacheKey(), data, p.opts.CacheTTL); err != nil {
				p.logger.Warn("availability cache store failed", zap.String("key", q.cacheKey()), zap.Error(err))
			}
		}
	}
	return res, nil
}

// dependsOnNow reports whether d is today or earlier in the business zone.
// Such results change as slots pass, so they are never cached.
func (p *Planner) dependsOnNow(d Date, zoneName string) bool {
	zone, err := LoadZone(zoneName)
	if err != nil {
		zone = time.UTC
	}
	return !after(d, DateOf(p.opts.Now(), zone))
}

func (p *Planner) day(ctx context.Context, q Query) (DayResult, bool, error) {
	res := DayResult{Date: q.Date.String(), Slots: []Slot{}}

	svc, err := p.repo.GetService(ctx, q.ServiceID)
	if errors.Is(err, ErrServiceNotFound) {
		return res, true, nil
	}
	if err != nil {
		return res, false, fmt.Errorf("load service: %w", err)
	}
	if q.DurationMinutes > 0 && !svc.AllowsDuration(q.DurationMinutes) {
		return res, false, ErrInvalidDuration
	}

	settings, err := p.repo.BusinessSettings(ctx)
	if err != nil {
		return res, false, fmt.Errorf("load business settings: %w", err)
	}
	policy := p.opts.Policy.WithSlotSettings(settings.SlotBufferMinutes, settings.SlotStartIntervalMinutes)
	zoneName := settings.TimeZone
	if zoneName == "" {
		zoneName = p.opts.DefaultZone
	}
	zone, err := LoadZone(zoneName)
	if err != nil {
		p.logger.Warn("invalid business time zone, using default", zap.String("zone", zoneName), zap.Error(err))
		zone = time.UTC
	}
	res.TimeZone = zone.String()
	bounds := q.Date.Bounds(zone)
	now := p.opts.Now()

	if svc.ClassLike() {
		occs, err := p.repo.ClassOccurrences(ctx, svc.ID, bounds)
		if err != nil {
			return res, false, fmt.Errorf("load class occurrences: %w", err)
		}
		schedule := NormalizeClasses(GroupOccurrences(occs), q.Date, now, zone)
		res.Classes = &schedule
		return res, true, nil
	}

	if q.LocationID == "" {
		return res, true, nil
	}
	location, err := p.repo.GetLocation(ctx, q.LocationID)
	if errors.Is(err, ErrLocationNotFound) {
		return res, true, nil
	}
	if err != nil {
		return res, false, fmt.Errorf("load location: %w", err)
	}

	var coach *Coach
	var events []Event
	if svc.RequiresCoach {
		if q.CoachID == "" {
			return res, true, nil
		}
		coach, err = p.repo.GetCoach(ctx, q.CoachID)
		if errors.Is(err, ErrCoachNotFound) {
			return res, true, nil
		}
		if err != nil {
			return res, false, fmt.Errorf("load coach: %w", err)
		}
		raw, err := p.schedules.CoachSchedule(ctx, coach.ID, bounds)
		if err != nil {
			// Without the coach's calendar nothing on this day can be trusted.
			p.logger.Error("coach schedule unavailable",
				zap.String("coach_id", coach.ID),
				zap.String("date", q.Date.String()),
				zap.Error(err),
			)
			return res, false, nil
		}
		events = policy.ClassifyEvents(raw)
	}

	var selected *Resource
	var pool []Resource
	var resourceBookings []Booking
	if svc.RequiresResource {
		hours := operatingHours(*location, q.Date, policy)
		minGap := policy.minClosureGap()

		if q.ResourceID != "" {
			r, err := p.repo.GetResource(ctx, q.ResourceID)
			if errors.Is(err, ErrResourceNotFound) {
				return res, true, nil
			}
			if err != nil {
				return res, false, fmt.Errorf("load resource: %w", err)
			}
			if !r.Active || IsFullyBlocked(*r, q.Date, hours, svc.Type, minGap, zone) {
				return res, true, nil
			}
			selected = r
		} else {
			all, err := p.repo.ResourcePool(ctx, q.LocationID, svc.ID)
			if err != nil {
				return res, false, fmt.Errorf("load resource pool: %w", err)
			}
			pool = ExcludeFullyBlocked(all, q.Date, hours, svc.Type, minGap, zone)
			if len(pool) == 0 {
				return res, true, nil
			}
		}

		ids := resourceIDs(pool)
		if selected != nil {
			ids = []string{selected.ID}
		}
		raw, err := p.repo.ResourceBookings(ctx, ids, bounds)
		switch {
		case err == nil:
			resourceBookings = NormalizeBookings(raw)
		case policy.ResourceFetchFailure == Degrade:
			p.logger.Warn("resource bookings unavailable, generating without resource conflicts",
				zap.Strings("resource_ids", ids),
				zap.String("date", q.Date.String()),
				zap.Error(err),
			)
		default:
			p.logger.Error("resource bookings unavailable",
				zap.Strings("resource_ids", ids),
				zap.String("date", q.Date.String()),
				zap.Error(err),
			)
			return res, false, nil
		}
	}

	slots := policy.slotsFor(dayInput{
		service:  *svc,
		coach:    coach,
		location: location,
		date:     q.Date,
		events:   events,
		selected: selected,
		pool:     pool,
		bookings: resourceBookings,
		zone:     zone,
		duration: q.DurationMinutes,
		now:      now,
	})
	res.Slots = slots
	return res, true, nil
}

// Month reports, for every date of the month, whether q has anything
// bookable. Days are computed concurrently; a failing day counts as
// unavailable.
func (p *Planner) Month(ctx context.Context, q Query, year int, month time.Month) (map[string]bool, error) {
	if q.ServiceID == "" || month < time.January || month > time.December {
		return nil, ErrInvalidQuery
	}

	first := Date{Year: year, Month: month, Day: 1}
	var dates []Date
	for d := first; d.Month == month; d = d.AddDays(1) {
		dates = append(dates, d)
	}

	result := make(map[string]bool, len(dates))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, p.opts.MonthWorkers)

	for _, d := range dates {
		wg.Add(1)
		go func(d Date) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			dq := q
			dq.Date = d
			day, err := p.Day(ctx, dq)
			if err != nil {
				p.logger.Warn("month day failed",
					zap.String("service_id", q.ServiceID),
					zap.String("date", d.String()),
					zap.Error(err),
				)
			}
			mu.Lock()
			result[d.String()] = err == nil && day.HasAvailability()
			mu.Unlock()
		}(d)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MonthKey formats a month for logs and cache keys.
func MonthKey(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}
