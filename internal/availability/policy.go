package availability

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// FetchFailurePolicy decides what happens when resource bookings cannot be
// loaded for a service that needs a resource.
type FetchFailurePolicy string

const (
	// FailClosed returns no slots for the day.
	FailClosed FetchFailurePolicy = "fail_closed"
	// Degrade generates slots without resource conflict data.
	Degrade FetchFailurePolicy = "degrade"
)

// Policy gathers every tunable constant of the engine. The zero value of a
// field means "use the default" (see DefaultPolicy).
type Policy struct {
	BufferMinutes          int                `yaml:"buffer_minutes"`
	StartIntervalMinutes   int                `yaml:"start_interval_minutes"`
	DefaultDurationMinutes int                `yaml:"default_duration_minutes"`
	FallbackOpen           string             `yaml:"fallback_open"`
	FallbackClose          string             `yaml:"fallback_close"`
	MinClosureGapMinutes   int                `yaml:"min_closure_gap_minutes"`
	OpenLabels             []string           `yaml:"open_labels"`
	AvailabilityPrefixes   []string           `yaml:"availability_prefixes"`
	BookingPrefixes        []string           `yaml:"booking_prefixes"`
	ResourceFetchFailure   FetchFailurePolicy `yaml:"resource_fetch_failure"`
}

const (
	defaultBufferMinutes        = 0
	defaultStartIntervalMinutes = 15
	defaultDurationMinutes      = 60
	defaultMinClosureGapMinutes = 15
	defaultFallbackOpen         = "09:00"
	defaultFallbackClose        = "19:00"
)

func DefaultPolicy() Policy {
	return Policy{
		BufferMinutes:          defaultBufferMinutes,
		StartIntervalMinutes:   defaultStartIntervalMinutes,
		DefaultDurationMinutes: defaultDurationMinutes,
		FallbackOpen:           defaultFallbackOpen,
		FallbackClose:          defaultFallbackClose,
		MinClosureGapMinutes:   defaultMinClosureGapMinutes,
		OpenLabels:             []string{"Available", "Open"},
		AvailabilityPrefixes:   []string{"availability_", "avail_"},
		BookingPrefixes:        []string{"booking_", "book_", "bk_"},
		ResourceFetchFailure:   FailClosed,
	}
}

// Normalize fills unset or out-of-range fields with defaults.
func (p Policy) Normalize() Policy {
	def := DefaultPolicy()
	if p.BufferMinutes < 0 {
		p.BufferMinutes = def.BufferMinutes
	}
	if p.StartIntervalMinutes < 1 {
		p.StartIntervalMinutes = def.StartIntervalMinutes
	}
	if p.DefaultDurationMinutes < 1 {
		p.DefaultDurationMinutes = def.DefaultDurationMinutes
	}
	if _, err := ParseClock(p.FallbackOpen); err != nil {
		p.FallbackOpen = def.FallbackOpen
	}
	if _, err := ParseClock(p.FallbackClose); err != nil {
		p.FallbackClose = def.FallbackClose
	}
	if p.MinClosureGapMinutes < 1 {
		p.MinClosureGapMinutes = def.MinClosureGapMinutes
	}
	if len(p.OpenLabels) == 0 {
		p.OpenLabels = def.OpenLabels
	}
	if len(p.AvailabilityPrefixes) == 0 {
		p.AvailabilityPrefixes = def.AvailabilityPrefixes
	}
	if len(p.BookingPrefixes) == 0 {
		p.BookingPrefixes = def.BookingPrefixes
	}
	switch p.ResourceFetchFailure {
	case FailClosed, Degrade:
	default:
		p.ResourceFetchFailure = def.ResourceFetchFailure
	}
	return p
}

func (p Policy) buffer() time.Duration {
	return time.Duration(p.BufferMinutes) * time.Minute
}

func (p Policy) interval() time.Duration {
	return time.Duration(p.StartIntervalMinutes) * time.Minute
}

func (p Policy) minClosureGap() time.Duration {
	return time.Duration(p.MinClosureGapMinutes) * time.Minute
}

// WithSlotSettings applies raw business settings on top of p. Values that are
// absent, non-numeric or negative keep p's current value.
func (p Policy) WithSlotSettings(buffer, interval any) Policy {
	p.BufferMinutes = CoerceMinutes(buffer, p.BufferMinutes)
	if n := CoerceMinutes(interval, p.StartIntervalMinutes); n >= 1 {
		p.StartIntervalMinutes = n
	}
	return p
}

// CoerceMinutes turns a loosely typed configuration value into a
// non-negative integer, returning def when v is absent or unusable.
func CoerceMinutes(v any, def int) int {
	var f float64
	switch n := v.(type) {
	case nil:
		return def
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case float32:
		f = float64(n)
	case float64:
		f = n
	case json.Number:
		x, err := n.Float64()
		if err != nil {
			return def
		}
		f = x
	case string:
		x, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return def
		}
		f = x
	case *string:
		if n == nil {
			return def
		}
		return CoerceMinutes(*n, def)
	default:
		return def
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return def
	}
	return int(math.Floor(f))
}
