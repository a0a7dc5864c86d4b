package availability

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeZone is used when the business has not configured one.
const DefaultTimeZone = "UTC"

const (
	dateLayout  = "2006-01-02"
	labelLayout = "3:04 PM"
)

var (
	ErrInvalidDate  = errors.New("invalid date")
	ErrInvalidClock = errors.New("invalid clock time")
)

// LoadZone resolves a business time zone name. An empty name means
// DefaultTimeZone.
func LoadZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultTimeZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", name, err)
	}
	return loc, nil
}

// Date is a calendar date with no zone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// DateOf returns the civil date of t as observed in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC).Weekday()
}

func (d Date) AddDays(n int) Date {
	t := time.Date(d.Year, d.Month, d.Day+n, 12, 0, 0, 0, time.UTC)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// At constructs the instant for clock c on this date in loc. This is the
// only place civil times become instants.
func (d Date) At(c Clock, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, c.Second, 0, loc)
}

// Bounds returns [local midnight, next local midnight) in loc. The window
// is 23 or 25 hours long on DST transition days.
func (d Date) Bounds(loc *time.Location) Window {
	return Window{
		Start: d.At(Clock{}, loc),
		End:   d.AddDays(1).At(Clock{}, loc),
	}
}

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
	Second int
}

var (
	startOfDay = Clock{}
	endOfDay   = Clock{Hour: 23, Minute: 59, Second: 59}
)

// ParseClock accepts "HH:mm" or "HH:mm:ss". "24:00" is accepted as the end
// of the day.
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
		}
		nums[i] = n
	}
	c := Clock{Hour: nums[0], Minute: nums[1], Second: nums[2]}
	if c.Minute > 59 || c.Second > 59 || c.Hour > 24 || (c.Hour == 24 && (c.Minute > 0 || c.Second > 0)) {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return c, nil
}

// NormalizeClock drops seconds: "09:00:00" -> "09:00".
func NormalizeClock(s string) (string, error) {
	c, err := ParseClock(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute), nil
}

// clockWindow builds [open, close) on d. Seconds in the inputs are ignored.
func clockWindow(d Date, openAt, closeAt string, loc *time.Location) (Window, bool) {
	o, err := ParseClock(openAt)
	if err != nil {
		return Window{}, false
	}
	c, err := ParseClock(closeAt)
	if err != nil {
		return Window{}, false
	}
	o.Second, c.Second = 0, 0
	w := Window{Start: d.At(o, loc), End: d.At(c, loc)}
	return w, w.Valid()
}

// Label renders t for display in loc.
func Label(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(labelLayout)
}

// SlotID identifies a slot by its start, carrying loc's offset.
func SlotID(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.RFC3339)
}
