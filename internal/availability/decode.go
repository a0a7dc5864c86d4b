package availability

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var ErrUnsupportedShape = errors.New("unsupported payload shape")

// DecodeRawEvents accepts a bare array of events or an {"events": [...]}
// wrapper.
func DecodeRawEvents(data []byte) ([]RawEvent, error) {
	var out []RawEvent
	if err := decodeListOrWrapper(data, "events", &out); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return out, nil
}

// DecodeRawBookings accepts a bare array of bookings or a {"bookings": [...]}
// wrapper.
func DecodeRawBookings(data []byte) ([]RawBooking, error) {
	var out []RawBooking
	if err := decodeListOrWrapper(data, "bookings", &out); err != nil {
		return nil, fmt.Errorf("decode bookings: %w", err)
	}
	return out, nil
}

func decodeListOrWrapper(data []byte, key string, dst any) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '[':
		return json.Unmarshal(data, dst)
	case '{':
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return err
		}
		inner, ok := wrapper[key]
		if !ok {
			return fmt.Errorf("%w: missing %q", ErrUnsupportedShape, key)
		}
		return json.Unmarshal(inner, dst)
	default:
		return ErrUnsupportedShape
	}
}

// DecodeClassFeed accepts the three class feed shapes and returns the
// grouped form:
//
//   - an object keyed by coach id, each value a list of occurrences
//   - an array of {"coach": ..., "slots": [...]} groups
//   - a flat array of occurrences
func DecodeClassFeed(data []byte) ([]ClassGroup, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	switch data[0] {
	case '{':
		var byCoach map[string][]ClassOccurrence
		if err := json.Unmarshal(data, &byCoach); err != nil {
			return nil, fmt.Errorf("decode class feed: %w", err)
		}
		keys := make([]string, 0, len(byCoach))
		for k := range byCoach {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		groups := make([]ClassGroup, 0, len(keys))
		for _, k := range keys {
			coach := Coach{ID: k}
			for _, occ := range byCoach[k] {
				if occ.Coach != nil {
					coach = *occ.Coach
					break
				}
			}
			groups = append(groups, ClassGroup{Coach: coach, Slots: byCoach[k]})
		}
		return groups, nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("decode class feed: %w", err)
		}
		if len(items) == 0 {
			return nil, nil
		}
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(items[0], &probe); err != nil {
			return nil, fmt.Errorf("decode class feed: %w", err)
		}
		if _, grouped := probe["slots"]; grouped {
			var groups []ClassGroup
			if err := json.Unmarshal(data, &groups); err != nil {
				return nil, fmt.Errorf("decode class feed: %w", err)
			}
			return groups, nil
		}
		var flat []ClassOccurrence
		if err := json.Unmarshal(data, &flat); err != nil {
			return nil, fmt.Errorf("decode class feed: %w", err)
		}
		return GroupOccurrences(flat), nil
	default:
		return nil, ErrUnsupportedShape
	}
}
