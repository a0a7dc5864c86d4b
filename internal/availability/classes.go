package availability

import (
	"sort"
	"time"
)

// NormalizeClasses annotates class occurrences for display. Groups and the
// flat list are both ordered by start time.
func NormalizeClasses(groups []ClassGroup, selected Date, now time.Time, loc *time.Location) ClassSchedule {
	today := DateOf(now, loc) == selected
	schedule := ClassSchedule{
		Groups: make([]ClassSlotGroup, 0, len(groups)),
		Flat:   []ClassSlot{},
	}
	for _, g := range groups {
		if len(g.Slots) == 0 {
			continue
		}
		out := ClassSlotGroup{Coach: g.Coach, Slots: make([]ClassSlot, 0, len(g.Slots))}
		for _, occ := range g.Slots {
			out.Slots = append(out.Slots, normalizeOccurrence(occ, today, now, loc))
		}
		sortClassSlots(out.Slots)
		schedule.Groups = append(schedule.Groups, out)
		schedule.Flat = append(schedule.Flat, out.Slots...)
	}
	sort.SliceStable(schedule.Groups, func(i, j int) bool {
		return schedule.Groups[i].Slots[0].Start.Before(schedule.Groups[j].Slots[0].Start)
	})
	sortClassSlots(schedule.Flat)
	return schedule
}

func normalizeOccurrence(occ ClassOccurrence, today bool, now time.Time, loc *time.Location) ClassSlot {
	slot := ClassSlot{
		ClassOccurrence: occ,
		IsPast:          today && occ.Start.Before(now),
		Label:           Label(occ.Start, loc),
	}
	slot.Start = occ.Start.In(loc)
	slot.End = occ.End.In(loc)
	if slot.WaitlistCount < 0 {
		slot.WaitlistCount = 0
	}
	switch {
	case occ.Capacity != nil && occ.ActiveAttendees != nil:
		remaining := *occ.Capacity - *occ.ActiveAttendees
		if remaining < 0 {
			remaining = 0
		}
		slot.Remaining = &remaining
	case occ.Available != nil:
		remaining := *occ.Available
		slot.Remaining = &remaining
	}
	if slot.Remaining != nil {
		slot.IsFull = *slot.Remaining <= 0
	}
	return slot
}

func sortClassSlots(slots []ClassSlot) {
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].Start.Before(slots[j].Start)
	})
}

// GroupOccurrences groups a flat occurrence list by coach, keeping first
// appearance order.
func GroupOccurrences(occs []ClassOccurrence) []ClassGroup {
	var groups []ClassGroup
	index := make(map[string]int)
	for _, occ := range occs {
		var coach Coach
		if occ.Coach != nil {
			coach = *occ.Coach
		}
		key := coach.ID
		if key == "" {
			key = coach.Name
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, ClassGroup{Coach: coach})
		}
		groups[i].Slots = append(groups[i].Slots, occ)
	}
	return groups
}
