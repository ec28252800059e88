package availability

import "time"

// Schedule is the slice of a master's profile the slot calculator needs.
// Minutes are offsets from local midnight; weekdays use time.Weekday values.
type Schedule struct {
	Location         *time.Location
	DisabledWeekdays []int
	WorkStartMinute  int
	WorkEndMinute    int
	StepMinutes      int
}

// DaySlots returns the bookable start times for one calendar day, walking the
// working window at the schedule's step and dropping ticks that are disabled,
// already past, or exactly occupied by a booked start.
//
// The result is recomputed on every call; occupancy changes between calls.
func DaySlots(s Schedule, year int, month time.Month, day int, bookedStarts []time.Time, now time.Time) []time.Time {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	if s.StepMinutes <= 0 || s.WorkEndMinute <= s.WorkStartMinute {
		return nil
	}

	dayStart := time.Date(year, month, day, 0, 0, 0, 0, loc)
	if weekdayDisabled(s.DisabledWeekdays, dayStart.Weekday()) {
		return nil
	}

	// A whole day in the past yields nothing; "now" still prunes individual
	// ticks when the date is today.
	localNow := now.In(loc)
	if dayStart.AddDate(0, 0, 1).Before(localNow) {
		return nil
	}

	var slots []time.Time
	step := time.Duration(s.StepMinutes) * time.Minute
	end := dayStart.Add(time.Duration(s.WorkEndMinute) * time.Minute)
	for t := dayStart.Add(time.Duration(s.WorkStartMinute) * time.Minute); t.Before(end); t = t.Add(step) {
		if t.Before(localNow) {
			continue
		}
		if startTaken(bookedStarts, t) {
			continue
		}
		slots = append(slots, t)
	}
	return slots
}

func weekdayDisabled(disabled []int, wd time.Weekday) bool {
	for _, d := range disabled {
		if d == int(wd) {
			return true
		}
	}
	return false
}

func startTaken(booked []time.Time, t time.Time) bool {
	for _, b := range booked {
		// Exact start match; bookings are keyed on the tick itself.
		if b.Equal(t) {
			return true
		}
	}
	return false
}
