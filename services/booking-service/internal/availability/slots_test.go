package availability

import (
	"testing"
	"time"
)

func workday() Schedule {
	return Schedule{
		Location:        time.UTC,
		WorkStartMinute: 9 * 60,
		WorkEndMinute:   12 * 60,
		StepMinutes:     60,
	}
}

func TestDaySlots_Basic(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	slots := DaySlots(workday(), 2026, 3, 10, nil, now)
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	want := []int{9, 10, 11}
	for i, h := range want {
		expected := time.Date(2026, 3, 10, h, 0, 0, 0, time.UTC)
		if !slots[i].Equal(expected) {
			t.Fatalf("slot %d: expected %s, got %s", i, expected, slots[i])
		}
	}
}

func TestDaySlots_DisabledWeekday(t *testing.T) {
	s := workday()
	s.DisabledWeekdays = []int{int(time.Sunday)}
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	// 2026-03-08 is a Sunday.
	if slots := DaySlots(s, 2026, 3, 8, nil, now); slots != nil {
		t.Fatalf("expected no slots on a disabled weekday, got %v", slots)
	}
}

func TestDaySlots_SkipsPastTicksToday(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 30, 0, 0, time.UTC)
	slots := DaySlots(workday(), 2026, 3, 10, nil, now)
	// 09:00 and 10:00 are gone; only 11:00 remains.
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(slots))
	}
	if !slots[0].Equal(time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected 11:00, got %s", slots[0])
	}
}

func TestDaySlots_BookedStartRemoved(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	booked := []time.Time{time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)}
	slots := DaySlots(workday(), 2026, 3, 10, booked, now)
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	for _, s := range slots {
		if s.Hour() == 10 {
			t.Fatalf("booked 10:00 slot still offered")
		}
	}
}

func TestDaySlots_PastDate(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	if slots := DaySlots(workday(), 2026, 3, 1, nil, now); slots != nil {
		t.Fatalf("expected no slots for a past date, got %v", slots)
	}
}

func TestDaySlots_NoWorkingHours(t *testing.T) {
	s := workday()
	s.WorkStartMinute = 0
	s.WorkEndMinute = 0
	now := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	if slots := DaySlots(s, 2026, 3, 10, nil, now); slots != nil {
		t.Fatalf("expected no slots without working hours, got %v", slots)
	}
}

func TestDaySlots_BusinessTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	s := workday()
	s.Location = loc

	// 13:30 UTC on the same day is 08:30 in New York: the 09:00 local tick is
	// still in the future even though 09:00 UTC has passed.
	now := time.Date(2026, 3, 10, 13, 30, 0, 0, time.UTC)
	slots := DaySlots(s, 2026, 3, 10, nil, now)
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	if !slots[0].Equal(time.Date(2026, 3, 10, 9, 0, 0, 0, loc)) {
		t.Fatalf("expected 09:00 local, got %s", slots[0])
	}
}
