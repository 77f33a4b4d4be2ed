// README: Week arithmetic and scheduler day-marker tests.
package settlement

import (
	"testing"
	"time"
)

func algiers(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Africa/Algiers")
	if err != nil {
		t.Fatalf("load tz: %v", err)
	}
	return loc
}

func TestPreviousWeekRange(t *testing.T) {
	loc := algiers(t)

	// Saturday 23:59:59 still belongs to the running week.
	now := time.Date(2026, 8, 29, 23, 59, 59, 0, loc)
	start, end := PreviousWeekRange(now, loc)
	if !start.Equal(time.Date(2026, 8, 16, 0, 0, 0, 0, loc)) {
		t.Fatalf("unexpected start: %v", start)
	}
	if !end.Equal(time.Date(2026, 8, 23, 0, 0, 0, 0, loc)) {
		t.Fatalf("unexpected end: %v", end)
	}

	// One second later it is Sunday: the week that just ended is returned.
	now = time.Date(2026, 8, 30, 0, 0, 0, 0, loc)
	start, end = PreviousWeekRange(now, loc)
	if !start.Equal(time.Date(2026, 8, 23, 0, 0, 0, 0, loc)) {
		t.Fatalf("unexpected start after rollover: %v", start)
	}
	if !end.Equal(time.Date(2026, 8, 30, 0, 0, 0, 0, loc)) {
		t.Fatalf("unexpected end after rollover: %v", end)
	}
}

func TestPreviousWeekRangeHalfOpen(t *testing.T) {
	loc := algiers(t)
	now := time.Date(2026, 9, 2, 12, 0, 0, 0, loc) // a Wednesday
	start, end := PreviousWeekRange(now, loc)
	if end.Sub(start) != 7*24*time.Hour {
		t.Fatalf("expected a 7-day window, got %v", end.Sub(start))
	}
	// The end of one week is exactly the start of the next query's week.
	nextStart, _ := PreviousWeekRange(now.AddDate(0, 0, 7), loc)
	if !nextStart.Equal(end) {
		t.Fatalf("weeks must tile: end %v vs next start %v", end, nextStart)
	}
}

func TestPreviousWeekRangeUTCInput(t *testing.T) {
	loc := algiers(t)
	// Algiers is UTC+1: Saturday 23:30 UTC is already Sunday locally.
	now := time.Date(2026, 8, 29, 23, 30, 0, 0, time.UTC)
	start, _ := PreviousWeekRange(now, loc)
	if !start.Equal(time.Date(2026, 8, 23, 0, 0, 0, 0, loc)) {
		t.Fatalf("expected local-clock rollover, got start %v", start)
	}
}

func TestSchedulerDayMarker(t *testing.T) {
	s := NewScheduler(nil, time.UTC, time.Second, nil)
	day := time.Date(2026, 8, 30, 0, 5, 0, 0, time.UTC)

	if !s.claim("create", day) {
		t.Fatal("first claim must succeed")
	}
	if s.claim("create", day.Add(30*time.Second)) {
		t.Fatal("second claim on the same day must fail")
	}
	if !s.claim("suspend", day) {
		t.Fatal("jobs are tracked independently")
	}

	s.release("create")
	if !s.claim("create", day.Add(time.Minute)) {
		t.Fatal("claim must succeed again after release")
	}

	if !s.claim("create", day.AddDate(0, 0, 7)) {
		t.Fatal("a new day gets a fresh claim")
	}
}
