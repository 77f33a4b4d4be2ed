// README: Settlement week arithmetic. Weeks run Sunday 00:00 local time to
// the next Sunday 00:00, half-open [start, end).
package settlement

import "time"

// PreviousWeekRange returns the week before the one containing now, in loc.
// A now of Sunday 00:00 sharp already belongs to the new week, so the week
// that just ended is the one returned.
func PreviousWeekRange(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	weekStart := midnight.AddDate(0, 0, -int(local.Weekday()))
	return weekStart.AddDate(0, 0, -7), weekStart
}
