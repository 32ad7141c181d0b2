package job

import "time"

// NextAligned returns the first boundary strictly after now, where boundaries
// are multiples of interval counted from midnight in loc. A 15 minute interval
// yields :00, :15, :30 and :45 local time.
func NextAligned(now time.Time, interval time.Duration, loc *time.Location) time.Time {
	if interval <= 0 {
		interval = time.Minute
	}
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	elapsed := local.Sub(midnight)
	next := midnight.Add((elapsed/interval + 1) * interval)

	nextMidnight := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	if next.After(nextMidnight) {
		next = nextMidnight
	}
	return next
}
