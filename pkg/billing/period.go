package billing

import "time"

// PeriodEnd computes the end of the billing period that starts at start.
// Month-based intervals use calendar arithmetic with the day clamped to the
// last valid day of the target month (Jan 31 + 1 month = Feb 29 in a leap
// year, not Mar 2). Unknown intervals fall back to one month.
func PeriodEnd(interval Interval, start time.Time) time.Time {
	switch interval {
	case IntervalDaily:
		return start.AddDate(0, 0, 1)
	case IntervalWeekly:
		return start.AddDate(0, 0, 7)
	case IntervalMonthly:
		return addMonthsClamped(start, 1)
	case IntervalQuarterly:
		return addMonthsClamped(start, 3)
	case IntervalBiannual:
		return addMonthsClamped(start, 6)
	case IntervalYearly:
		return addMonthsClamped(start, 12)
	}
	return addMonthsClamped(start, 1)
}

// addMonthsClamped adds months to t without time.AddDate's day overflow
// normalization: a day past the end of the target month clamps to its last day.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	total := int(month) - 1 + months
	year += total / 12
	month = time.Month(total%12 + 1)

	if last := daysInMonth(year, month); day > last {
		day = last
	}

	return time.Date(year, month, day, hour, minute, sec, t.Nanosecond(), t.Location())
}

// daysInMonth returns the number of days in the given month. Day zero of the
// following month normalizes back to the last day of this one.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
