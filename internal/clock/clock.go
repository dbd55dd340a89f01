// Package clock computes the calendar and solar pseudo-device fields the
// logic engine's built-ins (spec §4.5, zones utc/local/solar) and the
// tod driver (spec §4.4) both need. Modeled as plain functions over
// time.Time rather than a pseudo-device type so both callers can own
// their own subscription/ticking policy; the "treat time as a device"
// framing happens one layer up, in internal/logic and internal/drivers/tod.
package clock

import "time"

// TimeFields holds the calendar fields the logic grammar's utc/local
// zones expose (spec §4.5).
type TimeFields struct {
	Seconds      int
	Minute       int
	Hour         int
	Day          int
	Month        int
	Year         int
	DayOfWeek    int // 0 = Monday, per spec §4.5
	DayOfYear    int
	StartOfMonth int // day-of-month, always 1
	EndOfMonth   int // last day-of-month for t's month/year
	LeapYear     bool
}

// Fields computes TimeFields for t, which the caller has already
// converted to the desired zone (UTC or local).
func Fields(t time.Time) TimeFields {
	year, month, day := t.Date()
	leap := isLeapYear(year)
	return TimeFields{
		Seconds:      t.Second(),
		Minute:       t.Minute(),
		Hour:         t.Hour(),
		Day:          day,
		Month:        int(month),
		Year:         year,
		DayOfWeek:    mondayZero(t.Weekday()),
		DayOfYear:    t.YearDay(),
		StartOfMonth: 1,
		EndOfMonth:   daysInMonth(year, month),
		LeapYear:     leap,
	}
}

func mondayZero(w time.Weekday) int {
	// time.Weekday is 0=Sunday..6=Saturday; spec wants 0=Monday.
	return (int(w) + 6) % 7
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func daysInMonth(year int, month time.Month) int {
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	lastOfThis := firstOfNext.AddDate(0, 0, -1)
	return lastOfThis.Day()
}
