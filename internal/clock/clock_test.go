package clock

import (
	"testing"
	"time"
)

func TestFields_DayOfWeekMondayZero(t *testing.T) {
	// 2026-08-03 is a Monday.
	tm := time.Date(2026, time.August, 3, 12, 0, 0, 0, time.UTC)
	f := Fields(tm)
	if f.DayOfWeek != 0 {
		t.Errorf("DayOfWeek = %d, want 0 (Monday)", f.DayOfWeek)
	}
}

func TestFields_LeapYear(t *testing.T) {
	f := Fields(time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC))
	if !f.LeapYear {
		t.Error("expected 2024 to be a leap year")
	}
	if f.EndOfMonth != 29 {
		t.Errorf("EndOfMonth = %d, want 29", f.EndOfMonth)
	}

	f2 := Fields(time.Date(2023, time.February, 1, 0, 0, 0, 0, time.UTC))
	if f2.LeapYear {
		t.Error("expected 2023 not to be a leap year")
	}
	if f2.EndOfMonth != 28 {
		t.Errorf("EndOfMonth = %d, want 28", f2.EndOfMonth)
	}
}

func TestSolar_NoonHigherThanMidnight(t *testing.T) {
	lat, lon := 45.5, -122.6 // Portland, OR
	day := time.Date(2026, time.June, 21, 0, 0, 0, 0, time.UTC)

	noonUTC := day.Add(20 * time.Hour) // roughly local solar noon in this zone
	midnightUTC := day.Add(8 * time.Hour)

	noon := Solar(noonUTC, lat, lon)
	midnight := Solar(midnightUTC, lat, lon)

	if noon.Altitude <= midnight.Altitude {
		t.Errorf("expected midday altitude (%v) > midnight altitude (%v)", noon.Altitude, midnight.Altitude)
	}
}
