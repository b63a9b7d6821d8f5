package timeparse

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const dateOnly = "2006-01-02"

// ParseDateTime accepts the CLI's day/time selectors: today, tomorrow,
// yesterday, relative day offsets like +7d, and explicit RFC 3339,
// YYYY-MM-DDTHH:MM, or YYYY-MM-DD values.
func ParseDateTime(input string, now time.Time, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(strings.ToLower(input))
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}

	switch s {
	case "today":
		y, m, d := now.In(loc).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
	case "tomorrow":
		v, _ := ParseDateTime("today", now, loc)
		return v.AddDate(0, 0, 1), nil
	case "yesterday":
		v, _ := ParseDateTime("today", now, loc)
		return v.AddDate(0, 0, -1), nil
	}

	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		sign := 1
		if strings.HasPrefix(s, "-") {
			sign = -1
		}
		raw := strings.TrimPrefix(strings.TrimPrefix(s, "+"), "-")
		if strings.HasSuffix(raw, "d") {
			n, err := strconv.Atoi(strings.TrimSuffix(raw, "d"))
			if err != nil {
				return time.Time{}, fmt.Errorf("invalid relative day: %s", input)
			}
			v, _ := ParseDateTime("today", now, loc)
			return v.AddDate(0, 0, sign*n), nil
		}
	}

	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04",
		"2006-01-02 15:04",
		dateOnly,
	}
	for _, layout := range layouts {
		if ts, err := time.ParseInLocation(layout, input, loc); err == nil {
			return ts, nil
		}
	}

	return time.Time{}, fmt.Errorf("unsupported datetime format: %s", input)
}

// DayWindow returns the half-open local-instant window [start, end) for the
// calendar day containing anchor.
func DayWindow(anchor time.Time) (time.Time, time.Time) {
	y, m, d := anchor.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, anchor.Location())
	return start, start.AddDate(0, 0, 1)
}

// WeekWindow returns [start, end) for the week containing anchor, beginning
// on weekStart.
func WeekWindow(anchor time.Time, weekStart time.Weekday) (time.Time, time.Time) {
	dayStart, _ := DayWindow(anchor)
	delta := (int(dayStart.Weekday()) - int(weekStart) + 7) % 7
	start := dayStart.AddDate(0, 0, -delta)
	return start, start.AddDate(0, 0, 7)
}

// MonthWindow returns [start, end) for the month containing anchor.
func MonthWindow(anchor time.Time) (time.Time, time.Time) {
	y, m, _ := anchor.Date()
	start := time.Date(y, m, 1, 0, 0, 0, 0, anchor.Location())
	return start, start.AddDate(0, 1, 0)
}

// YearWindow returns [start, end) for the year containing anchor.
func YearWindow(anchor time.Time) (time.Time, time.Time) {
	start := time.Date(anchor.Year(), 1, 1, 0, 0, 0, 0, anchor.Location())
	return start, start.AddDate(1, 0, 0)
}

// DateString formats t as its plain calendar date. All-day membership and
// equality checks compare these strings so a timezone shift can never move
// an event across a day boundary.
func DateString(t time.Time) string {
	return t.Format(dateOnly)
}

func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// SnapMinutes rounds a raw minute displacement to the nearest multiple of
// snap. Displacements under half the snap unit collapse to zero. Non-finite
// input snaps to zero rather than poisoning downstream arithmetic.
func SnapMinutes(minutes float64, snap int) int {
	if snap <= 0 {
		snap = 1
	}
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) {
		return 0
	}
	return int(math.Round(minutes/float64(snap))) * snap
}

// AddMinutesStamp shifts an RFC 3339 stamp by whole minutes.
func AddMinutesStamp(stamp string, minutes int) (string, error) {
	t, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return "", fmt.Errorf("invalid timestamp %q: %w", stamp, err)
	}
	return t.Add(time.Duration(minutes) * time.Minute).Format(time.RFC3339), nil
}

// ShiftDaysStamp shifts an RFC 3339 stamp by whole calendar days, keeping the
// time of day.
func ShiftDaysStamp(stamp string, days int) (string, error) {
	t, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return "", fmt.Errorf("invalid timestamp %q: %w", stamp, err)
	}
	return t.AddDate(0, 0, days).Format(time.RFC3339), nil
}

// ShiftDateStamp shifts an all-day boundary by whole days and returns a plain
// date. The input may be a plain date or an RFC 3339 instant.
func ShiftDateStamp(stamp string, days int) (string, error) {
	t, err := time.Parse(dateOnly, stamp)
	if err != nil {
		t, err = time.Parse(time.RFC3339, stamp)
	}
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", stamp, err)
	}
	return t.AddDate(0, 0, days).Format(dateOnly), nil
}
