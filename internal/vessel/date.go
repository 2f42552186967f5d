package vessel

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used in every persisted document.
const DateLayout = "2006-01-02"

const secondsPerDay = 24 * 60 * 60

// Today formats the calendar date of now in now's location.
func Today(now time.Time) string {
	return now.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD string into midnight UTC of that day.
func ParseDate(iso string) (time.Time, error) {
	t, err := time.Parse(DateLayout, iso)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid calendar date %q: %w", iso, err)
	}
	return t, nil
}

// DaysBetween returns the number of calendar days from a to b (negative when b is before a).
func DaysBetween(a, b string) (int, error) {
	ta, err := ParseDate(a)
	if err != nil {
		return 0, err
	}
	tb, err := ParseDate(b)
	if err != nil {
		return 0, err
	}
	// Both are UTC midnights. Unix seconds avoid the ~292 year limit of
	// time.Duration.
	return int((tb.Unix() - ta.Unix()) / secondsPerDay), nil
}

// AddDays shifts a calendar date by n days.
func AddDays(iso string, n int) (string, error) {
	t, err := ParseDate(iso)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(DateLayout), nil
}
