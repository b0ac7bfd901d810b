package pkg

import (
	"errors"
	"time"
)

const DATE_FORMAT = "2006-01-02"

var ErrInvalidMonth = errors.New("month must be between 1 and 12")

// DateOf truncates t to midnight UTC of its calendar day.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func Today(now time.Time) time.Time {
	return DateOf(now)
}

func FormatDate(t time.Time) string {
	return t.UTC().Format(DATE_FORMAT)
}

func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DATE_FORMAT, s, time.UTC)
}

// MonthRange returns the first and the last day of the month, both inclusive.
func MonthRange(year, month int) (time.Time, time.Time, error) {
	if month < 1 || month > 12 {
		return time.Time{}, time.Time{}, ErrInvalidMonth
	}
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first, last, nil
}
