package membership

import "time"

// Date truncates t to a calendar date at UTC midnight, keeping t's local
// year, month and day.
func Date(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MustParseDate parses a YYYY-MM-DD string and panics on error.
func MustParseDate(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseDate parses a YYYY-MM-DD string. Empty input yields the zero time.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// EndOfMonth returns the last day of t's month.
func EndOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return lastDayOf(y, m)
}

// AddYears moves t by n years. Feb 29 becomes Feb 28 in non-leap years.
func AddYears(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	if last := lastDayOf(y+n, m).Day(); d > last {
		d = last
	}
	return time.Date(y+n, m, d, 0, 0, 0, 0, time.UTC)
}

func lastDayOf(year int, month time.Month) time.Time {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
}
