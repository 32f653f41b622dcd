package entity

import (
	"fmt"
	"strings"
	"time"
)

// Date is a calendar date without a time zone. Day 0 means month precision,
// which is how most labels print expiry (MM/YYYY).
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d.Year == 0
}

// String renders ISO form: "2026-06-30", or "2026-06" for month precision.
func (d Date) String() string {
	if d.Day == 0 {
		return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Time converts to a UTC midnight time.Time. Month-precision dates resolve
// to the last day of the month, the conservative reading for expiry.
func (d Date) Time() time.Time {
	if d.Day == 0 {
		return time.Date(d.Year, d.Month+1, 0, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return d.Time().After(other.Time())
}

// Equal reports whether both dates resolve to the same day.
func (d Date) Equal(other Date) bool {
	return d.Time().Equal(other.Time())
}

// DaysUntil returns whole days from now's calendar day to the date.
// Negative means the date has passed.
func (d Date) DaysUntil(now time.Time) int {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(d.Time().Sub(today).Hours() / 24)
}

// MarshalJSON renders the ISO string form.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts "YYYY-MM-DD" and "YYYY-MM".
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := ParseISODate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseISODate parses the String() forms back into a Date.
func ParseISODate(s string) (Date, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
	}
	if t, err := time.Parse("2006-01", s); err == nil {
		return Date{Year: t.Year(), Month: t.Month()}, nil
	}
	return Date{}, fmt.Errorf("invalid date %q", s)
}
