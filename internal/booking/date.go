package booking

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	isoLayout      = "2006-01-02"
	dayFirstLayout = "02/01/2006"
)

// Date is a calendar day with no time-of-day or zone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// dateLayouts are tried in order; day-first comes before ISO because that is
// how the sheet stores dates.
var dateLayouts = []string{
	dayFirstLayout,
	"2/1/2006",
	isoLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDate accepts DD/MM/YYYY (day first) and ISO YYYY-MM-DD.
func ParseDate(value string) (Date, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Date{}, fmt.Errorf("date is required")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("invalid date %q: want DD/MM/YYYY or YYYY-MM-DD", value)
}

// DateOf takes the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// NewDate normalizes out-of-range values the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// Today is the host's local calendar date.
func Today(now func() time.Time) Date {
	if now == nil {
		now = time.Now
	}
	return DateOf(now().Local())
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// String is the ISO form, used in URLs and JSON.
func (d Date) String() string {
	return d.Time().Format(isoLayout)
}

// DayFirst is the DD/MM/YYYY form used on disk and in messages.
func (d Date) DayFirst() string {
	return d.Time().Format(dayFirstLayout)
}

func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return cmpInt(d.Year, other.Year)
	case d.Month != other.Month:
		return cmpInt(int(d.Month), int(other.Month))
	default:
		return cmpInt(d.Day, other.Day)
	}
}

func (d Date) Before(other Date) bool {
	return d.Compare(other) < 0
}

func (d Date) InMonth(year int, month time.Month) bool {
	return d.Year == year && d.Month == month
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(text []byte) error {
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Clock is a start time as zero-padded 24-hour HH:MM text. Inside the ledger
// clocks compare as plain strings; ParseClock is the only way in from outside.
type Clock string

// ParseClock accepts H:MM, HH:MM and HH:MM:SS and returns the HH:MM form.
func ParseClock(value string) (Clock, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("time is required")
	}
	parts := strings.Split(value, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return "", fmt.Errorf("invalid time %q: want HH:MM", value)
	}

	hour, err := clockPart(parts[0], 23)
	if err != nil {
		return "", fmt.Errorf("invalid time %q: hour %w", value, err)
	}
	minute, err := clockPart(parts[1], 59)
	if err != nil {
		return "", fmt.Errorf("invalid time %q: minute %w", value, err)
	}
	if len(parts[1]) != 2 {
		return "", fmt.Errorf("invalid time %q: minute must have two digits", value)
	}
	if len(parts) == 3 {
		if _, err := clockPart(parts[2], 59); err != nil {
			return "", fmt.Errorf("invalid time %q: second %w", value, err)
		}
	}
	return Clock(fmt.Sprintf("%02d:%02d", hour, minute)), nil
}

func (c Clock) String() string {
	return string(c)
}

func clockPart(value string, max int) (int, error) {
	if value == "" || len(value) > 2 {
		return 0, fmt.Errorf("must be one or two digits")
	}
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return 0, fmt.Errorf("must be a number")
		}
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("must be a number")
	}
	if n > max {
		return 0, fmt.Errorf("must be at most %d", max)
	}
	return n, nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
