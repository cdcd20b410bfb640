package date

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Format is the ISO-8601 layout dates are written with.
const Format = "2006-01-02"

const readFormat = "2006-1-2"

// Date is a calendar day with no time component. The zero value means "no date".
type Date struct {
	y int
	m time.Month
	d int
}

// New returns a normalized Date for the given year, month, and day.
func New(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	y, m, d := t.Date()
	return Date{y, m, d}
}

// Today returns the current local date.
func Today() Date { return New(time.Now().Date()) }

// FromTime truncates t to its calendar day.
func FromTime(t time.Time) Date { return New(t.Date()) }

func (d Date) time() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d == Date{} }

// Year returns the year of d.
func (d Date) Year() int { return d.y }

// Month returns the month of d.
func (d Date) Month() time.Month { return d.m }

// Day returns the day of the month of d.
func (d Date) Day() int { return d.d }

// Weekday returns the day of the week for d.
func (d Date) Weekday() time.Weekday { return d.time().Weekday() }

// ISOWeek returns the ISO 8601 year and week number in which d occurs.
func (d Date) ISOWeek() (year, week int) { return d.time().ISOWeek() }

// Before reports whether the day d is before x.
func (d Date) Before(x Date) bool { return d.time().Before(x.time()) }

// After reports whether the day d is after x.
func (d Date) After(x Date) bool { return d.time().After(x.time()) }

// Compare returns -1, 0 or +1 depending on whether d is before, equal to or after x.
func (d Date) Compare(x Date) int { return d.time().Compare(x.time()) }

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date { return New(d.y, d.m, d.d+n) }

// String formats the date as YYYY-MM-DD, or "" for the zero Date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.time().Format(Format)
}

// Parse parses an ISO date. It accepts single-digit months and days ("2025-7-1").
func Parse(str string) (Date, error) {
	t, err := time.Parse(readFormat, strings.TrimSpace(str))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q want format %q: %w", str, Format, err)
	}
	return FromTime(t), nil
}

// MustParse is like Parse but panics on error.
func MustParse(str string) Date {
	d, err := Parse(str)
	if err != nil {
		panic(err.Error())
	}
	return d
}

// ParseLoose parses the date shapes found in broker and spreadsheet exports:
// YYYY-MM-DD, M/D/YY, M/D/YYYY and M/D. A missing year takes defaultYear and
// two-digit years are placed in the 2000s. Doubled slashes are collapsed first.
func ParseLoose(str string, defaultYear int) (Date, error) {
	s := strings.TrimSpace(str)
	for strings.Contains(s, "//") {
		s = strings.ReplaceAll(s, "//", "/")
	}
	if s == "" {
		return Date{}, fmt.Errorf("empty date")
	}
	if !strings.Contains(s, "/") {
		return Parse(s)
	}

	parts := strings.Split(s, "/")
	if len(parts) < 2 || len(parts) > 3 {
		return Date{}, fmt.Errorf("invalid date %q", str)
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil {
		return Date{}, fmt.Errorf("invalid month in date %q", str)
	}
	day, err := strconv.Atoi(parts[1])
	if err != nil {
		return Date{}, fmt.Errorf("invalid day in date %q", str)
	}
	year := defaultYear
	if len(parts) == 3 {
		yp := parts[2]
		if len(yp) != 2 && len(yp) != 4 {
			return Date{}, fmt.Errorf("invalid year in date %q", str)
		}
		year, err = strconv.Atoi(yp)
		if err != nil {
			return Date{}, fmt.Errorf("invalid year in date %q", str)
		}
		if len(yp) == 2 {
			year += 2000
		}
	}

	d := New(year, time.Month(month), day)
	// New normalizes overflow; 2/30 must be rejected rather than rolled into March.
	if d.y != year || d.m != time.Month(month) || d.d != day {
		return Date{}, fmt.Errorf("invalid date %q", str)
	}
	return d, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(bytes []byte) error {
	var str string
	if err := json.Unmarshal(bytes, &str); err != nil {
		return err
	}
	if str == "" {
		*d = Date{}
		return nil
	}
	parsed, err := Parse(str)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON implements json.Marshaler. The zero Date encodes as null.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// GormDataType declares the column type used by gorm migrations.
func (Date) GormDataType() string { return "date" }

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan implements sql.Scanner. Values that are not a recognizable date
// scan to the zero Date so a single bad row cannot fail a whole ledger read;
// callers treat the zero Date as missing.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
	case time.Time:
		// sqlite drivers hand back the zero time for DATE text they cannot parse.
		if v.IsZero() {
			*d = Date{}
			return nil
		}
		*d = FromTime(v)
	case string:
		*d = scanString(v)
	case []byte:
		*d = scanString(string(v))
	default:
		return fmt.Errorf("cannot scan %T into date.Date", src)
	}
	return nil
}

func scanString(s string) Date {
	s = strings.TrimSpace(s)
	if len(s) > len(Format) {
		s = s[:len(Format)]
	}
	parsed, err := Parse(s)
	if err != nil {
		return Date{}
	}
	return parsed
}

var (
	_ json.Marshaler   = Date{}
	_ json.Unmarshaler = (*Date)(nil)
	_ driver.Valuer    = Date{}
)
