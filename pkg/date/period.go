package date

import (
	"fmt"
	"strings"
)

// Period is a calendar bucket granularity.
type Period int

const (
	Weekly Period = iota
	Monthly
	Yearly
)

func (p Period) String() string {
	switch p {
	case Weekly:
		return "week"
	case Monthly:
		return "month"
	case Yearly:
		return "year"
	default:
		panic(fmt.Sprintf("unknown period %d", p))
	}
}

// ParsePeriod accepts "week", "month", "year" and their "-ly" forms.
func ParsePeriod(p string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "weekly", "week":
		return Weekly, nil
	case "monthly", "month":
		return Monthly, nil
	case "yearly", "year":
		return Yearly, nil
	default:
		return Weekly, fmt.Errorf("unknown period %q", p)
	}
}

// Key returns the bucket label of d for period p: "2024-W01", "2024-01" or "2024".
// Keys of the same period sort chronologically as strings.
func (p Period) Key(d Date) string {
	switch p {
	case Weekly:
		y, w := d.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", y, w)
	case Monthly:
		return fmt.Sprintf("%04d-%02d", d.Year(), int(d.Month()))
	default:
		return fmt.Sprintf("%04d", d.Year())
	}
}
