package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultEraTable maps Japanese era codes to the Gregorian year before era year 1.
const DefaultEraTable = "H=1988,R=2018"

// EraCalendar converts era-prefixed dates such as "H29.04.01" to Gregorian dates.
// The offsets only hold inside each era, so the table is configuration rather
// than code.
type EraCalendar struct {
	bases map[string]int
}

// ParseEraTable parses "H=1988,R=2018".
func ParseEraTable(s string) (EraCalendar, error) {
	cal := EraCalendar{bases: make(map[string]int)}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, base, ok := strings.Cut(part, "=")
		code = strings.ToUpper(strings.TrimSpace(code))
		if !ok || len(code) != 1 || code[0] < 'A' || code[0] > 'Z' {
			return EraCalendar{}, fmt.Errorf("invalid era entry %q: want CODE=BASEYEAR", part)
		}
		year, err := strconv.Atoi(strings.TrimSpace(base))
		if err != nil || year <= 0 {
			return EraCalendar{}, fmt.Errorf("invalid era base year in %q", part)
		}
		cal.bases[code] = year
	}
	if len(cal.bases) == 0 {
		return EraCalendar{}, fmt.Errorf("era table %q has no entries", s)
	}
	return cal, nil
}

// DefaultEraCalendar returns the calendar for DefaultEraTable.
func DefaultEraCalendar() EraCalendar {
	cal, err := ParseEraTable(DefaultEraTable)
	if err != nil {
		panic(err)
	}
	return cal
}

// Codes returns the configured era codes, sorted.
func (c EraCalendar) Codes() []string {
	codes := make([]string, 0, len(c.bases))
	for code := range c.bases {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Parse converts "H29.04.01" into 2017-04-01.
func (c EraCalendar) Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return time.Time{}, &DateFormatError{Value: s, Reason: "too short"}
	}
	base, ok := c.bases[strings.ToUpper(s[:1])]
	if !ok {
		return time.Time{}, &DateFormatError{Value: s, Reason: "unknown era code " + s[:1]}
	}
	parts := strings.Split(s[1:], ".")
	if len(parts) != 3 {
		return time.Time{}, &DateFormatError{Value: s, Reason: "want ERA.MM.DD"}
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 || len(p) > 2 {
			return time.Time{}, &DateFormatError{Value: s, Reason: "non-numeric component"}
		}
		nums[i] = n
	}
	return checkedDate(s, base+nums[0], nums[1], nums[2])
}

// ParseSlashDate parses the "2006/01/02" layout used by most exports.
func ParseSlashDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse("2006/1/2", s)
	if err != nil {
		return time.Time{}, &DateFormatError{Value: s, Reason: "want YYYY/MM/DD"}
	}
	return NewDate(t.Year(), t.Month(), t.Day()), nil
}

func checkedDate(raw string, year, month, day int) (time.Time, error) {
	t := NewDate(year, time.Month(month), day)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, &DateFormatError{Value: raw, Reason: "day out of range"}
	}
	return t, nil
}
