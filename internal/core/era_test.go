package core

import (
	"errors"
	"testing"
	"time"
)

func TestEraCalendarParse(t *testing.T) {
	cal := DefaultEraCalendar()
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"H29.04.01", NewDate(2017, time.April, 1), true},
		{"H31.04.30", NewDate(2019, time.April, 30), true},
		{"R01.05.01", NewDate(2019, time.May, 1), true},
		{"h30.12.31", NewDate(2018, time.December, 31), true},
		{" H29.4.1 ", NewDate(2017, time.April, 1), true},
		{"S60.01.01", time.Time{}, false}, // era not configured
		{"H29.02.30", time.Time{}, false},
		{"H29-04-01", time.Time{}, false},
		{"2017.04.01", time.Time{}, false},
		{"H", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, tc := range cases {
		got, err := cal.Parse(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(tc.want) {
				t.Fatalf("%q: got %v, %v want %v", tc.in, got, err, tc.want)
			}
			continue
		}
		if !errors.Is(err, ErrDateFormat) {
			t.Fatalf("%q: expected DateFormatError, got %v", tc.in, err)
		}
	}
}

func TestParseEraTable(t *testing.T) {
	cal, err := ParseEraTable("S=1925, H=1988")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if codes := cal.Codes(); len(codes) != 2 || codes[0] != "H" || codes[1] != "S" {
		t.Fatalf("unexpected codes %v", codes)
	}
	got, err := cal.Parse("S60.01.15")
	if err != nil || !got.Equal(NewDate(1985, time.January, 15)) {
		t.Fatalf("S60.01.15: got %v, %v", got, err)
	}

	for _, bad := range []string{"", "H", "H=abc", "HH=1988", "1=1988", "H=-1"} {
		if _, err := ParseEraTable(bad); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}

func TestParseSlashDate(t *testing.T) {
	got, err := ParseSlashDate("2017/04/01")
	if err != nil || !got.Equal(NewDate(2017, time.April, 1)) {
		t.Fatalf("got %v, %v", got, err)
	}
	if _, err := ParseSlashDate("2017-04-01"); !errors.Is(err, ErrDateFormat) {
		t.Fatalf("expected DateFormatError, got %v", err)
	}
}
