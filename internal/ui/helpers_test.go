package ui

import (
	"testing"
	"time"

	"github.com/RoselietoPonce/weather-monitoring-system/internal/backend"
	"github.com/RoselietoPonce/weather-monitoring-system/internal/logtail"
)

func logEntry(t *testing.T, line string) logtail.Entry {
	t.Helper()
	return logtail.Parse(line)
}

func TestHumanizeDuration(t *testing.T) {
	cases := []struct {
		name string
		in   time.Duration
		want string
	}{
		{"negative", -5 * time.Second, "now"},
		{"subsecond", 0, "now"},
		{"seconds", 12 * time.Second, "12s"},
		{"minutes", 61 * time.Second, "1m"},
		{"hours_only", 2*time.Hour + 10*time.Second, "2h"},
		{"hours_minutes", 2*time.Hour + 3*time.Minute, "2h 3m"},
		{"days", 24 * time.Hour, "1d"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := humanizeDuration(tc.in); got != tc.want {
				t.Fatalf("humanizeDuration(%v) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestTitleCase(t *testing.T) {
	if got := titleCase("wind_speed"); got != "Wind Speed" {
		t.Fatalf("titleCase = %q", got)
	}
	if got := titleCase("  "); got != "" {
		t.Fatalf("titleCase blank = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefgh", 6); got != "abc..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("abc", 6); got != "abc" {
		t.Fatalf("truncate short = %q", got)
	}
}

func TestReadingRows_Order(t *testing.T) {
	r, err := backend.NewReading("k", []byte(`{"timestamp":1,"zeta":true,"humidity":40,"alpha":"x","temperature":20,"note":null}`), "timestamp")
	if err != nil {
		t.Fatalf("NewReading: %v", err)
	}
	rows := readingRows(r, "timestamp")
	want := []fieldRow{
		{label: "Temperature", value: "20 °C"},
		{label: "Humidity", value: "40 %"},
		{label: "Alpha", value: "x"},
		{label: "Note", value: "-"},
		{label: "Zeta", value: "true"},
	}
	if len(rows) != len(want) {
		t.Fatalf("rows = %#v, want %#v", rows, want)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Fatalf("rows[%d] = %#v, want %#v", i, rows[i], want[i])
		}
	}
}
