package ui

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/RoselietoPonce/weather-monitoring-system/internal/backend"
	"github.com/RoselietoPonce/weather-monitoring-system/internal/state"
)

// readingField describes how a well-known sensor field is shown.
type readingField struct {
	key   string
	label string
	unit  string
}

var knownFields = []readingField{
	{key: "temperature", label: "Temperature", unit: "°C"},
	{key: "humidity", label: "Humidity", unit: "%"},
	{key: "pressure", label: "Pressure", unit: "hPa"},
	{key: "rain", label: "Rain", unit: "mm"},
	{key: "rainfall", label: "Rainfall", unit: "mm"},
	{key: "wind_speed", label: "Wind speed", unit: "m/s"},
	{key: "light", label: "Light", unit: "lx"},
	{key: "latitude", label: "Latitude"},
	{key: "longitude", label: "Longitude"},
}

type fieldRow struct {
	label string
	value string
}

// readingRows lists the reading's fields: known ones first in a fixed order,
// then the rest alphabetically. The order-by key is left to the header.
func readingRows(r backend.Reading, orderKey string) []fieldRow {
	fields := r.Fields()
	rows := make([]fieldRow, 0, len(fields))
	seen := map[string]bool{orderKey: true}

	for _, f := range knownFields {
		v, ok := fields[f.key]
		if !ok {
			continue
		}
		seen[f.key] = true
		value := formatValue(v)
		if f.unit != "" {
			value += " " + f.unit
		}
		rows = append(rows, fieldRow{label: f.label, value: value})
	}

	var rest []string
	for k := range fields {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		rows = append(rows, fieldRow{label: titleCase(k), value: formatValue(fields[k])})
	}
	return rows
}

func formatValue(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return "-"
	}
	return fmt.Sprint(v)
}

// connectionBadge renders the feed state.
func connectionBadge(theme Theme, snap state.ReadingSnapshot) string {
	switch snap.State() {
	case state.Loading:
		return theme.Badge("CONNECTING", theme.Muted)
	case state.Failed:
		return theme.Badge("OFFLINE", theme.Danger)
	}
	if errors.Is(snap.Err, state.ErrNoData) {
		return theme.Badge("NO DATA", theme.Warning)
	}
	return theme.Badge("LIVE", theme.Success)
}

func (m Model) renderDashboard(theme Theme) string {
	styles := theme.Styles()
	snap := m.readingSnap

	var b strings.Builder
	b.WriteString(connectionBadge(theme, snap))
	b.WriteString(" ")
	switch {
	case snap.Loading:
		b.WriteString(styles.MutedText.Render("Waiting for the first reading..."))
	case snap.Err != nil:
		b.WriteString(styles.WarningText.Render(capitalize(snap.Err.Error())))
		if snap.Cause != nil {
			b.WriteString(styles.FaintText.Render(" (" + truncate(snap.Cause.Error(), 60) + ")"))
		}
		if n := snap.ConsecutiveFailures; n > 1 {
			b.WriteString(styles.FaintText.Render(fmt.Sprintf(", %d failures in a row", n)))
		}
	default:
		b.WriteString(styles.MutedText.Render("Receiving live data"))
	}
	b.WriteString("\n\n")

	if !snap.HasReading {
		if !snap.Loading {
			b.WriteString(styles.FaintText.Render("No reading has been received yet."))
		}
		return styles.Panel.Render(b.String())
	}

	latest := snap.Latest
	b.WriteString(styles.Text.Bold(true).Render("Latest reading"))
	b.WriteString(styles.FaintText.Render("  " + latest.Key))
	b.WriteString("\n")
	b.WriteString(styles.MutedText.Render(padRight("Observed", 14)))
	b.WriteString(styles.Text.Render(formatObserved(latest.Timestamp, m.now)))
	b.WriteString("\n")

	for _, row := range readingRows(latest, m.orderBy) {
		b.WriteString(styles.MutedText.Render(padRight(row.label, 14)))
		b.WriteString(styles.AccentText.Render(row.value))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render("Updated " + formatObserved(snap.LastUpdated, m.now)))

	panel := styles.Panel
	if m.width > 4 {
		panel = panel.Width(minInt(m.width-2, 72))
	}
	return lipgloss.JoinVertical(lipgloss.Left, panel.Render(b.String()))
}

func formatObserved(t, now time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	ago := humanizeDuration(now.Sub(t))
	if ago != "now" {
		ago += " ago"
	}
	return t.Local().Format("2006-01-02 15:04:05") + " (" + ago + ")"
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
