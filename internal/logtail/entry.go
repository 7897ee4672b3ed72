package logtail

import (
	"fmt"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Entry is one structured log line.
type Entry struct {
	Level   string
	Time    time.Time
	Logger  string
	Message string
	Fields  map[string]any
	// Raw is set instead of the other fields when the line is not JSON.
	Raw string
}

var reservedKeys = map[string]bool{
	"level":  true,
	"ts":     true,
	"logger": true,
	"msg":    true,
	"caller": true,
}

// Parse decodes a JSON log line. Lines that are not JSON objects come back
// with only Raw set.
func Parse(line string) Entry {
	var raw map[string]any
	if err := json.UnmarshalFromString(line, &raw); err != nil || raw == nil {
		return Entry{Raw: line}
	}

	e := Entry{Fields: map[string]any{}}
	e.Level, _ = raw["level"].(string)
	e.Logger, _ = raw["logger"].(string)
	e.Message, _ = raw["msg"].(string)
	if ts, ok := raw["ts"].(string); ok {
		e.Time, _ = time.Parse(time.RFC3339Nano, ts)
	}
	for k, v := range raw {
		if !reservedKeys[k] {
			e.Fields[k] = v
		}
	}
	return e
}

// ReadEntries returns the last maxEntries entries of the log at path.
func ReadEntries(path string, maxEntries int) ([]Entry, error) {
	lines, err := Read(path, maxEntries)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(lines))
	for i, line := range lines {
		entries[i] = Parse(line)
	}
	return entries, nil
}

// FieldsString renders the extra fields as sorted key=value pairs.
func (e Entry) FieldsString() string {
	if len(e.Fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%v", k, e.Fields[k])
	}
	return b.String()
}
