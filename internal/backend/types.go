package backend

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const legacyTimestampLayout = "2006-01-02 15:04:05"

// Reading is one sensor record from the readings feed. Its payload is kept
// private so a Reading handed to a consumer can never be changed in place.
type Reading struct {
	Key       string
	Timestamp time.Time
	raw       []byte
}

// NewReading decodes raw and extracts the timestamp stored under orderBy.
func NewReading(key string, raw []byte, orderBy string) (Reading, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Reading{}, fmt.Errorf("decode reading %s: %w", key, err)
	}
	if fields == nil {
		return Reading{}, fmt.Errorf("decode reading %s: not an object", key)
	}
	return Reading{
		Key:       key,
		Timestamp: parseTimestamp(fields[orderBy]),
		raw:       append([]byte(nil), raw...),
	}, nil
}

// IsZero reports whether r holds no record.
func (r Reading) IsZero() bool {
	return r.Key == "" && len(r.raw) == 0
}

// Raw returns a copy of the record's JSON payload.
func (r Reading) Raw() []byte {
	return append([]byte(nil), r.raw...)
}

// Fields decodes a fresh copy of the record's fields.
func (r Reading) Fields() map[string]any {
	if len(r.raw) == 0 {
		return nil
	}
	var fields map[string]any
	if err := json.Unmarshal(r.raw, &fields); err != nil {
		return nil
	}
	return fields
}

// Float returns a numeric field, accepting numbers encoded as strings.
func (r Reading) Float(name string) (float64, bool) {
	switch v := r.Fields()[name].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// String returns a string field.
func (r Reading) String(name string) (string, bool) {
	v, ok := r.Fields()[name].(string)
	return v, ok
}

// Principal describes a signed-in user.
type Principal struct {
	UID         string
	Email       string
	DisplayName string
}

// Label is the friendliest available name for the principal.
func (p Principal) Label() string {
	switch {
	case p.DisplayName != "":
		return p.DisplayName
	case p.Email != "":
		return p.Email
	}
	return p.UID
}

// Query selects the records a subscription follows: the last LimitToLast
// children of Path ordered by the OrderBy child key.
type Query struct {
	Path        string
	OrderBy     string
	LimitToLast int
}

// LatestReading is the single-record query the dashboard follows.
func LatestReading(path, orderBy string) Query {
	return Query{Path: path, OrderBy: orderBy, LimitToLast: 1}
}

func (q Query) validate() error {
	if strings.Trim(q.Path, "/") == "" {
		return fmt.Errorf("query path is empty")
	}
	if strings.TrimSpace(q.OrderBy) == "" {
		return fmt.Errorf("query order key is empty")
	}
	if q.LimitToLast < 0 {
		return fmt.Errorf("query limit must not be negative")
	}
	return nil
}

func (q Query) values() url.Values {
	values := url.Values{}
	values.Set("orderBy", strconv.Quote(q.OrderBy))
	if q.LimitToLast > 0 {
		values.Set("limitToLast", strconv.Itoa(q.LimitToLast))
	}
	return values
}

// Snapshot is the full result of a query at one point in time, ordered by
// timestamp ascending.
type Snapshot struct {
	Records []Reading
}

// Empty reports whether the query matched nothing.
func (s Snapshot) Empty() bool {
	return len(s.Records) == 0
}

// Last returns the most recent record.
func (s Snapshot) Last() (Reading, bool) {
	if len(s.Records) == 0 {
		return Reading{}, false
	}
	return s.Records[len(s.Records)-1], true
}

// Event is one push from a subscription. Exactly one of Snapshot or Err is
// meaningful: Err is non-nil for failures.
type Event struct {
	Snapshot Snapshot
	Err      error
}

func sortReadings(records []Reading) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Key < records[j].Key
		}
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
}

func parseTimestamp(value any) time.Time {
	switch v := value.(type) {
	case float64:
		// Values past 1e12 are epoch milliseconds, smaller ones epoch seconds.
		if v > 1e12 {
			return time.UnixMilli(int64(v))
		}
		sec := int64(v)
		return time.Unix(sec, int64((v-float64(sec))*1e9))
	case string:
		return parseTime(v)
	}
	return time.Time{}
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	if t, err := time.ParseInLocation(legacyTimestampLayout, value, time.Local); err == nil {
		return t
	}
	if n, err := strconv.ParseFloat(value, 64); err == nil {
		return parseTimestamp(n)
	}
	return time.Time{}
}
