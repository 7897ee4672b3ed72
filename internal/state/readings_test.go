package state

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RoselietoPonce/weather-monitoring-system/internal/backend"
)

type fakeFeed struct {
	events chan backend.Event
}

func (f *fakeFeed) Events() <-chan backend.Event { return f.events }

type fakeSource struct {
	mu    sync.Mutex
	calls int
	feed  *fakeFeed
	err   error
}

func newFakeSource() *fakeSource {
	return &fakeSource{feed: &fakeFeed{events: make(chan backend.Event)}}
}

func (s *fakeSource) Subscribe(ctx context.Context, q backend.Query) (Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.feed, nil
}

func (s *fakeSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestReadings(t *testing.T) (*Readings, *fakeSource, context.CancelFunc) {
	t.Helper()
	r := NewReadings(nil)
	r.now = func() time.Time { return fixedNow }
	src := newFakeSource()
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Open(ctx, src, backend.LatestReading("sensor_logs", "timestamp")))
	t.Cleanup(func() {
		cancel()
		<-r.Done()
	})
	return r, src, cancel
}

func reading(t *testing.T, key string, ts int64) backend.Reading {
	t.Helper()
	raw := `{"timestamp":` + strconv.FormatInt(ts, 10) + `,"temperature":21}`
	r, err := backend.NewReading(key, []byte(raw), "timestamp")
	require.NoError(t, err)
	return r
}

// push sends ev and waits for the store to apply it.
func push(t *testing.T, r *Readings, src *fakeSource, ev backend.Event) ReadingSnapshot {
	t.Helper()
	changed := r.Changed()
	select {
	case src.feed.events <- ev:
	case <-time.After(time.Second):
		t.Fatalf("store did not accept event")
	}
	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatalf("store did not apply event")
	}
	return r.Snapshot()
}

var snapshotOpts = cmp.Options{
	cmp.AllowUnexported(backend.Reading{}),
	cmpopts.EquateErrors(),
}

func TestReadings_StartsLoading(t *testing.T) {
	r := NewReadings(nil)
	snap := r.Snapshot()
	require.True(t, snap.Loading)
	require.False(t, snap.HasReading)
	require.NoError(t, snap.Err)
	require.Equal(t, Loading, snap.State())
}

func TestReadings_PushSequence(t *testing.T) {
	r, src, _ := newTestReadings(t)
	first := reading(t, "-a", 1760000000000)
	second := reading(t, "-b", 1760000060000)

	got := push(t, r, src, backend.Event{Snapshot: backend.Snapshot{Records: []backend.Reading{first}}})
	want := ReadingSnapshot{Latest: first, HasReading: true, LastUpdated: fixedNow}
	if diff := cmp.Diff(want, got, snapshotOpts); diff != "" {
		t.Fatalf("after first push (-want +got):\n%s", diff)
	}
	require.Equal(t, Ready, got.State())

	cause := errors.New("read stream: connection reset")
	got = push(t, r, src, backend.Event{Err: cause})
	want = ReadingSnapshot{Latest: first, HasReading: true, Err: ErrConnectionFailed, Cause: cause, LastUpdated: fixedNow, ConsecutiveFailures: 1}
	if diff := cmp.Diff(want, got, snapshotOpts); diff != "" {
		t.Fatalf("after error (-want +got):\n%s", diff)
	}
	require.Equal(t, Failed, got.State())
	require.Equal(t, "connection failed", got.Err.Error())

	got = push(t, r, src, backend.Event{Snapshot: backend.Snapshot{Records: []backend.Reading{second}}})
	want = ReadingSnapshot{Latest: second, HasReading: true, LastUpdated: fixedNow}
	if diff := cmp.Diff(want, got, snapshotOpts); diff != "" {
		t.Fatalf("after recovery (-want +got):\n%s", diff)
	}
	require.Equal(t, Ready, got.State())
}

func TestReadings_EmptyPushKeepsPreviousReading(t *testing.T) {
	r, src, _ := newTestReadings(t)
	first := reading(t, "-a", 1760000000000)

	push(t, r, src, backend.Event{Snapshot: backend.Snapshot{Records: []backend.Reading{first}}})
	got := push(t, r, src, backend.Event{})

	require.Equal(t, "-a", got.Latest.Key)
	require.True(t, got.HasReading)
	require.False(t, got.Loading)
	require.ErrorIs(t, got.Err, ErrNoData)
	require.Equal(t, "no data available", got.Err.Error())
	require.Equal(t, Ready, got.State())
}

func TestReadings_FirstPushEmpty(t *testing.T) {
	r, src, _ := newTestReadings(t)

	got := push(t, r, src, backend.Event{})
	require.False(t, got.HasReading)
	require.True(t, got.Latest.IsZero())
	require.ErrorIs(t, got.Err, ErrNoData)
	require.False(t, got.Loading)
}

func TestReadings_FirstPushError(t *testing.T) {
	r, src, _ := newTestReadings(t)

	got := push(t, r, src, backend.Event{Err: errors.New("boom")})
	require.False(t, got.Loading)
	require.False(t, got.HasReading)
	require.ErrorIs(t, got.Err, ErrConnectionFailed)
	require.Equal(t, Failed, got.State())
}

func TestReadings_SetupFailure(t *testing.T) {
	r := NewReadings(nil)
	src := newFakeSource()
	src.err = errors.New("permission denied")

	err := r.Open(context.Background(), src, backend.LatestReading("sensor_logs", "timestamp"))
	require.ErrorIs(t, err, ErrSetupFailed)

	snap := r.Snapshot()
	require.False(t, snap.Loading)
	require.ErrorIs(t, snap.Err, ErrSetupFailed)
	require.Equal(t, "unexpected setup failure", snap.Err.Error())
	require.EqualError(t, snap.Cause, "permission denied")

	select {
	case <-r.Done():
	default:
		t.Fatalf("Done not closed after setup failure")
	}
}

func TestReadings_SingleSubscriptionForManyConsumers(t *testing.T) {
	r := NewReadings(nil)
	src := newFakeSource()
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		<-r.Done()
	}()

	const consumers = 32
	var wg sync.WaitGroup
	wg.Add(consumers)
	for i := 0; i < consumers; i++ {
		go func() {
			defer wg.Done()
			assert.NoError(t, r.Open(ctx, src, backend.LatestReading("sensor_logs", "timestamp")))
		}()
	}
	wg.Wait()

	require.Equal(t, 1, src.Calls())
}

func TestReadings_SnapshotIsIndependent(t *testing.T) {
	r, src, _ := newTestReadings(t)
	first := reading(t, "-a", 1760000000000)
	push(t, r, src, backend.Event{Snapshot: backend.Snapshot{Records: []backend.Reading{first}}})

	snap := r.Snapshot()
	snap.Latest.Key = "tampered"
	snap.HasReading = false
	fields := snap.Latest.Fields()
	fields["temperature"] = 99.0

	again := r.Snapshot()
	require.Equal(t, "-a", again.Latest.Key)
	require.True(t, again.HasReading)
	temp, ok := again.Latest.Float("temperature")
	require.True(t, ok)
	require.Equal(t, 21.0, temp)
}

func TestReadings_StopsWhenFeedCloses(t *testing.T) {
	r := NewReadings(nil)
	src := newFakeSource()
	require.NoError(t, r.Open(context.Background(), src, backend.LatestReading("sensor_logs", "timestamp")))

	close(src.feed.events)
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatalf("store kept running after feed closed")
	}
}
