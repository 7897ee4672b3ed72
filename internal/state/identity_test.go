package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RoselietoPonce/weather-monitoring-system/internal/backend"
)

type fakeIdentitySource struct {
	mu       sync.Mutex
	listener func(*backend.Principal)
	calls    int
	err      error
}

func (s *fakeIdentitySource) OnAuthStateChanged(fn func(*backend.Principal)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	s.listener = fn
	return func() {}, nil
}

func (s *fakeIdentitySource) announce(p *backend.Principal) {
	s.mu.Lock()
	fn := s.listener
	s.mu.Unlock()
	fn(p)
}

func TestIdentity_NotReadyUntilFirstAnnouncement(t *testing.T) {
	src := &fakeIdentitySource{}
	id, err := NewIdentity(src, nil)
	require.NoError(t, err)
	require.Equal(t, 1, src.calls)

	snap := id.Snapshot()
	require.False(t, snap.Ready)
	require.False(t, snap.SignedIn)
	select {
	case <-id.ready:
		t.Fatalf("ready closed before any announcement")
	default:
	}

	src.announce(nil)
	snap = id.Snapshot()
	require.True(t, snap.Ready)
	require.False(t, snap.SignedIn)
	select {
	case <-id.ready:
	default:
		t.Fatalf("ready not closed after announcement")
	}
}

func TestIdentity_ReadinessNeverResets(t *testing.T) {
	src := &fakeIdentitySource{}
	id, err := NewIdentity(src, nil)
	require.NoError(t, err)

	sequence := []*backend.Principal{
		{UID: "u1", Email: "a@example.com"},
		nil,
		{UID: "u2"},
		nil,
	}
	for _, p := range sequence {
		src.announce(p)
		snap := id.Snapshot()
		require.True(t, snap.Ready)
		require.Equal(t, p != nil, snap.SignedIn)
		if p != nil {
			require.Equal(t, *p, snap.Principal)
		} else {
			require.Equal(t, backend.Principal{}, snap.Principal)
		}
	}
}

func TestIdentity_SnapshotDoesNotAliasAnnouncement(t *testing.T) {
	src := &fakeIdentitySource{}
	id, err := NewIdentity(src, nil)
	require.NoError(t, err)

	p := &backend.Principal{UID: "u1"}
	src.announce(p)
	p.UID = "tampered"

	require.Equal(t, "u1", id.Snapshot().Principal.UID)
}

func TestIdentity_SubscribeFailure(t *testing.T) {
	src := &fakeIdentitySource{err: errors.New("not initialised")}
	id, err := NewIdentity(src, nil)
	require.Nil(t, id)
	require.ErrorContains(t, err, "not initialised")

	_, err = NewIdentity(nil, nil)
	require.Error(t, err)
}

func TestIdentity_ResolveWaitsForFirstAnnouncement(t *testing.T) {
	src := &fakeIdentitySource{}
	id, err := NewIdentity(src, nil)
	require.NoError(t, err)

	type result struct {
		snap IdentitySnapshot
		err  error
	}
	results := make(chan result, 1)
	go func() {
		snap, err := id.Resolve(context.Background())
		results <- result{snap, err}
	}()

	select {
	case r := <-results:
		t.Fatalf("Resolve returned %+v before identity was known", r)
	case <-time.After(30 * time.Millisecond):
	}

	src.announce(&backend.Principal{UID: "u1"})
	select {
	case r := <-results:
		require.NoError(t, r.err)
		require.True(t, r.snap.Ready)
		require.True(t, r.snap.SignedIn)
		require.Equal(t, "u1", r.snap.Principal.UID)
	case <-time.After(time.Second):
		t.Fatalf("Resolve did not return after announcement")
	}
}

func TestIdentity_ResolveHonoursContext(t *testing.T) {
	id, err := NewIdentity(&fakeIdentitySource{}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = id.Resolve(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIdentity_ChangedFiresPerAnnouncement(t *testing.T) {
	src := &fakeIdentitySource{}
	id, err := NewIdentity(src, nil)
	require.NoError(t, err)

	changed := id.Changed()
	src.announce(nil)
	select {
	case <-changed:
	default:
		t.Fatalf("Changed not closed after announcement")
	}

	next := id.Changed()
	select {
	case <-next:
		t.Fatalf("fresh Changed channel already closed")
	default:
	}
	src.announce(&backend.Principal{UID: "u1"})
	<-next
}
