package state

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/RoselietoPonce/weather-monitoring-system/internal/backend"
	"github.com/RoselietoPonce/weather-monitoring-system/internal/logging"
)

// IdentitySource announces identity changes. A nil principal means signed out.
type IdentitySource interface {
	OnAuthStateChanged(fn func(*backend.Principal)) (func(), error)
}

// IdentitySnapshot is the mirrored identity. Ready turns true on the first
// announcement and stays true.
type IdentitySnapshot struct {
	Principal backend.Principal
	SignedIn  bool
	Ready     bool
}

// Identity mirrors an IdentitySource.
type Identity struct {
	logger *zap.Logger

	mu       sync.RWMutex
	snapshot IdentitySnapshot

	readyOnce sync.Once
	ready     chan struct{}
	changed   broadcast
}

// NewIdentity subscribes to src for the life of the process.
func NewIdentity(src IdentitySource, logger *zap.Logger) (*Identity, error) {
	if src == nil {
		return nil, fmt.Errorf("subscribe to identity: source is nil")
	}
	id := &Identity{
		logger: logging.OrNop(logger).Named("state"),
		ready:  make(chan struct{}),
	}
	// The returned unsubscribe is dropped; the mirror never detaches.
	if _, err := src.OnAuthStateChanged(id.handle); err != nil {
		return nil, fmt.Errorf("subscribe to identity: %w", err)
	}
	return id, nil
}

// Snapshot returns the current identity.
func (i *Identity) Snapshot() IdentitySnapshot {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.snapshot
}

// Changed returns a channel closed on the next announcement.
func (i *Identity) Changed() <-chan struct{} {
	return i.changed.wait()
}

// Resolve returns the identity, waiting for the first announcement if it has
// not arrived yet. It fails only when ctx ends first.
func (i *Identity) Resolve(ctx context.Context) (IdentitySnapshot, error) {
	select {
	case <-i.ready:
		return i.Snapshot(), nil
	default:
	}
	select {
	case <-i.ready:
		return i.Snapshot(), nil
	case <-ctx.Done():
		return IdentitySnapshot{}, ctx.Err()
	}
}

func (i *Identity) handle(p *backend.Principal) {
	i.mu.Lock()
	if p == nil {
		i.snapshot.Principal = backend.Principal{}
		i.snapshot.SignedIn = false
	} else {
		i.snapshot.Principal = *p
		i.snapshot.SignedIn = true
	}
	i.snapshot.Ready = true
	snap := i.snapshot
	i.mu.Unlock()

	i.logger.Info("identity changed", zap.Bool("signed_in", snap.SignedIn), zap.String("uid", snap.Principal.UID))
	i.readyOnce.Do(func() { close(i.ready) })
	i.changed.fire()
}
