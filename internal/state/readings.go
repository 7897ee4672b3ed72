package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RoselietoPonce/weather-monitoring-system/internal/backend"
	"github.com/RoselietoPonce/weather-monitoring-system/internal/logging"
)

var (
	// ErrNoData is reported when the readings feed is reachable but empty.
	ErrNoData = errors.New("no data available")
	// ErrConnectionFailed is reported when the subscription delivers an error.
	ErrConnectionFailed = errors.New("connection failed")
	// ErrSetupFailed is reported when the subscription could not be opened at all.
	ErrSetupFailed = errors.New("unexpected setup failure")
)

// ConnectionState summarises a ReadingSnapshot for display.
type ConnectionState int

const (
	Loading ConnectionState = iota
	Ready
	Failed
)

func (c ConnectionState) String() string {
	switch c {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("ConnectionState(%d)", int(c))
}

// ReadingSnapshot is the latest view of the readings feed.
type ReadingSnapshot struct {
	Latest     backend.Reading
	HasReading bool
	Loading    bool
	// Err is one of ErrNoData, ErrConnectionFailed or ErrSetupFailed.
	Err error
	// Cause is the underlying failure behind Err, when there is one.
	Cause               error
	LastUpdated         time.Time
	ConsecutiveFailures int
}

// State reports the connection state. An empty feed is still a working
// connection, so ErrNoData counts as Ready.
func (s ReadingSnapshot) State() ConnectionState {
	switch {
	case s.Loading:
		return Loading
	case s.Err != nil && !errors.Is(s.Err, ErrNoData):
		return Failed
	}
	return Ready
}

// Feed delivers subscription events until its channel closes.
type Feed interface {
	Events() <-chan backend.Event
}

// Source opens subscriptions.
type Source interface {
	Subscribe(ctx context.Context, q backend.Query) (Feed, error)
}

// Readings holds the most recent reading. It owns a single subscription for
// the life of the process and is the only writer of its snapshot.
type Readings struct {
	logger *zap.Logger
	now    func() time.Time

	open    sync.Once
	openErr error
	done    chan struct{}

	mu       sync.RWMutex
	snapshot ReadingSnapshot
	changed  broadcast
}

// NewReadings returns a store in the loading state.
func NewReadings(logger *zap.Logger) *Readings {
	return &Readings{
		logger:   logging.OrNop(logger).Named("state"),
		now:      time.Now,
		done:     make(chan struct{}),
		snapshot: ReadingSnapshot{Loading: true},
	}
}

// Open subscribes to q on src. Only the first call subscribes; later calls
// return the first call's result. The subscription lives until ctx ends.
func (r *Readings) Open(ctx context.Context, src Source, q backend.Query) error {
	r.open.Do(func() {
		id := uuid.NewString()
		feed, err := src.Subscribe(ctx, q)
		if err != nil {
			r.logger.Error("open readings subscription",
				zap.String("subscription", id), zap.String("path", q.Path), zap.Error(err))
			r.update(func(s *ReadingSnapshot) {
				s.Loading = false
				s.Err = ErrSetupFailed
				s.Cause = err
			})
			r.openErr = fmt.Errorf("%w: %w", ErrSetupFailed, err)
			close(r.done)
			return
		}
		r.logger.Info("readings subscription open", zap.String("subscription", id), zap.String("path", q.Path))
		go r.consume(ctx, feed, r.logger.With(zap.String("subscription", id)))
	})
	return r.openErr
}

// Done is closed once the subscription has ended.
func (r *Readings) Done() <-chan struct{} {
	return r.done
}

// Snapshot returns a copy of the current snapshot.
func (r *Readings) Snapshot() ReadingSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// Changed returns a channel closed on the next update. Take it before
// reading the snapshot so no update is missed in between.
func (r *Readings) Changed() <-chan struct{} {
	return r.changed.wait()
}

func (r *Readings) consume(ctx context.Context, feed Feed, logger *zap.Logger) {
	defer close(r.done)
	events := feed.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				logger.Info("readings subscription ended")
				return
			}
			r.handle(ev, logger)
		}
	}
}

func (r *Readings) handle(ev backend.Event, logger *zap.Logger) {
	switch {
	case ev.Err != nil:
		logger.Warn("readings subscription error", zap.Error(ev.Err))
		r.update(func(s *ReadingSnapshot) {
			s.Loading = false
			s.Err = ErrConnectionFailed
			s.Cause = ev.Err
			s.ConsecutiveFailures++
		})
	case ev.Snapshot.Empty():
		logger.Debug("readings snapshot empty")
		r.update(func(s *ReadingSnapshot) {
			s.Loading = false
			s.Err = ErrNoData
			s.Cause = nil
			s.ConsecutiveFailures = 0
		})
	default:
		latest, _ := ev.Snapshot.Last()
		logger.Debug("reading received", zap.String("key", latest.Key), zap.Time("timestamp", latest.Timestamp))
		r.update(func(s *ReadingSnapshot) {
			s.Latest = latest
			s.HasReading = true
			s.Loading = false
			s.Err = nil
			s.Cause = nil
			s.ConsecutiveFailures = 0
		})
	}
}

func (r *Readings) update(fn func(*ReadingSnapshot)) {
	r.mu.Lock()
	fn(&r.snapshot)
	r.snapshot.LastUpdated = r.now()
	r.mu.Unlock()
	r.changed.fire()
}
