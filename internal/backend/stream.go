package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenSource returns the credential attached to stream requests. An empty
// token opens the stream anonymously.
type TokenSource func(ctx context.Context) (string, error)

// Subscription is a live query. Events are delivered in the order the server
// sent them. Transport failures are reported as error events and the client
// reconnects on its own; a server-side cancel is reported once and ends the
// subscription, after which Events is closed.
type Subscription struct {
	id     string
	events chan Event
	cancel context.CancelFunc
	done   chan struct{}
}

// Events returns the push channel. It is closed when the subscription ends.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close ends the subscription and waits for its goroutine to exit.
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}

// Subscribe opens a streaming subscription for q. It fails only when the
// subscription cannot be set up at all; connection problems arrive as events.
func (c *Client) Subscribe(ctx context.Context, q Query, tokens TokenSource) (*Subscription, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if c.databaseURL == nil {
		return nil, fmt.Errorf("database url: %w", ErrNotConfigured)
	}
	if err := q.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		id:     uuid.NewString(),
		events: make(chan Event, 16),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	st := &stream{
		client: c,
		query:  q,
		tokens: tokens,
		logger: c.logger.Named("stream").With(
			zap.String("subscription", sub.id),
			zap.String("path", q.Path),
		),
	}
	st.logger.Info("opening subscription", zap.String("order_by", q.OrderBy), zap.Int("limit", q.LimitToLast))
	go sub.run(ctx, st)
	return sub, nil
}

func (s *Subscription) run(ctx context.Context, st *stream) {
	defer close(s.done)
	defer close(s.events)

	failures := 0
	for {
		received, err := st.connect(ctx, s.emit)
		if ctx.Err() != nil {
			return
		}
		if received {
			failures = 0
		}

		switch {
		case errors.Is(err, ErrStreamCancelled):
			st.logger.Warn("subscription cancelled by server", zap.Error(err))
			s.emit(ctx, Event{Err: err})
			return
		case errors.Is(err, ErrAuthRevoked):
			st.logger.Info("stream credential revoked, reconnecting")
		case err != nil:
			failures++
			st.logger.Warn("stream interrupted", zap.Error(err), zap.Int("failures", failures))
			if !s.emit(ctx, Event{Err: err}) {
				return
			}
		default:
			st.logger.Debug("stream closed by server, reconnecting")
		}

		timer := time.NewTimer(calculateBackoff(failures, st.client.retryBase))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *Subscription) emit(ctx context.Context, ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

type stream struct {
	client *Client
	query  Query
	tokens TokenSource
	logger *zap.Logger
}

// connect holds one streaming connection open until it ends. It reports
// whether at least one data event arrived on it. A connection that delivers
// no event, keep-alives included, for the client's idle timeout is torn down
// and reported as ErrStreamIdle.
func (st *stream) connect(ctx context.Context, emit func(context.Context, Event) bool) (received bool, err error) {
	values := st.query.values()
	if st.tokens != nil {
		token, err := st.tokens(ctx)
		if err != nil {
			return false, fmt.Errorf("stream token: %w", err)
		}
		if token != "" {
			values.Set("auth", token)
		}
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var idle atomic.Bool
	watchdog := time.AfterFunc(st.client.idleTimeout, func() {
		idle.Store(true)
		cancel()
	})
	defer watchdog.Stop()
	defer func() {
		if idle.Load() && ctx.Err() == nil {
			err = st.idleError()
		}
	}()

	rel := &url.URL{Path: "/" + strings.Trim(st.query.Path, "/") + ".json", RawQuery: values.Encode()}
	reqURL := st.client.databaseURL.ResolveReference(rel)

	req, err := http.NewRequestWithContext(connCtx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("User-Agent", st.client.userAgent)

	resp, err := st.client.stream.Do(req)
	if err != nil {
		return false, fmt.Errorf("open stream: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return false, fmt.Errorf("%w: %w", ErrStreamCancelled, decodeAPIError(rel.Path, resp))
	case resp.StatusCode >= 400:
		return false, decodeAPIError(rel.Path, resp)
	}
	st.logger.Debug("stream connected")

	children := make(map[string]any)
	err = readEvents(resp.Body, func(ev sseEvent) error {
		// Paused while the event is handled so a slow consumer is not
		// mistaken for a dead connection.
		if !watchdog.Stop() {
			return st.idleError()
		}
		switch ev.Name {
		case "put", "patch":
			var msg struct {
				Path string `json:"path"`
				Data any    `json:"data"`
			}
			if err := json.Unmarshal(ev.Data, &msg); err != nil {
				return fmt.Errorf("decode %s event: %w", ev.Name, err)
			}
			applyEvent(children, ev.Name == "patch", msg.Path, msg.Data)
			received = true
			if !emit(ctx, Event{Snapshot: st.snapshot(children)}) {
				return ctx.Err()
			}
		case "cancel":
			return fmt.Errorf("%w: %s", ErrStreamCancelled, strings.Trim(string(ev.Data), `"`))
		case "auth_revoked":
			return ErrAuthRevoked
		}
		watchdog.Reset(st.client.idleTimeout)
		return nil
	})
	return received, err
}

func (st *stream) idleError() error {
	return fmt.Errorf("%w: no event for %s", ErrStreamIdle, st.client.idleTimeout)
}

// snapshot builds the query result from the local child map and drops
// children that fell outside the limit.
func (st *stream) snapshot(children map[string]any) Snapshot {
	records := make([]Reading, 0, len(children))
	for key, value := range children {
		raw, err := json.Marshal(value)
		if err != nil {
			continue
		}
		r, err := NewReading(key, raw, st.query.OrderBy)
		if err != nil {
			st.logger.Debug("skipping non-record child", zap.String("key", key))
			continue
		}
		records = append(records, r)
	}
	sortReadings(records)

	if n := st.query.LimitToLast; n > 0 && len(records) > n {
		for _, r := range records[:len(records)-n] {
			delete(children, r.Key)
		}
		records = records[len(records)-n:]
	}
	return Snapshot{Records: records}
}

// applyEvent folds a put or patch into the child map. A put at the root
// replaces every child; a patch merges each of its keys as a relative path.
func applyEvent(children map[string]any, merge bool, path string, data any) {
	segments := splitPath(path)
	if !merge {
		if len(segments) == 0 {
			clear(children)
			obj, _ := data.(map[string]any)
			for k, v := range obj {
				if v != nil {
					children[k] = v
				}
			}
			return
		}
		setPath(children, segments, data)
		return
	}

	obj, _ := data.(map[string]any)
	for k, v := range obj {
		setPath(children, append(slices.Clone(segments), splitPath(k)...), v)
	}
}

func setPath(m map[string]any, segments []string, value any) {
	if len(segments) == 0 {
		return
	}
	head := segments[0]
	if len(segments) == 1 {
		if value == nil {
			delete(m, head)
		} else {
			m[head] = value
		}
		return
	}
	child, ok := m[head].(map[string]any)
	if !ok {
		if value == nil {
			return
		}
		child = make(map[string]any)
		m[head] = child
	}
	setPath(child, segments[1:], value)
	if len(child) == 0 {
		delete(m, head)
	}
}

func splitPath(path string) []string {
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}
