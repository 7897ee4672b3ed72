package nav

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RoselietoPonce/weather-monitoring-system/internal/logging"
	"github.com/RoselietoPonce/weather-monitoring-system/internal/state"
)

// IdentityResolver supplies the identity a navigation is judged against.
type IdentityResolver interface {
	Resolve(ctx context.Context) (state.IdentitySnapshot, error)
}

// Outcome is the result of a guarded navigation.
type Outcome int

const (
	Allow Outcome = iota
	Redirect
)

func (o Outcome) String() string {
	if o == Redirect {
		return "redirect"
	}
	return "allow"
}

// Decision is what the guard concluded for one navigation. Target is the
// route to show: the requested one on Allow, the replacement on Redirect.
type Decision struct {
	Outcome Outcome
	Target  string
	Reason  string
}

// Guard gates route transitions on the signed-in identity.
type Guard struct {
	routes   Table
	identity IdentityResolver
	timeout  time.Duration
	logger   *zap.Logger
}

// GuardOption customises a Guard.
type GuardOption func(*Guard)

// WithTimeout bounds how long a navigation waits for the identity to become
// known. Zero waits indefinitely.
func WithTimeout(d time.Duration) GuardOption {
	return func(g *Guard) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithLogger sets the guard's logger.
func WithLogger(logger *zap.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = logger
	}
}

// NewGuard builds a Guard over routes.
func NewGuard(routes Table, identity IdentityResolver, opts ...GuardOption) *Guard {
	g := &Guard{routes: routes, identity: identity}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logging.OrNop(g.logger).Named("nav")
	return g
}

// Check decides the navigation from one route to another. It blocks until
// the identity is known, the timeout passes, or ctx ends; the latter two
// redirect to login.
func (g *Guard) Check(ctx context.Context, to, from string) Decision {
	logger := g.logger.With(zap.String("navigation", uuid.NewString()), zap.String("to", to), zap.String("from", from))
	route, ok := g.routes.Lookup(to)
	if !ok {
		route = Route{Name: to, Path: to}
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	ident, err := g.identity.Resolve(ctx)
	if err != nil {
		reason := "navigation cancelled"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "identity not resolved in time"
		}
		logger.Error("identity unavailable", zap.Error(err))
		return Decision{Outcome: Redirect, Target: Login, Reason: reason}
	}

	d := decide(route, ident.SignedIn)
	logger.Debug("navigation decided",
		zap.Stringer("outcome", d.Outcome), zap.String("target", d.Target), zap.String("reason", d.Reason))
	return d
}

func decide(route Route, signedIn bool) Decision {
	switch {
	case route.RequiresAuth && !signedIn:
		return Decision{Outcome: Redirect, Target: Login, Reason: "sign in required"}
	case route.RequiresAuth:
		return Decision{Outcome: Allow, Target: route.Name}
	case signedIn && route.Name == Login:
		return Decision{Outcome: Redirect, Target: Dashboard, Reason: "already signed in"}
	}
	return Decision{Outcome: Allow, Target: route.Name}
}
