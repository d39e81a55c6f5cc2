package guard

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/portal/pkg/contextkeys"
	"github.com/platinummonkey/portal/pkg/identity"
	"github.com/platinummonkey/portal/pkg/observability"
	"github.com/platinummonkey/portal/pkg/session"
)

// StateSource provides the session a guard evaluates. session.Manager implements it.
type StateSource interface {
	State() session.State
	Routes() session.Routes
}

// Guard applies Evaluate to HTTP routes
type Guard struct {
	source  StateSource
	loading http.Handler
	metrics *observability.Metrics
	admit   Admission
}

// Admission reports whether the client behind r may act as the session's
// identity. Clients it refuses are treated as anonymous.
type Admission func(r *http.Request, state session.State) bool

// Option configures a Guard
type Option func(*Guard)

// WithLoadingHandler replaces the placeholder served while the session bootstraps.
// The guard sets the 503 status and Retry-After header before calling it.
func WithLoadingHandler(h http.Handler) Option {
	return func(g *Guard) {
		g.loading = h
	}
}

// WithMetrics counts decisions
func WithMetrics(metrics *observability.Metrics) Option {
	return func(g *Guard) {
		g.metrics = metrics
	}
}

// WithAdmission ties the process-wide session to the clients admit accepts
func WithAdmission(admit Admission) Option {
	return func(g *Guard) {
		g.admit = admit
	}
}

// New creates a guard over source
func New(source StateSource, opts ...Option) *Guard {
	g := &Guard{
		source: source,
		loading: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("Loading...\n"))
		}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check evaluates the current session against required and records the decision
func (g *Guard) Check(required ...string) (Decision, session.State) {
	state := g.source.State()
	decision := Evaluate(state, g.source.Routes(), required)
	g.metrics.IncGuardDecision(decision.Outcome.String())
	return decision, state
}

// CheckRequest is Check for the client behind r. A session identity the
// client is not admitted to is evaluated as anonymous.
func (g *Guard) CheckRequest(r *http.Request, required ...string) (Decision, session.State) {
	state := g.View(r)
	decision := Evaluate(state, g.source.Routes(), required)
	g.metrics.IncGuardDecision(decision.Outcome.String())
	return decision, state
}

// View returns the session as the client behind r may see it
func (g *Guard) View(r *http.Request) session.State {
	state := g.source.State()
	if state.Loading || state.Empty() || g.admit == nil || g.admit(r, state) {
		return state
	}
	return session.State{}
}

// Require returns middleware that admits only identities holding one of roles.
// With no roles any authenticated identity is admitted. Admitted requests carry
// the identity in their context.
func (g *Guard) Require(roles ...string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, state := g.CheckRequest(r, roles...)

			switch decision.Outcome {
			case Loading:
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Cache-Control", "no-store")
				w.WriteHeader(http.StatusServiceUnavailable)
				g.loading.ServeHTTP(w, r)
			case Redirect:
				observability.FromContext(r.Context()).WithFields(map[string]interface{}{
					"path":     r.URL.Path,
					"location": decision.Location,
				}).Debug("guard redirect")
				http.Redirect(w, r, decision.Location, http.StatusSeeOther)
			default:
				ctx := contextkeys.WithIdentity(r.Context(), state.Identity)
				ctx = contextkeys.WithUserID(ctx, strconv.FormatInt(state.Identity.ID, 10))
				next.ServeHTTP(w, r.WithContext(ctx))
			}
		})
	}
}

// IdentityFrom returns the identity admitted by Require, or nil
func IdentityFrom(r *http.Request) *identity.Identity {
	ident, _ := r.Context().Value(contextkeys.IdentityKey).(*identity.Identity)
	return ident
}
