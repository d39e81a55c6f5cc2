package session

import (
	"context"
	"sync"

	"github.com/platinummonkey/portal/pkg/contextkeys"
	"github.com/platinummonkey/portal/pkg/identity"
)

// Routes are the navigation targets the session raises
type Routes struct {
	Login        string
	AdminLanding string
	UserLanding  string
}

// DefaultRoutes returns the portal's standard routes
func DefaultRoutes() Routes {
	return Routes{
		Login:        "/login",
		AdminLanding: "/dashboard/admin",
		UserLanding:  "/dashboard/user",
	}
}

// LandingFor returns the landing route appropriate for ident
func (r Routes) LandingFor(ident *identity.Identity) string {
	if ident.IsAdmin() {
		return r.AdminLanding
	}
	return r.UserLanding
}

// Navigator receives navigation signals. The Manager raises them only after its
// state change has been applied, so a navigator observing State sees the new state.
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(route string)

// Navigate calls f(route)
func (f NavigatorFunc) Navigate(route string) {
	f(route)
}

// WithNavigator routes navigation signals raised by calls using ctx to nav
// instead of the Manager's default navigator.
func WithNavigator(ctx context.Context, nav Navigator) context.Context {
	return contextkeys.WithNavigator(ctx, nav)
}

func navigatorFrom(ctx context.Context) (Navigator, bool) {
	nav, ok := ctx.Value(contextkeys.NavigatorKey).(Navigator)
	return nav, ok && nav != nil
}

// Recorder is a Navigator that remembers the routes it was sent
type Recorder struct {
	mu     sync.Mutex
	routes []string
}

// Navigate records route
func (r *Recorder) Navigate(route string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route)
}

// Last returns the most recent route, or "" if none
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.routes) == 0 {
		return ""
	}
	return r.routes[len(r.routes)-1]
}

// Routes returns every recorded route in order
func (r *Recorder) Routes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.routes...)
}
