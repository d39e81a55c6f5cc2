package guard

import (
	"strconv"

	"github.com/platinummonkey/portal/pkg/session"
)

// Outcome is what a protected route should do
type Outcome int

const (
	// Render means the protected content may be shown
	Render Outcome = iota
	// Loading means the session is still bootstrapping and nothing access-gated may be shown
	Loading
	// Redirect means the caller must be sent to Decision.Location
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Render:
		return "render"
	case Loading:
		return "loading"
	case Redirect:
		return "redirect"
	default:
		return "unknown(" + strconv.Itoa(int(o)) + ")"
	}
}

// Decision is the result of evaluating a route guard
type Decision struct {
	Outcome  Outcome
	Location string
}

// Evaluate decides what a route requiring any of required should do for state.
//
//   - loading: Loading
//   - no identity: Redirect to the login route
//   - no required roles, or one of them held: Render
//   - otherwise: Redirect to the identity's landing route, never to login
//
// A required role r is held when the identity carries r or ROLE_<UPPER(r)>.
func Evaluate(state session.State, routes session.Routes, required []string) Decision {
	if state.Loading {
		return Decision{Outcome: Loading}
	}
	if state.Identity == nil {
		return Decision{Outcome: Redirect, Location: routes.Login}
	}
	if state.Identity.HasAnyRole(required) {
		return Decision{Outcome: Render}
	}
	return Decision{Outcome: Redirect, Location: routes.LandingFor(state.Identity)}
}
