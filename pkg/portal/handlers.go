package portal

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/platinummonkey/portal/pkg/audit"
	"github.com/platinummonkey/portal/pkg/guard"
	"github.com/platinummonkey/portal/pkg/httputil"
	"github.com/platinummonkey/portal/pkg/identity"
	"github.com/platinummonkey/portal/pkg/observability"
	"github.com/platinummonkey/portal/pkg/session"
	"github.com/platinummonkey/portal/pkg/users"
)

var teamText = []string{
	"The operations team keeps source control, ticketing and infrastructure running for everyone else.",
	"Reach us through osTicket for service requests and Bugzilla for defects.",
}

var learnMoreText = []string{
	"The portal gathers the team's tools behind a single sign-in.",
	"Administrators manage accounts and roles from the user management page. Everyone else sees the tools their roles allow.",
}

// SessionResponse is the body of GET /api/session. Tokens are never exposed.
type SessionResponse struct {
	Authenticated bool               `json:"authenticated"`
	Loading       bool               `json:"loading"`
	Identity      *identity.Identity `json:"identity"`
	LastError     string             `json:"lastError,omitempty"`
}

// navigation attaches a fresh recorder to the request so the session's
// navigation signal for this call can be turned into a redirect
func navigation(r *http.Request) (context.Context, *session.Recorder) {
	rec := &session.Recorder{}
	return session.WithNavigator(r.Context(), rec), rec
}

func (s *Server) pageFor(title string, ident *identity.Identity) page {
	p := page{Title: title, Identity: ident}
	if ident != nil {
		p.Landing = s.session.Routes().LandingFor(ident)
	}
	return p
}

// handleLoading writes the placeholder body. The guard has already written the
// 503 status line.
func (s *Server) handleLoading(w http.ResponseWriter, r *http.Request) {
	body, ok := s.renderer.execute(r, "loading", page{Title: "Loading", Refresh: 1})
	if !ok {
		body = []byte("Loading...\n")
	}
	w.Write(body)
}

func (s *Server) serveLoading(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Retry-After", "1")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusServiceUnavailable)
	s.handleLoading(w, r)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	state := s.guard.View(r)
	s.renderer.render(w, r, http.StatusOK, "home", s.pageFor("Home", state.Identity))
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	state := s.guard.View(r)
	switch {
	case state.Loading:
		s.serveLoading(w, r)
	case state.Authenticated():
		http.Redirect(w, r, s.session.Routes().LandingFor(state.Identity), http.StatusSeeOther)
	default:
		s.renderer.render(w, r, http.StatusOK, "login", s.pageFor("Log in", nil))
	}
}

func (s *Server) handleLoginThrottled(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.PostFormValue("username"))

	event := audit.NewEvent(r, audit.EventTypeAuthLoginFailed, audit.EventStatusFailure, nil)
	event.Username = username
	event.ErrorMessage = "rate limited"
	s.record(r, event)

	form := s.pageFor("Log in", nil)
	form.Username = username
	form.Error = "Too many sign-in attempts. Please wait and try again."
	s.renderer.render(w, r, http.StatusTooManyRequests, "login", form)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httputil.WriteBadRequest(w, "invalid form")
		return
	}
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")

	form := s.pageFor("Log in", nil)
	form.Username = username
	if username == "" || password == "" {
		form.Error = "Username and password are required"
		s.renderer.render(w, r, http.StatusBadRequest, "login", form)
		return
	}

	ctx, rec := navigation(r)
	if _, err := s.session.Login(ctx, username, password); err != nil {
		event := audit.NewEvent(r, audit.EventTypeAuthLoginFailed, audit.EventStatusFailure, nil)
		event.Username = username
		event.ErrorMessage = err.Error()
		s.record(r, event)

		status := http.StatusUnauthorized
		form.Error = identity.Display(err)
		switch {
		case identity.IsKind(err, identity.KindTransport):
			status = http.StatusBadGateway
		case errors.Is(err, session.ErrSuperseded):
			status = http.StatusConflict
			form.Error = "The session changed while signing in. Please try again."
		}
		s.renderer.render(w, r, status, "login", form)
		return
	}

	ident := s.session.State().Identity
	if ident != nil {
		s.binding.bind(w, r, ident.ID)
	}
	s.record(r, audit.NewEvent(r, audit.EventTypeAuthLogin, audit.EventStatusSuccess, ident))

	target := rec.Last()
	if target == "" {
		target = s.session.Routes().LandingFor(ident)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// handleLogout ends the session for the browser that holds it. Anyone else
// only loses their cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	state := s.session.State()
	ctx, rec := navigation(r)
	if s.binding.admits(r, state) || state.Empty() {
		s.binding.clear()
		s.session.Logout(ctx)
		if state.Identity != nil {
			s.record(r, audit.NewEvent(r, audit.EventTypeAuthLogout, audit.EventStatusSuccess, state.Identity))
		}
	}
	expire(w, r)

	target := rec.Last()
	if target == "" {
		target = s.session.Routes().Login
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	state := s.guard.View(r)
	httputil.WriteJSON(w, http.StatusOK, SessionResponse{
		Authenticated: state.Authenticated(),
		Loading:       state.Loading,
		Identity:      state.Identity,
		LastError:     state.LastError,
	})
}

func (s *Server) handleDashboard(title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident := guard.IdentityFrom(r)
		p := s.pageFor(title, ident)
		p.Tools = s.catalog.For(ident)
		s.renderer.render(w, r, http.StatusOK, "dashboard", p)
	}
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	ident := guard.IdentityFrom(r)
	p := s.pageFor("Tools", ident)
	p.Paragraphs = []string{"Every tool your roles give you access to."}
	p.Tools = s.catalog.For(ident)
	s.renderer.render(w, r, http.StatusOK, "info", p)
}

func (s *Server) handleInfo(title string, paragraphs []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := s.pageFor(title, guard.IdentityFrom(r))
		p.Paragraphs = paragraphs
		s.renderer.render(w, r, http.StatusOK, "info", p)
	}
}

// userAdminFailed handles an error from the user directory. When the session
// ended during the call (refresh failed) the caller follows it to login.
func (s *Server) userAdminFailed(w http.ResponseWriter, r *http.Request, rec *session.Recorder, err error) {
	if target := rec.Last(); target != "" {
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	observability.FromContext(r.Context()).WithError(err).Warn("user administration failed")
	status := httputil.StatusFor(err)
	if errors.Is(err, users.ErrEmptyUpdate) {
		status = http.StatusBadRequest
	}

	p := s.pageFor("Users", guard.IdentityFrom(r))
	p.Error = identity.Display(err)
	if list, lerr := s.users.List(r.Context()); lerr == nil {
		p.Users = list
	}
	s.renderer.render(w, r, status, "users", p)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx, rec := navigation(r)
	list, err := s.users.List(ctx)
	if err != nil {
		s.userAdminFailed(w, r, rec, err)
		return
	}

	p := s.pageFor("Users", guard.IdentityFrom(r))
	p.Users = list
	switch r.URL.Query().Get("done") {
	case "updated":
		p.Message = "User updated."
	case "deleted":
		p.Message = "User deleted."
	}
	s.renderer.render(w, r, http.StatusOK, "users", p)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	update := identity.UserUpdate{
		Email: httputil.FormOptional(r, "email"),
		Roles: httputil.FormList(r, "roles"),
	}

	ctx, rec := navigation(r)
	_, err := s.users.Update(ctx, id, update)
	s.recordAdmin(r, audit.EventTypeAdminUserUpdate, id, err)
	if err != nil {
		s.userAdminFailed(w, r, rec, err)
		return
	}
	http.Redirect(w, r, "/admin/users?done=updated", http.StatusSeeOther)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	ctx, rec := navigation(r)
	err := s.users.Delete(ctx, id)
	s.recordAdmin(r, audit.EventTypeAdminUserDelete, id, err)
	if err != nil {
		s.userAdminFailed(w, r, rec, err)
		return
	}
	http.Redirect(w, r, "/admin/users?done=deleted", http.StatusSeeOther)
}

// record writes an audit event. A failing audit log never fails the request.
func (s *Server) record(r *http.Request, event *audit.AuditEvent) {
	if err := s.auditLog.Log(r.Context(), event); err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("failed to write audit event")
	}
}

func (s *Server) recordAdmin(r *http.Request, eventType audit.EventType, target int64, err error) {
	status := audit.EventStatusSuccess
	if err != nil {
		status = audit.EventStatusFailure
	}
	event := audit.NewEvent(r, eventType, status, guard.IdentityFrom(r))
	event.ResourceID = strconv.FormatInt(target, 10)
	if err != nil {
		event.ErrorMessage = err.Error()
	}
	s.record(r, event)
}
