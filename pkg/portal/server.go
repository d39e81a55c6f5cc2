package portal

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/portal/pkg/audit"
	"github.com/platinummonkey/portal/pkg/guard"
	"github.com/platinummonkey/portal/pkg/httputil"
	"github.com/platinummonkey/portal/pkg/identity"
	"github.com/platinummonkey/portal/pkg/middleware"
	"github.com/platinummonkey/portal/pkg/observability"
)

// Session is the part of session.Manager the portal drives
type Session interface {
	guard.StateSource
	Login(ctx context.Context, username, password string) (*identity.LoginResponse, error)
	Logout(ctx context.Context)
}

// UserAdmin administers the user directory. users.Service implements it.
type UserAdmin interface {
	List(ctx context.Context) ([]identity.Identity, error)
	Update(ctx context.Context, id int64, update identity.UserUpdate) (*identity.Identity, error)
	Delete(ctx context.Context, id int64) error
}

// Server is the single-operator web portal
type Server struct {
	session  Session
	users    UserAdmin
	catalog  Catalog
	guard    *guard.Guard
	renderer *renderer
	logger   *observability.Logger
	metrics  *observability.Metrics
	auditLog audit.Logger
	limiter  *middleware.RateLimiter
	proxies  httputil.TrustedProxies
	binding  binding
	router   *mux.Router
}

// Option configures a Server
type Option func(*Server)

// WithCatalog replaces the built-in tool catalog
func WithCatalog(catalog Catalog) Option {
	return func(s *Server) {
		s.catalog = catalog
	}
}

// WithLogger sets the server logger
func WithLogger(logger *observability.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics records HTTP and guard metrics
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// WithAuditLogger records sign-ins, sign-outs and user administration
func WithAuditLogger(logger audit.Logger) Option {
	return func(s *Server) {
		s.auditLog = logger
	}
}

// WithLoginLimiter throttles sign-in attempts per client address
func WithLoginLimiter(limiter *middleware.RateLimiter) Option {
	return func(s *Server) {
		s.limiter = limiter
	}
}

// WithTrustedProxies believes forwarding headers from these networks when
// resolving the client address
func WithTrustedProxies(proxies httputil.TrustedProxies) Option {
	return func(s *Server) {
		s.proxies = proxies
	}
}

// NewServer builds the portal router
func NewServer(sess Session, userAdmin UserAdmin, opts ...Option) (*Server, error) {
	renderer, err := newRenderer()
	if err != nil {
		return nil, err
	}

	s := &Server{
		session:  sess,
		users:    userAdmin,
		catalog:  DefaultCatalog(),
		renderer: renderer,
		logger:   observability.NopLogger(),
		auditLog: audit.NopLogger(),
		router:   mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.guard = guard.New(sess,
		guard.WithLoadingHandler(http.HandlerFunc(s.handleLoading)),
		guard.WithMetrics(s.metrics),
		guard.WithAdmission(s.binding.admits),
	)
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}
	s.router.Use(httputil.NoStoreMiddleware)
	s.router.Use(middleware.RequireSameOrigin)

	// Public routes
	s.router.HandleFunc("/", s.handleHome).Methods(http.MethodGet)
	s.router.HandleFunc("/login", s.handleLoginForm).Methods(http.MethodGet)
	var login http.Handler = http.HandlerFunc(s.handleLogin)
	if s.limiter != nil {
		login = middleware.Throttle(s.limiter, middleware.ByClientIP, http.HandlerFunc(s.handleLoginThrottled))(login)
	}
	s.router.Handle("/login", login).Methods(http.MethodPost)
	s.router.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	s.router.HandleFunc("/api/session", s.handleSession).Methods(http.MethodGet)

	routes := s.session.Routes()
	admin := s.guard.Require("ADMIN")
	authenticated := s.guard.Require()

	// Dashboards
	s.router.Handle(routes.AdminLanding, admin(s.handleDashboard("Admin Dashboard"))).Methods(http.MethodGet)
	s.router.Handle(routes.UserLanding, authenticated(s.handleDashboard("User Dashboard"))).Methods(http.MethodGet)

	// Authenticated info pages
	s.router.Handle("/tool", authenticated(http.HandlerFunc(s.handleTools))).Methods(http.MethodGet)
	s.router.Handle("/team", authenticated(s.handleInfo("Team", teamText))).Methods(http.MethodGet)
	s.router.Handle("/learn-more", authenticated(s.handleInfo("Learn more", learnMoreText))).Methods(http.MethodGet)

	// User administration
	s.router.Handle("/admin/users", admin(http.HandlerFunc(s.handleListUsers))).Methods(http.MethodGet)
	s.router.Handle("/admin/users/{id:[0-9]+}", admin(http.HandlerFunc(s.handleUpdateUser))).Methods(http.MethodPost)
	s.router.Handle("/admin/users/{id:[0-9]+}/delete", admin(http.HandlerFunc(s.handleDeleteUser))).Methods(http.MethodPost)
}

// Handler returns the portal wrapped in client address resolution, request id,
// recovery and access logging
func (s *Server) Handler() http.Handler {
	return httputil.Chain(
		httputil.ClientIPMiddleware(s.proxies),
		httputil.RequestIDMiddleware(s.logger),
		httputil.RecoveryMiddleware,
		httputil.LoggingMiddleware,
	)(s.router)
}

// Router returns the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}
