package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/platinummonkey/portal/pkg/identity"
	"github.com/platinummonkey/portal/pkg/observability"
	"github.com/platinummonkey/portal/pkg/tokenstore"
)

var (
	// ErrSuperseded is returned when a logout or a newer session replaced the
	// session a response was issued for. The response is discarded.
	ErrSuperseded = errors.New("session changed while the request was in flight")

	// ErrNotAuthenticated is returned by Token when no access token is held
	ErrNotAuthenticated = errors.New("not authenticated")
)

// AuthClient is the subset of the identity service the session needs
type AuthClient interface {
	Login(ctx context.Context, username, password string) (*identity.LoginResponse, error)
	Register(ctx context.Context, fields map[string]interface{}) (map[string]interface{}, error)
	RefreshToken(ctx context.Context, refreshToken string) (*identity.RefreshResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	ValidateToken(ctx context.Context, token string) (*identity.ValidateResponse, error)
}

// Manager owns the session: tokens, identity and the loading and error flags.
// It is the only writer of the persisted token keys and is safe for concurrent use.
//
// Every state-changing response is applied only if no logout happened since the
// operation started; between logouts the last response to resolve wins.
//
// Token writes and epoch changes are serialized by persistMu, which is taken
// before mu. Store I/O never happens under mu, so State stays cheap.
type Manager struct {
	client    AuthClient
	store     tokenstore.Store
	routes    Routes
	navigator Navigator
	logger    *observability.Logger
	metrics   *observability.Metrics
	tracer    trace.Tracer

	persistMu sync.Mutex
	mu        sync.RWMutex
	state     State
	epoch     uint64

	subMu       sync.Mutex
	subscribers map[uint64]chan State
	nextSub     uint64

	bootstrapOnce sync.Once
	ready         chan struct{}
}

// Option configures a Manager
type Option func(*Manager)

// WithRoutes overrides the navigation targets
func WithRoutes(routes Routes) Option {
	return func(m *Manager) {
		m.routes = routes
	}
}

// WithDefaultNavigator sets the navigator used when the call context carries none
func WithDefaultNavigator(nav Navigator) Option {
	return func(m *Manager) {
		m.navigator = nav
	}
}

// WithLogger sets the manager logger
func WithLogger(logger *observability.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics records operation outcomes
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// NewManager creates a manager in the loading state. Call Bootstrap once to
// hydrate it from the store.
func NewManager(client AuthClient, store tokenstore.Store, opts ...Option) *Manager {
	m := &Manager{
		client:      client,
		store:       store,
		routes:      DefaultRoutes(),
		navigator:   NavigatorFunc(func(string) {}),
		logger:      observability.NopLogger(),
		tracer:      observability.Tracer("session"),
		state:       State{Loading: true},
		subscribers: make(map[uint64]chan State),
		ready:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns a snapshot of the session
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.clone()
}

// Routes returns the navigation targets
func (m *Manager) Routes() Routes {
	return m.routes
}

// Ready is closed once Bootstrap has finished
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// Subscribe returns a channel that receives the latest state after every change.
// Slow readers only see the most recent snapshot. Call cancel to unsubscribe.
func (m *Manager) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subscribers[id] = ch
	m.subMu.Unlock()

	cancel := func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		if _, ok := m.subscribers[id]; ok {
			delete(m.subscribers, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (m *Manager) notify() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	if len(m.subscribers) == 0 {
		return
	}

	snapshot := m.State()
	for _, ch := range m.subscribers {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

func (m *Manager) navigate(ctx context.Context, route string) {
	m.logger.WithField("route", route).Debug("navigate")
	if nav, ok := navigatorFrom(ctx); ok {
		nav.Navigate(route)
		return
	}
	m.navigator.Navigate(route)
}

// Bootstrap hydrates the session from durable storage and validates it.
// Only the first call does any work. Loading stays true until it returns.
func (m *Manager) Bootstrap(ctx context.Context) error {
	var err error
	m.bootstrapOnce.Do(func() {
		err = m.bootstrap(ctx)
	})
	return err
}

func (m *Manager) bootstrap(ctx context.Context) (err error) {
	ctx, span := m.tracer.Start(ctx, "session.Bootstrap")
	start := time.Now()
	defer func() {
		m.metrics.ObserveSessionOperation("bootstrap", start, err)
		endSpan(span, err)
		m.finishLoading()
	}()

	m.persistMu.Lock()
	tokens, err := tokenstore.Load(ctx, m.store)
	if err != nil {
		m.persistMu.Unlock()
		m.logger.WithError(err).Error("failed to read persisted tokens")
		m.mu.Lock()
		m.state.LastError = err.Error()
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	if !m.state.Empty() {
		m.mu.Unlock()
		m.persistMu.Unlock()
		m.logger.Debug("session established while bootstrapping, keeping it")
		return nil
	}
	epoch := m.epoch
	if tokens.AccessToken == "" {
		m.mu.Unlock()
		if tokens.RefreshToken != "" {
			m.logger.Info("discarding refresh token persisted without an access token")
			m.reset(ctx)
		}
		m.persistMu.Unlock()
		m.logger.Debug("no persisted session")
		return nil
	}
	m.state.AccessToken = tokens.AccessToken
	m.state.RefreshToken = tokens.RefreshToken
	m.mu.Unlock()
	m.persistMu.Unlock()

	m.resolve(ctx, epoch, tokens.AccessToken)

	state := m.State()
	m.logger.WithField("authenticated", state.Authenticated()).Info("session bootstrapped")
	return nil
}

func (m *Manager) finishLoading() {
	m.mu.Lock()
	m.state.Loading = false
	m.mu.Unlock()
	m.notify()
	close(m.ready)
}

// resolve validates access and installs the identity it belongs to. An invalid
// token goes through the refresh path; anything unrecoverable logs out.
func (m *Manager) resolve(ctx context.Context, epoch uint64, access string) {
	sameAccess := func(e uint64, s State) bool { return e == epoch && s.AccessToken == access }

	resp, err := m.client.ValidateToken(ctx, access)
	if err != nil {
		m.logger.WithError(err).Warn("token validation failed, logging out")
		m.logout(ctx, sameAccess)
		return
	}
	if resp.Valid && resp.User != nil {
		m.applyIdentity(epoch, access, resp.User)
		return
	}

	m.mu.RLock()
	current := sameAccess(m.epoch, m.state)
	hasRefresh := m.state.RefreshToken != ""
	m.mu.RUnlock()
	if !current {
		return
	}
	if !hasRefresh {
		m.logger.Info("persisted token is no longer valid and no refresh token is held")
		m.logout(ctx, sameAccess)
		return
	}

	if _, err := m.RefreshAccessToken(ctx); err != nil {
		return
	}

	m.mu.RLock()
	refreshed := m.state.AccessToken
	m.mu.RUnlock()

	resp, err = m.client.ValidateToken(ctx, refreshed)
	if err != nil || !resp.Valid || resp.User == nil {
		m.logger.WithError(err).Warn("refreshed token could not be validated, logging out")
		m.logout(ctx, func(e uint64, s State) bool { return e == epoch && s.AccessToken == refreshed })
		return
	}
	m.applyIdentity(epoch, refreshed, resp.User)
}

func (m *Manager) applyIdentity(epoch uint64, access string, user *identity.Identity) error {
	m.mu.Lock()
	if m.epoch != epoch || m.state.AccessToken != access {
		m.mu.Unlock()
		m.metrics.IncStaleResponse("validate")
		m.logger.Debug("discarding validation result for a superseded session")
		return ErrSuperseded
	}
	m.state.Identity = user.Clone()
	m.mu.Unlock()
	m.notify()
	return nil
}

// Login authenticates with the identity service, persists the issued tokens and
// navigates to the landing route for the principal's roles. A failed login leaves
// any existing session untouched.
func (m *Manager) Login(ctx context.Context, username, password string) (resp *identity.LoginResponse, err error) {
	ctx, span := m.tracer.Start(ctx, "session.Login", trace.WithAttributes(attribute.String("username", username)))
	start := time.Now()
	defer func() {
		m.metrics.ObserveSessionOperation("login", start, err)
		endSpan(span, err)
	}()

	log := m.logger.WithField("username", username)
	epoch := m.beginAttempt()

	resp, err = m.client.Login(ctx, username, password)
	if err == nil && resp.AccessToken == "" {
		err = &identity.Error{Kind: identity.KindRejected, Message: "Login response did not include an access token"}
	}
	if err != nil {
		log.WithError(err).Warn("login failed")
		m.recordError(epoch, err)
		return nil, err
	}

	ident := resp.Identity()
	tokens := tokenstore.Tokens{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}
	if err := m.install(ctx, "login", epoch, tokens, ident); err != nil {
		m.recordError(epoch, err)
		return nil, err
	}

	log.WithField("admin", ident.IsAdmin()).Info("login succeeded")
	m.navigate(ctx, m.routes.LandingFor(ident))
	return resp, nil
}

// install persists tokens and then replaces the session with them
func (m *Manager) install(ctx context.Context, operation string, epoch uint64, tokens tokenstore.Tokens, ident *identity.Identity) error {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.RLock()
	stale := m.epoch != epoch
	previous := tokenstore.Tokens{AccessToken: m.state.AccessToken, RefreshToken: m.state.RefreshToken}
	m.mu.RUnlock()
	if stale {
		m.metrics.IncStaleResponse(operation)
		m.logger.WithField("operation", operation).Info("discarding response that arrived after logout")
		return ErrSuperseded
	}

	if err := tokenstore.Save(ctx, m.store, tokens); err != nil {
		if rerr := tokenstore.Save(context.WithoutCancel(ctx), m.store, previous); rerr != nil {
			m.logger.WithError(rerr).Error("failed to restore persisted tokens")
		}
		m.logger.WithError(err).Error("failed to persist tokens")
		return fmt.Errorf("failed to persist session: %w", err)
	}

	m.mu.Lock()
	m.state.AccessToken = tokens.AccessToken
	m.state.RefreshToken = tokens.RefreshToken
	m.state.Identity = ident.Clone()
	m.mu.Unlock()

	m.notify()
	return nil
}

func (m *Manager) beginAttempt() uint64 {
	m.mu.Lock()
	epoch := m.epoch
	changed := m.state.LastError != ""
	m.state.LastError = ""
	m.mu.Unlock()
	if changed {
		m.notify()
	}
	return epoch
}

func (m *Manager) recordError(epoch uint64, err error) {
	if errors.Is(err, ErrSuperseded) {
		return
	}
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return
	}
	m.state.LastError = err.Error()
	m.mu.Unlock()
	m.notify()
}

// Register creates an account. It does not touch the session.
func (m *Manager) Register(ctx context.Context, fields map[string]interface{}) (created map[string]interface{}, err error) {
	ctx, span := m.tracer.Start(ctx, "session.Register")
	start := time.Now()
	defer func() {
		m.metrics.ObserveSessionOperation("register", start, err)
		endSpan(span, err)
	}()

	created, err = m.client.Register(ctx, fields)
	if err != nil {
		m.logger.WithError(err).Warn("registration failed")
		return nil, err
	}
	return created, nil
}

// RefreshAccessToken mints a new access token with the held refresh token. A
// rotated refresh token replaces the old one. Without a refresh token it fails
// with identity.ErrNoRefreshToken before any network call. Every failure logs out
// before the error is returned.
func (m *Manager) RefreshAccessToken(ctx context.Context) (resp *identity.RefreshResponse, err error) {
	ctx, span := m.tracer.Start(ctx, "session.Refresh")
	start := time.Now()
	defer func() {
		m.metrics.ObserveSessionOperation("refresh", start, err)
		endSpan(span, err)
	}()

	m.mu.RLock()
	refreshToken := m.state.RefreshToken
	epoch := m.epoch
	m.mu.RUnlock()

	if refreshToken == "" {
		m.logger.Warn("token refresh attempted without a refresh token")
		m.Logout(ctx)
		return nil, identity.ErrNoRefreshToken
	}

	sameSession := func(e uint64, s State) bool { return e == epoch && s.RefreshToken == refreshToken }

	resp, err = m.client.RefreshToken(ctx, refreshToken)
	if err == nil && resp.AccessToken == "" {
		err = &identity.Error{Kind: identity.KindRejected, Message: "Refresh response did not include an access token"}
	}
	if err != nil {
		m.logger.WithError(err).Warn("token refresh failed, logging out")
		m.recordError(epoch, err)
		m.logout(ctx, sameSession)
		return nil, err
	}

	next := tokenstore.Tokens{AccessToken: resp.AccessToken, RefreshToken: refreshToken}
	if resp.RefreshToken != "" {
		next.RefreshToken = resp.RefreshToken
	}

	m.persistMu.Lock()
	m.mu.RLock()
	current := sameSession(m.epoch, m.state)
	m.mu.RUnlock()
	if !current {
		m.persistMu.Unlock()
		m.metrics.IncStaleResponse("refresh")
		m.logger.Info("discarding refreshed token for a superseded session")
		return nil, ErrSuperseded
	}
	if err := tokenstore.Save(ctx, m.store, next); err != nil {
		m.persistMu.Unlock()
		m.logger.WithError(err).Error("failed to persist refreshed token, logging out")
		m.logout(ctx, sameSession)
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	m.mu.Lock()
	m.state.AccessToken = next.AccessToken
	m.state.RefreshToken = next.RefreshToken
	m.state.LastError = ""
	m.mu.Unlock()
	m.persistMu.Unlock()
	m.notify()

	m.logger.WithField("rotated", resp.RefreshToken != "").Info("access token refreshed")
	return resp, nil
}

// Logout clears the session locally and in durable storage, asks the identity
// service to invalidate the refresh token, and navigates to the login route.
// A failing remote call is logged and never blocks the local cleanup. Calling
// Logout without a session only navigates.
func (m *Manager) Logout(ctx context.Context) {
	m.logout(ctx, nil)
}

// logout runs only when current approves the state it is about to clear
func (m *Manager) logout(ctx context.Context, current func(epoch uint64, s State) bool) {
	ctx, span := m.tracer.Start(ctx, "session.Logout")
	start := time.Now()
	defer func() {
		m.metrics.ObserveSessionOperation("logout", start, nil)
		span.End()
	}()

	m.persistMu.Lock()
	m.mu.RLock()
	approved := current == nil || current(m.epoch, m.state)
	m.mu.RUnlock()
	if !approved {
		m.persistMu.Unlock()
		return
	}
	refreshToken := m.reset(ctx)
	m.persistMu.Unlock()
	m.notify()

	if refreshToken != "" {
		if err := m.client.Logout(context.WithoutCancel(ctx), refreshToken); err != nil {
			m.logger.WithError(err).Warn("remote logout failed")
		}
	}

	m.logger.Info("logged out")
	m.navigate(ctx, m.routes.Login)
}

// reset supersedes in-flight operations, clears the session and then erases
// the persisted tokens. It returns the refresh token that was held. Callers
// hold m.persistMu.
func (m *Manager) reset(ctx context.Context) string {
	m.mu.Lock()
	refreshToken := m.state.RefreshToken
	m.epoch++
	m.state = State{Loading: m.state.Loading, LastError: m.state.LastError}
	m.mu.Unlock()

	if err := tokenstore.Save(context.WithoutCancel(ctx), m.store, tokenstore.Tokens{}); err != nil {
		m.logger.WithError(err).Error("failed to erase persisted tokens")
	}
	return refreshToken
}

// Token implements oauth2.TokenSource with the current access token
func (m *Manager) Token() (*oauth2.Token, error) {
	m.mu.RLock()
	access := m.state.AccessToken
	m.mu.RUnlock()
	if access == "" {
		return nil, ErrNotAuthenticated
	}
	return &oauth2.Token{AccessToken: access, TokenType: "Bearer"}, nil
}

// Refresh runs RefreshAccessToken and returns the new token. It lets the
// Manager back identity.AuthTransport.
func (m *Manager) Refresh(ctx context.Context) (*oauth2.Token, error) {
	resp, err := m.RefreshAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: resp.AccessToken, TokenType: "Bearer"}, nil
}

// Revalidate checks the held access token against the identity service and
// refreshes the identity. An invalid token goes through RefreshAccessToken. An
// unreachable or failing service keeps the session as it is.
func (m *Manager) Revalidate(ctx context.Context) (err error) {
	ctx, span := m.tracer.Start(ctx, "session.Revalidate")
	start := time.Now()
	defer func() {
		m.metrics.ObserveSessionOperation("revalidate", start, err)
		endSpan(span, err)
	}()

	m.mu.RLock()
	loading := m.state.Loading
	access := m.state.AccessToken
	epoch := m.epoch
	m.mu.RUnlock()

	if loading || access == "" {
		return nil
	}

	resp, err := m.client.ValidateToken(ctx, access)
	switch {
	case err != nil && (identity.IsKind(err, identity.KindTransport) || identity.StatusCode(err) >= 500):
		m.logger.WithError(err).Warn("revalidation skipped, identity service unavailable")
		return err
	case err == nil && resp.Valid && resp.User != nil:
		if err := m.applyIdentity(epoch, access, resp.User); err != nil && !errors.Is(err, ErrSuperseded) {
			return err
		}
		return nil
	}

	m.logger.Info("access token no longer valid, refreshing")
	if _, err := m.RefreshAccessToken(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		return err
	}
	return nil
}

// Sync reconciles the session with durable storage after another process
// changed it. Credentials erased elsewhere clear the session here without a
// remote call. New credentials are adopted and validated as in Bootstrap.
func (m *Manager) Sync(ctx context.Context) (err error) {
	ctx, span := m.tracer.Start(ctx, "session.Sync")
	start := time.Now()
	defer func() {
		m.metrics.ObserveSessionOperation("sync", start, err)
		endSpan(span, err)
	}()

	m.persistMu.Lock()
	m.mu.RLock()
	loading := m.state.Loading
	held := tokenstore.Tokens{AccessToken: m.state.AccessToken, RefreshToken: m.state.RefreshToken}
	m.mu.RUnlock()
	if loading {
		m.persistMu.Unlock()
		return nil
	}

	stored, err := tokenstore.Load(ctx, m.store)
	if err != nil {
		m.persistMu.Unlock()
		return err
	}
	if stored == held {
		m.persistMu.Unlock()
		return nil
	}

	if stored.AccessToken == "" {
		m.reset(ctx)
		m.persistMu.Unlock()
		m.notify()
		m.logger.Info("session cleared by another process")
		m.navigate(ctx, m.routes.Login)
		return nil
	}

	// loading until the adopted token is validated
	m.mu.Lock()
	m.epoch++
	epoch := m.epoch
	m.state = State{AccessToken: stored.AccessToken, RefreshToken: stored.RefreshToken, Loading: true}
	m.mu.Unlock()
	m.persistMu.Unlock()
	m.notify()

	m.logger.Info("adopting session written by another process")
	m.resolve(ctx, epoch, stored.AccessToken)

	m.mu.Lock()
	m.state.Loading = false
	m.mu.Unlock()
	m.notify()
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
