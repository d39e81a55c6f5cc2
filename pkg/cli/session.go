package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/platinummonkey/portal/pkg/config"
	"github.com/platinummonkey/portal/pkg/guard"
	"github.com/platinummonkey/portal/pkg/identity"
	"github.com/platinummonkey/portal/pkg/observability"
	"github.com/platinummonkey/portal/pkg/session"
	"github.com/platinummonkey/portal/pkg/tokenstore"
	"github.com/platinummonkey/portal/pkg/users"
)

// environment is a bootstrapped session for one CLI invocation
type environment struct {
	cfg    *config.Config
	store  tokenstore.Store
	client *identity.Client
	mgr    *session.Manager
	logger *observability.Logger
}

// withSession opens the token store, restores the session from it and runs fn.
// Every invocation starts from durable storage the way a page load does.
func (a *App) withSession(ctx context.Context, fn func(ctx context.Context, env *environment) error) error {
	cfg, err := a.LoadConfig()
	if err != nil {
		return err
	}

	store, err := tokenstore.Open(cfg.TokenStore)
	if err != nil {
		return fmt.Errorf("failed to open token store: %w", err)
	}
	defer store.Close()

	logger := a.serviceLogger()
	client := identity.NewClient(cfg.Identity.BaseURL,
		identity.WithHTTPClient(identity.NewHTTPClient(cfg.Identity.Timeout, nil)),
		identity.WithLogger(logger),
	)
	mgr := session.NewManager(client, store,
		session.WithLogger(logger),
		session.WithDefaultNavigator(session.NavigatorFunc(a.printRoute)),
	)

	a.Log.WithField("store", cfg.TokenStore.Type).Debug("Restoring session")
	if err := mgr.Bootstrap(ctx); err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}

	return fn(ctx, &environment{
		cfg:    cfg,
		store:  store,
		client: client,
		mgr:    mgr,
		logger: logger,
	})
}

// serviceLogger is the structured logger handed to library packages. Only
// errors reach the terminal unless --verbose is set.
func (a *App) serviceLogger() *observability.Logger {
	if a.Verbose {
		return observability.NewLogger(observability.DebugLevel, a.Err)
	}
	return observability.NewLogger(observability.ErrorLevel, a.Err)
}

func (a *App) printRoute(route string) {
	fmt.Fprintf(a.Out, "→ %s\n", route)
}

// require applies the route guard to a command. A redirect prints the target
// and fails with ErrRedirected.
func (a *App) require(env *environment, roles ...string) (*identity.Identity, error) {
	decision, state := guard.New(env.mgr).Check(roles...)
	switch decision.Outcome {
	case guard.Render:
		return state.Identity, nil
	case guard.Redirect:
		a.printRoute(decision.Location)
		return nil, fmt.Errorf("%w to %s", ErrRedirected, decision.Location)
	default:
		return nil, errors.New("session is still loading")
	}
}

// directory is a user service whose requests carry the session's bearer token
// and refresh it once on a 401
func (env *environment) directory() *users.Service {
	transport := identity.NewAuthTransport(env.mgr, nil, identity.WithTransportLogger(env.logger))
	client := identity.NewClient(env.cfg.Identity.BaseURL,
		identity.WithHTTPClient(identity.NewHTTPClient(env.cfg.Identity.Timeout, transport)),
		identity.WithLogger(env.logger),
	)
	// one-shot processes gain nothing from the cache
	return users.NewService(client, users.Config{}, users.WithLogger(env.logger))
}

func printIdentity(w io.Writer, ident *identity.Identity) {
	fmt.Fprintf(w, "ID:       %d\n", ident.ID)
	fmt.Fprintf(w, "Username: %s\n", ident.Username)
	if ident.Email != "" {
		fmt.Fprintf(w, "Email:    %s\n", ident.Email)
	}
	fmt.Fprintf(w, "Roles:    %s\n", strings.Join(ident.Roles, ", "))
}
