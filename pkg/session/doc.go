// Package session is the single source of truth for whether the portal is
// authenticated and as whom.
//
// A Manager holds the access token, refresh token, resolved identity, the
// loading flag and the last error. It is created in the loading state and
// hydrated once from a tokenstore.Store by Bootstrap:
//
//	mgr := session.NewManager(authClient, store, session.WithLogger(logger))
//	if err := mgr.Bootstrap(ctx); err != nil {
//		return err
//	}
//	resp, err := mgr.Login(session.WithNavigator(ctx, nav), "alice", "secret")
//
// # Navigation
//
// Login, Logout and a failed refresh raise navigation signals (landing route by
// role, or the login route) through a Navigator. The signal is raised after the
// state change is applied. A Navigator attached to the call context with
// WithNavigator takes precedence over the Manager's default, so an HTTP handler
// can learn where its own request should go.
//
// # Concurrency
//
// Logout increments an epoch counter. Responses to operations started before
// the latest logout are discarded with ErrSuperseded and never resurrect a
// cleared session. Refresh results also require that the refresh token they
// were minted from is still held.
//
// The Manager implements oauth2.TokenSource and identity.Credentials so it can
// back identity.AuthTransport.
package session
