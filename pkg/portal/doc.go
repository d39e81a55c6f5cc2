// Package portal serves the operations portal: the login form, role-gated
// dashboards listing the tool catalog, user administration for admins and a
// JSON view of the session.
//
// Protected routes go through guard.Guard. While the session bootstraps they
// answer 503 with Retry-After: 1 and a self-refreshing placeholder.
//
// The session is shared by the whole process. Signing in binds it to the
// browser through the portal_session cookie, and every other client sees an
// anonymous session. POSTs from another origin are refused.
//
// Every handler that can end or start a session attaches a session.Recorder to
// its request context and redirects to wherever the session navigated.
package portal
