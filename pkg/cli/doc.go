// Package cli provides the portal command-line interface.
//
// # Overview
//
// Every command except serve restores the session from the configured token
// store before it runs, so a CLI process behaves like a fresh page load.
// Navigation targets raised by the session are printed:
//
//	$ portal login --username root --password toor
//	→ /dashboard/admin
//
// # Commands
//
// login: Sign in (password may come from $PORTAL_PASSWORD)
//
//	portal login --username alice
//
// logout: End the session
//
//	portal logout
//
// whoami: Show the signed-in identity (requires a session)
//
//	portal whoami --json
//
// refresh: Mint a new access token from the stored refresh token
//
//	portal refresh
//
// register: Create an account
//
//	portal register --field username=bob --field password=hunter2 --field email=bob@example.com
//
// users: Administer accounts (requires ADMIN)
//
//	portal users list
//	portal users get 7
//	portal users update 7 --email alice@example.com --roles ROLE_USER,ROLE_ADMIN
//	portal users delete 7 8
//
// serve: Run the portal web server with health and metrics on a second port
//
//	portal serve
//
// A protected command that the route guard turns away prints the redirect
// target and fails with ErrRedirected.
//
// # Configuration
//
// All settings come from PORTAL_* environment variables, see pkg/config:
//
//	export PORTAL_IDENTITY_URL="https://identity.example.com"
//	export PORTAL_TOKEN_STORE=file
//	export PORTAL_TOKEN_FILE="$HOME/.config/portal/tokens.json"
//
// # Related Packages
//
//   - pkg/session: Session state machine driven by every command
//   - pkg/guard: Role gate applied to whoami and users
//   - pkg/portal: Web server run by serve
package cli
