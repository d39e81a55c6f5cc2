// Package guard decides whether a protected route may render for the current
// session.
//
// Evaluate is the pure decision: loading sessions wait, anonymous sessions go to
// the login route, and identities lacking a required role go to their own
// landing route. Guard wraps Evaluate as gorilla/mux middleware:
//
//	g := guard.New(mgr, guard.WithMetrics(metrics))
//	admin := router.PathPrefix("/dashboard/admin").Subrouter()
//	admin.Use(g.Require("ADMIN"))
package guard
