// Package httputil holds the small HTTP helpers shared by the portal handlers.
//
// Responses:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteIdentityError(w, err) // status and text derived from *identity.Error
//
// Requests:
//
//	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
//	roles := httputil.FormList(r, "roles")
//
// Middleware:
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.RecoveryMiddleware,
//		httputil.LoggingMiddleware,
//	)(router)
package httputil
