// Package identity is the client side of the remote identity and user service.
//
// The service speaks JSON over HTTP:
//
//	POST   /api/auth/login          {username, password}  -> tokens and profile
//	POST   /api/auth/signup         arbitrary fields      -> created record
//	POST   /api/auth/refresh-token  {refreshToken}        -> {accessToken, refreshToken?}
//	POST   /api/auth/logout         {refreshToken}        -> ignored
//	POST   /api/auth/validate       {token}               -> {valid, user?}
//	GET    /api/users                                     -> [user]
//	PUT    /api/users/:id           partial user          -> user
//	DELETE /api/users/:id
//
// Every failure is returned as *Error with a Kind of KindTransport, KindRejected
// or KindPrecondition.
//
// Authenticated calls go through AuthTransport, which attaches the bearer token
// and performs a single refresh-and-replay when the service answers 401:
//
//	httpClient := identity.NewHTTPClient(timeout, identity.NewAuthTransport(manager, nil))
//	users := identity.NewClient(baseURL, identity.WithHTTPClient(httpClient))
//
// Role checks live on Identity. A required role r is held when the identity
// carries r or ROLE_<UPPER(r)>.
package identity
