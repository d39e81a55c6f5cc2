package portal

import (
	"crypto/subtle"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/platinummonkey/portal/pkg/session"
)

// SessionCookie names the cookie that ties a browser to the portal session
const SessionCookie = "portal_session"

// binding remembers which browser signed the current session in. The session
// itself is process wide, so only the holder of the cookie issued at sign-in
// may act as its identity.
type binding struct {
	mu     sync.Mutex
	token  string
	userID int64
}

func (b *binding) bind(w http.ResponseWriter, r *http.Request, userID int64) {
	token := uuid.NewString()

	b.mu.Lock()
	b.token = token
	b.userID = userID
	b.mu.Unlock()

	http.SetCookie(w, sessionCookie(r, token, 0))
}

// admits reports whether r carries the cookie issued for state's identity
func (b *binding) admits(r *http.Request, state session.State) bool {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.token == "" || state.Identity == nil || state.Identity.ID != b.userID {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(b.token)) == 1
}

func (b *binding) clear() {
	b.mu.Lock()
	b.token = ""
	b.userID = 0
	b.mu.Unlock()
}

// expire tells the browser to drop its cookie
func expire(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, sessionCookie(r, "", -1))
}

func sessionCookie(r *http.Request, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	}
}
