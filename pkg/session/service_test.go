package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/portal/pkg/identity"
	"github.com/platinummonkey/portal/pkg/tokenstore"
)

type account struct {
	password string
	identity identity.Identity
}

// fakeService is an in-memory identity service. Tokens are issued as A<n>/R<n>
// from a shared counter so tests can predict them.
type fakeService struct {
	mu          sync.Mutex
	accounts    map[string]account
	access      map[string]identity.Identity
	refresh     map[string]identity.Identity
	calls       map[string]int
	seq         int
	rotate      bool
	failRefresh bool
	failLogout  bool
	loginGates  map[string]chan struct{}
}

func newFakeService() *fakeService {
	return &fakeService{
		accounts: map[string]account{
			"alice": {password: "secret", identity: identity.Identity{ID: 7, Username: "alice", Roles: []string{"ROLE_USER"}}},
			"root":  {password: "toor", identity: identity.Identity{ID: 1, Username: "root", Email: "root@example.com", Roles: []string{"ROLE_ADMIN"}}},
			"bob":   {password: "hunter2", identity: identity.Identity{ID: 8, Username: "bob", Roles: []string{"user"}}},
		},
		access:     make(map[string]identity.Identity),
		refresh:    make(map[string]identity.Identity),
		calls:      make(map[string]int),
		loginGates: make(map[string]chan struct{}),
	}
}

func (s *fakeService) count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

func (s *fakeService) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// expire invalidates an access token as if it had timed out
func (s *fakeService) expire(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.access, token)
}

// gate makes logins for username block until the returned function is called
func (s *fakeService) gate(username string) func() {
	ch := make(chan struct{})
	s.mu.Lock()
	s.loginGates[username] = ch
	s.mu.Unlock()
	return func() { close(ch) }
}

func (s *fakeService) set(fn func(s *fakeService)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body)
	}
	str := func(k string) string {
		v, _ := body[k].(string)
		return v
	}

	s.mu.Lock()
	s.calls[r.URL.Path]++
	gate := s.loginGates[str("username")]
	s.mu.Unlock()

	switch r.URL.Path {
	case "/api/auth/login":
		if gate != nil {
			<-gate
		}
		s.mu.Lock()
		acct, ok := s.accounts[str("username")]
		if !ok || acct.password != str("password") {
			s.mu.Unlock()
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
			return
		}
		s.seq++
		access, refresh := fmt.Sprintf("A%d", s.seq), fmt.Sprintf("R%d", s.seq)
		s.access[access] = acct.identity
		s.refresh[refresh] = acct.identity
		s.mu.Unlock()

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"accessToken":  access,
			"refreshToken": refresh,
			"id":           acct.identity.ID,
			"username":     acct.identity.Username,
			"email":        acct.identity.Email,
			"roles":        acct.identity.Roles,
		})

	case "/api/auth/refresh-token":
		s.mu.Lock()
		ident, ok := s.refresh[str("refreshToken")]
		if !ok || s.failRefresh {
			s.mu.Unlock()
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Refresh token expired"})
			return
		}
		s.seq++
		resp := map[string]string{"accessToken": fmt.Sprintf("A%d", s.seq)}
		s.access[resp["accessToken"]] = ident
		if s.rotate {
			delete(s.refresh, str("refreshToken"))
			resp["refreshToken"] = fmt.Sprintf("R%d", s.seq)
			s.refresh[resp["refreshToken"]] = ident
		}
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, resp)

	case "/api/auth/validate":
		s.mu.Lock()
		ident, ok := s.access[str("token")]
		s.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusOK, map[string]interface{}{"valid": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"valid": true, "user": ident})

	case "/api/auth/logout":
		s.mu.Lock()
		delete(s.refresh, str("refreshToken"))
		fail := s.failLogout
		s.mu.Unlock()
		if fail {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})

	case "/api/auth/signup":
		writeJSON(w, http.StatusCreated, body)

	case "/api/users":
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		_, ok := s.access[token]
		var users []identity.Identity
		for _, acct := range s.accounts {
			users = append(users, acct.identity)
		}
		s.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Token expired"})
			return
		}
		writeJSON(w, http.StatusOK, users)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type harness struct {
	svc    *fakeService
	server *httptest.Server
	client *identity.Client
	store  tokenstore.Store
	nav    *Recorder
	mgr    *Manager
}

func newHarness(t *testing.T, store tokenstore.Store) *harness {
	t.Helper()
	svc := newFakeService()
	server := httptest.NewServer(svc)
	t.Cleanup(server.Close)

	if store == nil {
		store = tokenstore.NewMemoryStore()
	}
	client := identity.NewClient(server.URL)
	nav := &Recorder{}

	return &harness{
		svc:    svc,
		server: server,
		client: client,
		store:  store,
		nav:    nav,
		mgr:    NewManager(client, store, WithDefaultNavigator(nav)),
	}
}

// assertInvariants checks the properties every observable state must hold
func assertInvariants(t *testing.T, s State) {
	t.Helper()
	if s.Identity != nil {
		require.NotEmpty(t, s.AccessToken, "identity must never outlive its access token")
	}
}
