package httputil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePathInt64(t *testing.T) {
	tests := []struct {
		name        string
		vars        map[string]string
		want        int64
		expectError bool
	}{
		{"valid", map[string]string{"id": "42"}, 42, false},
		{"large", map[string]string{"id": "9223372036854775807"}, 9223372036854775807, false},
		{"missing", map[string]string{}, 0, true},
		{"not a number", map[string]string{"id": "abc"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), tt.vars)

			got, err := ParsePathInt64(req, "id")

			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePathInt64OrError(t *testing.T) {
	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": "x"})
	w := httptest.NewRecorder()

	_, ok := ParsePathInt64OrError(w, req, "id")

	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid integer for id")
}

func formRequest(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestFormOptional(t *testing.T) {
	req := formRequest(url.Values{"email": {"  a@example.com "}, "blank": {"  "}})

	email := FormOptional(req, "email")
	require.NotNil(t, email)
	assert.Equal(t, "a@example.com", *email)
	assert.Nil(t, FormOptional(req, "blank"))
	assert.Nil(t, FormOptional(req, "missing"))
}

func TestFormList(t *testing.T) {
	req := formRequest(url.Values{"roles": {"ROLE_USER, ROLE_ADMIN", "auditor"}})

	assert.Equal(t, []string{"ROLE_USER", "ROLE_ADMIN", "auditor"}, FormList(req, "roles"))
	assert.Nil(t, FormList(req, "missing"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "192.0.2.10:51234"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	assert.Equal(t, "192.0.2.10", ClientIP(req), "headers are ignored without the middleware")

	req.RemoteAddr = "192.0.2.10"
	assert.Equal(t, "192.0.2.10", ClientIP(req))
}

func TestParseTrustedProxies(t *testing.T) {
	proxies, err := ParseTrustedProxies(" 10.0.0.0/8, 192.0.2.1 ,,::1")
	require.NoError(t, err)
	assert.Len(t, proxies, 3)
	assert.True(t, proxies.trusts("10.4.5.6"))
	assert.True(t, proxies.trusts("192.0.2.1"))
	assert.False(t, proxies.trusts("192.0.2.2"))
	assert.True(t, proxies.trusts("::1"))

	empty, err := ParseTrustedProxies("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ParseTrustedProxies("10.0.0.0/33")
	assert.Error(t, err)
	_, err = ParseTrustedProxies("proxy.internal")
	assert.Error(t, err)
}

func TestTrustedProxiesResolve(t *testing.T) {
	proxies, err := ParseTrustedProxies("10.0.0.0/8")
	require.NoError(t, err)

	tests := []struct {
		name    string
		proxies TrustedProxies
		remote  string
		headers map[string]string
		want    string
	}{
		{"untrusted peer spoofing forwarded", proxies, "203.0.113.50:4000", map[string]string{"X-Forwarded-For": "198.51.100.1"}, "203.0.113.50"},
		{"untrusted peer spoofing real ip", proxies, "203.0.113.50:4000", map[string]string{"X-Real-IP": "198.51.100.1"}, "203.0.113.50"},
		{"no proxies configured", nil, "10.0.0.2:4000", map[string]string{"X-Forwarded-For": "198.51.100.1"}, "10.0.0.2"},
		{"trusted proxy", proxies, "10.0.0.2:4000", map[string]string{"X-Forwarded-For": "198.51.100.1"}, "198.51.100.1"},
		{"client prepends a fake hop", proxies, "10.0.0.2:4000", map[string]string{"X-Forwarded-For": "1.2.3.4, 198.51.100.1, 10.0.0.9"}, "198.51.100.1"},
		{"trusted proxy with real ip", proxies, "10.0.0.2:4000", map[string]string{"X-Real-IP": "198.51.100.4"}, "198.51.100.4"},
		{"trusted proxy without headers", proxies, "10.0.0.2:4000", nil, "10.0.0.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/login", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, tt.proxies.Resolve(req))

			var seen string
			ClientIPMiddleware(tt.proxies)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = ClientIP(r)
			})).ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, seen)
		})
	}
}
