package httputil

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/portal/pkg/contextkeys"
)

// ParsePathInt64 extracts and parses an int64 path parameter
func ParsePathInt64(r *http.Request, key string) (int64, error) {
	str := mux.Vars(r)[key]
	if str == "" {
		return 0, fmt.Errorf("missing path parameter: %s", key)
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %s", key, str)
	}
	return val, nil
}

// ParsePathInt64OrError extracts an int64 path parameter and writes error on failure
func ParsePathInt64OrError(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	val, err := ParsePathInt64(r, key)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return 0, false
	}
	return val, true
}

// FormOptional returns a pointer to the trimmed form value, or nil when the
// field is absent or blank
func FormOptional(r *http.Request, key string) *string {
	val := strings.TrimSpace(r.FormValue(key))
	if val == "" {
		return nil
	}
	return &val
}

// FormList splits a form field on commas and whitespace. Repeated fields are
// merged. Nil is returned when nothing remains.
func FormList(r *http.Request, key string) []string {
	if err := r.ParseForm(); err != nil {
		return nil
	}
	var out []string
	for _, raw := range r.Form[key] {
		out = append(out, strings.FieldsFunc(raw, func(c rune) bool {
			return c == ',' || c == ' ' || c == '\t' || c == '\n' || c == '\r'
		})...)
	}
	return out
}

// ClientIP returns the address ClientIPMiddleware resolved for r, or the host
// part of RemoteAddr when the middleware did not run
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(contextkeys.ClientIPKey).(string); ok && ip != "" {
		return ip
	}
	return peerHost(r)
}

func peerHost(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
