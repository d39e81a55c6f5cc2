package httputil

import (
	"fmt"
	"net/http"
	"net/netip"
	"strings"

	"github.com/platinummonkey/portal/pkg/contextkeys"
)

// TrustedProxies lists the networks whose forwarding headers are believed.
// An empty list trusts nobody, so the caller is always the direct peer.
type TrustedProxies []netip.Prefix

// ParseTrustedProxies parses a comma separated list of addresses and CIDRs
func ParseTrustedProxies(list string) (TrustedProxies, error) {
	var proxies TrustedProxies
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if strings.Contains(item, "/") {
			prefix, err := netip.ParsePrefix(item)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", item, err)
			}
			proxies = append(proxies, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", item, err)
		}
		proxies = append(proxies, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return proxies, nil
}

func (tp TrustedProxies) trusts(ip string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range tp {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// Resolve returns the caller address for r. Forwarding headers count only
// when the direct peer is trusted; the client is then the rightmost
// X-Forwarded-For hop that is not itself a trusted proxy.
func (tp TrustedProxies) Resolve(r *http.Request) string {
	peer := peerHost(r)
	if !tp.trusts(peer) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop != "" && !tp.trusts(hop) {
				return hop
			}
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}

// ClientIPMiddleware resolves the caller address once per request and stores
// it for ClientIP
func ClientIPMiddleware(tp TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := contextkeys.WithClientIP(r.Context(), tp.Resolve(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
