package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// TrustedProxies is the set of peers whose X-Forwarded-For and X-Real-IP headers are believed.
// The zero value trusts nobody, so the client IP is always the RemoteAddr host.
type TrustedProxies []netip.Prefix

func (t TrustedProxies) contains(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range t {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// RealClientIP stores the client IP in the request context. Forwarding headers are read only when
// the direct peer is a trusted proxy. X-Forwarded-For is walked right to left and the first hop
// that is not itself a trusted proxy wins; X-Real-IP is the fallback.
func RealClientIP(trusted TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithClientIP(r.Context(), trusted.clientIP(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (t TrustedProxies) clientIP(r *http.Request) string {
	peer := remoteHost(r.RemoteAddr)
	if peer == "" {
		return "unknown"
	}
	addr, err := netip.ParseAddr(peer)
	if err != nil || !t.contains(addr) {
		return peer
	}
	if ip, ok := t.fromForwardedFor(r.Header.Values("X-Forwarded-For")); ok {
		return ip
	}
	if s := strings.TrimSpace(r.Header.Get("X-Real-IP")); s != "" {
		if a, err := netip.ParseAddr(s); err == nil {
			return a.Unmap().String()
		}
	}
	return peer
}

func (t TrustedProxies) fromForwardedFor(values []string) (string, bool) {
	var hops []netip.Addr
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			a, err := netip.ParseAddr(strings.TrimSpace(part))
			if err != nil {
				// A garbled hop ends the chain we can vouch for.
				hops = hops[:0]
				continue
			}
			hops = append(hops, a.Unmap())
		}
	}
	if len(hops) == 0 {
		return "", false
	}
	for i := len(hops) - 1; i >= 0; i-- {
		if !t.contains(hops[i]) {
			return hops[i].String(), true
		}
	}
	return hops[0].String(), true
}

func remoteHost(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
