package opshttp

import (
	"net"
	"net/http"
	"net/netip"

	"github.com/keithlinneman/linnemanlabs-gate/internal/log"
)

// requireNonPublicNetwork rejects peers outside loopback, private, and link-local ranges.
// The ops port exposes pprof and window occupancy, it must never answer the internet
// even if a security group is misconfigured.
func requireNonPublicNetwork(L log.Logger, next http.Handler) http.Handler {
	if L == nil {
		L = log.Nop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			L.Warn(r.Context(), "ops request rejected: bad remote addr")
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		addr, err := netip.ParseAddr(host)
		if err != nil {
			L.Warn(r.Context(), "ops request rejected: unparseable peer ip")
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		// ::ffff:a.b.c.d is judged by its IPv4 form
		addr = addr.Unmap()
		if !addr.IsLoopback() && !addr.IsPrivate() && !addr.IsLinkLocalUnicast() {
			L.Warn(r.Context(), "ops request rejected: public peer", "peer", addr.String(), "url.path", r.URL.Path)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
