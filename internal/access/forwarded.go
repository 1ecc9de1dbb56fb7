package access

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// TrustedForwarding rewrites the caller address from the X-Forwarded-For,
// X-Real-IP or True-Client-IP headers only when the connection comes from a
// proxy listed in trustedProxies. Every other request keeps its socket
// address, so the allow-list cannot be bypassed with a forged header.
func TrustedForwarding(source ConfigSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		forwarded := middleware.RealIP(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if source.GetConfig().TrustsProxy(HostOnly(r.RemoteAddr)) {
				forwarded.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
