package httpx

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP extracts the caller's IP address from a request. Proxy headers
// are trusted in priority order: X-Forwarded-For (first hop), then
// X-Real-IP, then the socket address.
//
// The result is used for audit logging and rate-limit keying only, never for
// authorization decisions.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
