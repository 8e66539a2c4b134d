package httpapi

import (
	"net"
	"net/http"
	"strings"
)

// clientKey resolves the rate-limit identity for a request. A claimed
// session id wins over the IP so one shared NAT does not throttle
// everyone behind it; clients without a session fall back to their IP.
func clientKey(r *http.Request, sessionID string) string {
	if sessionID == "" {
		sessionID = r.Header.Get("X-Session-Id")
	}
	if sessionID == "" {
		sessionID = r.URL.Query().Get("sessionId")
	}
	if sessionID != "" {
		return "session_" + sessionID
	}
	return "ip_" + clientIP(r)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
