package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// IPAllowlist returns middleware that restricts specific paths to a fixed
// set of caller IPs. rules maps an exact request path to the IPs permitted
// to call it; paths without a rule, and rules with an empty IP list, pass
// everyone through.
func IPAllowlist(rules map[string][]string, logger *slog.Logger) func(http.Handler) http.Handler {
	compiled := make(map[string]map[string]bool, len(rules))
	for path, ips := range rules {
		if len(ips) == 0 {
			continue
		}
		set := make(map[string]bool, len(ips))
		for _, ip := range ips {
			set[strings.TrimSpace(ip)] = true
		}
		compiled[path] = set
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, restricted := compiled[r.URL.Path]
			if !restricted {
				next.ServeHTTP(w, r)
				return
			}

			ip := ClientIP(r)
			if !allowed[ip] {
				logger.WarnContext(r.Context(), "request from unlisted ip",
					slog.String("path", r.URL.Path),
					slog.String("ip", ip),
				)
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"error":"forbidden"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP resolves the caller's IP, honouring X-Forwarded-For and X-Real-IP
// set by the reverse proxy before falling back to the socket address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		// The first entry is the original client.
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}

	if real := r.Header.Get("X-Real-IP"); real != "" {
		return strings.TrimSpace(real)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
