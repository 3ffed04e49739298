package middleware

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"podbroker/pkg/requestcontext"
)

// ClientMetadata extracts the client IP, raw User-Agent, and a normalized
// device description and adds them to the context for audit enrichment.
// Apply early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := r.Header.Get("User-Agent")
		ctx := requestcontext.WithClientMetadata(r.Context(), clientIPFromRequest(r), ua)
		if device := describeDevice(ua); device != "" {
			ctx = requestcontext.WithDevice(ctx, device)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// describeDevice turns a raw User-Agent into a short human-readable label
// ("Chrome 126 on Linux", "curl"). Audit trails get the label, never the raw
// string; raw UAs are noisy and occasionally contain caller-controlled junk.
func describeDevice(ua string) string {
	if ua == "" {
		return ""
	}
	parsed := useragent.New(ua)
	name, version := parsed.Browser()
	if name == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString(name)
	if version != "" {
		if idx := strings.Index(version, "."); idx > 0 {
			version = version[:idx]
		}
		b.WriteString(" ")
		b.WriteString(version)
	}
	if os := parsed.OS(); os != "" {
		b.WriteString(" on ")
		b.WriteString(os)
	}
	return b.String()
}

// clientIPFromRequest extracts the real client IP, handling proxies.
func clientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First entry is the original client.
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if addr := r.RemoteAddr; addr != "" {
		// ip:port for IPv4, [::1]:port for IPv6.
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
		return addr
	}
	return "unknown"
}
