// Package metadata captures client network details for receipts and logs.
package metadata

import (
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"visaintake/pkg/requestcontext"
)

// ClientMetadata stores the client IP and User-Agent on the request context.
// Apply it before any handler that records submission receipts.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r), r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest prefers proxy headers, then the connection address.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// Platform summarizes a User-Agent as "<browser> on <os>" for receipts.
// Bots and empty agents yield their raw form.
func Platform(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return ""
	}
	ua := useragent.New(userAgent)
	if ua.Bot() {
		name, _ := ua.Browser()
		return "bot " + name
	}
	browser, _ := ua.Browser()
	os := ua.OS()
	switch {
	case browser != "" && os != "":
		return browser + " on " + os
	case browser != "":
		return browser
	case os != "":
		return os
	}
	return userAgent
}
