// Package utils holds small HTTP helpers shared by handlers, middleware and
// services: client IP extraction, JSON responses with request IDs,
// pagination and retry with backoff.
package utils

import (
	"net"
	"net/http"
	"strings"
)

// ExtractClientIP extracts the real client IP address from an HTTP request.
// Handles various proxy headers and IPv6 addresses.
//
// Priority order:
//  1. X-Forwarded-For header (first IP in comma-separated list)
//  2. X-Real-IP header
//  3. RemoteAddr (with port stripped)
//
// Security note: X-Forwarded-For can be spoofed by clients. Only trust it
// behind a reverse proxy that overwrites the header.
func ExtractClientIP(r *http.Request) string {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// IsPrivateIP reports whether ip is loopback, link-local or in a private
// range. Geo-IP lookups are pointless for these addresses.
func IsPrivateIP(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return parsed.IsLoopback() ||
		parsed.IsPrivate() ||
		parsed.IsLinkLocalUnicast() ||
		parsed.IsUnspecified()
}
