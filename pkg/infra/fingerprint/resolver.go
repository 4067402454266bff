package fingerprint

import (
	"net"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ClientIPHeaders are consulted in order; the CDN header wins over the
// generic forwarding chain.
var ClientIPHeaders = []string{
	"CF-Connecting-IP",
	"True-Client-IP",
	"X-Forwarded-For",
	"X-Real-IP",
	"X-Forwarded",
	"X-Cluster-Client-IP",
	"Forwarded-For",
	"Forwarded",
}

// ClientIP resolves the originating address of the request behind c.
func ClientIP(c *fiber.Ctx) string {
	peer := ""
	if ip := c.Context().RemoteIP(); ip != nil {
		peer = ip.String()
	}
	return ResolveIP(c.Get, peer)
}

// ResolveIP returns the first syntactically valid address found in the
// prioritized header list, falling back to peer. Invalid header values are
// skipped. It never fails.
func ResolveIP(get func(key string, defaultValue ...string) string, peer string) string {
	for _, header := range ClientIPHeaders {
		value := strings.TrimSpace(get(header))
		if value == "" {
			continue
		}
		if ip := parseCandidate(value); ip != "" {
			return ip
		}
	}
	return peer
}

func parseCandidate(value string) string {
	first := strings.TrimSpace(strings.Split(value, ",")[0])
	if first == "" {
		return ""
	}
	lower := strings.ToLower(first)
	if idx := strings.Index(lower, "for="); idx >= 0 {
		first = first[idx+len("for="):]
		if semi := strings.IndexByte(first, ';'); semi >= 0 {
			first = first[:semi]
		}
		first = strings.Trim(strings.TrimSpace(first), `"`)
	}
	if ip := net.ParseIP(strings.Trim(first, "[]")); ip != nil {
		return ip.String()
	}
	if host, _, err := net.SplitHostPort(first); err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip.String()
		}
	}
	return ""
}
