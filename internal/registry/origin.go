package registry

import (
	"net"
	"strings"
)

// NormalizeOrigin derives the network-origin identifier used for
// network-mode grouping. The first X-Forwarded-For entry wins when present
// (devices on one network share a public address behind a cloud deploy);
// otherwise the connection's remote address is used. Loopback variants
// collapse to one canonical value and IPv4-mapped IPv6 prefixes are
// stripped.
func NormalizeOrigin(remoteAddr, forwardedFor string) string {
	ip := remoteAddr
	if forwardedFor != "" {
		ip = strings.TrimSpace(strings.Split(forwardedFor, ",")[0])
	} else if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		ip = host
	}

	if ip == "::1" || ip == "127.0.0.1" || ip == "::ffff:127.0.0.1" {
		return "localhost"
	}
	return strings.TrimPrefix(ip, "::ffff:")
}
