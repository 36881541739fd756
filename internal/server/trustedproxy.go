package server

import (
	"net"
	"net/http"
	"strings"
)

// TrustedProxies decides when forwarded-for headers may be believed.
// Client IPs feed the rate limiter keys and the access log, so a header
// from an untrusted peer is never used.
type TrustedProxies struct {
	networks []*net.IPNet
}

// NewTrustedProxies creates a TrustedProxies from a list of CIDR strings.
// Bare IPs are accepted as /32 or /128; anything unparseable is ignored.
func NewTrustedProxies(cidrs []string) *TrustedProxies {
	tp := &TrustedProxies{}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			ip := net.ParseIP(cidr)
			if ip != nil {
				if ip.To4() != nil {
					_, network, _ = net.ParseCIDR(ip.String() + "/32")
				} else {
					_, network, _ = net.ParseCIDR(ip.String() + "/128")
				}
			}
		}
		if network != nil {
			tp.networks = append(tp.networks, network)
		}
	}
	return tp
}

// IsTrusted returns true if the IP is within any trusted proxy range.
func (tp *TrustedProxies) IsTrusted(ip net.IP) bool {
	for _, network := range tp.networks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// GetClientIP extracts the real client IP from a request. Forwarding
// headers count only when the direct peer is a trusted proxy; otherwise
// the connection address wins.
func (tp *TrustedProxies) GetClientIP(r *http.Request) net.IP {
	directIP := parseRemoteAddr(r.RemoteAddr)
	if directIP == nil || !tp.IsTrusted(directIP) {
		return directIP
	}

	// X-Forwarded-For lists "client, proxy1, proxy2"; the first entry
	// is the original client
	xff := r.Header.Get("X-Forwarded-For")
	for _, part := range strings.Split(xff, ",") {
		if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
			return ip
		}
	}

	// Some proxies send X-Real-IP instead
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
			return ip
		}
	}

	return directIP
}

// GetClientIPString returns the client IP as a string for logging and
// rate limiting.
func (tp *TrustedProxies) GetClientIPString(r *http.Request) string {
	ip := tp.GetClientIP(r)
	if ip == nil {
		return "unknown"
	}
	return ip.String()
}

// parseRemoteAddr extracts the IP from net/http RemoteAddr format,
// "ip:port" or "[ip]:port" for IPv6.
func parseRemoteAddr(addr string) net.IP {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		// Maybe it's a bare IP
		return net.ParseIP(addr)
	}
	return net.ParseIP(host)
}
