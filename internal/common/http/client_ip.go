package http

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ClientIPResolver picks the address a request is attributed to. Forwarding
// headers are only read when the direct peer is a trusted proxy.
type ClientIPResolver struct {
	trusted []*net.IPNet
}

// NewClientIPResolver accepts plain IPs and CIDR ranges. With no entries every
// request is keyed on its socket address.
func NewClientIPResolver(trustedProxies []string) (*ClientIPResolver, error) {
	resolver := &ClientIPResolver{}
	for _, entry := range trustedProxies {
		network, err := parseProxy(entry)
		if err != nil {
			return nil, err
		}
		resolver.trusted = append(resolver.trusted, network)
	}
	return resolver, nil
}

func parseProxy(entry string) (*net.IPNet, error) {
	entry = strings.TrimSpace(entry)
	if strings.Contains(entry, "/") {
		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		return network, nil
	}
	ip := net.ParseIP(entry)
	if ip == nil {
		return nil, fmt.Errorf("invalid trusted proxy %q", entry)
	}
	bits := 8 * net.IPv6len
	if v4 := ip.To4(); v4 != nil {
		ip, bits = v4, 8*net.IPv4len
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
}

func (cr *ClientIPResolver) isTrusted(raw string) bool {
	ip := net.ParseIP(raw)
	if ip == nil {
		return false
	}
	for _, network := range cr.trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP walks X-Forwarded-For from the right and returns the first hop
// that is not a trusted proxy.
func (cr *ClientIPResolver) ClientIP(r *http.Request) string {
	peer := remoteHost(r.RemoteAddr)
	if cr == nil || !cr.isTrusted(peer) {
		return peer
	}

	hops := forwardedHops(r.Header.Values("X-Forwarded-For"))
	for i := len(hops) - 1; i >= 0; i-- {
		if !cr.isTrusted(hops[i]) {
			return hops[i]
		}
	}
	if len(hops) > 0 {
		return hops[0]
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(realIP) != nil {
		return realIP
	}
	return peer
}

func forwardedHops(values []string) []string {
	var hops []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); net.ParseIP(part) != nil {
				hops = append(hops, part)
			}
		}
	}
	return hops
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
