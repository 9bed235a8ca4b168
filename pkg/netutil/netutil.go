// Package netutil parses CIDR allowlists and resolves the client address of a
// request without trusting forwarding headers from arbitrary peers.
package netutil

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ParsePrefixes parses CIDRs such as "10.0.0.0/8". A bare address is accepted
// as a single-host prefix.
func ParsePrefixes(cidrs []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(cidrs))
	for _, raw := range cidrs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			addr, err := netip.ParseAddr(raw)
			if err != nil {
				return nil, fmt.Errorf("parse address %q: %w", raw, err)
			}
			out = append(out, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("parse cidr %q: %w", raw, err)
		}
		out = append(out, p.Masked())
	}
	return out, nil
}

// ParseAddr parses an address that may carry a port ("10.0.0.7:5123",
// "[::1]:80") and unmaps IPv4-in-IPv6 forms.
func ParseAddr(raw string) (netip.Addr, bool) {
	raw = strings.TrimSpace(raw)
	if host, _, err := net.SplitHostPort(raw); err == nil {
		raw = host
	}
	addr, err := netip.ParseAddr(strings.Trim(raw, "[]"))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap().WithZone(""), true
}

// Contains reports whether raw parses as an address inside any prefix.
// Unparseable input is never contained.
func Contains(prefixes []netip.Prefix, raw string) bool {
	addr, ok := ParseAddr(raw)
	if !ok {
		return false
	}
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the address of the client that sent r. X-Forwarded-For is
// honoured only when the direct peer is one of trustedProxies; the chain is
// then walked right to left and the first hop outside trustedProxies wins.
func ClientIP(r *http.Request, trustedProxies []netip.Prefix) string {
	peer, ok := ParseAddr(r.RemoteAddr)
	if !ok {
		return r.RemoteAddr
	}
	if !containsAddr(trustedProxies, peer) {
		return peer.String()
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop, ok := ParseAddr(hops[i])
		if !ok {
			break
		}
		if !containsAddr(trustedProxies, hop) {
			return hop.String()
		}
	}
	return peer.String()
}

func containsAddr(prefixes []netip.Prefix, addr netip.Addr) bool {
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
