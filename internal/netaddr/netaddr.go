// Package netaddr resolves a request's best-effort external IPv4 address.
// The registration protocol uses shared external addresses as a
// same-local-network heuristic, so only public IPv4 addresses are accepted
// in strict mode.
package netaddr

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// NotRoutableError is returned when the resolved address is private,
// loopback or unspecified and the resolver runs in strict mode.
type NotRoutableError struct {
	Addr netip.Addr
}

func (e *NotRoutableError) Error() string {
	return fmt.Sprintf("external IP address is not routable: %s", e.Addr)
}

// UnsupportedFamilyError is returned for IPv6 addresses. The discovery
// heuristic only reasons about shared IPv4 addresses.
type UnsupportedFamilyError struct {
	Addr netip.Addr
}

func (e *UnsupportedFamilyError) Error() string {
	return fmt.Sprintf("external IPv6 address is not supported: %s", e.Addr)
}

// ResolveExternal extracts the requester's external address from proxy
// headers, falling back to the transport remote address. It has no side
// effects.
func ResolveExternal(remoteAddr string, header http.Header, strict bool) (netip.Addr, error) {
	addr, err := clientAddr(remoteAddr, header)
	if err != nil {
		return netip.Addr{}, err
	}
	if addr.Is4In6() {
		addr = addr.Unmap()
	}
	if strict && !isRoutable(addr) {
		return netip.Addr{}, &NotRoutableError{Addr: addr}
	}
	if addr.Is6() {
		return netip.Addr{}, &UnsupportedFamilyError{Addr: addr}
	}
	return addr, nil
}

func clientAddr(remoteAddr string, header http.Header) (netip.Addr, error) {
	if fwd := header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if addr, err := netip.ParseAddr(first); err == nil {
			return addr, nil
		}
	}
	if real := header.Get("X-Real-IP"); real != "" {
		if addr, err := netip.ParseAddr(strings.TrimSpace(real)); err == nil {
			return addr, nil
		}
	}
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("failed to parse remote address %q: %w", remoteAddr, err)
	}
	return addr, nil
}

func isRoutable(addr netip.Addr) bool {
	return addr.IsValid() &&
		!addr.IsLoopback() &&
		!addr.IsPrivate() &&
		!addr.IsLinkLocalUnicast() &&
		!addr.IsLinkLocalMulticast() &&
		!addr.IsUnspecified()
}
