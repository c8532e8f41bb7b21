package netaddr_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/verdantio/hydrofarm-backend/internal/netaddr"
)

func TestResolveExternal_RemoteAddr(t *testing.T) {
	addr, err := netaddr.ResolveExternal("203.0.113.5:41234", http.Header{}, true)

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if addr.String() != "203.0.113.5" {
		t.Errorf("Expected 203.0.113.5, got %s", addr)
	}
}

func TestResolveExternal_ForwardedForWins(t *testing.T) {
	header := http.Header{}
	header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	header.Set("X-Real-IP", "192.0.2.9")

	addr, err := netaddr.ResolveExternal("10.0.0.2:1234", header, true)

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if addr.String() != "198.51.100.7" {
		t.Errorf("Expected first X-Forwarded-For entry 198.51.100.7, got %s", addr)
	}
}

func TestResolveExternal_RealIPFallback(t *testing.T) {
	header := http.Header{}
	header.Set("X-Real-IP", "192.0.2.9")

	addr, err := netaddr.ResolveExternal("10.0.0.2:1234", header, true)

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if addr.String() != "192.0.2.9" {
		t.Errorf("Expected X-Real-IP 192.0.2.9, got %s", addr)
	}
}

func TestResolveExternal_PrivateAddressStrict(t *testing.T) {
	_, err := netaddr.ResolveExternal("10.0.0.1:9000", http.Header{}, true)

	var notRoutable *netaddr.NotRoutableError
	if !errors.As(err, &notRoutable) {
		t.Fatalf("Expected NotRoutableError, got %v", err)
	}
	if notRoutable.Addr.String() != "10.0.0.1" {
		t.Errorf("Expected offending address 10.0.0.1, got %s", notRoutable.Addr)
	}
}

func TestResolveExternal_PrivateAddressLenient(t *testing.T) {
	addr, err := netaddr.ResolveExternal("10.0.0.1:9000", http.Header{}, false)

	if err != nil {
		t.Fatalf("Expected private address to pass outside strict mode, got %v", err)
	}
	if addr.String() != "10.0.0.1" {
		t.Errorf("Expected 10.0.0.1, got %s", addr)
	}
}

func TestResolveExternal_IPv6Rejected(t *testing.T) {
	_, err := netaddr.ResolveExternal("[2001:db8::1]:443", http.Header{}, true)

	var unsupported *netaddr.UnsupportedFamilyError
	if !errors.As(err, &unsupported) {
		t.Fatalf("Expected UnsupportedFamilyError, got %v", err)
	}
}

func TestResolveExternal_MappedIPv4Unwrapped(t *testing.T) {
	addr, err := netaddr.ResolveExternal("[::ffff:203.0.113.5]:443", http.Header{}, true)

	if err != nil {
		t.Fatalf("Expected mapped IPv4 to resolve, got %v", err)
	}
	if addr.String() != "203.0.113.5" {
		t.Errorf("Expected unmapped 203.0.113.5, got %s", addr)
	}
}

func TestResolveExternal_GarbageRemoteAddr(t *testing.T) {
	_, err := netaddr.ResolveExternal("not-an-address", http.Header{}, true)

	if err == nil {
		t.Fatal("Expected error for unparsable remote address")
	}
}
