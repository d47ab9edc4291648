package net

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/lcx/pokernet/protocol"
)

// AddrFamily selects IPv4 or IPv6 for a connection.
type AddrFamily int

const (
	FamilyIPv4 AddrFamily = iota
	FamilyIPv6
)

func (f AddrFamily) String() string {
	if f == FamilyIPv6 {
		return "ipv6"
	}
	return "ipv4"
}

// ParseFamily accepts "ipv4", "ipv6", "4", "6" and the empty string (ipv4).
func ParseFamily(s string) (AddrFamily, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ipv4", "ip4", "4":
		return FamilyIPv4, nil
	case "ipv6", "ip6", "6":
		return FamilyIPv6, nil
	}
	return FamilyIPv4, newError(protocol.ErrSockInvalidAddrFamily, fmt.Errorf("unknown address family %q", s))
}

func (f AddrFamily) network() string {
	if f == FamilyIPv6 {
		return "ip6"
	}
	return "ip4"
}

// Matches reports whether a belongs to the family.
func (f AddrFamily) Matches(a netip.Addr) bool {
	if f == FamilyIPv6 {
		return a.Is6() && !a.Is4In6()
	}
	return a.Is4() || a.Is4In6()
}

// ParseNumeric reports whether host is an address literal. A literal of the
// other family is an ErrSockInvalidAddrFamily error.
func ParseNumeric(host string, family AddrFamily) (netip.Addr, bool, error) {
	a, err := netip.ParseAddr(strings.Trim(host, "[]"))
	if err != nil {
		return netip.Addr{}, false, nil
	}
	if !family.Matches(a) {
		return netip.Addr{}, true, newError(protocol.ErrSockInvalidAddrFamily,
			fmt.Errorf("%s is not an %s address", host, family))
	}
	return a.Unmap(), true, nil
}

// ParsePort validates a textual or numeric port.
func ParsePort(port string) (uint16, error) {
	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil || p == 0 {
		return 0, newError(protocol.ErrSockInvalidPort, fmt.Errorf("invalid port %q", port))
	}
	return uint16(p), nil
}
