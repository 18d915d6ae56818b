// Package addr implements the pure address/priority arithmetic of
// spec §4.1: every node can compute any peer's priority and the
// segment's broadcast address from an IPv4 literal and netmask alone,
// with no value ever carried on the wire.
package addr

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ValidIPv4 reports whether s is four dotted octets in 0..255, with
// no leading zeros ambiguity left to net.ParseIP's more permissive
// grammar.
func ValidIPv4(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" || len(p) > 3 {
			return false
		}
		if len(p) > 1 && p[0] == '0' {
			return false
		}
		for _, c := range p {
			if c < '0' || c > '9' {
				return false
			}
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return false
		}
	}
	return true
}

// toUint32 interprets a dotted-quad IPv4 literal as a big-endian
// unsigned integer.
func toUint32(ip net.IP) uint32 {
	v4 := ip.To4()
	return binary.BigEndian.Uint32(v4)
}

func fromUint32(v uint32) net.IP {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return net.IP(b)
}

// Priority returns the host-bits of addr under mask, read big-endian.
// Higher wins the Bully election (spec §3, §4.1).
func Priority(address string, mask string) (uint32, error) {
	if !ValidIPv4(address) {
		return 0, fmt.Errorf("addr: invalid ipv4 address %q", address)
	}
	if !ValidIPv4(mask) {
		return 0, fmt.Errorf("addr: invalid ipv4 netmask %q", mask)
	}
	a := toUint32(net.ParseIP(address))
	m := toUint32(net.ParseIP(mask))
	return a &^ m, nil
}

// Broadcast returns addr | ~mask, the segment's broadcast address.
func Broadcast(address string, mask string) (string, error) {
	if !ValidIPv4(address) {
		return "", fmt.Errorf("addr: invalid ipv4 address %q", address)
	}
	if !ValidIPv4(mask) {
		return "", fmt.Errorf("addr: invalid ipv4 netmask %q", mask)
	}
	a := toUint32(net.ParseIP(address))
	m := toUint32(net.ParseIP(mask))
	return fromUint32(a | ^m).String(), nil
}

// LocalInterface identifies the chosen network interface: its IPv4
// address and dotted-quad netmask.
type LocalInterface struct {
	Address string
	Netmask string
}

// DiscoverLocalInterface picks the first non-loopback IPv4-configured
// interface on the host. Callers that run on a multi-homed host
// should set the address explicitly instead of relying on this
// heuristic.
func DiscoverLocalInterface() (LocalInterface, error) {
	ifaces, err := net.InterfaceAddrs()
	if err != nil {
		return LocalInterface{}, fmt.Errorf("addr: enumerating interfaces: %w", err)
	}
	for _, a := range ifaces {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		v4 := ipNet.IP.To4()
		if v4 == nil {
			continue
		}
		mask := net.IP(ipNet.Mask).String()
		return LocalInterface{Address: v4.String(), Netmask: mask}, nil
	}
	return LocalInterface{}, fmt.Errorf("addr: no non-loopback ipv4 interface found")
}
