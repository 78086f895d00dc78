// This file is part of overlay, a peer-to-peer overlay network library.
// Copyright (C) 2026 The overlay authors.
//
// overlay is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// overlay is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later

// Package addr implements node addressing: a Node is identified by an
// IPv4 address and a port, parsed from "host:port" strings and
// resolved via DNS when the host is not already a literal IP.
package addr

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/miekg/dns"
)

// Error codes for address parsing and resolution.
var (
	ErrAddrFormat     = errors.New("address must be in host:port form")
	ErrAddrPort       = errors.New("invalid port number")
	ErrAddrNoIPv4     = errors.New("host did not resolve to an IPv4 address")
	ErrAddrResolution = errors.New("DNS resolution failed")
)

// Node is the identity of a peer on the overlay: an IPv4 address and
// a TCP port. The address is stored as a fixed-size array (not
// net.IP, which is a slice) so that Node stays comparable and can be
// used directly as a map key throughout the peer connection tables.
type Node struct {
	ip   [4]byte
	Port uint16
}

// New builds a Node from an already-resolved IPv4 address and port.
// It panics if ip does not carry a valid IPv4 address, which would
// indicate a bug in a caller rather than a recoverable runtime error.
func New(ip net.IP, port uint16) Node {
	v4 := ip.To4()
	if v4 == nil {
		panic("addr.New: not an IPv4 address: " + ip.String())
	}
	var n Node
	copy(n.ip[:], v4)
	n.Port = port
	return n
}

// IP returns the node's address as a net.IP.
func (n Node) IP() net.IP {
	return net.IP(n.ip[:])
}

// Parse turns "host:port" into a Node. The host is resolved to an
// IPv4 address; if that address is loopback, the local hostname is
// re-resolved in search of a non-loopback IPv4 address (so that a
// node that names itself "localhost" still advertises a reachable
// address to remote peers).
func Parse(s string) (Node, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Node{}, fmt.Errorf("%w: %q", ErrAddrFormat, s)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Node{}, fmt.Errorf("%w: %q", ErrAddrPort, portStr)
	}
	ip, err := resolveIPv4(host)
	if err != nil {
		return Node{}, err
	}
	if ip.IsLoopback() {
		if alt, err := resolveLocalNonLoopback(); err == nil {
			ip = alt
		}
	}
	return New(ip, uint16(port)), nil
}

// resolveIPv4 resolves host to an IPv4 address. Literal IPs are used
// directly; names fall back to DNS A-record lookups via miekg/dns so
// that resolution goes through a client under this package's control
// (rather than opaquely through the OS resolver), with net.LookupIP
// as a local-hosts-file-aware fallback.
func resolveIPv4(host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
		return nil, ErrAddrNoIPv4
	}
	if ip, err := queryA(host); err == nil {
		return ip, nil
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrAddrResolution, host, err)
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
	}
	return nil, ErrAddrNoIPv4
}

// queryA performs a single A-record query against the system's
// configured resolvers.
func queryA(host string) (net.IP, error) {
	cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(cfg.Servers) == 0 {
		return nil, ErrAddrResolution
	}
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)
	m.RecursionDesired = true
	c := new(dns.Client)
	server := net.JoinHostPort(cfg.Servers[0], cfg.Port)
	resp, _, err := c.Exchange(m, server)
	if err != nil || resp == nil {
		return nil, ErrAddrResolution
	}
	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok && a.A.To4() != nil {
			return a.A.To4(), nil
		}
	}
	return nil, ErrAddrNoIPv4
}

// resolveLocalNonLoopback resolves the local hostname and returns the
// first non-loopback IPv4 address found, if any.
func resolveLocalNonLoopback() (net.IP, error) {
	hostname, err := osHostname()
	if err != nil {
		return nil, err
	}
	ips, err := net.LookupIP(hostname)
	if err != nil {
		return nil, err
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil && !v4.IsLoopback() {
			return v4, nil
		}
	}
	return nil, ErrAddrNoIPv4
}

// Equals reports whether two Nodes denote the same (IP, port) pair.
// Node is already comparable via ==; Equals exists for readability at
// call sites and as a stable API independent of the internal layout.
func (n Node) Equals(o Node) bool {
	return n == o
}

// String returns the canonical "a.b.c.d:port" textual form.
func (n Node) String() string {
	return net.JoinHostPort(n.IP().String(), strconv.Itoa(int(n.Port)))
}

// IsLocal reports whether n refers to this process: any configured
// local IPv4 interface address combined with the matching port.
func (n Node) IsLocal(localIPs []net.IP, listenPort uint16) bool {
	if n.Port != listenPort {
		return false
	}
	self := n.IP()
	for _, ip := range localIPs {
		if ip.Equal(self) {
			return true
		}
	}
	return false
}

// LocalIPv4Addresses enumerates the IPv4 addresses of all local
// network interfaces, used by IsLocal to detect self-sends.
func LocalIPv4Addresses() ([]net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	var out []net.IP
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if v4 := ip.To4(); v4 != nil {
			out = append(out, v4)
		}
	}
	return out, nil
}

// osHostname is a seam over os.Hostname so tests can stub it.
var osHostname = os.Hostname
