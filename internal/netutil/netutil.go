package netutil

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/rudransh-shrivastava/p2p-share/internal/config"
)

var ErrInvalidIP = errors.New("invalid IPv4 or IPv6 address")

// PeerAddress is a validated IP literal and port. The zero value is invalid.
type PeerAddress struct {
	ip   net.IP
	port int
}

// ParsePeerAddress validates host as an IPv4/IPv6 literal (hostnames are not
// resolved) and port against the configured range.
func ParsePeerAddress(host string, port int) (PeerAddress, error) {
	ip := net.ParseIP(host)
	if ip == nil {
		return PeerAddress{}, fmt.Errorf("%w: %q", ErrInvalidIP, host)
	}
	if err := config.ValidatePort(port); err != nil {
		return PeerAddress{}, err
	}
	return PeerAddress{ip: ip, port: port}, nil
}

func (a PeerAddress) IP() net.IP { return a.ip }

func (a PeerAddress) Port() int { return a.port }

// WithPort returns a copy of a pointing at another port on the same host.
func (a PeerAddress) WithPort(port int) (PeerAddress, error) {
	return ParsePeerAddress(a.ip.String(), port)
}

// String renders host:port, bracketing IPv6 literals.
func (a PeerAddress) String() string {
	if a.ip == nil {
		return ""
	}
	return net.JoinHostPort(a.ip.String(), strconv.Itoa(a.port))
}

func IsValidIP(s string) bool {
	return net.ParseIP(s) != nil
}

// LocalIP returns the address other hosts on the network can reach us at.
// No packet is sent: dialing UDP only selects the outbound interface.
func LocalIP() string {
	if conn, err := net.Dial("udp", "8.8.8.8:80"); err == nil {
		defer func() { _ = conn.Close() }()
		if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
			return addr.IP.String()
		}
	}

	if host, err := os.Hostname(); err == nil {
		if addrs, err := net.LookupIP(host); err == nil {
			for _, ip := range addrs {
				if v4 := ip.To4(); v4 != nil && !v4.IsLoopback() {
					return v4.String()
				}
			}
		}
	}
	return "127.0.0.1"
}
