package network

import (
	"fmt"
	"net"
	"strings"

	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
)

// ParseAddress accepts either host:port or a multiaddr such as
// /ip4/127.0.0.1/tcp/9451 and returns the network and address for net.Dial
// and net.Listen
func ParseAddress(addr string) (network, address string, err error) {
	if strings.HasPrefix(addr, "/") {
		m, err := ma.NewMultiaddr(addr)
		if err != nil {
			return "", "", fmt.Errorf("invalid multiaddr %q: %w", addr, err)
		}
		network, address, err = manet.DialArgs(m)
		if err != nil {
			return "", "", fmt.Errorf("unsupported multiaddr %q: %w", addr, err)
		}
		return network, address, nil
	}

	if _, _, err := net.SplitHostPort(addr); err != nil {
		return "", "", fmt.Errorf("invalid address %q: %w", addr, err)
	}
	return "tcp", addr, nil
}

// JoinHostPort builds a host:port address
func JoinHostPort(host string, port int) string {
	return net.JoinHostPort(host, fmt.Sprint(port))
}
