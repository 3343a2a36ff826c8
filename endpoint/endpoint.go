package endpoint

import (
	"fmt"
	"net"
	"strconv"
)

// --------------------------------------------------------------------------
// Endpoint type
// --------------------------------------------------------------------------

// Endpoint is a validated host/port pair. The host may be an IP literal or a
// hostname; Resolve turns a hostname into a concrete address.
type Endpoint struct {
	Host string
	Port int
}

// String returns the endpoint in host:port form
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// --------------------------------------------------------------------------
// Parsing and resolution
// --------------------------------------------------------------------------

// Parse splits and validates an address:port string. The host part is kept
// verbatim; no name resolution happens here.
func Parse(addr string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid address %q: %v", addr, err)
	}
	if host == "" {
		return Endpoint{}, fmt.Errorf("invalid address %q: missing host", addr)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid port %q: %v", portStr, err)
	}
	if port < 1 || port > 65535 {
		return Endpoint{}, fmt.Errorf("port %d out of range (1-65535)", port)
	}

	return Endpoint{Host: host, Port: port}, nil
}

// Resolve parses addr and resolves a hostname to a concrete IP address.
// IP literals pass through unchanged.
func Resolve(addr string) (Endpoint, error) {
	ep, err := Parse(addr)
	if err != nil {
		return Endpoint{}, err
	}

	if ip := net.ParseIP(ep.Host); ip != nil {
		return ep, nil
	}

	tcpAddr, err := net.ResolveTCPAddr("tcp", ep.String())
	if err != nil {
		return Endpoint{}, fmt.Errorf("failed to resolve %q: %v", ep.Host, err)
	}

	return Endpoint{Host: tcpAddr.IP.String(), Port: tcpAddr.Port}, nil
}
