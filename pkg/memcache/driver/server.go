package driver

import (
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
)

// DefaultPort is the memcached port assumed when a configured server omits one.
const DefaultPort = 11211

// Server is a cache server endpoint.
type Server struct {
	Host string
	Port int
}

// Addr returns the server as "host:port".
func (s Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// String implements fmt.Stringer.
func (s Server) String() string {
	return s.Addr()
}

// ParseServer parses a "host:port" string. A missing port defaults to
// DefaultPort.
func ParseServer(s string) (Server, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Server{}, fmt.Errorf("parse server: empty address")
	}

	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		// No port given ("cache1" or "[::1]").
		var addrErr *net.AddrError
		if errors.As(err, &addrErr) && addrErr.Err == "missing port in address" {
			return Server{Host: strings.Trim(s, "[]"), Port: DefaultPort}, nil
		}
		return Server{}, fmt.Errorf("parse server %q: %w", s, err)
	}
	if host == "" {
		return Server{}, fmt.Errorf("parse server %q: empty host", s)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Server{}, fmt.Errorf("parse server %q: invalid port %q", s, portStr)
	}

	return Server{Host: host, Port: port}, nil
}

// ParseServers converts the configured "host:port" -> status mapping into an
// ordered server list. The status values are reserved and ignored, so any
// value type is accepted. Servers are sorted by their configured address so
// the order is deterministic.
func ParseServers[V any](configured map[string]V) ([]Server, error) {
	addrs := make([]string, 0, len(configured))
	for addr := range configured {
		addrs = append(addrs, addr)
	}
	slices.Sort(addrs)

	servers := make([]Server, 0, len(addrs))
	for _, addr := range addrs {
		server, err := ParseServer(addr)
		if err != nil {
			return nil, err
		}
		servers = append(servers, server)
	}
	return servers, nil
}
