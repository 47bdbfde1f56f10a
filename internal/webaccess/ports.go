package webaccess

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// ErrNoPort is returned when every port in the configured range is taken.
var ErrNoPort = errors.New("no available port")

// Listen binds the first free TCP port in [start, end] on host, trying
// ports in ascending order. The listener is returned already bound so the
// port cannot be lost between probing and serving.
func Listen(host string, start, end int) (net.Listener, error) {
	for port := start; port <= end; port++ {
		l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err == nil {
			return l, nil
		}
	}
	return nil, fmt.Errorf("%w in range %d-%d", ErrNoPort, start, end)
}

// lanIP returns the first non-loopback IPv4 address of this machine, which
// is what a phone on the same network would type.
func lanIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "0.0.0.0"
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return "0.0.0.0"
}
