package util

import (
	"fmt"
	"net"
	"strconv"
)

// ResolveAddr builds the host:port a client dials.  With noDNS the
// host must already be a literal IP; brackets around an IPv6 literal
// are accepted.
func ResolveAddr(host string, port int, noDNS bool) (string, error) {
	if len(host) > 1 && host[0] == '[' && host[len(host)-1] == ']' {
		host = host[1 : len(host)-1]
	}
	if noDNS && net.ParseIP(host) == nil {
		return "", fmt.Errorf("cannot parse %q as an IP address (DNS disabled with -n)", host)
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

// FormatAddr returns "host:port".  An empty host yields ":port", which
// listens on every interface.
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// PeerName is the label used for a remote endpoint in log lines, or
// "-" when the address is unknown.
func PeerName(addr net.Addr) string {
	if addr == nil {
		return "-"
	}
	if s := addr.String(); s != "" {
		return s
	}
	return "-"
}
