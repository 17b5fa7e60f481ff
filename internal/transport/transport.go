// Package transport provides the connection plumbing under fortuned's
// capabilities.  Dialers open client connections (plain TCP, through an
// SSH gateway, or as a channel on a fortune server's SSH front-end);
// SSHListener turns inbound SSH session channels into net.Conns for
// the listen mode.  What happens over a connection is the capability
// layer's job.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound network connections.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}
