// Package tunnel holds the SSH client side of fortuned, backed by
// golang.org/x/crypto/ssh: a gateway tunnel for reaching a fortune
// server behind a bastion, and session channels for talking to a
// fortune server's own SSH front-end.
package tunnel

import (
	"context"
	"net"
)

// Tunnel is one SSH connection that fortune traffic can ride on.
type Tunnel interface {
	// Connect dials the SSH server and authenticates.
	Connect(ctx context.Context) error

	// Dial reaches address through the server with a direct-tcpip
	// channel.  Used when the server is a gateway.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// OpenSession opens a shell session channel on the server itself.
	// Used when the server is a fortune server with an SSH front-end.
	OpenSession(ctx context.Context) (net.Conn, error)

	// Close tears down the connection and every channel on it.
	Close() error

	// IsAlive reports whether the connection is still up.
	IsAlive() bool
}
