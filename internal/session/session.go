// Package session represents a single connection lifecycle, binding a
// network connection with its output endpoint and a logger named after
// the peer.
//
// Capabilities operate on sessions rather than raw connections, so the
// same capability runs unchanged over plain TCP, an SSH channel or a
// net.Pipe in tests.
package session

import (
	"io"
	"net"

	"fortuned/util"
)

// Session encapsulates the runtime context for a single connection.
// It is not a fortune session: one connection may open many of those.
type Session struct {
	Conn   net.Conn
	Stdout io.Writer
	Logger *util.Logger
}

// New creates a Session bound to conn.  The logger is named after the
// remote address when one is known.
func New(conn net.Conn, stdout io.Writer, logger *util.Logger) *Session {
	if peer := util.PeerName(conn.RemoteAddr()); peer != "-" {
		logger = logger.Named(peer)
	}
	return &Session{
		Conn:   conn,
		Stdout: stdout,
		Logger: logger,
	}
}

// Peer returns the remote address as a string, or "-" if unknown.
func (s *Session) Peer() string {
	return util.PeerName(s.Conn.RemoteAddr())
}
