// Package capability defines what happens over an established
// connection.  Each Capability encapsulates a single behaviour (serve
// the line protocol, stream one fortune, fetch one fortune) and
// operates on a Session rather than a raw net.Conn, which keeps
// capabilities testable and decoupled from transport details.
package capability

import (
	"context"

	"fortuned/internal/session"
)

// Capability handles a single connection according to a specific
// behaviour.
type Capability interface {
	// Handle runs the capability against the given session.
	// It blocks until the connection is done or the context is
	// cancelled.
	Handle(ctx context.Context, sess *session.Session) error
}

// closeOnDone closes the session's connection when ctx is cancelled so
// that blocked reads and writes return.  Call the returned stop
// function once Handle is finished with the connection.
func closeOnDone(ctx context.Context, sess *session.Session) (stop func()) {
	unregister := context.AfterFunc(ctx, func() { sess.Conn.Close() })
	return func() { unregister() }
}
