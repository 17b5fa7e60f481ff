package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"fortuned/internal/capability"
	"fortuned/internal/metrics"
	"fortuned/internal/pseudofs"
	"fortuned/internal/session"
	"fortuned/internal/transport"
	"fortuned/util"
)

// ListenMode accepts inbound connections and runs a capability on
// each one.  With KeepOpen=true every connection gets its own
// goroutine; otherwise it handles one connection and returns.
type ListenMode struct {
	Address     string // "host:port" or ":port"
	KeepOpen    bool
	Timeout     time.Duration // per-connection deadline (0 = none)
	GracePeriod time.Duration // drain time for in-flight connections on shutdown
	MaxConns    int           // concurrent connections with KeepOpen (0 = unlimited)
	Capability  capability.Capability
	Metrics     *metrics.Collector
	Logger      *util.Logger

	// Namespace, when set, is torn down when Run returns.
	Namespace *pseudofs.Namespace

	// SSH, when set, puts an SSH front-end in front of the listener and
	// serves every session channel as a connection.
	SSH *transport.SSHServerConfig

	// Listener, when set, is used instead of binding Address.
	Listener net.Listener

	// Ready, when set, is called with the bound address once the mode
	// accepts connections.
	Ready func(net.Addr)

	// Stdout defaults to os.Stdout when nil.
	Stdout io.Writer
}

func (m *ListenMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run starts listening and dispatches accepted connections to the
// capability.  Cancelling ctx stops accepting; connections already
// running get GracePeriod to finish before they are closed.
func (m *ListenMode) Run(ctx context.Context) error {
	defer closeNamespace(m.Namespace, m.Logger)

	ln, err := m.listen(ctx)
	if err != nil {
		return err
	}
	defer ln.Close()

	m.Logger.Info("listening on %s", ln.Addr())
	if m.Ready != nil {
		m.Ready(ln.Addr())
	}

	// Shut the listener down when the context expires.
	stopWatch := context.AfterFunc(ctx, func() { ln.Close() })
	defer stopWatch()

	// Connections outlive ctx by up to GracePeriod.
	connCtx, cancelConns := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelConns()

	var g errgroup.Group
	if m.MaxConns > 0 {
		g.SetLimit(m.MaxConns)
	}
	var acceptErr error

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				acceptErr = fmt.Errorf("accept: %w", err)
			}
			break
		}

		m.Logger.Verbose("connection from %s", conn.RemoteAddr())

		if !m.KeepOpen {
			return m.serveConn(ctx, conn)
		}
		started := g.TryGo(func() error {
			return m.serveConn(connCtx, conn)
		})
		if !started {
			m.Logger.Warn("%d connection(s) active, refusing %s",
				m.MaxConns, util.PeerName(conn.RemoteAddr()))
			conn.Close()
		}
	}

	m.drain(&g, cancelConns)
	return acceptErr
}

// drain waits for running handlers, cancelling them once the grace
// period is over.
func (m *ListenMode) drain(g *errgroup.Group, cancel context.CancelFunc) {
	done := make(chan struct{})
	go func() {
		if err := g.Wait(); err != nil {
			m.Logger.Verbose("first handler error: %v", err)
		}
		close(done)
	}()

	grace := m.GracePeriod
	if grace <= 0 {
		grace = 5 * time.Second
	}
	t := time.NewTimer(grace)
	defer t.Stop()

	select {
	case <-done:
		return
	case <-t.C:
		m.Logger.Warn("grace period %v over, closing %d connection(s)",
			grace, m.Metrics.ActiveConnections())
		cancel()
		<-done
	}
}

func (m *ListenMode) listen(ctx context.Context) (net.Listener, error) {
	ln := m.Listener
	if ln == nil {
		var err error
		if ln, err = transport.Listen(ctx, m.Address); err != nil {
			return nil, err
		}
	}
	if m.SSH == nil {
		return ln, nil
	}

	sl, err := transport.NewSSHListener(ln, m.SSH, m.Logger)
	if err != nil {
		ln.Close()
		return nil, fmt.Errorf("ssh front-end: %w", err)
	}
	return sl, nil
}

func (m *ListenMode) serveConn(ctx context.Context, conn net.Conn) error {
	m.Metrics.ConnectionOpened()
	defer m.Metrics.ConnectionClosed()
	defer conn.Close()

	if m.Timeout > 0 {
		conn.SetDeadline(time.Now().Add(m.Timeout)) //nolint:errcheck
	}

	sess := session.New(conn, m.stdout(), m.Logger)
	err := m.Capability.Handle(ctx, sess)
	if err != nil {
		sess.Logger.Warn("%v", err)
	}
	sess.Logger.Verbose("connection closed")
	return err
}
