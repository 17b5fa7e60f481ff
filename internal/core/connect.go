package core

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"fortuned/config"
	"fortuned/internal/capability"
	"fortuned/internal/retry"
	"fortuned/internal/session"
	"fortuned/internal/transport"
	"fortuned/util"
)

// ConnectMode dials a fortune server and runs a capability on the
// resulting connection.
type ConnectMode struct {
	Dialer     transport.Dialer
	Capability capability.Capability
	Address    string
	Logger     *util.Logger

	// Retry, when set, repeats failed dials that look transient.
	Retry *retry.Backoff

	// Stdout defaults to os.Stdout when nil.
	// Override in tests for deterministic I/O.
	Stdout io.Writer
}

func (m *ConnectMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run dials the remote address, creates a session, and hands it to
// the capability.  The transport is closed when Run returns.
func (m *ConnectMode) Run(ctx context.Context) error {
	defer m.Dialer.Close()

	m.Logger.Verbose("connecting to %s", m.Address)

	var conn net.Conn
	dial := func(attempt int) error {
		c, err := m.Dialer.Dial(ctx, "tcp", m.Address)
		if err != nil {
			if ctx.Err() != nil {
				return retry.Permanent(err)
			}
			return err
		}
		conn = c
		return nil
	}

	var err error
	if m.Retry != nil {
		err = m.Retry.Do(ctx, dial)
	} else {
		err = dial(1)
	}
	if err != nil {
		return fmt.Errorf("connect to %s: %w", m.Address, err)
	}
	defer conn.Close()

	m.Logger.Verbose("connected to %s", conn.RemoteAddr())

	sess := session.New(conn, m.stdout(), m.Logger)
	return m.Capability.Handle(ctx, sess)
}

// dialBackoff is the retry policy for connect mode.
func dialBackoff(attempts int, retryable func(error) bool, logger *util.Logger) *retry.Backoff {
	return &retry.Backoff{
		InitialDelay: config.DefaultRetryDelay,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
		MaxAttempts:  attempts,
		Jitter:       true,
		Retryable:    retryable,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			logger.Verbose("attempt %d failed (%v), retrying in %v", attempt, err, wait.Round(time.Millisecond))
		},
	}
}
