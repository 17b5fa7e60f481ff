package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"fortuned/tunnel"
	"fortuned/util"
)

// SSHDialer routes connections over SSH.  The SSH connection is made
// lazily on the first Dial call and torn down on Close.
//
// In forward mode (the default) Dial reaches address through the
// gateway with a direct-tcpip channel.  With Session set, the gateway
// is itself a fortune server and Dial ignores address, returning a
// shell session channel instead.
type SSHDialer struct {
	tunnel    tunnel.Tunnel
	config    *tunnel.SSHConfig
	logger    *util.Logger
	session   bool
	mu        sync.Mutex
	connected bool
}

// NewSSHDialer creates a dialer that forwards connections through an
// SSH gateway.
func NewSSHDialer(cfg *tunnel.SSHConfig, logger *util.Logger) *SSHDialer {
	return &SSHDialer{
		tunnel: tunnel.NewSSHTunnel(cfg, logger),
		config: cfg,
		logger: logger,
	}
}

// NewSSHSessionDialer creates a dialer that talks to a fortune server's
// SSH front-end directly.
func NewSSHSessionDialer(cfg *tunnel.SSHConfig, logger *util.Logger) *SSHDialer {
	d := NewSSHDialer(cfg, logger)
	d.session = true
	return d
}

// connect establishes the SSH connection if there is none, or if the
// previous one has dropped.
func (d *SSHDialer) connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		if d.tunnel.IsAlive() {
			return nil
		}
		d.logger.Verbose("SSH connection to %s lost, reconnecting", d.config.Host)
		d.tunnel.Close() //nolint:errcheck
		d.connected = false
	}

	d.logger.Verbose("establishing SSH connection to %s@%s:%d",
		d.config.User, d.config.Host, d.config.Port)

	if err := d.tunnel.Connect(ctx); err != nil {
		return fmt.Errorf("ssh: %w", err)
	}

	d.connected = true
	d.logger.Verbose("SSH connection established")
	return nil
}

// Dial returns a connection over SSH, lazily connecting on the first
// call.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if err := d.connect(ctx); err != nil {
		return nil, err
	}
	if d.session {
		return d.tunnel.OpenSession(ctx)
	}
	return d.tunnel.Dial(ctx, network, address)
}

// Close tears down the SSH connection.
func (d *SSHDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		d.connected = false
		return d.tunnel.Close()
	}
	return nil
}
