package tunnel

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	ncerr "fortuned/internal/errors"
	"fortuned/util"
)

// DefaultConnTimeout bounds the SSH handshake.
const DefaultConnTimeout = 30 * time.Second

// SSHConfig holds everything needed to dial an SSH gateway.
type SSHConfig struct {
	User          string
	Host          string
	Port          int
	KeyPath       string
	PromptPass    bool
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string
	ConnTimeout   time.Duration
}

// SSHTunnel implements [Tunnel] by opening an SSH connection and
// forwarding traffic with ssh.Client.Dial.  [SSHTunnel.OpenSession]
// instead opens a session channel on the connection itself, which is
// how a client reaches a fortune server's SSH front-end.
type SSHTunnel struct {
	config *SSHConfig
	client *ssh.Client
	logger *util.Logger
	creds  *credentials // nil: systemCredentials
	mu     sync.RWMutex
	alive  bool
}

var _ Tunnel = (*SSHTunnel)(nil)

// NewSSHTunnel creates a tunnel that is ready to [Connect].
func NewSSHTunnel(cfg *SSHConfig, logger *util.Logger) *SSHTunnel {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = DefaultConnTimeout
	}
	return &SSHTunnel{config: cfg, logger: logger}
}

// Connect dials the SSH gateway and completes the handshake.
func (t *SSHTunnel) Connect(ctx context.Context) error {
	creds := t.creds
	if creds == nil {
		sys := systemCredentials()
		creds = &sys
	}

	authMethods, err := creds.authMethods(t.config)
	if err != nil {
		return ncerr.WrapSSH("auth", t.config.Host, t.config.Port, err)
	}

	hkCallback, err := creds.hostKeyCallback(t.config)
	if err != nil {
		return ncerr.WrapSSH("hostkey", t.config.Host, t.config.Port, err)
	}

	sshCfg := &ssh.ClientConfig{
		User:            t.config.User,
		Auth:            authMethods,
		HostKeyCallback: hkCallback,
		Timeout:         t.config.ConnTimeout,
	}

	addr := net.JoinHostPort(t.config.Host, strconv.Itoa(t.config.Port))
	t.logger.Debug("SSH: dialing %s as %s", addr, t.config.User)

	// Use a context-aware TCP dial so callers can cancel.
	var dialer net.Dialer
	tcpConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return ncerr.Wrap("dial", addr, err)
	}

	// NewClientConn ignores sshCfg.Timeout; bound the handshake here.
	tcpConn.SetDeadline(time.Now().Add(t.config.ConnTimeout)) //nolint:errcheck
	sshConn, chans, reqs, err := ssh.NewClientConn(tcpConn, addr, sshCfg)
	if err != nil {
		tcpConn.Close()
		return ncerr.WrapSSH("handshake", t.config.Host, t.config.Port, err)
	}
	tcpConn.SetDeadline(time.Time{}) //nolint:errcheck

	client := ssh.NewClient(sshConn, chans, reqs)

	t.mu.Lock()
	t.client = client
	t.alive = true
	t.mu.Unlock()

	go t.monitor()

	return nil
}

// Dial forwards a connection through the tunnel.
func (t *SSHTunnel) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	client, err := t.current()
	if err != nil {
		return nil, err
	}

	t.logger.Debug("tunnel: dialing %s %s", network, address)
	conn, err := client.Dial(network, address)
	if err != nil {
		return nil, fmt.Errorf("tunnel dial %s: %w", address, err)
	}
	return conn, nil
}

// OpenSession opens a "session" channel, starts a shell on it and
// returns the channel as a net.Conn.
func (t *SSHTunnel) OpenSession(ctx context.Context) (net.Conn, error) {
	client, err := t.current()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch, reqs, err := client.OpenChannel("session", nil)
	if err != nil {
		return nil, ncerr.WrapSSH("channel", t.config.Host, t.config.Port, err)
	}
	go ssh.DiscardRequests(reqs)

	ok, err := ch.SendRequest("shell", true, nil)
	if err == nil && !ok {
		err = fmt.Errorf("shell request refused")
	}
	if err != nil {
		ch.Close()
		return nil, ncerr.WrapSSH("shell", t.config.Host, t.config.Port, err)
	}

	t.logger.Debug("SSH: session channel open to %s", client.RemoteAddr())
	return NewChannelConn(ch, client.LocalAddr(), client.RemoteAddr(), false), nil
}

// current returns the live client.  A tunnel never connected, or
// closed by the caller, reports ErrNotConnected; one whose connection
// dropped reports ErrTunnelClosed.
func (t *SSHTunnel) current() (*ssh.Client, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	switch {
	case t.client == nil:
		return nil, ncerr.ErrNotConnected
	case !t.alive:
		return nil, ncerr.ErrTunnelClosed
	}
	return t.client, nil
}

// Close shuts down the SSH connection.
func (t *SSHTunnel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.alive = false
	if t.client != nil {
		err := t.client.Close()
		t.client = nil
		return err
	}
	return nil
}

// IsAlive reports whether the tunnel is still connected.
func (t *SSHTunnel) IsAlive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.alive
}

// monitor blocks until the SSH connection closes and flips the alive flag.
func (t *SSHTunnel) monitor() {
	t.mu.RLock()
	client := t.client
	t.mu.RUnlock()
	if client == nil {
		return
	}

	err := client.Wait()

	t.mu.Lock()
	t.alive = false
	t.mu.Unlock()

	if err != nil {
		t.logger.Debug("SSH tunnel closed: %v", err)
	} else {
		t.logger.Debug("SSH tunnel closed")
	}
}
