package transport

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	ncerr "fortuned/internal/errors"
	"fortuned/tunnel"
	"fortuned/util"
)

// SSHServerConfig configures the SSH front-end.
type SSHServerConfig struct {
	// HostKeyPath is a PEM/OpenSSH private key.  Empty generates an
	// ephemeral ed25519 key whose fingerprint is logged at start-up.
	HostKeyPath string

	// AuthorizedKeysPath lists the public keys allowed to connect.
	// Empty allows anyone.
	AuthorizedKeysPath string

	// HandshakeTimeout bounds each SSH handshake (default 10s).
	HandshakeTimeout time.Duration
}

// SSHListener accepts SSH connections on an inner listener and yields
// every accepted "session" channel as a net.Conn.  One SSH connection
// may carry several channels; each becomes its own Accept result.
type SSHListener struct {
	inner   net.Listener
	config  *ssh.ServerConfig
	timeout time.Duration
	logger  *util.Logger

	conns chan net.Conn
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup

	mu    sync.Mutex
	alive map[net.Conn]struct{}
}

// NewSSHListener wraps inner and starts accepting SSH connections.
func NewSSHListener(inner net.Listener, cfg *SSHServerConfig, logger *util.Logger) (*SSHListener, error) {
	sc, err := serverConfig(cfg, logger)
	if err != nil {
		return nil, err
	}

	timeout := cfg.HandshakeTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	l := &SSHListener{
		inner:   inner,
		config:  sc,
		timeout: timeout,
		logger:  logger,
		conns:   make(chan net.Conn),
		done:    make(chan struct{}),
		alive:   make(map[net.Conn]struct{}),
	}

	l.wg.Add(1)
	go l.acceptLoop()
	return l, nil
}

// Accept returns the next session channel.
func (l *SSHListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, fmt.Errorf("%w: %w", ncerr.ErrListenerClosed, net.ErrClosed)
	}
}

// Close stops accepting and disconnects every SSH client.
func (l *SSHListener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.done)
		err = l.inner.Close()

		l.mu.Lock()
		for c := range l.alive {
			c.Close()
		}
		l.mu.Unlock()

		l.wg.Wait()
	})
	return err
}

// Addr is the inner listener's address.
func (l *SSHListener) Addr() net.Addr { return l.inner.Addr() }

// ── connection handling ──────────────────────────────────────────────

func (l *SSHListener) acceptLoop() {
	defer l.wg.Done()

	for {
		tcp, err := l.inner.Accept()
		if err != nil {
			select {
			case <-l.done:
			default:
				l.logger.Error("ssh accept: %v", err)
			}
			return
		}

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.serveConn(tcp)
		}()
	}
}

func (l *SSHListener) serveConn(tcp net.Conn) {
	if !l.track(tcp) {
		tcp.Close()
		return
	}
	defer l.untrack(tcp)

	tcp.SetDeadline(time.Now().Add(l.timeout)) //nolint:errcheck
	sc, chans, reqs, err := ssh.NewServerConn(tcp, l.config)
	if err != nil {
		l.logger.Verbose("ssh handshake with %s failed: %v", tcp.RemoteAddr(), err)
		tcp.Close()
		return
	}
	tcp.SetDeadline(time.Time{}) //nolint:errcheck

	l.logger.Debug("ssh: %s authenticated as %q", sc.RemoteAddr(), sc.User())
	go ssh.DiscardRequests(reqs)

	for nc := range chans {
		if nc.ChannelType() != "session" {
			nc.Reject(ssh.UnknownChannelType, "only session channels are served") //nolint:errcheck
			continue
		}
		ch, chReqs, err := nc.Accept()
		if err != nil {
			l.logger.Verbose("ssh channel accept: %v", err)
			continue
		}
		go replySessionRequests(chReqs)

		conn := tunnel.NewChannelConn(ch, sc.LocalAddr(), sc.RemoteAddr(), true)
		select {
		case l.conns <- conn:
		case <-l.done:
			conn.Close()
		}
	}
	sc.Close()
}

// track registers c unless the listener is already closed.
func (l *SSHListener) track(c net.Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case <-l.done:
		return false
	default:
	}
	l.alive[c] = struct{}{}
	return true
}

func (l *SSHListener) untrack(c net.Conn) {
	l.mu.Lock()
	delete(l.alive, c)
	l.mu.Unlock()
}

// replySessionRequests accepts the requests an interactive client sends
// before using a channel and refuses everything else.
func replySessionRequests(reqs <-chan *ssh.Request) {
	for req := range reqs {
		switch req.Type {
		case "shell", "exec", "pty-req", "env", "window-change":
			req.Reply(true, nil) //nolint:errcheck
		default:
			req.Reply(false, nil) //nolint:errcheck
		}
	}
}

// ── configuration ────────────────────────────────────────────────────

func serverConfig(cfg *SSHServerConfig, logger *util.Logger) (*ssh.ServerConfig, error) {
	sc := &ssh.ServerConfig{}

	if cfg.AuthorizedKeysPath == "" {
		sc.NoClientAuth = true
	} else {
		allowed, err := loadAuthorizedKeys(cfg.AuthorizedKeysPath)
		if err != nil {
			return nil, err
		}
		sc.PublicKeyCallback = func(meta ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			raw := key.Marshal()
			for _, k := range allowed {
				if bytes.Equal(raw, k.Marshal()) {
					return &ssh.Permissions{
						Extensions: map[string]string{"fp": ssh.FingerprintSHA256(key)},
					}, nil
				}
			}
			return nil, fmt.Errorf("%w: key %s not authorized for %q",
				ncerr.ErrAuthFailed, ssh.FingerprintSHA256(key), meta.User())
		}
	}

	signer, err := hostSigner(cfg.HostKeyPath)
	if err != nil {
		return nil, err
	}
	if cfg.HostKeyPath == "" {
		logger.Info("ssh: ephemeral host key %s", ssh.FingerprintSHA256(signer.PublicKey()))
	}
	sc.AddHostKey(signer)
	return sc, nil
}

func hostSigner(path string) (ssh.Signer, error) {
	if path == "" {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generating host key: %w", err)
		}
		return ssh.NewSignerFromKey(priv)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading host key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("parsing host key %s: %w", path, err)
	}
	return signer, nil
}

func loadAuthorizedKeys(path string) ([]ssh.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading authorized keys: %w", err)
	}

	var keys []ssh.PublicKey
	for len(bytes.TrimSpace(data)) > 0 {
		key, _, _, rest, err := ssh.ParseAuthorizedKey(data)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		keys = append(keys, key)
		data = rest
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%s: no keys", path)
	}
	return keys, nil
}
