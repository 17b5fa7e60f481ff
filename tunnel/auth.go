package tunnel

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"

	ncerr "fortuned/internal/errors"
)

// Prompt reads a secret from the user after showing label.
type Prompt func(label string) ([]byte, error)

// TerminalPrompt reads a secret from the controlling terminal with
// echo disabled.  It fails rather than block when stdin is not a
// terminal, e.g. when fortuned runs from a pipeline.
func TerminalPrompt(label string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("%s: stdin is not a terminal", strings.TrimRight(label, ": "))
	}
	fmt.Fprint(os.Stderr, label)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	return secret, err
}

// defaultKeyNames are tried in order when no credential is configured.
var defaultKeyNames = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// credentials is where authentication material comes from.  The zero
// value finds nothing; [systemCredentials] reads the real environment.
type credentials struct {
	prompt    Prompt
	agentSock string // SSH_AUTH_SOCK
	home      string // for ~/.ssh
}

func systemCredentials() credentials {
	home, _ := os.UserHomeDir()
	return credentials{
		prompt:    TerminalPrompt,
		agentSock: os.Getenv("SSH_AUTH_SOCK"),
		home:      home,
	}
}

// authMethods lists the methods to offer, in order: explicit key,
// agent, password.  With none of those configured it falls back to the
// agent and the usual key files.
func (c credentials) authMethods(cfg *SSHConfig) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if cfg.KeyPath != "" {
		signer, err := c.loadKey(cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", cfg.KeyPath, err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if cfg.UseAgent {
		m, err := c.agentAuth()
		if err != nil {
			return nil, fmt.Errorf("ssh-agent: %w", err)
		}
		methods = append(methods, m)
	}

	if cfg.PromptPass {
		label := fmt.Sprintf("%s@%s's password: ", cfg.User, cfg.Host)
		// Asked only if the server gets as far as password auth.
		methods = append(methods, ssh.PasswordCallback(func() (string, error) {
			pass, err := c.prompt(label)
			if err != nil {
				return "", fmt.Errorf("reading password: %w", err)
			}
			return string(pass), nil
		}))
	}

	if len(methods) == 0 {
		methods = c.fallback()
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("%w: no SSH credentials found, use --ssh-key, --ssh-password or --ssh-agent",
			ncerr.ErrAuthFailed)
	}
	return methods, nil
}

// loadKey parses a private key, asking for the passphrase if it is
// encrypted.
func (c credentials) loadKey(path string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(data)
	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		if err != nil {
			return nil, fmt.Errorf("parsing key: %w", err)
		}
		return signer, nil
	}

	if c.prompt == nil {
		return nil, fmt.Errorf("key is encrypted and no prompt is available")
	}
	pass, err := c.prompt(fmt.Sprintf("Enter passphrase for %s: ", path))
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	signer, err = ssh.ParsePrivateKeyWithPassphrase(data, pass)
	if err != nil {
		return nil, fmt.Errorf("decrypting key: %w", err)
	}
	return signer, nil
}

func (c credentials) agentAuth() (ssh.AuthMethod, error) {
	if c.agentSock == "" {
		return nil, fmt.Errorf("SSH_AUTH_SOCK is not set")
	}
	conn, err := net.Dial("unix", c.agentSock)
	if err != nil {
		return nil, fmt.Errorf("connecting to agent at %s: %w", c.agentSock, err)
	}
	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers), nil
}

// fallback collects whatever works without configuration.  Keys that
// cannot be loaded, including encrypted ones whose passphrase prompt
// fails, are skipped.
func (c credentials) fallback() []ssh.AuthMethod {
	var out []ssh.AuthMethod

	if m, err := c.agentAuth(); err == nil {
		out = append(out, m)
	}
	if c.home == "" {
		return out
	}
	for _, name := range defaultKeyNames {
		p := filepath.Join(c.home, ".ssh", name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if signer, err := c.loadKey(p); err == nil {
			out = append(out, ssh.PublicKeys(signer))
		}
	}
	return out
}

// ── host-key verification ────────────────────────────────────────────

// hostKeyCallback accepts any host key unless StrictHostKey is set, in
// which case the key must be listed in known_hosts.  A listed host
// presenting a different key fails with ErrHostKeyMismatch.
func (c credentials) hostKeyCallback(cfg *SSHConfig) (ssh.HostKeyCallback, error) {
	if !cfg.StrictHostKey {
		//nolint:gosec // user opted out of host key checking
		return ssh.InsecureIgnoreHostKey(), nil
	}

	khFile := cfg.KnownHosts
	if khFile == "" {
		if c.home == "" {
			return nil, fmt.Errorf("no home directory; pass --known-hosts")
		}
		khFile = filepath.Join(c.home, ".ssh", "known_hosts")
	}

	check, err := knownhosts.New(khFile)
	if err != nil {
		return nil, fmt.Errorf("loading known_hosts from %s: %w", khFile, err)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := check(hostname, remote, key)
		var kerr *knownhosts.KeyError
		if !errors.As(err, &kerr) {
			return err
		}
		fp := ssh.FingerprintSHA256(key)
		if len(kerr.Want) > 0 {
			return fmt.Errorf("%w: %s presented %s", ncerr.ErrHostKeyMismatch, hostname, fp)
		}
		return fmt.Errorf("host %s (%s) is not in %s", hostname, fp, khFile)
	}, nil
}
