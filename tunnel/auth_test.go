package tunnel

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	ncerr "fortuned/internal/errors"
)

func TestAuthMethods_ExplicitKey(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "id_fortune")
	writeKey(t, keyPath, nil)

	methods, err := credentials{}.authMethods(&SSHConfig{KeyPath: keyPath})
	if err != nil {
		t.Fatalf("authMethods: %v", err)
	}
	if len(methods) != 1 {
		t.Fatalf("got %d methods, want 1", len(methods))
	}
}

func TestAuthMethods_EncryptedKeyPrompts(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "id_fortune")
	writeKey(t, keyPath, []byte("cookie"))

	var labels []string
	c := credentials{prompt: func(label string) ([]byte, error) {
		labels = append(labels, label)
		return []byte("cookie"), nil
	}}

	if _, err := c.authMethods(&SSHConfig{KeyPath: keyPath}); err != nil {
		t.Fatalf("authMethods: %v", err)
	}
	if len(labels) != 1 || !strings.Contains(labels[0], keyPath) {
		t.Errorf("prompt labels = %q", labels)
	}
}

func TestAuthMethods_WrongPassphrase(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "id_fortune")
	writeKey(t, keyPath, []byte("cookie"))

	c := credentials{prompt: func(string) ([]byte, error) { return []byte("biscuit"), nil }}
	if _, err := c.authMethods(&SSHConfig{KeyPath: keyPath}); err == nil {
		t.Fatal("wrong passphrase should fail")
	}
}

func TestAuthMethods_EncryptedKeyWithoutTerminal(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "id_fortune")
	writeKey(t, keyPath, []byte("cookie"))

	if _, err := (credentials{}).authMethods(&SSHConfig{KeyPath: keyPath}); err == nil {
		t.Fatal("encrypted key without a prompt should fail")
	}
}

func TestAuthMethods_MissingKey(t *testing.T) {
	_, err := credentials{}.authMethods(&SSHConfig{KeyPath: "/nonexistent/key"})
	if err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestAuthMethods_NoCredentials(t *testing.T) {
	c := credentials{home: t.TempDir()}
	_, err := c.authMethods(&SSHConfig{})
	if !errors.Is(err, ncerr.ErrAuthFailed) {
		t.Fatalf("err = %v, want ErrAuthFailed", err)
	}
	if !strings.Contains(err.Error(), "--ssh-key") {
		t.Errorf("error should suggest a flag: %v", err)
	}
}

func TestAuthMethods_FallbackKeyFiles(t *testing.T) {
	home := t.TempDir()
	if err := os.Mkdir(filepath.Join(home, ".ssh"), 0o700); err != nil {
		t.Fatal(err)
	}
	writeKey(t, filepath.Join(home, ".ssh", "id_ed25519"), nil)
	writeKey(t, filepath.Join(home, ".ssh", "id_rsa"), []byte("locked")) // skipped: no prompt

	methods, err := credentials{home: home}.authMethods(&SSHConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if len(methods) != 1 {
		t.Errorf("got %d methods, want 1", len(methods))
	}
}

func TestAuthMethods_AgentUnset(t *testing.T) {
	_, err := credentials{}.authMethods(&SSHConfig{UseAgent: true})
	if err == nil || !strings.Contains(err.Error(), "SSH_AUTH_SOCK") {
		t.Fatalf("err = %v", err)
	}
}

func TestAuthMethods_Agent(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	sock := startAgent(t, priv)

	methods, err := credentials{agentSock: sock}.authMethods(&SSHConfig{UseAgent: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(methods) != 1 {
		t.Errorf("got %d methods, want 1", len(methods))
	}
}

func TestAuthMethods_PasswordAskedLazily(t *testing.T) {
	calls := 0
	c := credentials{prompt: func(string) ([]byte, error) {
		calls++
		return []byte("pw"), nil
	}}

	methods, err := c.authMethods(&SSHConfig{User: "fortune", Host: "gw", PromptPass: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(methods) != 1 {
		t.Errorf("got %d methods, want 1", len(methods))
	}
	if calls != 0 {
		t.Errorf("password prompted %d times before any handshake", calls)
	}
}

// ── host keys ────────────────────────────────────────────────────────

func TestHostKeyCallback_Insecure(t *testing.T) {
	cb, err := credentials{}.hostKeyCallback(&SSHConfig{StrictHostKey: false})
	if err != nil {
		t.Fatal(err)
	}
	if err := cb("anything:22", &net.TCPAddr{}, newPublicKey(t)); err != nil {
		t.Errorf("insecure callback rejected a key: %v", err)
	}
}

func TestHostKeyCallback_KnownHosts(t *testing.T) {
	known := newPublicKey(t)
	khFile := filepath.Join(t.TempDir(), "known_hosts")
	line := knownhosts.Line([]string{knownhosts.Normalize("fortunes.example:2222")}, known)
	if err := os.WriteFile(khFile, []byte(line+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cb, err := credentials{}.hostKeyCallback(&SSHConfig{StrictHostKey: true, KnownHosts: khFile})
	if err != nil {
		t.Fatal(err)
	}
	remote := &net.TCPAddr{IP: net.IPv4(192, 0, 2, 10), Port: 2222}

	if err := cb("fortunes.example:2222", remote, known); err != nil {
		t.Errorf("known key rejected: %v", err)
	}

	err = cb("fortunes.example:2222", remote, newPublicKey(t))
	if !errors.Is(err, ncerr.ErrHostKeyMismatch) {
		t.Errorf("changed key: err = %v, want ErrHostKeyMismatch", err)
	}

	err = cb("other.example:22", remote, known)
	if err == nil || errors.Is(err, ncerr.ErrHostKeyMismatch) {
		t.Errorf("unknown host: err = %v", err)
	}
}

func TestHostKeyCallback_DefaultPath(t *testing.T) {
	home := t.TempDir()
	cfg := &SSHConfig{StrictHostKey: true}

	if _, err := (credentials{home: home}).hostKeyCallback(cfg); err == nil {
		t.Fatal("missing ~/.ssh/known_hosts should fail")
	}

	if err := os.Mkdir(filepath.Join(home, ".ssh"), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(home, ".ssh", "known_hosts"), nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := (credentials{home: home}).hostKeyCallback(cfg); err != nil {
		t.Fatalf("hostKeyCallback: %v", err)
	}
}

// ── helpers ──────────────────────────────────────────────────────────

// writeKey writes a fresh ed25519 key in OpenSSH format, encrypted
// when passphrase is non-nil.
func writeKey(t *testing.T, path string, passphrase []byte) {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	var block *pem.Block
	if passphrase == nil {
		block, err = ssh.MarshalPrivateKey(priv, "fortuned test")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "fortuned test", passphrase)
	}
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatal(err)
	}
}

func newPublicKey(t *testing.T) ssh.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	key, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

// startAgent serves an in-memory keyring holding key on a unix socket.
func startAgent(t *testing.T, key ed25519.PrivateKey) string {
	t.Helper()

	keyring := agent.NewKeyring()
	if err := keyring.Add(agent.AddedKey{PrivateKey: key}); err != nil {
		t.Fatal(err)
	}

	sock := filepath.Join(t.TempDir(), "agent.sock")
	ln, err := net.Listen("unix", sock)
	if err != nil {
		t.Skipf("unix sockets unavailable: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer c.Close()
				agent.ServeAgent(keyring, c) //nolint:errcheck
			}()
		}
	}()
	return sock
}
