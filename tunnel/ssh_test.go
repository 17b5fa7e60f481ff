package tunnel

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	ncerr "fortuned/internal/errors"
	"fortuned/util"
)

// startGateway runs a one-shot SSH server on loopback that accepts any
// public key.  drop severs the accepted connection from the server
// side.
func startGateway(t *testing.T) (port int, drop func()) {
	t.Helper()

	_, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	signer, err := ssh.NewSignerFromKey(hostPriv)
	if err != nil {
		t.Fatal(err)
	}
	cfg := &ssh.ServerConfig{
		PublicKeyCallback: func(ssh.ConnMetadata, ssh.PublicKey) (*ssh.Permissions, error) {
			return nil, nil
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		sconn, chans, reqs, err := ssh.NewServerConn(c, cfg)
		if err != nil {
			c.Close()
			return
		}
		accepted <- c
		go ssh.DiscardRequests(reqs)
		for nc := range chans {
			nc.Reject(ssh.Prohibited, "no channels") //nolint:errcheck
		}
		sconn.Close()
	}()

	drop = func() {
		select {
		case c := <-accepted:
			c.Close()
		case <-time.After(2 * time.Second):
			t.Fatal("gateway never accepted")
		}
	}
	return ln.Addr().(*net.TCPAddr).Port, drop
}

func newGatewayTunnel(t *testing.T, port int) *SSHTunnel {
	t.Helper()
	keyPath := filepath.Join(t.TempDir(), "id_fortune")
	writeKey(t, keyPath, nil)

	tun := NewSSHTunnel(&SSHConfig{
		User:        "fortune",
		Host:        "127.0.0.1",
		Port:        port,
		KeyPath:     keyPath,
		ConnTimeout: 2 * time.Second,
	}, util.NewLogger(0))
	tun.creds = &credentials{}
	return tun
}

func TestSSHTunnel_NotConnected(t *testing.T) {
	tun := NewSSHTunnel(&SSHConfig{Host: "gw"}, util.NewLogger(0))

	_, err := tun.Dial(context.Background(), "tcp", "127.0.0.1:1717")
	if !errors.Is(err, ncerr.ErrNotConnected) {
		t.Errorf("Dial err = %v, want ErrNotConnected", err)
	}
	_, err = tun.OpenSession(context.Background())
	if !errors.Is(err, ncerr.ErrNotConnected) {
		t.Errorf("OpenSession err = %v, want ErrNotConnected", err)
	}
}

// TestSSHTunnel_Dropped verifies that a connection lost under the
// tunnel is reported as ErrTunnelClosed, and one closed by the caller
// as ErrNotConnected.
func TestSSHTunnel_Dropped(t *testing.T) {
	port, drop := startGateway(t)
	tun := newGatewayTunnel(t, port)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tun.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !tun.IsAlive() {
		t.Fatal("tunnel should be alive after Connect")
	}

	drop()
	deadline := time.Now().Add(2 * time.Second)
	for tun.IsAlive() {
		if time.Now().After(deadline) {
			t.Fatal("tunnel still alive after the gateway dropped it")
		}
		time.Sleep(10 * time.Millisecond)
	}

	_, err := tun.Dial(ctx, "tcp", "127.0.0.1:1717")
	if !errors.Is(err, ncerr.ErrTunnelClosed) {
		t.Errorf("Dial err = %v, want ErrTunnelClosed", err)
	}
	_, err = tun.OpenSession(ctx)
	if !errors.Is(err, ncerr.ErrTunnelClosed) {
		t.Errorf("OpenSession err = %v, want ErrTunnelClosed", err)
	}

	tun.Close() //nolint:errcheck
	_, err = tun.Dial(ctx, "tcp", "127.0.0.1:1717")
	if !errors.Is(err, ncerr.ErrNotConnected) {
		t.Errorf("Dial after Close err = %v, want ErrNotConnected", err)
	}
}
