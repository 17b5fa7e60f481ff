package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"fortuned/config"
	"fortuned/internal/capability"
	ncerr "fortuned/internal/errors"
	"fortuned/internal/transport"
	"fortuned/util"
)

func buildDefaults(t *testing.T, cfg *config.Config) Mode {
	t.Helper()
	cfg.ApplyDefaults()
	mode, err := Build(cfg, util.NewLogger(0), nil)
	if err != nil {
		t.Fatal(err)
	}
	return mode
}

// TestBuild_Local verifies that no host and no -l selects LocalMode.
func TestBuild_Local(t *testing.T) {
	mode := buildDefaults(t, &config.Config{})
	lm, ok := mode.(*LocalMode)
	if !ok {
		t.Fatalf("expected *LocalMode, got %T", mode)
	}
	if lm.Name != config.DefaultResource {
		t.Errorf("Name = %q", lm.Name)
	}
	if lm.Chunk != config.DefaultChunk {
		t.Errorf("Chunk = %d", lm.Chunk)
	}
}

// TestBuild_Connect verifies that Build produces a ConnectMode for
// a simple connect configuration.
func TestBuild_Connect(t *testing.T) {
	mode := buildDefaults(t, &config.Config{Host: "127.0.0.1", Port: 1717})
	cm, ok := mode.(*ConnectMode)
	if !ok {
		t.Fatalf("expected *ConnectMode, got %T", mode)
	}
	if cm.Address != "127.0.0.1:1717" {
		t.Errorf("Address = %q", cm.Address)
	}
	if d, ok := cm.Dialer.(*transport.TCPDialer); !ok {
		t.Errorf("Dialer = %T, want *TCPDialer", cm.Dialer)
	} else if d.Timeout != config.DefaultConnTimeout {
		t.Errorf("Dialer.Timeout = %v, want %v", d.Timeout, config.DefaultConnTimeout)
	}
	if _, ok := cm.Capability.(*capability.Fetch); !ok {
		t.Errorf("Capability = %T, want *Fetch", cm.Capability)
	}
	if cm.Retry == nil || cm.Retry.MaxAttempts != config.DefaultRetries {
		t.Errorf("Retry = %+v", cm.Retry)
	}
}

// TestBuild_Listen verifies Build produces a ListenMode serving the
// line protocol.
func TestBuild_Listen(t *testing.T) {
	mode := buildDefaults(t, &config.Config{Listen: true, LocalPort: 1717, KeepOpen: true, MaxConns: 4})
	lm, ok := mode.(*ListenMode)
	if !ok {
		t.Fatalf("expected *ListenMode, got %T", mode)
	}
	if lm.Address != ":1717" {
		t.Errorf("Address = %q", lm.Address)
	}
	if !lm.KeepOpen {
		t.Error("KeepOpen should be set")
	}
	if _, ok := lm.Capability.(*capability.Serve); !ok {
		t.Errorf("Capability = %T, want *Serve", lm.Capability)
	}
	if lm.SSH != nil {
		t.Error("SSH front-end should be off")
	}
	if lm.MaxConns != 4 {
		t.Errorf("MaxConns = %d, want 4", lm.MaxConns)
	}
	if lm.Namespace == nil || len(lm.Namespace.Names()) != 1 {
		t.Error("Namespace should be owned by the mode")
	}
}

func TestBuild_ListenStream(t *testing.T) {
	mode := buildDefaults(t, &config.Config{Listen: true, LocalPort: 17, Stream: true, Chunk: 5})
	lm := mode.(*ListenMode)
	s, ok := lm.Capability.(*capability.Stream)
	if !ok {
		t.Fatalf("Capability = %T, want *Stream", lm.Capability)
	}
	if s.Chunk != 5 {
		t.Errorf("Chunk = %d", s.Chunk)
	}
}

func TestBuild_ListenSSH(t *testing.T) {
	mode := buildDefaults(t, &config.Config{
		Listen: true, LocalPort: 2222, SSH: true,
		HostKeyPath: "/etc/fortuned/host_key",
	})
	lm := mode.(*ListenMode)
	if lm.SSH == nil {
		t.Fatal("SSH front-end should be configured")
	}
	if lm.SSH.HostKeyPath != "/etc/fortuned/host_key" {
		t.Errorf("HostKeyPath = %q", lm.SSH.HostKeyPath)
	}
}

func TestBuild_ConnectSSH(t *testing.T) {
	mode := buildDefaults(t, &config.Config{Host: "127.0.0.1", Port: 2222, SSH: true})
	cm := mode.(*ConnectMode)
	if _, ok := cm.Dialer.(*transport.SSHDialer); !ok {
		t.Errorf("Dialer = %T, want *SSHDialer", cm.Dialer)
	}
}

func TestBuild_Tunnel(t *testing.T) {
	mode := buildDefaults(t, &config.Config{
		Host: "10.0.0.5", Port: 1717,
		TunnelEnabled: true, TunnelUser: "admin", TunnelHost: "bastion", TunnelPort: 22,
	})
	cm := mode.(*ConnectMode)
	if _, ok := cm.Dialer.(*transport.SSHDialer); !ok {
		t.Errorf("Dialer = %T, want *SSHDialer", cm.Dialer)
	}
}

// TestBuild_NoDNS_Error verifies -n rejects hostnames.
func TestBuild_NoDNS_Error(t *testing.T) {
	cfg := &config.Config{Host: "example.com", Port: 1717, NoDNS: true}
	cfg.ApplyDefaults()

	_, err := Build(cfg, util.NewLogger(0), nil)
	if err == nil {
		t.Fatal("expected error for hostname with -n")
	}
	var ce *ncerr.ConfigError
	if !errors.As(err, &ce) {
		t.Errorf("expected *ConfigError, got %T", err)
	}
}

// TestBuild_NoDNS_IP verifies -n accepts IP addresses.
func TestBuild_NoDNS_IP(t *testing.T) {
	mode := buildDefaults(t, &config.Config{Host: "::1", Port: 1717, NoDNS: true})
	if got := mode.(*ConnectMode).Address; got != "[::1]:1717" {
		t.Errorf("Address = %q", got)
	}
}

func TestBuild_FortuneFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fortunes")
	if err := os.WriteFile(path, []byte("one\n%\ntwo\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	mode := buildDefaults(t, &config.Config{FortuneFile: path})
	lm := mode.(*LocalMode)
	if got := lm.Namespace.Names(); len(got) != 1 || got[0] != config.DefaultResource {
		t.Errorf("Names() = %v", got)
	}
}

func TestBuild_FortuneFileMissing(t *testing.T) {
	cfg := &config.Config{FortuneFile: filepath.Join(t.TempDir(), "nope")}
	cfg.ApplyDefaults()

	if _, err := Build(cfg, util.NewLogger(0), nil); err == nil {
		t.Fatal("expected error for missing fortune file")
	}
}
