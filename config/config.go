// Package config defines the runtime configuration for fortuned and
// provides helpers for parsing ports and tunnel specifications.
package config

import (
	"fmt"
	"os"
	"os/user"
	"regexp"
	"strconv"
	"time"
)

// Mode is the operational mode selected by a Config.
type Mode int

const (
	ModeLocal   Mode = iota // print one fortune from the local catalog
	ModeListen              // serve fortunes on a port
	ModeConnect             // fetch a fortune from a server
)

func (m Mode) String() string {
	switch m {
	case ModeListen:
		return "listen"
	case ModeConnect:
		return "connect"
	default:
		return "local"
	}
}

// Config holds every tuneable for a single fortuned run.
type Config struct {
	// ── Connection ───────────────────────────────────────────────────
	Host      string
	Port      int // connect: destination port
	LocalPort int // -p: listen port
	Listen    bool
	Timeout   time.Duration
	KeepOpen  bool
	NoDNS     bool
	Retries   int // connect: attempts including the first
	MaxConns  int // listen -k: concurrent connections, 0 = unlimited

	// ── Fortunes ─────────────────────────────────────────────────────
	FortuneFile string // -f: fortune(6) file; built-in catalog if empty
	Resource    string // name the provider is published (or fetched) under
	MaxSessions int    // 0 = unlimited
	Chunk       int    // bytes per read
	Stream      bool   // listen: write one fortune per connection and hang up

	// ── SSH front-end (listen) / SSH session (connect) ───────────────
	SSH                bool
	SSHUser            string
	HostKeyPath        string
	AuthorizedKeysPath string

	// ── SSH tunnel ───────────────────────────────────────────────────
	TunnelSpec     string // raw user@host[:port] from -T
	TunnelEnabled  bool
	TunnelUser     string
	TunnelHost     string
	TunnelPort     int
	SSHKeyPath     string
	SSHPassword    bool // true → prompt interactively
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
	Stats   bool // log a metrics snapshot on exit
}

// Mode reports which mode the configuration selects.
func (c *Config) Mode() Mode {
	switch {
	case c.Listen:
		return ModeListen
	case c.Host != "":
		return ModeConnect
	default:
		return ModeLocal
	}
}

// ApplyDefaults fills zero values with the defaults from defaults.go.
func (c *Config) ApplyDefaults() {
	if c.Resource == "" {
		c.Resource = DefaultResource
	}
	if c.Chunk == 0 {
		c.Chunk = DefaultChunk
	}
	if c.Retries == 0 {
		c.Retries = DefaultRetries
	}
	if c.SSH && c.SSHUser == "" {
		c.SSHUser = defaultUser()
	}
	if c.TunnelEnabled && c.TunnelUser == "" {
		c.TunnelUser = defaultUser()
	}
}

// defaultUser is the login name ssh(1) would use.
func defaultUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return DefaultSSHUser
}

// ── Port helpers ─────────────────────────────────────────────────────

// ParsePort accepts a decimal port number in 1-65535.
func ParsePort(spec string) (int, error) {
	port, err := strconv.Atoi(spec)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", spec)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return port, nil
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("tunnel host is required")
	}
	return user, host, port, nil
}
