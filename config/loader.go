package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every variable name in envConfig.
const EnvPrefix = "FORTUNED_"

// envConfig mirrors the subset of Config that may come from the
// environment.
type envConfig struct {
	Port     int     `env:"PORT"`
	KeepOpen envBool `env:"KEEP_OPEN"`
	Timeout  seconds `env:"TIMEOUT"`
	MaxConns int     `env:"MAX_CONNS"`

	FortuneFile string `env:"FILE"`
	Resource    string `env:"RESOURCE"`
	MaxSessions int    `env:"MAX_SESSIONS"`
	Chunk       int    `env:"CHUNK"`

	SSH                envBool `env:"SSH"`
	HostKeyPath        string  `env:"HOST_KEY"`
	AuthorizedKeysPath string  `env:"AUTHORIZED_KEYS"`

	TunnelSpec     string  `env:"TUNNEL"`
	SSHKeyPath     string  `env:"SSH_KEY"`
	SSHPassword    envBool `env:"SSH_PASSWORD"`
	UseSSHAgent    envBool `env:"SSH_AGENT"`
	StrictHostKey  envBool `env:"STRICT_HOSTKEY"`
	KnownHostsPath string  `env:"KNOWN_HOSTS"`

	Verbose int `env:"VERBOSE"`
}

// LoadFromEnv overlays FORTUNED_* environment variables onto cfg.
// Only variables that are set and non-empty override the existing
// value.  Call it BEFORE CLI flag parsing so that flags take
// precedence.
func LoadFromEnv(cfg *Config) error {
	var e envConfig
	if err := env.ParseWithOptions(&e, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("environment: %w", err)
	}

	setInt(&cfg.LocalPort, e.Port)
	setBool(&cfg.KeepOpen, e.KeepOpen)
	setInt(&cfg.MaxConns, e.MaxConns)
	if e.Timeout > 0 {
		cfg.Timeout = time.Duration(e.Timeout)
	}

	// Fortunes
	setString(&cfg.FortuneFile, e.FortuneFile)
	setString(&cfg.Resource, e.Resource)
	setInt(&cfg.MaxSessions, e.MaxSessions)
	setInt(&cfg.Chunk, e.Chunk)

	// SSH front-end
	setBool(&cfg.SSH, e.SSH)
	setString(&cfg.HostKeyPath, e.HostKeyPath)
	setString(&cfg.AuthorizedKeysPath, e.AuthorizedKeysPath)

	// SSH tunnel
	setString(&cfg.TunnelSpec, e.TunnelSpec)
	setString(&cfg.SSHKeyPath, e.SSHKeyPath)
	setBool(&cfg.SSHPassword, e.SSHPassword)
	setBool(&cfg.UseSSHAgent, e.UseSSHAgent)
	setBool(&cfg.StrictHostKey, e.StrictHostKey)
	setString(&cfg.KnownHostsPath, e.KnownHostsPath)

	// Output
	setInt(&cfg.Verbose, e.Verbose)
	return nil
}

// ── value types ──────────────────────────────────────────────────────

// envBool accepts "1", "true", "yes" and "on" (case-insensitive) as
// true and their opposites as false.
type envBool bool

func (b *envBool) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "1", "true", "yes", "on":
		*b = true
	case "", "0", "false", "no", "off":
		*b = false
	default:
		return fmt.Errorf("invalid boolean %q", text)
	}
	return nil
}

// seconds accepts a bare number of seconds, like -w, or a Go duration
// such as "1m30s".
type seconds time.Duration

func (s *seconds) UnmarshalText(text []byte) error {
	v := strings.TrimSpace(string(text))
	if n, err := strconv.Atoi(v); err == nil {
		*s = seconds(time.Duration(n) * time.Second)
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid timeout %q", v)
	}
	*s = seconds(d)
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v envBool) {
	if v {
		*dst = true
	}
}
