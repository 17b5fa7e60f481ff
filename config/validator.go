package config

import (
	ncerr "fortuned/internal/errors"
)

// Validate checks that the configuration is internally consistent.
// Every failure is a *errors.ConfigError naming the offending flag.
func (c *Config) Validate() error {
	switch c.Mode() {
	case ModeListen:
		if c.LocalPort == 0 {
			return &ncerr.ConfigError{
				Field:   "port",
				Message: "listen mode requires a port",
				Hint:    "fortuned -l -p 1717",
			}
		}
		if c.TunnelEnabled {
			return &ncerr.ConfigError{
				Field:   "tunnel",
				Value:   c.TunnelSpec,
				Message: "listen mode through an SSH tunnel is not supported",
				Hint:    "use --ssh to serve over SSH instead",
			}
		}
	case ModeConnect:
		if c.Port == 0 {
			return &ncerr.ConfigError{
				Field:   "port",
				Message: "destination port is required",
				Hint:    "fortuned HOST PORT",
			}
		}
		if c.SSH && c.TunnelEnabled {
			return &ncerr.ConfigError{
				Field:   "ssh",
				Message: "--ssh and -T are mutually exclusive",
			}
		}
		if c.Stream {
			return &ncerr.ConfigError{
				Field:   "stream",
				Message: "stream mode only applies to -l",
			}
		}
	}

	if c.LocalPort < 0 || c.LocalPort > 65535 {
		return &ncerr.ConfigError{Field: "port", Value: c.LocalPort, Message: "out of range 1-65535"}
	}
	if c.Chunk < 0 || c.Chunk > MaxChunk {
		return &ncerr.ConfigError{
			Field:   "chunk",
			Value:   c.Chunk,
			Message: "out of range",
			Hint:    "use a read size between 1 and 65536 bytes",
		}
	}
	if c.MaxSessions < 0 {
		return &ncerr.ConfigError{Field: "max-sessions", Value: c.MaxSessions, Message: "must not be negative"}
	}
	if c.MaxConns < 0 {
		return &ncerr.ConfigError{Field: "max-conns", Value: c.MaxConns, Message: "must not be negative"}
	}
	if c.Retries < 0 {
		return &ncerr.ConfigError{Field: "retries", Value: c.Retries, Message: "must not be negative"}
	}
	if c.TunnelEnabled && c.TunnelHost == "" {
		return &ncerr.ConfigError{Field: "tunnel", Message: "tunnel host is required"}
	}
	if !c.SSH && (c.HostKeyPath != "" || c.AuthorizedKeysPath != "") {
		return &ncerr.ConfigError{
			Field:   "host-key",
			Message: "SSH key options have no effect without --ssh",
		}
	}

	return nil
}
