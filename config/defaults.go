package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags and environment variable loading.

const (
	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultSSHUser is the login used when neither the flags nor the
	// environment name one.
	DefaultSSHUser = "fortune"

	// DefaultResource is the name the fortune provider is published
	// under.
	DefaultResource = "fortuner"

	// DefaultChunk is the read size used when streaming or fetching.
	// Small on purpose: fortunes are short and partial reads are the
	// point.
	DefaultChunk = 64

	// DefaultRetries is how many connect attempts a client makes.
	DefaultRetries = 3

	// DefaultConnTimeout is the TCP/SSH connection timeout.
	DefaultConnTimeout = 30 * time.Second

	// DefaultRetryDelay is the first backoff delay between connect
	// attempts.
	DefaultRetryDelay = 250 * time.Millisecond

	// DefaultGracePeriod is how long a listener waits for in-flight
	// connections after shutdown is requested.
	DefaultGracePeriod = 5 * time.Second

	// MaxChunk mirrors the protocol's largest single read.
	MaxChunk = 64 * 1024
)
