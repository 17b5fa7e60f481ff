// Package cmd wires up the CLI flags and dispatches to the core modes.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"fortuned/config"
	"fortuned/internal/core"
	"fortuned/internal/metrics"
	"fortuned/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X fortuned/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// stderr receives usage, version and stats output.  Tests swap it.
var stderr io.Writer = os.Stderr //nolint:gochecknoglobals

// Execute parses args and runs the appropriate fortuned mode.
// FORTUNED_* environment variables supply defaults that flags override.
func Execute(ctx context.Context, args []string) error {
	cfg := &config.Config{}
	if err := config.LoadFromEnv(cfg); err != nil {
		return err
	}

	fs := flag.NewFlagSet("fortuned", flag.ContinueOnError)
	fs.SetOutput(stderr)

	// ── connection ───────────────────────────────────────────────
	fs.BoolVarP(&cfg.Listen, "listen", "l", cfg.Listen, "Listen mode: serve fortunes")
	fs.IntVarP(&cfg.LocalPort, "port", "p", cfg.LocalPort, "Listen port (with -l) or source port")
	fs.BoolVarP(&cfg.NoDNS, "no-dns", "n", cfg.NoDNS, "Numeric-only, no DNS resolution")
	fs.BoolVarP(&cfg.KeepOpen, "keep-open", "k", cfg.KeepOpen, "Accept multiple connections (with -l)")
	fs.IntVar(&cfg.Retries, "retries", cfg.Retries, "Connect attempts including the first")

	timeoutSec := int(cfg.Timeout / time.Second)
	fs.IntVarP(&timeoutSec, "timeout", "w", timeoutSec, "Timeout in seconds")
	fs.IntVar(&cfg.MaxConns, "max-conns", cfg.MaxConns, "Limit on concurrent connections with -k (0 = none)")

	// ── fortunes ─────────────────────────────────────────────────
	fs.StringVarP(&cfg.FortuneFile, "file", "f", cfg.FortuneFile, "fortune(6) file (built-in catalog if empty)")
	fs.StringVar(&cfg.Resource, "resource", cfg.Resource, "Resource name to publish or fetch")
	fs.IntVar(&cfg.MaxSessions, "max-sessions", cfg.MaxSessions, "Limit on simultaneously open sessions (0 = none)")
	fs.IntVar(&cfg.Chunk, "chunk", cfg.Chunk, "Bytes per read")
	fs.BoolVar(&cfg.Stream, "stream", cfg.Stream, "Write one fortune per connection and hang up (with -l)")

	// ── SSH front-end ────────────────────────────────────────────
	fs.BoolVar(&cfg.SSH, "ssh", cfg.SSH, "Serve (with -l) or connect over SSH")
	fs.StringVar(&cfg.SSHUser, "ssh-user", cfg.SSHUser, "SSH login name (with --ssh)")
	fs.StringVar(&cfg.HostKeyPath, "host-key", cfg.HostKeyPath, "SSH host key (ephemeral if empty)")
	fs.StringVar(&cfg.AuthorizedKeysPath, "authorized-keys", cfg.AuthorizedKeysPath, "Public keys allowed to connect")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "SSH tunnel via [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	envVerbose := cfg.Verbose // CountVarP zeroes its target
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVar(&cfg.Stats, "stats", cfg.Stats, "Print a metrics snapshot on exit")

	var showVersion, showHelp, dryRun bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVar(&dryRun, "dry-run", false, "Validate the configuration and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(stderr, "fortuned %s\n", version)
		return nil
	}

	cfg.Timeout = time.Duration(timeoutSec) * time.Second
	if !fs.Changed("verbose") {
		cfg.Verbose = envVerbose
	}

	// ── positional arguments ─────────────────────────────────────
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}

	// ── tunnel spec ──────────────────────────────────────────────
	if cfg.TunnelSpec != "" {
		user, host, port, err := config.ParseTunnelSpec(cfg.TunnelSpec)
		if err != nil {
			return fmt.Errorf("tunnel: %w", err)
		}
		cfg.TunnelEnabled = true
		cfg.TunnelUser = user
		cfg.TunnelHost = host
		cfg.TunnelPort = port
	}

	// ── validate ─────────────────────────────────────────────────
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := util.NewLogger(cfg.Verbose)
	logger.Debug("mode %s, resource %q, chunk %d", cfg.Mode(), cfg.Resource, cfg.Chunk)

	if dryRun {
		fmt.Fprintf(stderr, "fortuned: configuration ok (%s mode)\n", cfg.Mode())
		return nil
	}

	// ── build and run ────────────────────────────────────────────
	var mc *metrics.Collector
	if cfg.Stats || cfg.Mode() == config.ModeListen {
		mc = metrics.New()
	}

	mode, err := core.Build(cfg, logger, mc)
	if err != nil {
		return err
	}

	err = mode.Run(ctx)
	if cfg.Stats {
		fmt.Fprintln(stderr, mc.JSON())
	}
	return err
}

// ── helpers ──────────────────────────────────────────────────────────

func parsePositional(cfg *config.Config, remaining []string) error {
	if cfg.Listen {
		switch len(remaining) {
		case 0: // fortuned -l -p PORT
		case 1: // fortuned -l -p PORT ADDR
			cfg.Host = remaining[0]
		default:
			return fmt.Errorf("too many arguments for listen mode")
		}
		return nil
	}

	switch len(remaining) {
	case 0: // local mode
		return nil
	case 1:
		return fmt.Errorf("port required after host %q", remaining[0])
	case 2:
		cfg.Host = remaining[0]
		port, err := config.ParsePort(remaining[1])
		if err != nil {
			return fmt.Errorf("port: %w", err)
		}
		cfg.Port = port
		return nil
	default:
		return fmt.Errorf("too many arguments (use --help for usage)")
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(stderr, `fortuned – fortune session server v%s

Hands out fortunes one session at a time.  Each session picks a
random fortune when it is opened and yields it across reads.

Usage:
  fortuned [options]                          Print one fortune
  fortuned -l -p <port> [options] [addr]      Serve fortunes
  fortuned [options] <host> <port>            Fetch a fortune

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(stderr, `
Examples:
  fortuned -f /usr/share/games/fortunes/fortunes
  fortuned -l -k -p 1717 --max-sessions 256   Serve the line protocol
  fortuned -l -k -p 17 --stream               Quote-of-the-day style
  fortuned -l -k -p 2222 --ssh --authorized-keys ~/.ssh/authorized_keys
  fortuned --chunk 4 localhost 1717           Fetch in 4-byte reads
  fortuned --ssh localhost 2222               Fetch over SSH
  fortuned -T admin@bastion 10.0.0.5 1717     Fetch through a gateway
  printf 'LIST\nQUIT\n' | nc host 1717       Speak the protocol by hand
`)
}
