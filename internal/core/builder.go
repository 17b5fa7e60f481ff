package core

import (
	"fmt"

	"fortuned/config"
	"fortuned/internal/capability"
	ncerr "fortuned/internal/errors"
	"fortuned/internal/fortune"
	"fortuned/internal/metrics"
	"fortuned/internal/pseudofs"
	"fortuned/internal/transport"
	"fortuned/tunnel"
	"fortuned/util"
)

// Build constructs the appropriate Mode from the given configuration.
// mc may be nil.
func Build(cfg *config.Config, logger *util.Logger, mc *metrics.Collector) (Mode, error) {
	switch cfg.Mode() {
	case config.ModeListen:
		return buildListen(cfg, logger, mc)
	case config.ModeConnect:
		return buildConnect(cfg, logger)
	default:
		return buildLocal(cfg, logger, mc)
	}
}

// ── mode builders ────────────────────────────────────────────────────

func buildLocal(cfg *config.Config, logger *util.Logger, mc *metrics.Collector) (Mode, error) {
	ns, err := buildNamespace(cfg, logger, mc)
	if err != nil {
		return nil, err
	}
	return &LocalMode{
		Namespace: ns,
		Name:      cfg.Resource,
		Chunk:     cfg.Chunk,
		Logger:    logger,
	}, nil
}

func buildListen(cfg *config.Config, logger *util.Logger, mc *metrics.Collector) (Mode, error) {
	ns, err := buildNamespace(cfg, logger, mc)
	if err != nil {
		return nil, err
	}

	var handler capability.Capability = &capability.Serve{Namespace: ns, Metrics: mc}
	if cfg.Stream {
		handler = &capability.Stream{
			Namespace: ns,
			Name:      cfg.Resource,
			Chunk:     cfg.Chunk,
			Metrics:   mc,
		}
	}

	mode := &ListenMode{
		Address:     util.FormatAddr(cfg.Host, cfg.LocalPort),
		KeepOpen:    cfg.KeepOpen,
		Timeout:     cfg.Timeout,
		GracePeriod: config.DefaultGracePeriod,
		MaxConns:    cfg.MaxConns,
		Capability:  handler,
		Metrics:     mc,
		Logger:      logger,
		Namespace:   ns,
	}
	if cfg.SSH {
		mode.SSH = &transport.SSHServerConfig{
			HostKeyPath:        cfg.HostKeyPath,
			AuthorizedKeysPath: cfg.AuthorizedKeysPath,
		}
	}
	return mode, nil
}

func buildConnect(cfg *config.Config, logger *util.Logger) (Mode, error) {
	address, err := util.ResolveAddr(cfg.Host, cfg.Port, cfg.NoDNS)
	if err != nil {
		return nil, &ncerr.ConfigError{Field: "host", Value: cfg.Host, Message: err.Error()}
	}

	return &ConnectMode{
		Dialer:     buildDialer(cfg, logger),
		Capability: &capability.Fetch{Name: cfg.Resource, Chunk: cfg.Chunk},
		Address:    address,
		Retry:      dialBackoff(cfg.Retries, ncerr.IsRetryable, logger),
		Logger:     logger,
	}, nil
}

// ── shared helpers ───────────────────────────────────────────────────

// buildNamespace loads the catalog and publishes a provider for it
// under cfg.Resource.
func buildNamespace(cfg *config.Config, logger *util.Logger, mc *metrics.Collector) (*pseudofs.Namespace, error) {
	catalog := fortune.DefaultCatalog()
	if cfg.FortuneFile != "" {
		var err error
		if catalog, err = fortune.LoadCatalog(cfg.FortuneFile); err != nil {
			return nil, err
		}
		logger.Verbose("loaded %d fortunes from %s", catalog.Len(), cfg.FortuneFile)
	}

	p := fortune.NewProvider(catalog,
		fortune.WithLogger(logger),
		fortune.WithMetrics(mc),
		fortune.WithMaxSessions(cfg.MaxSessions),
	)

	ns := pseudofs.New(logger)
	if err := ns.Register(cfg.Resource, p); err != nil {
		return nil, fmt.Errorf("publish %q: %w", cfg.Resource, err)
	}
	return ns, nil
}

// buildDialer creates the right transport.Dialer for the given config.
func buildDialer(cfg *config.Config, logger *util.Logger) transport.Dialer {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = config.DefaultConnTimeout
	}

	switch {
	case cfg.SSH:
		return transport.NewSSHSessionDialer(&tunnel.SSHConfig{
			User:          cfg.SSHUser,
			Host:          cfg.Host,
			Port:          cfg.Port,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   timeout,
		}, logger)

	case cfg.TunnelEnabled:
		return transport.NewSSHDialer(&tunnel.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   timeout,
		}, logger)
	}

	return &transport.TCPDialer{
		Timeout:   timeout,
		LocalPort: cfg.LocalPort,
	}
}
