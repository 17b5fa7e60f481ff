package core

import (
	"context"
	"fmt"
	"io"
	"os"

	"fortuned/internal/pseudofs"
	"fortuned/util"
)

// LocalMode prints one fortune from the in-process provider, reading
// it in Chunk-sized pieces exactly as a remote client would.
type LocalMode struct {
	Namespace *pseudofs.Namespace
	Name      string
	Chunk     int
	Logger    *util.Logger

	// Stdout defaults to os.Stdout when nil.
	Stdout io.Writer
}

// Run opens a session, copies it to Stdout and closes it.  The
// namespace is torn down when Run returns.
func (m *LocalMode) Run(ctx context.Context) (err error) {
	out := m.Stdout
	if out == nil {
		out = os.Stdout
	}
	defer closeNamespace(m.Namespace, m.Logger)

	f, err := m.Namespace.OpenFile(m.Name)
	if err != nil {
		return fmt.Errorf("open %s: %w", m.Name, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", m.Name, cerr)
		}
	}()

	n, err := util.CopyChunked(ctx, out, f, m.Chunk)
	if err != nil {
		return fmt.Errorf("output: %w", err)
	}
	m.Logger.Debug("printed %d bytes", n)
	return nil
}

// closeNamespace removes every entry of ns, logging each removal.
func closeNamespace(ns *pseudofs.Namespace, logger *util.Logger) {
	if ns == nil {
		return
	}
	if err := ns.Close(); err != nil {
		logger.Warn("namespace: %v", err)
	}
}
