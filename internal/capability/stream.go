package capability

import (
	"context"
	"fmt"

	ncerr "fortuned/internal/errors"
	"fortuned/internal/metrics"
	"fortuned/internal/pseudofs"
	"fortuned/internal/session"
	"fortuned/internal/wire"
	"fortuned/util"
)

// Stream writes one whole fortune to the connection and returns, in
// the manner of a quote-of-the-day service.  The session is read with
// Chunk-sized partial reads.
type Stream struct {
	Namespace *pseudofs.Namespace
	Name      string // resource to open; wire.DefaultResource if empty
	Chunk     int
	Metrics   *metrics.Collector
}

// Handle opens a session, copies it to the connection and closes it,
// also when the copy fails half way.
func (s *Stream) Handle(ctx context.Context, sess *session.Session) error {
	stop := closeOnDone(ctx, sess)
	defer stop()

	name := s.Name
	if name == "" {
		name = wire.DefaultResource
	}

	f, err := s.Namespace.OpenFile(name)
	if err != nil {
		s.Metrics.RecordError(err.Error())
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			sess.Logger.Warn("close %s: %v", f.Handle(), err)
		}
	}()

	n, err := util.CopyChunked(ctx, sess.Conn, f, s.Chunk)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		sess.Logger.Warn("delivery to %s failed after %d bytes: %v", sess.Peer(), n, err)
		s.Metrics.RecordError(err.Error())
		return ncerr.Wrap("write", sess.Peer(), err)
	}

	sess.Logger.Verbose("delivered %d bytes to %s", n, sess.Peer())
	return nil
}
