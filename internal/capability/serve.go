package capability

import (
	"bufio"
	"context"
	"errors"
	"strconv"

	ncerr "fortuned/internal/errors"
	"fortuned/internal/fortune"
	"fortuned/internal/metrics"
	"fortuned/internal/pseudofs"
	"fortuned/internal/session"
	"fortuned/internal/wire"
	"fortuned/util"
)

// Serve runs the wire protocol against a namespace.  Handles are
// scoped to the connection: a handle opened elsewhere is invalid here,
// and every handle still open when the connection ends is closed.
type Serve struct {
	Namespace *pseudofs.Namespace
	Metrics   *metrics.Collector
}

// openSession remembers which resource a connection-local handle
// belongs to.
type openSession struct {
	res pseudofs.Resource
}

// Handle reads requests until QUIT, EOF, a transport error, or ctx is
// cancelled.
func (s *Serve) Handle(ctx context.Context, sess *session.Session) error {
	stop := closeOnDone(ctx, sess)
	defer stop()

	open := make(map[fortune.Handle]openSession)
	defer func() {
		if len(open) > 0 {
			sess.Logger.Debug("releasing %d session(s) left open", len(open))
		}
		for h, o := range open {
			if err := o.res.Close(h); err != nil {
				sess.Logger.Warn("release %s: %v", h, err)
			}
		}
	}()

	sc := bufio.NewScanner(sess.Conn)
	sc.Buffer(make([]byte, 0, 256), wire.MaxLineSize)

	w := bufio.NewWriter(sess.Conn)

	for sc.Scan() {
		cmd, perr := wire.ParseCommand(sc.Text())
		if perr != nil {
			sess.Logger.Debug("bad request %q: %v", sc.Text(), perr)
			if err := s.reply(sess, w, func() error { return wire.WriteError(w, perr) }); err != nil {
				return err
			}
			continue
		}

		quit := cmd.Verb == wire.VerbQuit
		if err := s.reply(sess, w, func() error { return s.dispatch(cmd, open, w) }); err != nil {
			return err
		}
		if quit {
			return nil
		}
	}

	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			s.reply(sess, w, func() error { //nolint:errcheck
				return wire.WriteError(w, &ncerr.ProtocolError{
					Code: wire.CodeBadRequest, Message: "request line too long"})
			})
			return nil
		}
		if ctx.Err() != nil || util.IsHarmless(err) {
			return nil
		}
		return ncerr.Wrap("read", sess.Peer(), err)
	}
	return nil
}

// reply runs write and flushes.  Transport failures are logged as
// warnings and returned; they are never retried here.
func (s *Serve) reply(sess *session.Session, w *bufio.Writer, write func() error) error {
	err := write()
	if err == nil {
		err = w.Flush()
	}
	if err != nil {
		sess.Logger.Warn("write to %s failed: %v", sess.Peer(), err)
		s.Metrics.RecordError(err.Error())
		return ncerr.Wrap("write", sess.Peer(), err)
	}
	return nil
}

// dispatch executes one command and writes its reply.  Errors from the
// resource become ERR replies; only write errors are returned.
func (s *Serve) dispatch(cmd wire.Command, open map[fortune.Handle]openSession, w *bufio.Writer) error {
	switch cmd.Verb {
	case wire.VerbOpen:
		res, h, err := s.Namespace.Open(cmd.Name)
		if err != nil {
			return wire.WriteError(w, err)
		}
		open[h] = openSession{res: res}
		return wire.WriteLine(w, wire.StatusOK, string(h))

	case wire.VerbRead:
		o, ok := open[cmd.Handle]
		if !ok {
			return wire.WriteError(w, fortune.ErrInvalidHandle)
		}
		b := util.GetBuf(cmd.Size)
		defer b.Release()
		buf := b.B

		n, err := o.res.Read(cmd.Handle, buf)
		if err != nil {
			return wire.WriteError(w, err)
		}
		return wire.WriteData(w, buf[:n])

	case wire.VerbStat:
		o, ok := open[cmd.Handle]
		if !ok {
			return wire.WriteError(w, fortune.ErrInvalidHandle)
		}
		st, ok := o.res.(interface {
			Stat(fortune.Handle) (fortune.SessionInfo, error)
		})
		if !ok {
			return wire.WriteError(w, &ncerr.ProtocolError{
				Code: wire.CodeBadRequest, Message: "resource does not support STAT"})
		}
		info, err := st.Stat(cmd.Handle)
		if err != nil {
			return wire.WriteError(w, err)
		}
		return wire.WriteLine(w, wire.StatusOK,
			strconv.Itoa(info.Index), strconv.Itoa(info.Offset), strconv.Itoa(info.Size))

	case wire.VerbClose:
		o, ok := open[cmd.Handle]
		if !ok {
			return wire.WriteError(w, fortune.ErrInvalidHandle)
		}
		delete(open, cmd.Handle)
		if err := o.res.Close(cmd.Handle); err != nil {
			return wire.WriteError(w, err)
		}
		return wire.WriteLine(w, wire.StatusOK)

	case wire.VerbList:
		return wire.WriteLine(w, wire.StatusOK, s.Namespace.Names()...)

	case wire.VerbPing:
		return wire.WriteLine(w, wire.StatusPong)

	case wire.VerbQuit:
		return wire.WriteLine(w, wire.StatusBye)
	}
	return wire.WriteError(w, &ncerr.ProtocolError{Code: wire.CodeBadRequest, Message: "unsupported command"})
}
