package capability

import (
	"context"
	"fmt"
	"io"

	"fortuned/internal/session"
	"fortuned/internal/wire"
	"fortuned/util"
)

// Fetch is the client side: it opens one remote session, drains it
// with Chunk-sized READs and writes the fortune to the session's
// Stdout.
type Fetch struct {
	Name  string // resource to open; the server default if empty
	Chunk int
}

// Handle runs OPEN, READ… until end of data, CLOSE, QUIT.
func (f *Fetch) Handle(ctx context.Context, sess *session.Session) (err error) {
	stop := closeOnDone(ctx, sess)
	defer stop()

	chunk := f.Chunk
	if chunk <= 0 || chunk > wire.MaxReadSize {
		chunk = wire.MaxReadSize
	}

	c := wire.NewClient(sess.Conn)

	h, err := c.Open(f.Name)
	if err != nil {
		return f.fail(ctx, "open", err)
	}
	sess.Logger.Debug("opened remote session %s", h)

	defer func() {
		if cerr := c.Close(h); cerr != nil && err == nil {
			err = f.fail(ctx, "close", cerr)
			return
		}
		if qerr := c.Quit(); qerr != nil && !util.IsHarmless(qerr) {
			sess.Logger.Debug("quit: %v", qerr)
		}
	}()

	buf := make([]byte, chunk)
	var total int
	for {
		n, err := c.Read(h, buf)
		if err != nil {
			return f.fail(ctx, "read", err)
		}
		if n == 0 {
			break
		}
		total += n
		if _, err := sess.Stdout.Write(buf[:n]); err != nil {
			return fmt.Errorf("output: %w", err)
		}
	}

	sess.Logger.Verbose("received %d bytes in %d-byte reads", total, chunk)
	return nil
}

func (f *Fetch) fail(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%s: %w", op, err)
}
