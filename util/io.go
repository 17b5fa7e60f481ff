package util

import (
	"context"
	"errors"
	"io"
	"net"
)

// DefaultBufSize is the standard buffer size for network I/O (32 KiB).
const DefaultBufSize = 32 * 1024

// CopyChunked copies r to w issuing reads of at most chunk bytes, so a
// reader that honours partial reads is exercised with exactly that
// buffer size.  A chunk outside (0, DefaultBufSize] uses DefaultBufSize.
// The copy stops at io.EOF, on the first error, or when ctx is done.
func CopyChunked(ctx context.Context, w io.Writer, r io.Reader, chunk int) (int64, error) {
	if chunk <= 0 || chunk > DefaultBufSize {
		chunk = DefaultBufSize
	}

	b := GetBuf(chunk)
	defer b.Release()
	buf := b.B

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, rerr := r.Read(buf)
		if n > 0 {
			wn, werr := w.Write(buf[:n])
			total += int64(wn)
			if werr != nil {
				return total, werr
			}
			if wn != n {
				return total, io.ErrShortWrite
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return total, nil
			}
			return total, rerr
		}
	}
}

// IsHarmless returns true for errors that are expected when the peer
// goes away or the connection is torn down during shutdown.
func IsHarmless(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	// net.OpError wrapping "use of closed network connection"
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}
