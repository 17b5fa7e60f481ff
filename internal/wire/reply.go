package wire

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	ncerr "fortuned/internal/errors"
	"fortuned/internal/fortune"
	"fortuned/internal/pseudofs"
)

// Reply status keywords.
const (
	StatusOK   = "OK"
	StatusData = "DATA"
	StatusErr  = "ERR"
	StatusPong = "PONG"
	StatusBye  = "BYE"
)

// Reply is a decoded server reply.  ERR replies are returned as a
// *ProtocolError by ReadReply instead.
type Reply struct {
	Status string
	Fields []string // words after the status keyword
	Data   []byte   // DATA payload
}

// ── encoding (server side) ───────────────────────────────────────────

// WriteLine writes a status line made of status and fields.
func WriteLine(w io.Writer, status string, fields ...string) error {
	line := status
	if len(fields) > 0 {
		line += " " + strings.Join(fields, " ")
	}
	_, err := io.WriteString(w, line+"\n")
	return err
}

// WriteData writes a DATA reply carrying p.  An empty p is the
// end-of-data reply.
func WriteData(w io.Writer, p []byte) error {
	if _, err := fmt.Fprintf(w, "%s %d\n", StatusData, len(p)); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	_, err := w.Write(p)
	return err
}

// WriteError writes an ERR reply for err, choosing the code with
// ErrorCode.  Newlines in the message are flattened.
func WriteError(w io.Writer, err error) error {
	code := ErrorCode(err)
	msg := err.Error()
	var pe *ncerr.ProtocolError
	if errors.As(err, &pe) {
		msg = pe.Message
	}
	msg = strings.ReplaceAll(msg, "\n", " ")
	return WriteLine(w, StatusErr, code, msg)
}

// ErrorCode maps a server-side error onto a wire code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case ncerr.ProtocolCode(err) != "":
		return ncerr.ProtocolCode(err)
	case errors.Is(err, fortune.ErrInvalidHandle):
		return CodeInvalidHandle
	case errors.Is(err, fortune.ErrResourceExhausted):
		return CodeExhausted
	case errors.Is(err, pseudofs.ErrNotExist):
		return CodeNotFound
	default:
		return CodeInternal
	}
}

// ── decoding (client side) ───────────────────────────────────────────

// ReadReply reads one reply from r.  ERR replies come back as a
// *ProtocolError; a malformed reply is an ordinary error.
func ReadReply(r *bufio.Reader) (*Reply, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	line = strings.TrimRight(line, "\r\n")

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty reply")
	}

	rep := &Reply{Status: fields[0], Fields: fields[1:]}
	switch rep.Status {
	case StatusOK, StatusPong, StatusBye:
		return rep, nil

	case StatusErr:
		pe := &ncerr.ProtocolError{Code: CodeInternal}
		if len(rep.Fields) > 0 {
			pe.Code = rep.Fields[0]
			// Keep the message's original spacing.
			pe.Message = strings.TrimSpace(strings.TrimPrefix(
				strings.TrimPrefix(line, StatusErr), " "+pe.Code))
		}
		return nil, pe

	case StatusData:
		if len(rep.Fields) != 1 {
			return nil, fmt.Errorf("malformed DATA reply %q", line)
		}
		n, err := strconv.Atoi(rep.Fields[0])
		if err != nil || n < 0 || n > MaxReadSize {
			return nil, fmt.Errorf("invalid DATA length %q", rep.Fields[0])
		}
		rep.Data = make([]byte, n)
		if _, err := io.ReadFull(r, rep.Data); err != nil {
			return nil, fmt.Errorf("reading %d data bytes: %w", n, err)
		}
		return rep, nil

	default:
		return nil, fmt.Errorf("unknown reply %q", line)
	}
}
