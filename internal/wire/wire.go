// Package wire is the line protocol spoken between a fortune client
// and server.  Requests are single text lines; replies are a status
// line optionally followed by a length-prefixed payload:
//
//	OPEN [name]            OK <handle>
//	READ <handle> <n>      DATA <k>\n<k bytes>      (k = 0 at end)
//	STAT <handle>          OK <index> <offset> <size>
//	CLOSE <handle>         OK
//	LIST                   OK <name>...
//	PING                   PONG
//	QUIT                   BYE
//
// Any request may instead be answered with "ERR <code> <message>".
package wire

import (
	"fmt"
	"strconv"
	"strings"

	ncerr "fortuned/internal/errors"
	"fortuned/internal/fortune"
)

// Verb is a request keyword.  Parsing is case-insensitive; Verb values
// are always upper case.
type Verb string

const (
	VerbOpen  Verb = "OPEN"
	VerbRead  Verb = "READ"
	VerbStat  Verb = "STAT"
	VerbClose Verb = "CLOSE"
	VerbList  Verb = "LIST"
	VerbPing  Verb = "PING"
	VerbQuit  Verb = "QUIT"
)

// Error codes carried in ERR replies.
const (
	CodeInvalidHandle = "INVALID_HANDLE"
	CodeExhausted     = "EXHAUSTED"
	CodeNotFound      = "NOT_FOUND"
	CodeBadRequest    = "BAD_REQUEST"
	CodeInternal      = "INTERNAL"
)

const (
	// DefaultResource is opened by a bare OPEN.
	DefaultResource = "fortuner"

	// MaxReadSize bounds the n of a single READ.  Larger requests are
	// served partially, which the protocol allows.
	MaxReadSize = 64 * 1024

	// MaxLineSize bounds a request line.
	MaxLineSize = 4096
)

// Command is a parsed request.
type Command struct {
	Verb   Verb
	Name   string         // OPEN
	Handle fortune.Handle // READ, STAT, CLOSE
	Size   int            // READ
}

// String encodes c as a request line without the trailing newline.
func (c Command) String() string {
	switch c.Verb {
	case VerbOpen:
		if c.Name == "" {
			return string(c.Verb)
		}
		return string(c.Verb) + " " + c.Name
	case VerbRead:
		return fmt.Sprintf("%s %s %d", c.Verb, c.Handle, c.Size)
	case VerbStat, VerbClose:
		return string(c.Verb) + " " + string(c.Handle)
	default:
		return string(c.Verb)
	}
}

// ParseCommand parses one request line.  Errors are *ProtocolError
// with CodeBadRequest.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, badRequest("empty command")
	}

	verb := Verb(strings.ToUpper(fields[0]))
	args := fields[1:]

	switch verb {
	case VerbOpen:
		switch len(args) {
		case 0:
			return Command{Verb: verb, Name: DefaultResource}, nil
		case 1:
			return Command{Verb: verb, Name: args[0]}, nil
		default:
			return Command{}, badRequest("OPEN takes at most one name")
		}

	case VerbRead:
		if len(args) != 2 {
			return Command{}, badRequest("usage: READ <handle> <n>")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return Command{}, badRequest(fmt.Sprintf("invalid read size %q", args[1]))
		}
		return Command{Verb: verb, Handle: fortune.Handle(args[0]), Size: n}, nil

	case VerbStat, VerbClose:
		if len(args) != 1 {
			return Command{}, badRequest(fmt.Sprintf("usage: %s <handle>", verb))
		}
		return Command{Verb: verb, Handle: fortune.Handle(args[0])}, nil

	case VerbList, VerbPing, VerbQuit:
		if len(args) != 0 {
			return Command{}, badRequest(fmt.Sprintf("%s takes no arguments", verb))
		}
		return Command{Verb: verb}, nil

	default:
		return Command{}, badRequest(fmt.Sprintf("unknown command %q", fields[0]))
	}
}

func badRequest(msg string) error {
	return &ncerr.ProtocolError{Code: CodeBadRequest, Message: msg}
}
