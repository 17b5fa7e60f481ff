package wire

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"sync"

	"fortuned/internal/fortune"
)

// Client speaks the request side of the protocol over a single
// connection.  Calls are serialised; the protocol is strictly
// request/reply.
type Client struct {
	mu sync.Mutex
	w  io.Writer
	r  *bufio.Reader
}

// NewClient wraps a connection.
func NewClient(rw io.ReadWriter) *Client {
	return &Client{w: rw, r: bufio.NewReader(rw)}
}

// Do sends cmd and returns the reply.
func (c *Client) Do(cmd Command) (*Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := io.WriteString(c.w, cmd.String()+"\n"); err != nil {
		return nil, fmt.Errorf("send %s: %w", cmd.Verb, err)
	}
	return ReadReply(c.r)
}

// Open opens a session on the named resource.
func (c *Client) Open(name string) (fortune.Handle, error) {
	rep, err := c.Do(Command{Verb: VerbOpen, Name: name})
	if err != nil {
		return "", err
	}
	if err := expect(rep, StatusOK, 1); err != nil {
		return "", err
	}
	return fortune.Handle(rep.Fields[0]), nil
}

// Read requests up to len(p) bytes of session h.  It returns 0, nil at
// end of data, mirroring Provider.Read.
func (c *Client) Read(h fortune.Handle, p []byte) (int, error) {
	n := len(p)
	if n == 0 {
		return 0, nil
	}
	if n > MaxReadSize {
		n = MaxReadSize
	}
	rep, err := c.Do(Command{Verb: VerbRead, Handle: h, Size: n})
	if err != nil {
		return 0, err
	}
	if err := expect(rep, StatusData, 1); err != nil {
		return 0, err
	}
	if len(rep.Data) > n {
		return 0, fmt.Errorf("server sent %d bytes for a %d byte read", len(rep.Data), n)
	}
	return copy(p, rep.Data), nil
}

// Stat reports the server-side state of session h.
func (c *Client) Stat(h fortune.Handle) (fortune.SessionInfo, error) {
	rep, err := c.Do(Command{Verb: VerbStat, Handle: h})
	if err != nil {
		return fortune.SessionInfo{}, err
	}
	if err := expect(rep, StatusOK, 3); err != nil {
		return fortune.SessionInfo{}, err
	}
	var v [3]int
	for i := range v {
		if v[i], err = strconv.Atoi(rep.Fields[i]); err != nil {
			return fortune.SessionInfo{}, fmt.Errorf("malformed STAT reply: %w", err)
		}
	}
	return fortune.SessionInfo{Index: v[0], Offset: v[1], Size: v[2]}, nil
}

// Close closes session h.
func (c *Client) Close(h fortune.Handle) error {
	rep, err := c.Do(Command{Verb: VerbClose, Handle: h})
	if err != nil {
		return err
	}
	return expect(rep, StatusOK, 0)
}

// List returns the resource names the server publishes.
func (c *Client) List() ([]string, error) {
	rep, err := c.Do(Command{Verb: VerbList})
	if err != nil {
		return nil, err
	}
	if err := expect(rep, StatusOK, 0); err != nil {
		return nil, err
	}
	return rep.Fields, nil
}

// Ping checks the server is responsive.
func (c *Client) Ping() error {
	rep, err := c.Do(Command{Verb: VerbPing})
	if err != nil {
		return err
	}
	return expect(rep, StatusPong, 0)
}

// Quit asks the server to end the connection.
func (c *Client) Quit() error {
	rep, err := c.Do(Command{Verb: VerbQuit})
	if err != nil {
		return err
	}
	return expect(rep, StatusBye, 0)
}

// expect checks the reply status and that at least minFields words
// follow it.
func expect(rep *Reply, status string, minFields int) error {
	if rep.Status != status {
		return fmt.Errorf("unexpected reply %s, want %s", rep.Status, status)
	}
	if len(rep.Fields) < minFields {
		return fmt.Errorf("short %s reply: %v", status, rep.Fields)
	}
	return nil
}
