package tunnel

import (
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// ChannelConn adapts an ssh.Channel to net.Conn so that capabilities
// can run over an SSH session exactly as over TCP.
//
// SSH channels have no deadlines of their own and share one TCP
// connection, so the deadline setters are no-ops.
type ChannelConn struct {
	ssh.Channel
	local  net.Addr
	remote net.Addr

	server    bool
	closeOnce sync.Once
	closeErr  error
}

// NewChannelConn wraps ch.  When server is true, Close first reports
// exit status 0 so that an interactive ssh client terminates cleanly.
func NewChannelConn(ch ssh.Channel, local, remote net.Addr, server bool) *ChannelConn {
	return &ChannelConn{Channel: ch, local: local, remote: remote, server: server}
}

// Close closes the channel once.
func (c *ChannelConn) Close() error {
	c.closeOnce.Do(func() {
		if c.server {
			status := struct{ Status uint32 }{0}
			c.Channel.SendRequest("exit-status", false, ssh.Marshal(&status)) //nolint:errcheck
		}
		c.closeErr = c.Channel.Close()
	})
	return c.closeErr
}

func (c *ChannelConn) LocalAddr() net.Addr                { return c.local }
func (c *ChannelConn) RemoteAddr() net.Addr               { return c.remote }
func (c *ChannelConn) SetDeadline(t time.Time) error      { return nil }
func (c *ChannelConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *ChannelConn) SetWriteDeadline(t time.Time) error { return nil }

var _ net.Conn = (*ChannelConn)(nil)
