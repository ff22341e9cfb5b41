package transport

import (
	"net"
	"sync"
	"sync/atomic"
)

// Conn is an established stream owned by exactly one component. Close is
// safe to call any number of times; only the first call reaches the socket.
type Conn struct {
	net.Conn

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool
}

func NewConn(c net.Conn) *Conn {
	return &Conn{Conn: c}
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.Conn.Close()
	})
	return c.closeErr
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	return c.closed.Load()
}

func (c *Conn) RemoteHost() string {
	host, _, err := net.SplitHostPort(c.RemoteAddr().String())
	if err != nil {
		return c.RemoteAddr().String()
	}
	return host
}
