package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
	"time"

	"github.com/rudransh-shrivastava/p2p-share/internal/event"
	"github.com/rudransh-shrivastava/p2p-share/internal/logger"
	"github.com/rudransh-shrivastava/p2p-share/internal/netutil"
	"github.com/sirupsen/logrus"
)

type Config struct {
	// BindHost is the local interface to listen on. Empty means all.
	BindHost string
	// Timeout bounds the accept wait and every connect attempt.
	Timeout time.Duration
	Logger  *logrus.Logger
	Events  event.Sink
}

type Connector struct {
	bindHost string
	timeout  time.Duration
	logger   *logrus.Logger
	events   event.Sink
}

func NewConnector(cfg Config) *Connector {
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}
	var sink event.Sink = event.Nop{}
	if cfg.Events != nil {
		sink = cfg.Events
	}

	return &Connector{
		bindHost: cfg.BindHost,
		timeout:  cfg.Timeout,
		logger:   log,
		events:   sink,
	}
}

// ListenAndAccept binds port, waits at most the configured timeout for one
// peer, then closes the listener. The returned Conn belongs to the caller.
func (c *Connector) ListenAndAccept(ctx context.Context, port int) (*Conn, error) {
	portStr := strconv.Itoa(port)
	c.status(event.SeverityInfo, "Starting server...")

	ln, err := listenConfig().Listen(ctx, "tcp", net.JoinHostPort(c.bindHost, portStr))
	if err != nil {
		kind := ErrBindFailed
		if errors.Is(err, syscall.EADDRINUSE) {
			kind = ErrPortInUse
		}
		cerr := &ConnectionError{Kind: kind, Addr: portStr, Err: err}
		c.fail(cerr)
		return nil, cerr
	}
	defer func() { _ = ln.Close() }()

	tcpLn := ln.(*net.TCPListener)
	if err := tcpLn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		cerr := &ConnectionError{Kind: ErrBindFailed, Addr: portStr, Err: err}
		c.fail(cerr)
		return nil, cerr
	}

	c.status(event.SeveritySuccess, fmt.Sprintf("Listening on %s:%d...", netutil.LocalIP(), port))
	c.logger.WithFields(logrus.Fields{"addr": ln.Addr().String()}).Info("Waiting for peer")

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	conn, err := tcpLn.Accept()
	if err != nil {
		var cerr *ConnectionError
		var netErr net.Error
		switch {
		case ctx.Err() != nil:
			cerr = &ConnectionError{Kind: ErrAcceptFailed, Addr: portStr, Err: ctx.Err()}
		case errors.As(err, &netErr) && netErr.Timeout():
			cerr = &ConnectionError{Kind: ErrAcceptTimeout, Addr: portStr, Err: err}
		default:
			cerr = &ConnectionError{Kind: ErrAcceptFailed, Addr: portStr, Err: err}
		}
		c.fail(cerr)
		return nil, cerr
	}

	peer := NewConn(conn)
	c.status(event.SeveritySuccess, fmt.Sprintf("Connected by %s", peer.RemoteHost()))
	c.logger.WithFields(logrus.Fields{"peer": conn.RemoteAddr().String(), "port": port}).Info("Peer connected")
	return peer, nil
}

// Connect dials addr up to maxAttempts times, sleeping retryDelay between
// attempts. It returns nil when every attempt failed or ctx was cancelled;
// callers must not proceed without a connection.
func (c *Connector) Connect(ctx context.Context, addr netutil.PeerAddress, maxAttempts int, retryDelay time.Duration) *Conn {
	host := addr.IP().String()
	d := dialer(c.timeout)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		c.status(event.SeverityInfo, fmt.Sprintf("Connecting to %s (attempt %d/%d)...", host, attempt, maxAttempts))

		conn, err := d.DialContext(ctx, "tcp", addr.String())
		if err == nil {
			c.status(event.SeveritySuccess, fmt.Sprintf("Successfully connected to %s", host))
			c.logger.WithFields(logrus.Fields{"peer": addr.String(), "attempt": attempt}).Info("Connected to peer")
			return NewConn(conn)
		}

		c.status(event.SeverityWarning, fmt.Sprintf("Attempt %d failed: %v", attempt, err))
		c.logger.WithFields(logrus.Fields{
			"peer":    addr.String(),
			"attempt": attempt,
			"error":   err,
		}).Warn("Connect attempt failed")

		if ctx.Err() != nil {
			break
		}
		if attempt < maxAttempts {
			if err := sleepCtx(ctx, retryDelay); err != nil {
				break
			}
		}
	}

	c.status(event.SeverityError, fmt.Sprintf("Failed to connect to %s after %d attempts", host, maxAttempts))
	return nil
}

func (c *Connector) status(sev event.Severity, msg string) {
	c.events.Publish(event.Status(sev, msg))
}

func (c *Connector) fail(err *ConnectionError) {
	c.status(event.SeverityError, fmt.Sprintf("Server error: %v", err))
	c.logger.WithFields(logrus.Fields{"kind": err.Kind.String(), "error": err.Err}).Error("Listen failed")
}
