// Package node wires one peer together: the transfer connection, the chat
// session, the file receive loop and the optional history store.
package node

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rudransh-shrivastava/p2p-share/internal/chat"
	"github.com/rudransh-shrivastava/p2p-share/internal/config"
	"github.com/rudransh-shrivastava/p2p-share/internal/crypto"
	"github.com/rudransh-shrivastava/p2p-share/internal/event"
	"github.com/rudransh-shrivastava/p2p-share/internal/logger"
	"github.com/rudransh-shrivastava/p2p-share/internal/netutil"
	"github.com/rudransh-shrivastava/p2p-share/internal/store"
	"github.com/rudransh-shrivastava/p2p-share/internal/transfer"
	"github.com/rudransh-shrivastava/p2p-share/internal/transport"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotConnected     = errors.New("not connected to a peer")
	ErrAlreadyConnected = errors.New("already connected to a peer")
	ErrNotInitiator     = errors.New("only the connecting side sends files")
	ErrConnectFailed    = errors.New("could not connect to peer")
	ErrClosed           = errors.New("node is closed")
)

type Options struct {
	Logger *logrus.Logger
	Events event.Sink
	// Store records transfers and chat lines. Nil disables history.
	Store  *store.Store
	Cipher *crypto.Cipher
}

type Node struct {
	cfg    *config.Config
	logger *logrus.Logger
	events event.Sink
	store  *store.Store
	cipher *crypto.Cipher

	connector *transport.Connector
	engine    *transfer.Engine

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	doneOnce sync.Once

	mu     sync.Mutex
	role   chat.Role
	conn   *transport.Conn
	chat   *chat.Session
	closed bool

	// sendMu keeps file sends on the transfer connection one at a time.
	sendMu    sync.Mutex
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func New(cfg *config.Config, opts Options) *Node {
	log := opts.Logger
	if log == nil {
		log = logger.NewLogger()
	}
	var sink event.Sink = event.Nop{}
	if opts.Events != nil {
		sink = opts.Events
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Node{
		cfg:    cfg,
		logger: log,
		events: sink,
		store:  opts.Store,
		cipher: opts.Cipher,
		connector: transport.NewConnector(transport.Config{
			Timeout: cfg.SocketTimeout,
			Logger:  log,
			Events:  sink,
		}),
		engine: transfer.New(transfer.Config{
			BufferSize: cfg.BufferSize,
			Timeout:    cfg.SocketTimeout,
			Dir:        cfg.SharedDir,
			Logger:     log,
			Events:     sink,
		}),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Listen waits for a peer on the transfer port, then starts the chat
// responder and the file receive loop in the background.
func (n *Node) Listen(ctx context.Context) error {
	if err := n.checkIdle(); err != nil {
		return err
	}

	conn, err := n.connector.ListenAndAccept(ctx, n.cfg.Port)
	if err != nil {
		return err
	}
	peer, err := netutil.ParsePeerAddress(conn.RemoteHost(), n.cfg.Port)
	if err != nil {
		_ = conn.Close()
		return err
	}
	if err := n.attach(chat.RoleResponder, conn, peer); err != nil {
		return err
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer n.finish()
		n.engine.ReceiveLoop(n.ctx, conn, func(res transfer.Result) {
			n.recordTransfer(res, peer.IP().String())
		})
	}()
	return nil
}

// Dial connects to the responder at host and starts the chat initiator.
func (n *Node) Dial(ctx context.Context, host string) error {
	if err := n.checkIdle(); err != nil {
		return err
	}

	addr, err := netutil.ParsePeerAddress(host, n.cfg.Port)
	if err != nil {
		return err
	}
	conn := n.connector.Connect(ctx, addr, n.cfg.MaxRetries, n.cfg.RetryDelay)
	if conn == nil {
		return ErrConnectFailed
	}
	return n.attach(chat.RoleInitiator, conn, addr)
}

func (n *Node) checkIdle() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return ErrClosed
	}
	if n.conn != nil {
		return ErrAlreadyConnected
	}
	return nil
}

func (n *Node) attach(role chat.Role, conn *transport.Conn, peer netutil.PeerAddress) error {
	opts := chat.Options{
		Role:   role,
		Peer:   peer,
		Cipher: n.cipher,
		Events: n.events,
		Logger: n.logger,
	}
	if n.store != nil {
		opts.History = n.store
	}
	session := chat.New(n.cfg, opts)

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	n.role = role
	n.conn = conn
	n.chat = session
	n.wg.Add(1)
	if role == chat.RoleInitiator {
		n.wg.Add(1)
	}
	n.mu.Unlock()

	n.logger.WithFields(logrus.Fields{"role": role.String(), "peer": peer.String()}).Info("Peer attached")

	go func() {
		defer n.wg.Done()
		session.Start(n.ctx)
	}()

	// The initiator never reads the transfer connection between sends, so a
	// dropped chat is how it notices the peer left.
	if role == chat.RoleInitiator {
		go func() {
			defer n.wg.Done()
			select {
			case <-session.Done():
				n.finish()
			case <-n.ctx.Done():
			}
		}()
	}
	return nil
}

// SendFile sends one file to the responder. Only the initiator sends.
func (n *Node) SendFile(ctx context.Context, path string) (transfer.Result, error) {
	n.mu.Lock()
	conn, role, closed := n.conn, n.role, n.closed
	n.mu.Unlock()

	switch {
	case closed:
		return transfer.Result{}, ErrClosed
	case conn == nil:
		return transfer.Result{}, ErrNotConnected
	case role != chat.RoleInitiator:
		return transfer.Result{}, ErrNotInitiator
	}

	n.sendMu.Lock()
	defer n.sendMu.Unlock()

	res := n.engine.Send(ctx, conn, path)
	n.recordTransfer(res, conn.RemoteHost())
	return res, nil
}

// SendChat hands text to the chat session. Before a peer is attached the
// text is dropped with ErrNotConnected.
func (n *Node) SendChat(text string) error {
	n.mu.Lock()
	session := n.chat
	n.mu.Unlock()

	if session == nil {
		return ErrNotConnected
	}
	session.Send(text)
	return nil
}

// ChatState reports the chat session state, or Connecting before a peer is
// attached.
func (n *Node) ChatState() chat.State {
	n.mu.Lock()
	session := n.chat
	n.mu.Unlock()

	if session == nil {
		return chat.StateConnecting
	}
	return session.State()
}

// Done is closed when the peer goes away: the responder's file receive loop
// ended, or the initiator's chat connection dropped.
func (n *Node) Done() <-chan struct{} {
	return n.done
}

func (n *Node) finish() {
	n.doneOnce.Do(func() { close(n.done) })
}

// Close tears everything down. It is idempotent.
func (n *Node) Close() error {
	n.closeOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		conn, session := n.conn, n.chat
		n.mu.Unlock()

		n.cancel()
		if session != nil {
			_ = session.Close()
		}
		if conn != nil {
			if err := conn.Close(); err != nil {
				n.logger.WithFields(logrus.Fields{"error": err}).Debug("Closing transfer connection")
			}
		}
		n.wg.Wait()
		n.logger.Info("Node stopped")
	})
	return nil
}

func (n *Node) recordTransfer(res transfer.Result, peer string) {
	if n.store == nil {
		return
	}

	status := store.StatusOK
	if !res.OK {
		status = store.StatusFailed
	}
	rec := &store.Transfer{
		Direction: string(res.Direction),
		Name:      res.Name,
		Size:      int64(res.Bytes),
		Status:    status,
		Message:   res.Message,
		Peer:      peer,
		StartedAt: time.Now().Add(-res.Elapsed),
		Duration:  res.Elapsed,
	}
	if err := n.store.RecordTransfer(context.Background(), rec); err != nil {
		n.logger.WithFields(logrus.Fields{"file": res.Name, "error": err}).Warn("Failed to record transfer")
	}
}
