// Package chat runs the text channel between two peers on its own
// connection. Messages are single JSON lines, optionally encrypted with the
// shared key. Text sent while the connection is down waits in a bounded
// queue and is flushed once connected.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rudransh-shrivastava/p2p-share/internal/config"
	"github.com/rudransh-shrivastava/p2p-share/internal/crypto"
	"github.com/rudransh-shrivastava/p2p-share/internal/event"
	"github.com/rudransh-shrivastava/p2p-share/internal/logger"
	"github.com/rudransh-shrivastava/p2p-share/internal/netutil"
	"github.com/rudransh-shrivastava/p2p-share/internal/protocol"
	"github.com/rudransh-shrivastava/p2p-share/internal/transport"
	"github.com/sirupsen/logrus"
)

// responderAttempts is fixed; the initiator uses the configured retries.
const responderAttempts = 3

const timestampLayout = "2006-01-02 15:04:05"

type Role int

const (
	RoleResponder Role = iota
	RoleInitiator
)

func (r Role) String() string {
	if r == RoleInitiator {
		return "initiator"
	}
	return "responder"
}

type State int

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateDisconnected:
		return "DISCONNECTED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// History persists chat lines. It is optional.
type History interface {
	RecordChat(sender, text string, at time.Time) error
}

type Options struct {
	Role Role
	// Peer is the initiator's target; its port is replaced by the chat port.
	Peer netutil.PeerAddress
	// Cipher encrypts message text. Nil sends plaintext.
	Cipher  *crypto.Cipher
	Events  event.Sink
	Logger  *logrus.Logger
	History History
}

type Session struct {
	cfg     *config.Config
	role    Role
	peer    netutil.PeerAddress
	cipher  *crypto.Cipher
	events  event.Sink
	logger  *logrus.Logger
	history History

	connector *transport.Connector
	queue     *Queue

	mu     sync.Mutex
	state  State
	conn   *transport.Conn
	cancel context.CancelFunc

	writeMu   sync.Mutex
	wg        sync.WaitGroup
	closeOnce sync.Once

	done     chan struct{}
	doneOnce sync.Once
}

func New(cfg *config.Config, opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	var sink event.Sink = event.Nop{}
	if opts.Events != nil {
		sink = opts.Events
	}

	return &Session{
		cfg:     cfg,
		role:    opts.Role,
		peer:    opts.Peer,
		cipher:  opts.Cipher,
		events:  sink,
		logger:  log,
		history: opts.History,
		connector: transport.NewConnector(transport.Config{
			Timeout: cfg.SocketTimeout,
			Logger:  log,
			Events:  sink,
		}),
		queue: NewQueue(cfg.QueueCapacity),
		state: StateConnecting,
		done:  make(chan struct{}),
	}
}

// Start establishes the chat connection using the role's retry policy and
// launches the receive and flush loops. A failed setup is reported through
// events and leaves the session Disconnected: Send keeps queueing.
func (s *Session) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		cancel()
		return
	}
	s.cancel = cancel
	s.mu.Unlock()

	conn := s.establish(ctx)
	if conn == nil {
		s.mu.Lock()
		if s.state != StateClosed {
			s.state = StateDisconnected
		}
		s.mu.Unlock()
		if ctx.Err() == nil {
			s.status(event.SeverityError, "Failed to establish chat connection")
		}
		return
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.state = StateConnected
	s.wg.Add(2)
	s.mu.Unlock()

	s.status(event.SeveritySuccess, "Chat connected successfully!")
	s.logger.WithFields(logrus.Fields{"role": s.role.String(), "peer": conn.RemoteAddr().String()}).Info("Chat connected")

	go s.receiveLoop(ctx, conn)
	go s.flushLoop(ctx)
}

func (s *Session) establish(ctx context.Context) *transport.Conn {
	if s.role == RoleInitiator {
		addr, err := s.peer.WithPort(s.cfg.ChatPort)
		if err != nil {
			s.status(event.SeverityError, fmt.Sprintf("Chat error: %v", err))
			return nil
		}
		s.status(event.SeverityInfo, fmt.Sprintf("Connecting to chat at %s...", addr.IP()))
		return s.connector.Connect(ctx, addr, s.cfg.MaxRetries, s.cfg.RetryDelay)
	}

	for attempt := 1; attempt <= responderAttempts; attempt++ {
		s.status(event.SeverityInfo, "Waiting for chat connection...")
		conn, err := s.connector.ListenAndAccept(ctx, s.cfg.ChatPort)
		if err == nil {
			return conn
		}
		if ctx.Err() != nil {
			return nil
		}

		s.status(event.SeverityWarning, fmt.Sprintf("Chat error: %v (attempt %d/%d)", err, attempt, responderAttempts))
		if transport.KindOf(err) != transport.ErrAcceptTimeout {
			return nil
		}
		if attempt < responderAttempts {
			if err := sleep(ctx, s.cfg.RetryDelay); err != nil {
				return nil
			}
		}
	}
	return nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pending reports how many messages wait in the outbound queue.
func (s *Session) Pending() int {
	return s.queue.Len()
}

// Send delivers text, or queues it while the connection is down. Blank text
// is ignored, as is anything sent after Close. Send never blocks on the
// network for longer than the socket timeout and never returns an error.
func (s *Session) Send(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	switch s.State() {
	case StateClosed:
		return
	case StateConnected:
		s.deliver(text)
	default:
		s.enqueue(text)
	}
}

func (s *Session) deliver(text string) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		s.enqueue(text)
		return
	}

	wire := text
	if s.cipher != nil {
		enc, err := s.cipher.Encrypt(text)
		if err != nil {
			s.logger.WithFields(logrus.Fields{"error": err}).Warn("Encryption failed, sending plaintext")
		} else {
			wire = enc
		}
	}

	msg := protocol.NewChatMessage(wire)
	data, err := protocol.EncodeChat(msg)
	if err == nil {
		s.writeMu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.SocketTimeout))
		_, err = conn.Write(data)
		s.writeMu.Unlock()
	}
	if err != nil {
		s.status(event.SeverityWarning, fmt.Sprintf("Failed to send message: %v", err))
		s.logger.WithFields(logrus.Fields{"error": err}).Warn("Chat write failed, message re-queued")
		s.enqueue(text)
		s.disconnect()
		return
	}

	s.status(event.SeveritySuccess, "Message sent")
	s.events.Publish(event.Chat(event.CategoryLocal, "You: "+text))
	s.record(string(protocol.SenderLocal), text, msg.Time())
}

func (s *Session) enqueue(text string) {
	if _, evicted := s.queue.Push(text); evicted {
		s.status(event.SeverityWarning, "Outbound queue full, dropped the oldest message")
		s.logger.WithFields(logrus.Fields{"capacity": s.cfg.QueueCapacity}).Warn("Chat queue overflow")
	}
}

func (s *Session) receiveLoop(ctx context.Context, conn *transport.Conn) {
	defer s.wg.Done()

	buf := make([]byte, s.cfg.BufferSize)
	lines := protocol.NewLineBuffer(0)

	for ctx.Err() == nil {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.SocketTimeout))
		n, err := conn.Read(buf)
		if n > 0 {
			complete, ferr := lines.Feed(buf[:n])
			for _, line := range complete {
				s.handleLine(line)
			}
			if ferr != nil {
				s.status(event.SeverityWarning, fmt.Sprintf("Chat error: %v", ferr))
			}
		}
		if err == nil {
			continue
		}

		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() && ctx.Err() == nil {
			continue
		}
		if ctx.Err() != nil || conn.Closed() {
			return
		}
		if !errors.Is(err, io.EOF) {
			s.status(event.SeverityWarning, fmt.Sprintf("Chat error: %v", err))
		}
		break
	}

	s.disconnect()
}

func (s *Session) handleLine(line []byte) {
	msg, structured := protocol.DecodeChat(line)
	if !structured {
		s.events.Publish(event.Chat(event.CategoryRemote, "Peer: "+msg.Text))
		s.record(string(protocol.SenderRemote), msg.Text, time.Now())
		return
	}

	text := msg.Text
	if s.cipher != nil {
		plain, err := s.cipher.Decrypt(text)
		if err != nil {
			s.logger.WithFields(logrus.Fields{"error": err}).Warn("Decryption failed, showing text as received")
		} else {
			text = plain
		}
	}

	at := msg.Time()
	if at.IsZero() {
		at = time.Now()
	}
	s.events.Publish(event.Chat(event.CategoryRemote, fmt.Sprintf("%s Peer: %s", at.Format(timestampLayout), text)))
	s.status(event.SeverityInfo, "New message received")
	s.record(string(protocol.SenderRemote), text, at)
}

// flushLoop sends the oldest queued message once per flush interval.
func (s *Session) flushLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.State() != StateConnected {
				continue
			}
			if msg, ok := s.queue.Pop(); ok {
				s.deliver(msg)
			}
		}
	}
}

// disconnect tears down after a read failure. Queued and future messages
// stay in the queue.
func (s *Session) disconnect() {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return
	}
	s.state = StateDisconnected
	conn := s.conn
	s.conn = nil
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	if err := conn.Close(); err != nil {
		s.logger.WithFields(logrus.Fields{"error": err}).Debug("Closing chat connection")
	}
	s.finish()
	s.status(event.SeverityWarning, "Chat disconnected")
	s.logger.WithFields(logrus.Fields{"pending": s.queue.Len()}).Info("Chat disconnected")
}

// Close stops both loops and closes the connection. It is safe to call more
// than once and from any goroutine other than the loops.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		conn := s.conn
		s.conn = nil
		cancel := s.cancel
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if conn != nil {
			if err := conn.Close(); err != nil {
				s.status(event.SeverityWarning, fmt.Sprintf("Error closing chat: %v", err))
			}
		}
		s.wg.Wait()
		s.finish()
	})
	return nil
}

// Done is closed when a connected session drops or the session is closed.
// A failed setup leaves it open so queued messages still wait for a peer.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Session) record(sender, text string, at time.Time) {
	if s.history == nil {
		return
	}
	if err := s.history.RecordChat(sender, text, at); err != nil {
		s.logger.WithFields(logrus.Fields{"error": err}).Warn("Failed to record chat message")
	}
}

func (s *Session) status(sev event.Severity, msg string) {
	s.events.Publish(event.Status(sev, msg))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
