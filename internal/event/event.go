// Package event carries one-way notifications from the peer core to whatever
// presents them. Publishers never block on the presentation layer.
package event

import (
	"sync"
	"sync/atomic"
)

type Kind uint8

const (
	KindStatus Kind = iota
	KindChat
	KindFileReceived
	KindProgress
)

func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "STATUS"
	case KindChat:
		return "CHAT"
	case KindFileReceived:
		return "FILE_RECEIVED"
	case KindProgress:
		return "PROGRESS"
	default:
		return "UNKNOWN"
	}
}

type Severity uint8

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeveritySuccess:
		return "success"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Category tags a chat line with who produced it.
type Category string

const (
	CategoryLocal  Category = "local"
	CategoryRemote Category = "remote"
	CategorySystem Category = "system"
	CategoryError  Category = "error"
)

// Event is a tagged union; only the fields matching Kind are set.
type Event struct {
	Kind Kind

	// Status and Chat.
	Message  string
	Severity Severity
	Category Category

	// FileReceived.
	Path string

	// Progress.
	Moved uint64
	Total uint64
}

func Status(severity Severity, msg string) Event {
	return Event{Kind: KindStatus, Severity: severity, Message: msg}
}

func Chat(category Category, text string) Event {
	return Event{Kind: KindChat, Category: category, Message: text}
}

func FileReceived(path, msg string) Event {
	return Event{Kind: KindFileReceived, Path: path, Message: msg}
}

func Progress(moved, total uint64) Event {
	return Event{Kind: KindProgress, Moved: moved, Total: total}
}

// Sink accepts events. Bus is the production implementation; tests may use
// their own recorder.
type Sink interface {
	Publish(Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(Event) {}

const DefaultBufferSize = 256

// Bus fans events into a single buffered channel. Publish drops the event
// when the buffer is full or the bus is closed.
type Bus struct {
	ch      chan Event
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

func NewBus(size int) *Bus {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Bus{ch: make(chan Event, size)}
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.dropped.Add(1)
		return
	}

	select {
	case b.ch <- e:
	default:
		b.dropped.Add(1)
	}
}

// Events returns the channel consumers read from. It is closed by Close.
func (b *Bus) Events() <-chan Event {
	return b.ch
}

// Dropped reports how many events were discarded.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	close(b.ch)
}
