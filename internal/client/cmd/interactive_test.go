package cmd

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rudransh-shrivastava/p2p-share/internal/event"
	"github.com/rudransh-shrivastava/p2p-share/internal/node"
	"github.com/rudransh-shrivastava/p2p-share/internal/store"
	"github.com/rudransh-shrivastava/p2p-share/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePeer struct {
	mu      sync.Mutex
	chats   []string
	files   []string
	sendErr error
	done    chan struct{}
}

func newFakePeer() *fakePeer {
	return &fakePeer{done: make(chan struct{})}
}

func (f *fakePeer) SendChat(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, text)
	return nil
}

func (f *fakePeer) SendFile(ctx context.Context, path string) (transfer.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return transfer.Result{}, f.sendErr
	}
	f.files = append(f.files, path)
	return transfer.Result{OK: true, Name: path, Message: path + " sent"}, nil
}

func (f *fakePeer) Done() <-chan struct{} { return f.done }

func TestInteractDispatchesCommands(t *testing.T) {
	p := newFakePeer()
	rec := &event.Recorder{}
	in := strings.NewReader("hello\n/send a.txt\n/dance\n\n/quit\nnever read\n")

	interact(context.Background(), p, in, rec)

	assert.Equal(t, []string{"hello"}, p.chats)
	assert.Equal(t, []string{"a.txt"}, p.files)

	successes := rec.Statuses(event.SeveritySuccess)
	require.Len(t, successes, 1)
	assert.Equal(t, "a.txt sent", successes[0].Message)

	var unknown bool
	for _, e := range rec.OfKind(event.KindChat) {
		if e.Category == event.CategoryError && strings.Contains(e.Message, "/dance") {
			unknown = true
		}
	}
	assert.True(t, unknown)
}

func TestInteractStopsWhenPeerLeaves(t *testing.T) {
	p := newFakePeer()
	close(p.done)

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		interact(context.Background(), p, blockingReader{}, &event.Recorder{})
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("interact did not return after the peer left")
	}
}

func TestSendFileReportsRoleError(t *testing.T) {
	p := newFakePeer()
	p.sendErr = node.ErrNotInitiator
	rec := &event.Recorder{}

	res := sendFile(context.Background(), p, "a.txt", rec)

	assert.False(t, res.OK)
	warnings := rec.Statuses(event.SeverityWarning)
	require.Len(t, warnings, 1)
	assert.Equal(t, "Only the connecting side can send files", warnings[0].Message)
}

func TestPrintHistory(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	var buf bytes.Buffer

	printHistory(&buf, []store.Transfer{
		{Direction: "receive", Status: store.StatusOK, Name: "a.txt", Size: 2048, Peer: "10.0.0.2", StartedAt: at},
	}, []store.ChatMessage{
		{Sender: "Peer", Text: "hi", Timestamp: at},
	})

	out := buf.String()
	assert.Contains(t, out, "2024-03-01 12:30:00")
	assert.Contains(t, out, "a.txt")
	assert.Contains(t, out, "2.00 KB")
	assert.Contains(t, out, "<2024-03-01 12:30:00> Peer: hi")
}

func TestPrintHistoryEmpty(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, nil, nil)
	assert.Equal(t, "Transfers:\n  none\nChat:\n  none\n", buf.String())
}

type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) {
	select {}
}
