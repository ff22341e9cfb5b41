package transfer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"math/rand"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rudransh-shrivastava/p2p-share/internal/event"
	"github.com/rudransh-shrivastava/p2p-share/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBuffer = 1024

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func randomBytes(n int) []byte {
	data := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(data)
	return data
}

// roundTrip sends path from one end of a pipe and receives it on the other.
func roundTrip(t *testing.T, path string, sendEvents, recvEvents event.Sink) (sent, received Result, dir string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dir = t.TempDir()
	a, b := net.Pipe()
	defer func() { _ = a.Close() }()
	defer func() { _ = b.Close() }()

	sender := New(Config{BufferSize: testBuffer, Timeout: 2 * time.Second, Events: sendEvents})
	receiver := New(Config{BufferSize: testBuffer, Timeout: 2 * time.Second, Dir: dir, Events: recvEvents})

	done := make(chan Result, 1)
	go func() { done <- sender.Send(ctx, a, path) }()

	received = receiver.Receive(ctx, b)
	select {
	case sent = <-done:
	case <-ctx.Done():
		t.Fatal("Timeout waiting for sender")
	}
	return sent, received, dir
}

func TestSendReceiveRoundTrip(t *testing.T) {
	sizes := []int{0, 1, testBuffer - 1, testBuffer, testBuffer + 1, 10 * testBuffer}

	for _, size := range sizes {
		src := writeFile(t, t.TempDir(), "payload.bin", randomBytes(size))

		sent, received, dir := roundTrip(t, src, nil, nil)
		require.True(t, sent.OK, "send %d bytes: %v", size, sent.Err)
		require.True(t, received.OK, "receive %d bytes: %v", size, received.Err)

		assert.Equal(t, uint64(size), sent.Bytes)
		assert.Equal(t, uint64(size), received.Bytes)
		assert.Equal(t, filepath.Join(dir, "payload.bin"), received.Path)

		want, _ := os.ReadFile(src)
		got, err := os.ReadFile(received.Path)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(want, got), "content differs for size %d", size)

		_, err = os.Stat(received.Path + partSuffix)
		assert.True(t, os.IsNotExist(err), "temp file must be renamed away")
	}
}

func TestContentEndingWithMarkerIsIntact(t *testing.T) {
	contents := [][]byte{
		[]byte(protocol.EndMarker),
		[]byte("some text followed by " + protocol.EndMarker),
		append(randomBytes(testBuffer-2), []byte(protocol.EndMarker)...),
	}

	for i, data := range contents {
		src := writeFile(t, t.TempDir(), "marker.txt", data)
		_, received, _ := roundTrip(t, src, nil, nil)
		require.True(t, received.OK, "case %d: %v", i, received.Err)

		got, err := os.ReadFile(received.Path)
		require.NoError(t, err)
		assert.Equal(t, data, got, "case %d", i)
	}
}

func TestProgressMonotonic(t *testing.T) {
	size := 10*testBuffer + 17
	src := writeFile(t, t.TempDir(), "big.bin", randomBytes(size))

	sendEvents := &event.Recorder{}
	recvEvents := &event.Recorder{}
	sent, received, _ := roundTrip(t, src, sendEvents, recvEvents)
	require.True(t, sent.OK)
	require.True(t, received.OK)

	for name, rec := range map[string]*event.Recorder{"send": sendEvents, "receive": recvEvents} {
		updates := rec.OfKind(event.KindProgress)
		require.NotEmpty(t, updates, name)

		var last uint64
		for _, u := range updates {
			assert.GreaterOrEqual(t, u.Moved, last, "%s progress went backwards", name)
			assert.Equal(t, uint64(size), u.Total)
			last = u.Moved
		}
		assert.Equal(t, uint64(size), updates[len(updates)-1].Moved, "%s final progress", name)
	}
}

func TestEmptyFile(t *testing.T) {
	src := writeFile(t, t.TempDir(), "empty.txt", nil)

	sendEvents := &event.Recorder{}
	sent, received, dir := roundTrip(t, src, sendEvents, nil)
	require.True(t, sent.OK)
	require.True(t, received.OK)

	info, err := os.Stat(filepath.Join(dir, "empty.txt"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
	assert.Contains(t, received.Message, "0.00 B")
	assert.True(t, strings.HasPrefix(received.Message, "Received empty.txt (0.00 B) in "))
	assert.True(t, strings.HasPrefix(sent.Message, "empty.txt (0.00 B) sent in "))

	updates := sendEvents.OfKind(event.KindProgress)
	require.Len(t, updates, 1)
	assert.Equal(t, uint64(0), updates[0].Moved)
}

func TestSendFileNotFound(t *testing.T) {
	a, b := net.Pipe()
	defer func() { _ = a.Close() }()
	defer func() { _ = b.Close() }()

	res := New(Config{}).Send(context.Background(), a, filepath.Join(t.TempDir(), "missing.txt"))
	assert.False(t, res.OK)
	assert.Equal(t, ErrFileNotFound, KindOf(res.Err))
	assert.Equal(t, CategoryIO, KindOf(res.Err).Category())
	assert.Contains(t, res.Message, "missing.txt")
}

func TestSendHandshakeFailed(t *testing.T) {
	src := writeFile(t, t.TempDir(), "note.txt", []byte("hi"))
	a, b := net.Pipe()
	defer func() { _ = a.Close() }()
	defer func() { _ = b.Close() }()

	go func() {
		if _, err := protocol.ReadHeader(b); err == nil {
			_ = protocol.WriteAck(b, false)
		}
	}()

	res := New(Config{Timeout: 2 * time.Second}).Send(context.Background(), a, src)
	assert.False(t, res.OK)
	assert.Equal(t, ErrHandshakeFailed, KindOf(res.Err))
	assert.True(t, errors.Is(res.Err, &Error{Kind: ErrHandshakeFailed}))
	assert.Equal(t, uint64(0), res.Bytes)
}

// rawSend plays the sending side by hand so tests can corrupt the stream.
type rawFile struct {
	name   string
	data   []byte
	digest []byte
	// cut closes the connection after this many data bytes when >= 0.
	cut int
}

func rawSend(conn net.Conn, files []rawFile) error {
	defer func() { _ = conn.Close() }()

	for _, f := range files {
		if err := protocol.WriteHeader(conn, protocol.FileHeader{Name: f.name, Size: uint64(len(f.data))}); err != nil {
			return err
		}
		if err := protocol.ReadAck(conn); err != nil {
			if errors.Is(err, protocol.ErrBadAck) {
				continue
			}
			return err
		}
		data := f.data
		if f.cut >= 0 {
			data = data[:f.cut]
		}
		if len(data) > 0 {
			if err := protocol.WriteFrame(conn, data); err != nil {
				return err
			}
		}
		if f.cut >= 0 {
			return nil
		}

		var digest [protocol.HashSize]byte
		if f.digest != nil {
			copy(digest[:], f.digest)
		} else {
			sum := sha256.Sum256(f.data)
			copy(digest[:], sum[:])
		}
		if err := protocol.WriteTrailer(conn, digest); err != nil {
			return err
		}
	}
	return nil
}

func TestReceiveClosedMidStream(t *testing.T) {
	dir := t.TempDir()
	a, b := net.Pipe()
	defer func() { _ = b.Close() }()

	go func() {
		_ = rawSend(a, []rawFile{{name: "partial.bin", data: randomBytes(500), cut: 100}})
	}()

	res := New(Config{BufferSize: testBuffer, Dir: dir}).Receive(context.Background(), b)
	assert.False(t, res.OK)
	assert.Equal(t, ErrConnectionClosedEarly, KindOf(res.Err))
	assert.Equal(t, "partial.bin", res.Name)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no .part file may be left behind")
}

func TestReceiveRejectsInvalidName(t *testing.T) {
	dir := t.TempDir()
	a, b := net.Pipe()
	defer func() { _ = a.Close() }()
	defer func() { _ = b.Close() }()

	ackErr := make(chan error, 1)
	go func() {
		if err := protocol.WriteHeader(a, protocol.FileHeader{Name: "/../", Size: 1}); err != nil {
			ackErr <- err
			return
		}
		ackErr <- protocol.ReadAck(a)
	}()

	res := New(Config{Dir: dir}).Receive(context.Background(), b)
	assert.Equal(t, ErrInvalidFilename, KindOf(res.Err))
	assert.Equal(t, CategoryProtocol, KindOf(res.Err).Category())
	assert.ErrorIs(t, <-ackErr, protocol.ErrBadAck)
}

func TestReceiveChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	a, b := net.Pipe()
	defer func() { _ = b.Close() }()

	go func() {
		_ = rawSend(a, []rawFile{{name: "tampered.bin", data: []byte("payload"), digest: bytes.Repeat([]byte{1}, 32), cut: -1}})
	}()

	res := New(Config{Dir: dir}).Receive(context.Background(), b)
	assert.Equal(t, ErrChecksumMismatch, KindOf(res.Err))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReceiveLoop(t *testing.T) {
	dir := t.TempDir()
	a, b := net.Pipe()
	defer func() { _ = b.Close() }()

	go func() {
		_ = rawSend(a, []rawFile{
			{name: "first.txt", data: []byte("one"), cut: -1},
			{name: "bad.txt", data: []byte("two"), digest: make([]byte, 32), cut: -1},
			{name: "///", data: []byte("x"), cut: -1},
			{name: "third.txt", data: []byte("three"), cut: -1},
		})
	}()

	events := &event.Recorder{}
	var results []Result
	engine := New(Config{Dir: dir, Events: events})

	finished := make(chan struct{})
	go func() {
		engine.ReceiveLoop(context.Background(), b, func(r Result) { results = append(results, r) })
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("ReceiveLoop did not stop after the peer closed")
	}

	received := events.OfKind(event.KindFileReceived)
	require.Len(t, received, 2)
	assert.Equal(t, filepath.Join(dir, "first.txt"), received[0].Path)
	assert.Equal(t, filepath.Join(dir, "third.txt"), received[1].Path)

	warnings := events.Statuses(event.SeverityWarning)
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0].Message, "integrity")
	assert.Contains(t, warnings[1].Message, "invalid filename")

	infos := events.Statuses(event.SeverityInfo)
	require.Len(t, infos, 1)
	assert.Equal(t, "Connection closed by peer", infos[0].Message)

	require.Len(t, results, 3)
	assert.True(t, results[0].OK)
	assert.False(t, results[1].OK)
	assert.True(t, results[2].OK)

	got, err := os.ReadFile(filepath.Join(dir, "third.txt"))
	require.NoError(t, err)
	assert.Equal(t, "three", string(got))
}

func TestReceiveLoopStopsOnMidStreamClose(t *testing.T) {
	a, b := net.Pipe()
	defer func() { _ = b.Close() }()

	go func() {
		_ = rawSend(a, []rawFile{{name: "cut.bin", data: randomBytes(64), cut: 10}})
	}()

	events := &event.Recorder{}
	New(Config{Dir: t.TempDir(), Events: events}).ReceiveLoop(context.Background(), b, nil)

	errs := events.Statuses(event.SeverityError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "closed unexpectedly")
}

func TestReceiveLoopCancel(t *testing.T) {
	a, b := net.Pipe()
	defer func() { _ = a.Close() }()
	defer func() { _ = b.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		New(Config{Dir: t.TempDir()}).ReceiveLoop(ctx, b, nil)
		close(finished)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("ReceiveLoop ignored cancellation")
	}
}
