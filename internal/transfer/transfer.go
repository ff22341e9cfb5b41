// Package transfer moves single files over the primary connection.
//
// A transfer is a header naming the file and its size, an ACK or NAK from
// the receiver, length-prefixed data frames, and a trailer holding the end
// marker and a SHA-256 digest of the data. Frames carry explicit lengths, so
// file content never needs escaping.
package transfer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/rudransh-shrivastava/p2p-share/internal/event"
	"github.com/rudransh-shrivastava/p2p-share/internal/logger"
	"github.com/rudransh-shrivastava/p2p-share/internal/protocol"
	"github.com/sirupsen/logrus"
)

const partSuffix = ".part"

type Direction string

const (
	DirectionSend    Direction = "send"
	DirectionReceive Direction = "receive"
)

// Result is the outcome of one Send or Receive. Failures are reported here,
// never by panicking or closing the connection.
type Result struct {
	OK        bool
	Direction Direction
	Name      string
	// Path is the final location of a received file.
	Path    string
	Message string
	Err     error
	Bytes   uint64
	Elapsed time.Duration
}

type Config struct {
	// BufferSize is the largest data frame sent or accepted.
	BufferSize int
	// Timeout bounds every read and write once a transfer has started.
	// Zero disables it.
	Timeout time.Duration
	// Dir receives incoming files.
	Dir    string
	Logger *logrus.Logger
	Events event.Sink
}

type Engine struct {
	bufferSize int
	timeout    time.Duration
	dir        string
	logger     *logrus.Logger
	events     event.Sink
}

func New(cfg Config) *Engine {
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}
	var sink event.Sink = event.Nop{}
	if cfg.Events != nil {
		sink = cfg.Events
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 16 * 1024
	}

	return &Engine{
		bufferSize: size,
		timeout:    cfg.Timeout,
		dir:        cfg.Dir,
		logger:     log,
		events:     sink,
	}
}

// Send streams the file at path to the peer on conn.
func (e *Engine) Send(ctx context.Context, conn net.Conn, path string) Result {
	start := time.Now()
	res := Result{Direction: DirectionSend}

	name, err := SanitizeFileName(filepath.Base(path))
	if err != nil {
		return e.failed(res, newError(ErrInvalidFilename, filepath.Base(path), err))
	}
	res.Name = name

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return e.failed(res, newError(ErrFileNotFound, name, nil))
		}
		return e.failed(res, newError(ErrDiskIO, name, err))
	}
	if info.IsDir() {
		return e.failed(res, newError(ErrFileNotFound, name, errors.New("is a directory")))
	}

	f, err := os.Open(path)
	if err != nil {
		return e.failed(res, newError(ErrDiskIO, name, err))
	}
	defer func() { _ = f.Close() }()

	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	total := uint64(info.Size())
	if err := e.touch(ctx, conn); err != nil {
		return e.failed(res, newError(ErrTransferInterrupted, name, err))
	}
	if err := protocol.WriteHeader(conn, protocol.FileHeader{Name: name, Size: total}); err != nil {
		return e.failed(res, newError(ErrTransferInterrupted, name, err))
	}
	if err := protocol.ReadAck(conn); err != nil {
		if errors.Is(err, protocol.ErrBadAck) {
			return e.failed(res, newError(ErrHandshakeFailed, name, err))
		}
		return e.failed(res, e.streamError(ctx, name, err))
	}

	hash := sha256.New()
	buf := make([]byte, e.bufferSize)
	prog := newProgress(e.events, total, e.bufferSize)
	var sent uint64

	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			hash.Write(buf[:n])
			if err := e.touch(ctx, conn); err != nil {
				return e.failed(res, newError(ErrTransferInterrupted, name, err))
			}
			if err := protocol.WriteFrame(conn, buf[:n]); err != nil {
				res.Bytes = sent
				return e.failed(res, newError(ErrTransferInterrupted, name, err))
			}
			sent += uint64(n)
			prog.chunk(sent, n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			res.Bytes = sent
			return e.failed(res, newError(ErrDiskIO, name, rerr))
		}
	}
	prog.done(sent)

	var digest [protocol.HashSize]byte
	copy(digest[:], hash.Sum(nil))
	if err := protocol.WriteTrailer(conn, digest); err != nil {
		res.Bytes = sent
		return e.failed(res, newError(ErrTransferInterrupted, name, err))
	}

	res.OK = true
	res.Bytes = sent
	res.Elapsed = time.Since(start)
	res.Message = sentMessage(name, sent, res.Elapsed)
	e.logger.WithFields(logrus.Fields{"file": name, "bytes": sent, "elapsed": res.Elapsed}).Info("File sent")
	return res
}

// Receive reads one file from conn into the destination directory. The data
// goes to <name>.part first and is renamed only after the size and digest
// check out; on any failure the partial file is removed.
func (e *Engine) Receive(ctx context.Context, conn net.Conn) Result {
	res := Result{Direction: DirectionReceive}

	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	// Waiting for the next header is not bounded by the timeout.
	_ = conn.SetDeadline(time.Time{})
	if err := ctx.Err(); err != nil {
		return e.failed(res, newError(ErrTransferInterrupted, "", err))
	}

	header, err := protocol.ReadHeader(conn)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return e.failed(res, newError(ErrConnectionClosedEarly, "", io.EOF))
		}
		return e.failed(res, e.streamError(ctx, "", err))
	}
	start := time.Now()

	name, err := SanitizeFileName(header.Name)
	if err != nil {
		if werr := protocol.WriteAck(conn, false); werr != nil {
			return e.failed(res, e.streamError(ctx, header.Name, werr))
		}
		return e.failed(res, newError(ErrInvalidFilename, header.Name, err))
	}
	res.Name = name

	finalPath := filepath.Join(e.dir, name)
	tempPath := finalPath + partSuffix
	f, err := os.Create(tempPath)
	if err != nil {
		_ = protocol.WriteAck(conn, false)
		return e.failed(res, newError(ErrDiskIO, name, err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = f.Close()
			_ = os.Remove(tempPath)
		}
	}()

	if err := e.touch(ctx, conn); err != nil {
		return e.failed(res, newError(ErrTransferInterrupted, name, err))
	}
	if err := protocol.WriteAck(conn, true); err != nil {
		return e.failed(res, e.streamError(ctx, name, err))
	}

	hash := sha256.New()
	buf := make([]byte, e.bufferSize)
	prog := newProgress(e.events, header.Size, e.bufferSize)
	var received uint64
	// A disk failure does not stop the read loop: the remaining frames are
	// drained so the next transfer starts at a header.
	var diskErr error

	for {
		if err := e.touch(ctx, conn); err != nil {
			return e.failed(res, newError(ErrTransferInterrupted, name, err))
		}
		data, err := protocol.ReadFrame(conn, buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			res.Bytes = received
			return e.failed(res, e.streamError(ctx, name, err))
		}
		if len(data) == 0 {
			break
		}

		hash.Write(data)
		if diskErr == nil {
			if _, werr := f.Write(data); werr != nil {
				diskErr = werr
			}
		}
		received += uint64(len(data))
		prog.chunk(received, len(data))
	}

	digest, err := protocol.ReadTrailer(conn)
	if err != nil {
		res.Bytes = received
		return e.failed(res, e.streamError(ctx, name, err))
	}
	prog.done(received)
	res.Bytes = received

	if diskErr != nil {
		return e.failed(res, newError(ErrDiskIO, name, diskErr))
	}
	if received != header.Size {
		return e.failed(res, newError(ErrChecksumMismatch, name, sizeMismatch(received, header.Size)))
	}
	if !bytes.Equal(hash.Sum(nil), digest[:]) {
		return e.failed(res, newError(ErrChecksumMismatch, name, errDigest))
	}

	if err := f.Close(); err != nil {
		return e.failed(res, newError(ErrDiskIO, name, err))
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		return e.failed(res, newError(ErrDiskIO, name, err))
	}
	committed = true

	res.OK = true
	res.Path = finalPath
	res.Elapsed = time.Since(start)
	res.Message = receivedMessage(name, received, res.Elapsed)
	e.logger.WithFields(logrus.Fields{"file": name, "bytes": received, "path": finalPath}).Info("File received")
	return res
}

// ReceiveLoop receives files until the peer closes the connection, the
// stream can no longer be trusted, or ctx is cancelled. Each completed
// transfer is published as a FileReceived event; isolated failures are
// published and the loop moves on to the next file. done, when non-nil, sees
// every Result.
func (e *Engine) ReceiveLoop(ctx context.Context, conn net.Conn, done func(Result)) {
	for {
		res := e.Receive(ctx, conn)
		if done != nil && (res.OK || res.Name != "") {
			done(res)
		}

		if ctx.Err() != nil {
			return
		}
		if res.OK {
			e.events.Publish(event.FileReceived(res.Path, res.Message))
			continue
		}

		var terr *Error
		if !errors.As(res.Err, &terr) {
			e.events.Publish(event.Status(event.SeverityError, "Unexpected error: "+res.Message))
			return
		}

		switch {
		case terr.Kind == ErrConnectionClosedEarly && errors.Is(terr.Err, io.EOF):
			e.events.Publish(event.Status(event.SeverityInfo, "Connection closed by peer"))
			return
		case terr.Kind.Category() == CategoryConnection:
			e.events.Publish(event.Status(event.SeverityError, res.Message))
			return
		default:
			e.events.Publish(event.Status(event.SeverityWarning, res.Message))
		}
	}
}

// touch arms the per-operation deadline. A cancelled ctx wins over a fresh
// deadline.
func (e *Engine) touch(ctx context.Context, conn net.Conn) error {
	if e.timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(e.timeout)); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// streamError classifies a read or write failure on the connection.
func (e *Engine) streamError(ctx context.Context, name string, err error) *Error {
	if ctx.Err() != nil {
		return newError(ErrTransferInterrupted, name, ctx.Err())
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return newError(ErrConnectionClosedEarly, name, io.ErrUnexpectedEOF)
	}
	return newError(ErrTransferInterrupted, name, err)
}

func (e *Engine) failed(res Result, err *Error) Result {
	res.OK = false
	res.Err = err
	res.Message = err.Error()

	fields := logrus.Fields{
		"direction": res.Direction,
		"kind":      err.Kind.String(),
		"category":  err.Kind.Category().String(),
	}
	if res.Name != "" {
		fields["file"] = res.Name
	}
	if err.Err != nil {
		fields["error"] = err.Err
	}
	if err.Kind == ErrConnectionClosedEarly && errors.Is(err.Err, io.EOF) {
		e.logger.WithFields(fields).Debug("Transfer connection closed")
	} else {
		e.logger.WithFields(fields).Warn("Transfer failed")
	}
	return res
}
