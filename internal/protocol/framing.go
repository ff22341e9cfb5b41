package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	ErrEmptyFileName   = errors.New("empty filename")
	ErrFileNameTooLong = errors.New("file name too long")
	ErrFrameTooLarge   = errors.New("frame exceeds maximum chunk size")
	ErrBadEndMarker    = errors.New("missing end-of-stream marker")
	ErrBadAck          = errors.New("unexpected acknowledgment")
)

// FileHeader opens a transfer: [u16 name length][name][u64 size].
type FileHeader struct {
	Name string
	Size uint64
}

func WriteHeader(w io.Writer, h FileHeader) error {
	if len(h.Name) == 0 {
		return ErrEmptyFileName
	}
	if len(h.Name) > MaxFileNameLength {
		return fmt.Errorf("%w: %d bytes", ErrFileNameTooLong, len(h.Name))
	}

	buf := make([]byte, 2+len(h.Name)+8)
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(h.Name)))
	copy(buf[2:], h.Name)
	binary.BigEndian.PutUint64(buf[2+len(h.Name):], h.Size)

	_, err := w.Write(buf)
	return err
}

// ReadHeader reads a complete header. An empty name is returned as is so the
// caller can reject it after the stream position is past the header.
func ReadHeader(r io.Reader) (FileHeader, error) {
	var nameLen uint16
	if err := binary.Read(r, binary.BigEndian, &nameLen); err != nil {
		return FileHeader{}, err
	}
	if nameLen > MaxFileNameLength {
		return FileHeader{}, fmt.Errorf("%w: %d bytes", ErrFileNameTooLong, nameLen)
	}

	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return FileHeader{}, noEOF(err)
	}

	var size uint64
	if err := binary.Read(r, binary.BigEndian, &size); err != nil {
		return FileHeader{}, noEOF(err)
	}
	return FileHeader{Name: string(name), Size: size}, nil
}

// WriteFrame sends one data chunk as [u32 length][bytes]. An empty chunk is
// the end-of-data frame.
func WriteFrame(w io.Writer, data []byte) error {
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(data)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	_, err := w.Write(data)
	return err
}

// ReadFrame reads one frame into buf and returns the payload. It rejects
// frames longer than len(buf). A zero-length result marks end of data.
func ReadFrame(r io.Reader, buf []byte) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	if int64(length) > int64(len(buf)) {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, len(buf))
	}
	if length == 0 {
		return buf[:0], nil
	}
	if _, err := io.ReadFull(r, buf[:length]); err != nil {
		return nil, noEOF(err)
	}
	return buf[:length], nil
}

// WriteTrailer closes the data: end-of-data frame, end marker, SHA-256 digest.
func WriteTrailer(w io.Writer, digest [HashSize]byte) error {
	buf := make([]byte, 0, 4+EndMarkerSize+HashSize)
	buf = append(buf, 0, 0, 0, 0)
	buf = append(buf, EndMarker...)
	buf = append(buf, digest[:]...)
	_, err := w.Write(buf)
	return err
}

// ReadTrailer reads what follows the end-of-data frame: marker and digest.
func ReadTrailer(r io.Reader) ([HashSize]byte, error) {
	var digest [HashSize]byte

	marker := make([]byte, EndMarkerSize)
	if _, err := io.ReadFull(r, marker); err != nil {
		return digest, noEOF(err)
	}
	if string(marker) != EndMarker {
		return digest, fmt.Errorf("%w: got %q", ErrBadEndMarker, marker)
	}
	if _, err := io.ReadFull(r, digest[:]); err != nil {
		return digest, noEOF(err)
	}
	return digest, nil
}

func WriteAck(w io.Writer, ok bool) error {
	reply := Ack
	if !ok {
		reply = Nak
	}
	_, err := io.WriteString(w, reply)
	return err
}

// ReadAck reads the 3-byte reply and fails with ErrBadAck unless it is "ACK".
func ReadAck(r io.Reader) error {
	buf := make([]byte, AckSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return noEOF(err)
	}
	if string(buf) != Ack {
		return fmt.Errorf("%w: %q", ErrBadAck, buf)
	}
	return nil
}

// noEOF turns a clean EOF in the middle of a structure into
// io.ErrUnexpectedEOF; io.EOF is reserved for a stream closed between
// structures.
func noEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
