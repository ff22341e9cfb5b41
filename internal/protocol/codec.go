package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrLineTooLong = errors.New("chat record exceeds maximum line size")

// EncodeChat renders msg as a single JSON line terminated by '\n'.
func EncodeChat(msg ChatMessage) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding chat message: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeChat parses one line without its terminator. structured is false when
// the line is not a JSON object with a "text" field; the whole line is then
// returned as Text from a remote sender so peers using raw text framing still
// get through.
func DecodeChat(line []byte) (msg ChatMessage, structured bool) {
	line = bytes.TrimRight(line, "\r")

	var rec map[string]json.RawMessage
	if err := json.Unmarshal(line, &rec); err != nil || rec == nil {
		return legacyChat(line), false
	}

	raw, ok := rec["text"]
	if !ok {
		return legacyChat(line), false
	}
	if err := json.Unmarshal(raw, &msg.Text); err != nil {
		msg.Text = string(raw)
	}
	if raw, ok := rec["timestamp"]; ok {
		_ = json.Unmarshal(raw, &msg.Timestamp)
	}
	if raw, ok := rec["sender"]; ok {
		_ = json.Unmarshal(raw, &msg.Sender)
	}
	return msg, true
}

func legacyChat(line []byte) ChatMessage {
	return ChatMessage{Text: strings.ToValidUTF8(string(line), "�"), Sender: SenderRemote}
}

// LineBuffer accumulates stream reads and yields complete lines in order.
// A trailing partial line is kept until the next Feed.
type LineBuffer struct {
	buf []byte
	max int
}

func NewLineBuffer(max int) *LineBuffer {
	if max <= 0 {
		max = MaxLineSize
	}
	return &LineBuffer{max: max}
}

// Feed appends data and returns every complete line, left to right, without
// the '\n'. Empty lines are skipped.
func (b *LineBuffer) Feed(data []byte) ([][]byte, error) {
	b.buf = append(b.buf, data...)

	var lines [][]byte
	for {
		i := bytes.IndexByte(b.buf, '\n')
		if i < 0 {
			break
		}
		line := make([]byte, i)
		copy(line, b.buf[:i])
		b.buf = b.buf[i+1:]
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		lines = append(lines, line)
	}

	if len(b.buf) > b.max {
		b.buf = nil
		return lines, ErrLineTooLong
	}

	// Compact so a long session does not pin a large backing array.
	if len(b.buf) == 0 {
		b.buf = nil
	}
	return lines, nil
}

// Pending returns the number of buffered bytes belonging to a partial line.
func (b *LineBuffer) Pending() int {
	return len(b.buf)
}
