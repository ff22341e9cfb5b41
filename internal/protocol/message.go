package protocol

import (
	"math"
	"time"
)

// ChatMessage is one line on the chat connection. Text may hold ciphertext
// while in transit.
type ChatMessage struct {
	Text      string  `json:"text"`
	Timestamp float64 `json:"timestamp"`
	Sender    Sender  `json:"sender"`
}

// NewChatMessage stamps text with the current time as a locally sent message.
func NewChatMessage(text string) ChatMessage {
	return ChatMessage{
		Text:      text,
		Timestamp: UnixSeconds(time.Now()),
		Sender:    SenderLocal,
	}
}

// Time converts the float seconds timestamp back to a time.Time. A zero
// timestamp yields the zero time.
func (m ChatMessage) Time() time.Time {
	if m.Timestamp == 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(m.Timestamp)
	return time.Unix(int64(sec), int64(frac*1e9))
}

func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
