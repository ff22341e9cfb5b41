package protocol

const (
	// HashSize is the length of the SHA-256 digest closing every file.
	HashSize = 32
	// MaxFileNameLength fits the u16 length prefix and common filesystem limits.
	MaxFileNameLength = 255
	// MaxLineSize bounds one chat record; a peer that never sends a newline
	// cannot grow the receive buffer past it.
	MaxLineSize = 4 * 1024 * 1024
)

// Handshake replies on the transfer connection. Both are exactly AckSize bytes.
const (
	Ack     = "ACK"
	Nak     = "NAK"
	AckSize = 3
)

// EndMarker follows the terminating zero-length frame. It is not a sentinel
// searched for in the data: frames carry explicit lengths.
const (
	EndMarker     = "<EOF>"
	EndMarkerSize = 5
)

// Sender identifies the origin of a chat record.
type Sender string

const (
	SenderLocal  Sender = "local"
	SenderRemote Sender = "remote"
)

func (s Sender) String() string {
	switch s {
	case SenderLocal:
		return "LOCAL"
	case SenderRemote:
		return "REMOTE"
	default:
		return "UNKNOWN"
	}
}
