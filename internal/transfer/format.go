package transfer

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rudransh-shrivastava/p2p-share/internal/protocol"
)

var ErrUnsafeName = errors.New("name has no usable characters")

var (
	byteUnits  = []string{"B", "KB", "MB", "GB", "TB"}
	speedUnits = []string{"B/s", "KB/s", "MB/s", "GB/s"}
)

// FormatBytes renders n with two decimals in binary units, e.g. "1.50 KB".
func FormatBytes(n uint64) string {
	size := float64(n)
	for _, unit := range byteUnits {
		if size < 1024 {
			return fmt.Sprintf("%.2f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.2f PB", size)
}

// FormatSpeed renders bytes moved over d as a rate. A non-positive duration
// gives "∞ B/s".
func FormatSpeed(n uint64, d time.Duration) string {
	secs := d.Seconds()
	if secs <= 0 {
		return "∞ B/s"
	}
	speed := float64(n) / secs
	for _, unit := range speedUnits {
		if speed < 1024 {
			return fmt.Sprintf("%.2f %s", speed, unit)
		}
		speed /= 1024
	}
	return fmt.Sprintf("%.2f TB/s", speed)
}

// SanitizeFileName keeps letters, digits, space, '.', '_' and '-', trims
// trailing spaces and caps the result at protocol.MaxFileNameLength bytes.
// Path separators never survive, so the result is always a bare name.
func SanitizeFileName(name string) (string, error) {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || strings.ContainsRune(" ._-", r) {
			b.WriteRune(r)
		}
	}

	safe := strings.TrimRight(b.String(), " ")
	for len(safe) > protocol.MaxFileNameLength {
		_, size := utf8.DecodeLastRuneInString(safe)
		safe = strings.TrimRight(safe[:len(safe)-size], " ")
	}

	switch safe {
	case "", ".", "..":
		return "", ErrUnsafeName
	}
	return safe, nil
}

func sentMessage(name string, n uint64, elapsed time.Duration) string {
	return fmt.Sprintf("%s (%s) sent in %.2fs (%s)", name, FormatBytes(n), elapsed.Seconds(), FormatSpeed(n, elapsed))
}

func receivedMessage(name string, n uint64, elapsed time.Duration) string {
	return fmt.Sprintf("Received %s (%s) in %.2fs (%s)", name, FormatBytes(n), elapsed.Seconds(), FormatSpeed(n, elapsed))
}
