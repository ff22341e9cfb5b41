// Package crypto encrypts chat text under a secret shared out-of-band by both
// peers. Ciphertext is self-contained: a random 24-byte nonce followed by a
// NaCl secretbox, base64 encoded so it travels inside a JSON string.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	KeySize   = 32
	NonceSize = 24

	// MaxMessageSize bounds a single plaintext (1MB).
	MaxMessageSize = 1024 * 1024
)

// Passphrases are stretched with a fixed salt: both peers must derive the
// same key without exchanging anything.
var kdfSalt = []byte("p2p-share/chat/v1")

const (
	kdfTime    = 1
	kdfMemory  = 64 * 1024
	kdfThreads = 4
)

var (
	ErrEmptyKey         = errors.New("empty encryption key")
	ErrEmptyMessage     = errors.New("empty message")
	ErrMessageTooLarge  = errors.New("message too large")
	ErrMalformed        = errors.New("malformed ciphertext")
	ErrDecryptionFailed = errors.New("decryption failed: message authentication failed")
)

// Nonce is a 24-byte value used once per message.
type Nonce [NonceSize]byte

// Cipher seals and opens chat text with one symmetric key.
type Cipher struct {
	key [KeySize]byte
}

// NewCipher accepts either a key produced by GenerateKey or any passphrase.
// A string that base64-decodes to exactly 32 bytes is used as the raw key;
// anything else is stretched with argon2id.
func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, ErrEmptyKey
	}

	c := &Cipher{}
	if raw, ok := decodeRawKey(secret); ok {
		copy(c.key[:], raw)
		return c, nil
	}

	derived := argon2.IDKey([]byte(secret), kdfSalt, kdfTime, kdfMemory, kdfThreads, KeySize)
	copy(c.key[:], derived)
	return c, nil
}

// GenerateKey returns a fresh random key in the URL-safe base64 form
// NewCipher recognises.
func GenerateKey() (string, error) {
	var key [KeySize]byte
	if _, err := rand.Read(key[:]); err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}
	return base64.URLEncoding.EncodeToString(key[:]), nil
}

func GenerateNonce() (Nonce, error) {
	var nonce Nonce
	if _, err := rand.Read(nonce[:]); err != nil {
		return Nonce{}, err
	}
	return nonce, nil
}

func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if len(plaintext) == 0 {
		return "", ErrEmptyMessage
	}
	if len(plaintext) > MaxMessageSize {
		return "", ErrMessageTooLarge
	}

	nonce, err := GenerateNonce()
	if err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), (*[NonceSize]byte)(&nonce), &c.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(raw) < NonceSize+secretbox.Overhead {
		return "", fmt.Errorf("%w: %d bytes", ErrMalformed, len(raw))
	}

	var nonce [NonceSize]byte
	copy(nonce[:], raw[:NonceSize])

	out, ok := secretbox.Open(nil, raw[NonceSize:], &nonce, &c.key)
	if !ok {
		return "", ErrDecryptionFailed
	}
	return string(out), nil
}

func decodeRawKey(s string) ([]byte, bool) {
	for _, enc := range []*base64.Encoding{base64.URLEncoding, base64.StdEncoding, base64.RawURLEncoding, base64.RawStdEncoding} {
		if raw, err := enc.DecodeString(s); err == nil && len(raw) == KeySize {
			return raw, true
		}
	}
	return nil, false
}
