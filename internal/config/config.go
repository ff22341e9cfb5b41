// Package config holds the settings shared by every peer component. A Config
// is built once at startup, validated, and passed by reference to the
// transport connector, the chat session and the file transfer protocol.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	MinPort = 1024
	MaxPort = 65535

	DefaultPort          = 5001
	DefaultChatPort      = 5002
	DefaultBufferSize    = 16 * 1024
	DefaultSocketTimeout = 30 * time.Second
	DefaultMaxRetries    = 3
	DefaultRetryDelay    = 2 * time.Second
	DefaultSharedDir     = "shared_files"
	DefaultQueueCapacity = 1000
	DefaultFlushInterval = 500 * time.Millisecond
	DefaultLogLevel      = "info"

	// MinBufferSize is the smallest chunk size accepted for file I/O.
	MinBufferSize = 1024

	permissionProbe = ".permission_test"
)

var (
	ErrInvalidPort       = errors.New("port must be between 1024-65535")
	ErrSamePorts         = errors.New("transfer port and chat port must differ")
	ErrBufferTooSmall    = errors.New("buffer size must be at least 1024 bytes")
	ErrInvalidTimeout    = errors.New("socket timeout must be positive")
	ErrInvalidRetries    = errors.New("max retries must be at least 1")
	ErrInvalidRetryDelay = errors.New("retry delay cannot be negative")
	ErrInvalidQueue      = errors.New("queue capacity must be at least 1")
	ErrInvalidFlush      = errors.New("flush interval must be positive")
	ErrSharedDir         = errors.New("shared directory is not usable")
)

type Config struct {
	// Port carries the file-transfer connection.
	Port int
	// ChatPort carries the chat connection.
	ChatPort int
	// BufferSize is the file chunk size and the socket read size.
	BufferSize int
	// SocketTimeout bounds accept, connect and every blocking read.
	SocketTimeout time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
	// SharedDir receives incoming files.
	SharedDir string
	// QueueCapacity bounds the outbound chat queue. The oldest message is
	// dropped when a new one arrives on a full queue.
	QueueCapacity int
	FlushInterval time.Duration
	// Key is the optional shared chat secret. Empty disables encryption.
	Key string
	// DBPath is the sqlite history file. Empty disables history.
	DBPath   string
	LogLevel string
}

func Default() Config {
	return Config{
		Port:          DefaultPort,
		ChatPort:      DefaultChatPort,
		BufferSize:    DefaultBufferSize,
		SocketTimeout: DefaultSocketTimeout,
		MaxRetries:    DefaultMaxRetries,
		RetryDelay:    DefaultRetryDelay,
		SharedDir:     DefaultSharedDir,
		QueueCapacity: DefaultQueueCapacity,
		FlushInterval: DefaultFlushInterval,
		LogLevel:      DefaultLogLevel,
	}
}

// ValidatePort reports whether p is a usable unprivileged port.
func ValidatePort(p int) error {
	if p < MinPort || p > MaxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, p)
	}
	return nil
}

// Validate checks every field and returns the first violation.
func (c *Config) Validate() error {
	if err := ValidatePort(c.Port); err != nil {
		return fmt.Errorf("transfer port: %w", err)
	}
	if err := ValidatePort(c.ChatPort); err != nil {
		return fmt.Errorf("chat port: %w", err)
	}
	if c.Port == c.ChatPort {
		return fmt.Errorf("%w: %d", ErrSamePorts, c.Port)
	}
	if c.BufferSize < MinBufferSize {
		return fmt.Errorf("%w: %d", ErrBufferTooSmall, c.BufferSize)
	}
	if c.SocketTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidRetries, c.MaxRetries)
	}
	if c.RetryDelay < 0 {
		return ErrInvalidRetryDelay
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidQueue, c.QueueCapacity)
	}
	if c.FlushInterval <= 0 {
		return ErrInvalidFlush
	}
	if c.SharedDir == "" {
		return fmt.Errorf("%w: empty path", ErrSharedDir)
	}
	return nil
}

// PrepareSharedDir creates the shared directory when missing and verifies
// that files can be written into it.
func (c *Config) PrepareSharedDir() error {
	if err := os.MkdirAll(c.SharedDir, 0o755); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSharedDir, c.SharedDir, err)
	}

	probe := filepath.Join(c.SharedDir, permissionProbe)
	f, err := os.Create(probe)
	if err != nil {
		return fmt.Errorf("%w: permission denied for %s: %v", ErrSharedDir, c.SharedDir, err)
	}
	_ = f.Close()

	if err := os.Remove(probe); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSharedDir, c.SharedDir, err)
	}
	return nil
}
