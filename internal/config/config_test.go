package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Port != 5001 {
		t.Errorf("expected port 5001, got %d", cfg.Port)
	}
	if cfg.ChatPort != 5002 {
		t.Errorf("expected chat port 5002, got %d", cfg.ChatPort)
	}
	if cfg.BufferSize != 16384 {
		t.Errorf("expected buffer size 16384, got %d", cfg.BufferSize)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("expected 3 retries, got %d", cfg.MaxRetries)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestValidatePortBoundaries(t *testing.T) {
	tests := []struct {
		port  int
		valid bool
	}{
		{-1, false},
		{0, false},
		{80, false},
		{1023, false},
		{1024, true},
		{5001, true},
		{65535, true},
		{65536, false},
		{100000, false},
	}

	for _, tt := range tests {
		err := ValidatePort(tt.port)
		if tt.valid {
			assert.NoError(t, err, "port %d", tt.port)
			continue
		}
		assert.ErrorIs(t, err, ErrInvalidPort, "port %d", tt.port)
	}
}

func TestValidatePortExhaustive(t *testing.T) {
	for p := MinPort - 50; p <= MaxPort+50; p++ {
		err := ValidatePort(p)
		inRange := p >= MinPort && p <= MaxPort
		if inRange != (err == nil) {
			t.Fatalf("ValidatePort(%d) = %v, in range %v", p, err, inRange)
		}
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"transfer port", func(c *Config) { c.Port = 80 }, ErrInvalidPort},
		{"chat port", func(c *Config) { c.ChatPort = 70000 }, ErrInvalidPort},
		{"same ports", func(c *Config) { c.ChatPort = c.Port }, ErrSamePorts},
		{"buffer", func(c *Config) { c.BufferSize = 512 }, ErrBufferTooSmall},
		{"timeout", func(c *Config) { c.SocketTimeout = 0 }, ErrInvalidTimeout},
		{"retries", func(c *Config) { c.MaxRetries = 0 }, ErrInvalidRetries},
		{"retry delay", func(c *Config) { c.RetryDelay = -1 }, ErrInvalidRetryDelay},
		{"queue", func(c *Config) { c.QueueCapacity = 0 }, ErrInvalidQueue},
		{"flush", func(c *Config) { c.FlushInterval = 0 }, ErrInvalidFlush},
		{"shared dir", func(c *Config) { c.SharedDir = "" }, ErrSharedDir},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestPrepareSharedDir(t *testing.T) {
	cfg := Default()
	cfg.SharedDir = filepath.Join(t.TempDir(), "nested", "shared_files")

	require.NoError(t, cfg.PrepareSharedDir())

	info, err := os.Stat(cfg.SharedDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = os.Stat(filepath.Join(cfg.SharedDir, permissionProbe))
	assert.True(t, os.IsNotExist(err), "probe file should be removed")
}

func TestPrepareSharedDirOnFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	cfg := Default()
	cfg.SharedDir = file
	assert.ErrorIs(t, cfg.PrepareSharedDir(), ErrSharedDir)
}
