package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrettyFormatterLine(t *testing.T) {
	f := &PrettyFormatter{DisableColors: true}
	entry := logrus.NewEntry(logrus.New())
	entry.Level = logrus.WarnLevel
	entry.Message = "retrying"
	entry.Data = logrus.Fields{"port": 5001, "attempt": 2}

	out, err := f.Format(entry)
	require.NoError(t, err)

	line := string(out)
	assert.True(t, strings.HasSuffix(line, "\n"))
	assert.Contains(t, line, "WARN  retrying")
	assert.Contains(t, line, " attempt=2 port=5001")
}

func TestPrettyFormatterColors(t *testing.T) {
	f := &PrettyFormatter{}
	entry := logrus.NewEntry(logrus.New())
	entry.Level = logrus.ErrorLevel
	entry.Message = "boom"

	out, err := f.Format(entry)
	require.NoError(t, err)
	assert.Contains(t, string(out), colorRed+"ERROR"+colorReset)
}

func TestNewLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug")
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log.Debug("visible")
	assert.Contains(t, buf.String(), "visible")

	fallback := New(&buf, "not-a-level")
	assert.Equal(t, logrus.InfoLevel, fallback.GetLevel())
}
