package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDelivers(t *testing.T) {
	bus := NewBus(4)

	bus.Publish(Status(SeveritySuccess, "connected"))
	bus.Publish(Chat(CategoryRemote, "Peer: hi"))
	bus.Publish(Progress(10, 20))

	e := <-bus.Events()
	assert.Equal(t, KindStatus, e.Kind)
	assert.Equal(t, SeveritySuccess, e.Severity)
	assert.Equal(t, "connected", e.Message)

	e = <-bus.Events()
	assert.Equal(t, KindChat, e.Kind)
	assert.Equal(t, CategoryRemote, e.Category)

	e = <-bus.Events()
	assert.Equal(t, KindProgress, e.Kind)
	assert.Equal(t, uint64(10), e.Moved)
	assert.Equal(t, uint64(20), e.Total)
}

func TestBusNeverBlocks(t *testing.T) {
	bus := NewBus(2)

	for i := 0; i < 10; i++ {
		bus.Publish(Status(SeverityInfo, "tick"))
	}

	assert.Equal(t, uint64(8), bus.Dropped())
	assert.Len(t, bus.Events(), 2)
}

func TestBusClose(t *testing.T) {
	bus := NewBus(1)
	bus.Close()
	bus.Close()

	bus.Publish(FileReceived("/tmp/x", "done"))
	assert.Equal(t, uint64(1), bus.Dropped())

	_, ok := <-bus.Events()
	require.False(t, ok, "events channel should be closed")
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "STATUS", KindStatus.String())
	assert.Equal(t, "FILE_RECEIVED", KindFileReceived.String())
	assert.Equal(t, "UNKNOWN", Kind(99).String())
	assert.Equal(t, "warning", SeverityWarning.String())
}
