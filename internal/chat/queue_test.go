package chat

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(10)
	for _, m := range []string{"a", "b", "c"} {
		_, evicted := q.Push(m)
		assert.False(t, evicted)
	}

	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestQueueDropsOldest(t *testing.T) {
	q := NewQueue(2)
	q.Push("first")
	q.Push("second")

	oldest, evicted := q.Push("third")
	assert.True(t, evicted)
	assert.Equal(t, "first", oldest)
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, uint64(1), q.Dropped())

	got, _ := q.Pop()
	assert.Equal(t, "second", got)
	got, _ = q.Pop()
	assert.Equal(t, "third", got)
}

func TestQueueMinimumCapacity(t *testing.T) {
	q := NewQueue(0)
	q.Push("x")
	_, evicted := q.Push("y")
	assert.True(t, evicted)
	assert.Equal(t, 1, q.Len())
}

func TestQueueConcurrentPushPop(t *testing.T) {
	q := NewQueue(10000)
	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				q.Push(fmt.Sprintf("%d-%d", w, i))
			}
		}(w)
	}

	popped := make(chan int, 1)
	go func() {
		n := 0
		for n < 500 {
			if _, ok := q.Pop(); ok {
				n++
			}
		}
		popped <- n
	}()

	wg.Wait()
	assert.Equal(t, 500, <-popped)
	assert.Equal(t, 500, q.Len())
	assert.Equal(t, uint64(0), q.Dropped())
}
