package chat

import "sync"

// Queue holds messages accepted while the chat connection is down. It is
// bounded: pushing onto a full queue evicts the oldest message.
type Queue struct {
	mu       sync.Mutex
	items    []string
	capacity int
	dropped  uint64
}

func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{capacity: capacity}
}

// Push appends msg. When the queue was full the evicted message is returned
// with evicted set to true.
func (q *Queue) Push(msg string) (oldest string, evicted bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.capacity {
		oldest = q.items[0]
		q.items[0] = ""
		q.items = q.items[1:]
		q.dropped++
		evicted = true
	}
	q.items = append(q.items, msg)
	return oldest, evicted
}

// Pop removes and returns the oldest message.
func (q *Queue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return "", false
	}
	msg := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return msg, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped reports how many messages were evicted since the queue was made.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
