package transfer

import (
	"time"

	"github.com/rudransh-shrivastava/p2p-share/internal/event"
)

const progressInterval = 100 * time.Millisecond

// progress publishes cumulative byte counts, at most once per
// progressInterval unless a chunk is larger than half the buffer.
type progress struct {
	sink  event.Sink
	total uint64
	large int
	last  time.Time
	now   func() time.Time
}

func newProgress(sink event.Sink, total uint64, bufferSize int) *progress {
	return &progress{
		sink:  sink,
		total: total,
		large: bufferSize / 2,
		last:  time.Now(),
		now:   time.Now,
	}
}

func (p *progress) chunk(moved uint64, n int) {
	now := p.now()
	if now.Sub(p.last) > progressInterval || n > p.large {
		p.sink.Publish(event.Progress(moved, p.total))
		p.last = now
	}
}

// done always publishes, so observers see the final count.
func (p *progress) done(moved uint64) {
	p.sink.Publish(event.Progress(moved, p.total))
}
