package capture

import (
	"sync"
	"sync/atomic"
)

// DefaultHistory is the number of recent frames kept by a Buffer.
const DefaultHistory = 30

// Buffer holds the latest published frame plus a short rolling history.
// Latest never blocks: the slot is swapped atomically on every publish.
type Buffer struct {
	latest atomic.Pointer[Frame]

	mu      sync.Mutex
	history []*Frame
	next    int
	size    int
}

func NewBuffer(depth int) *Buffer {
	if depth <= 0 {
		depth = DefaultHistory
	}
	return &Buffer{history: make([]*Frame, depth)}
}

func (b *Buffer) Publish(f *Frame) {
	b.latest.Store(f)

	b.mu.Lock()
	b.history[b.next] = f
	b.next = (b.next + 1) % len(b.history)
	if b.size < len(b.history) {
		b.size++
	}
	b.mu.Unlock()
}

// Latest returns the most recent frame, or nil if nothing was published yet.
func (b *Buffer) Latest() *Frame {
	return b.latest.Load()
}

// Depth is the number of frames currently held in the history.
func (b *Buffer) Depth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}
