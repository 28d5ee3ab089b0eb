package sink

import (
	"context"
	"io"
	"sync"
)

// DefaultQueueSize holds roughly 93ms of DefaultFormat audio.
const DefaultQueueSize = 16384

// Queue is a bounded byte FIFO between a pushing writer and a pulling device.
// Write blocks while the queue is full. Read never blocks: it pads with
// silence when the writer falls behind so the device never underruns.
type Queue struct {
	buf    []byte
	head   int // next byte to read
	size   int // bytes queued
	closed bool

	mu   sync.Mutex
	cond *sync.Cond
}

// NewQueue creates a Queue holding at most capacity bytes.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	q := &Queue{buf: make([]byte, capacity)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Write copies all of p into the queue, waiting for space as needed.
func (q *Queue) Write(ctx context.Context, p []byte) (int, error) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	written := 0
	for written < len(p) {
		for q.size == len(q.buf) && !q.closed && ctx.Err() == nil {
			q.cond.Wait()
		}
		if q.closed {
			return written, ErrLineClosed
		}
		if err := ctx.Err(); err != nil {
			return written, err
		}

		tail := (q.head + q.size) % len(q.buf)
		free := len(q.buf) - q.size
		chunk := min(len(p)-written, free, len(q.buf)-tail)
		copy(q.buf[tail:tail+chunk], p[written:written+chunk])
		q.size += chunk
		written += chunk
		q.cond.Broadcast()
	}
	return written, nil
}

// Read implements io.Reader for the device side.
func (q *Queue) Read(p []byte) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed && q.size == 0 {
		return 0, io.EOF
	}

	n := 0
	for n < len(p) && q.size > 0 {
		chunk := min(len(p)-n, q.size, len(q.buf)-q.head)
		copy(p[n:n+chunk], q.buf[q.head:q.head+chunk])
		q.head = (q.head + chunk) % len(q.buf)
		q.size -= chunk
		n += chunk
	}
	if n > 0 {
		q.cond.Broadcast()
	}

	// silence keeps the device clock running while the writer is idle
	clear(p[n:])
	return len(p), nil
}

// Discard drops everything queued.
func (q *Queue) Discard() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.head = 0
	q.size = 0
	q.cond.Broadcast()
}

// Close wakes blocked writers; further writes fail with ErrLineClosed.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
	return nil
}

// Buffered returns the number of queued bytes.
func (q *Queue) Buffered() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Cap returns the queue capacity in bytes.
func (q *Queue) Cap() int {
	return len(q.buf)
}
