package sink

import (
	"context"
	"fmt"
	"sync"
)

// devicePlayer is the part of ebiten's audio.Player and oto's Player a pullLine drives.
type devicePlayer interface {
	Play()
	Pause()
	SetVolume(volume float64)
	Close() error
}

// pullLine adapts a pull-based device player to the push-based Line by
// sitting a Queue between them.
type pullLine struct {
	queue  *Queue
	player devicePlayer
	name   string

	mu      sync.Mutex
	started bool
	closed  bool
}

func newPullLine(name string, queue *Queue, player devicePlayer) *pullLine {
	return &pullLine{name: name, queue: queue, player: player}
}

func (l *pullLine) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return fmt.Errorf("%w: %s line already closed", ErrDeviceUnavailable, l.name)
	}
	if !l.started {
		l.player.Play()
		l.started = true
	}
	return nil
}

func (l *pullLine) Write(ctx context.Context, p []byte) (int, error) {
	return l.queue.Write(ctx, p)
}

func (l *pullLine) Flush() error {
	l.queue.Discard()
	return nil
}

func (l *pullLine) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	l.queue.Close()
	l.player.Pause()
	return l.player.Close()
}

func (l *pullLine) SetGain(gain float64) {
	l.player.SetVolume(gain)
}
