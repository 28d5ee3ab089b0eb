package sink

import (
	"context"
	"sync"
	"time"
)

// NullSink discards audio. With Realtime set, writes take as long as the audio
// they carry would take to play, so headless runs keep device timing.
type NullSink struct {
	Realtime bool
}

// NewNullSink creates a NullSink.
func NewNullSink(realtime bool) *NullSink {
	return &NullSink{Realtime: realtime}
}

func (s *NullSink) Open(f Format) (Line, error) {
	if err := checkFormat(f); err != nil {
		return nil, err
	}
	return &nullLine{realtime: s.Realtime, bytesPerSecond: f.SampleRate * f.BytesPerFrame()}, nil
}

type nullLine struct {
	realtime       bool
	bytesPerSecond int

	mu     sync.Mutex
	closed bool
}

func (l *nullLine) Start() error { return nil }

func (l *nullLine) Write(ctx context.Context, p []byte) (int, error) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return 0, ErrLineClosed
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !l.realtime {
		return len(p), nil
	}

	d := time.Duration(len(p)) * time.Second / time.Duration(l.bytesPerSecond)
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-timer.C:
		return len(p), nil
	}
}

func (l *nullLine) Flush() error { return nil }

func (l *nullLine) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *nullLine) SetGain(float64) {}
