package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrInjected is the device failure a Recorder line reports when FailWriteAt is hit.
var ErrInjected = errors.New("injected device failure")

// Recorder is an in-memory Sink. It keeps every line it opens along with
// everything written to them, which makes it usable for offline rendering
// and for observing the render loop.
type Recorder struct {
	// OpenErr, when set, makes Open fail with it.
	OpenErr error
	// FailWriteAt makes the n-th write (1-based) of each line fail. 0 disables.
	FailWriteAt int
	// Gate, when set, makes every write wait for a receive before completing.
	Gate chan struct{}

	mu    sync.Mutex
	lines []*RecordedLine
	opens int
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Open(f Format) (Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.opens++
	if r.OpenErr != nil {
		return nil, r.OpenErr
	}
	if err := checkFormat(f); err != nil {
		return nil, err
	}

	l := &RecordedLine{format: f, failAt: r.FailWriteAt, gate: r.Gate, changed: make(chan struct{})}
	r.lines = append(r.lines, l)
	return l, nil
}

// Lines returns the lines opened so far.
func (r *Recorder) Lines() []*RecordedLine {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*RecordedLine(nil), r.lines...)
}

// Opens returns how many times Open was called, including failed calls.
func (r *Recorder) Opens() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opens
}

// Last returns the most recently opened line, or nil.
func (r *Recorder) Last() *RecordedLine {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.lines) == 0 {
		return nil
	}
	return r.lines[len(r.lines)-1]
}

// RecordedLine is a Line opened by a Recorder.
type RecordedLine struct {
	format Format
	failAt int
	gate   chan struct{}

	mu      sync.Mutex
	writes  [][]byte
	gains   []float64
	flushes int
	started bool
	closed  bool
	changed chan struct{} // closed and replaced on every state change
}

func (l *RecordedLine) notifyLocked() {
	close(l.changed)
	l.changed = make(chan struct{})
}

func (l *RecordedLine) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = true
	l.notifyLocked()
	return nil
}

func (l *RecordedLine) Write(ctx context.Context, p []byte) (int, error) {
	if l.gate != nil {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-l.gate:
		}
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, ErrLineClosed
	}
	if l.failAt > 0 && len(l.writes)+1 == l.failAt {
		return 0, fmt.Errorf("%w: %w", ErrDeviceUnavailable, ErrInjected)
	}
	l.writes = append(l.writes, append([]byte(nil), p...))
	l.notifyLocked()
	return len(p), nil
}

func (l *RecordedLine) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flushes++
	l.notifyLocked()
	return nil
}

func (l *RecordedLine) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		l.notifyLocked()
	}
	return nil
}

func (l *RecordedLine) SetGain(gain float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gains = append(l.gains, gain)
	l.notifyLocked()
}

// Writes returns a copy of every successful write, in order.
func (l *RecordedLine) Writes() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]byte(nil), l.writes...)
}

// FrameCounts returns the frame count of each write.
func (l *RecordedLine) FrameCounts() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := make([]int, len(l.writes))
	for i, w := range l.writes {
		counts[i] = len(w) / l.format.BytesPerFrame()
	}
	return counts
}

// TotalFrames returns the number of frames written.
func (l *RecordedLine) TotalFrames() int {
	total := 0
	for _, n := range l.FrameCounts() {
		total += n
	}
	return total
}

// Gains returns every gain set on the line, in order.
func (l *RecordedLine) Gains() []float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]float64(nil), l.gains...)
}

// Flushes returns how many times Flush was called.
func (l *RecordedLine) Flushes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flushes
}

// Started reports whether Start was called.
func (l *RecordedLine) Started() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started
}

// Closed reports whether Close was called.
func (l *RecordedLine) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// WaitFor blocks until cond holds for the line or ctx is done.
func (l *RecordedLine) WaitFor(ctx context.Context, cond func(l *RecordedLine) bool) error {
	for {
		l.mu.Lock()
		changed := l.changed
		l.mu.Unlock()

		if cond(l) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}
