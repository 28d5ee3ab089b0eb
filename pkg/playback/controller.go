// Package playback drives a decoded module to an output line from a
// dedicated render goroutine.
//
// A Controller holds at most one session. Load opens the module, opens and
// starts the output line, and spawns the render goroutine; Close cancels it,
// waits for it to exit and releases the module. Between the two the caller
// toggles play/stop, loop and gain; the render goroutine picks those up at
// the top of each block. The output line and the module cursor are touched
// only by the render goroutine.
package playback

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zurustar/trackplay/pkg/decoder"
	"github.com/zurustar/trackplay/pkg/logger"
	"github.com/zurustar/trackplay/pkg/sink"
)

const (
	// SampleRate is the frame rate of every session.
	SampleRate = sink.SampleRate

	// DefaultBlockSize is the number of frames rendered per write.
	DefaultBlockSize = 1024

	// DefaultIdleTimeout bounds how long a paused render goroutine sleeps
	// before re-checking its flags without being woken.
	DefaultIdleTimeout = 250 * time.Millisecond
)

// ThreadState is the lifecycle of a session's render goroutine.
type ThreadState int32

const (
	Unstarted ThreadState = iota
	Running
	Stopping
	Stopped
)

func (s ThreadState) String() string {
	switch s {
	case Unstarted:
		return "Unstarted"
	case Running:
		return "Running"
	case Stopping:
		return "Stopping"
	case Stopped:
		return "Stopped"
	default:
		return fmt.Sprintf("ThreadState(%d)", int32(s))
	}
}

// ModuleLoader reads raw module bytes by path. *fileutil.Loader implements it.
type ModuleLoader interface {
	ReadFile(name string) ([]byte, error)
}

// Config configures a Controller. Opener, Loader and Sink are required.
type Config struct {
	Opener decoder.Opener
	Loader ModuleLoader
	Sink   sink.Sink

	// BlockSize is the number of frames per write. Defaults to DefaultBlockSize.
	BlockSize int
	// IdleTimeout defaults to DefaultIdleTimeout.
	IdleTimeout time.Duration
	// Logger defaults to logger.GetLogger().
	Logger *slog.Logger
	// Events receives controller events. A queue is created when nil.
	Events *EventQueue
}

// Status is a snapshot of the controller.
type Status struct {
	Loaded           bool
	Playing          bool
	Loop             bool
	Gain             float64
	SongLengthFrames int
	RemainingFrames  int
	Thread           ThreadState
	Path             string
	Title            string
	// Err is the error that ended the session, if any.
	Err error
}

// Controller is the public playback surface. All methods are safe for
// concurrent use.
type Controller struct {
	opener      decoder.Opener
	loader      ModuleLoader
	sink        sink.Sink
	blockSize   int
	idleTimeout time.Duration
	log         *slog.Logger
	events      *EventQueue

	gainBits atomic.Uint64
	gainSet  atomic.Bool

	// mu serializes Load and Close and guards sess.
	mu   sync.Mutex
	sess *session
}

// New creates an unloaded Controller.
func New(cfg Config) *Controller {
	c := &Controller{
		opener:      cfg.Opener,
		loader:      cfg.Loader,
		sink:        cfg.Sink,
		blockSize:   cfg.BlockSize,
		idleTimeout: cfg.IdleTimeout,
		log:         cfg.Logger,
		events:      cfg.Events,
	}
	if c.blockSize <= 0 {
		c.blockSize = DefaultBlockSize
	}
	if c.idleTimeout <= 0 {
		c.idleTimeout = DefaultIdleTimeout
	}
	if c.log == nil {
		c.log = logger.GetLogger()
	}
	if c.events == nil {
		c.events = NewEventQueue()
	}
	c.gainBits.Store(math.Float64bits(DefaultGain))
	return c
}

type session struct {
	path       string
	title      string
	module     decoder.Module
	songLength int

	remaining atomic.Int64
	playing   atomic.Bool
	loop      atomic.Bool
	gainDirty atomic.Bool
	state     atomic.Int32

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

func newSession(path string, module decoder.Module) *session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		path:       path,
		title:      module.Title(),
		module:     module,
		songLength: module.SongLengthFrames(),
		wake:       make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	s.remaining.Store(int64(s.songLength))
	s.loop.Store(true)
	return s
}

// signal wakes the render goroutine if it is idle. It never blocks.
func (s *session) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *session) threadState() ThreadState {
	return ThreadState(s.state.Load())
}

func (s *session) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *session) error() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Load reads and decodes the module at path and starts a paused session for
// it, with looping enabled. Any session already loaded is closed first. On
// error the controller is left unloaded.
func (c *Controller) Load(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.closeLocked(); err != nil {
		c.log.Warn("Failed to release previous module", "error", err)
	}

	data, err := c.loader.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrResourceNotFound, err)
	}

	module, err := c.opener.Open(path, data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}

	s := newSession(path, module)
	ready := make(chan error, 1)
	go c.run(s, ready)

	if err := <-ready; err != nil {
		<-s.done
		s.cancel()
		_ = module.Close()
		c.log.Error("Failed to open output line", "path", path, "error", err)
		return err
	}

	c.sess = s
	c.log.Info("Module loaded", "path", path, "frames", s.songLength, "title", s.title)
	c.events.Push(NewEventWithParams(EventLOADED, map[string]any{
		ParamPath:   path,
		ParamFrames: s.songLength,
	}))
	return nil
}

// SetLoop enables or disables looping. It takes effect at the next end of
// song. No-op when nothing is loaded.
func (c *Controller) SetLoop(enabled bool) {
	if s := c.current(); s != nil {
		s.loop.Store(enabled)
	}
}

// Play starts or resumes rendering. It is idempotent and a no-op when nothing
// is loaded or the session has already ended.
func (c *Controller) Play() {
	s := c.current()
	if s == nil || s.threadState() != Running {
		return
	}
	if !s.playing.Swap(true) {
		c.log.Info("Playback started", "path", s.path)
		c.events.Push(NewEventWithParams(EventPLAY, map[string]any{ParamPath: s.path}))
	}
	s.signal()
}

// Stop pauses rendering and drops audio still buffered in the device. The
// position and the output line are kept, so Play resumes where it left off.
// A block already being written is allowed to complete.
func (c *Controller) Stop() {
	s := c.current()
	if s == nil {
		return
	}
	if s.playing.Swap(false) {
		c.log.Info("Playback stopped", "path", s.path, "remaining", s.remaining.Load())
		c.events.Push(NewEventWithParams(EventSTOP, map[string]any{ParamPath: s.path}))
	}
	s.signal()
}

// SetGain clamps gain to [0, 1] and applies it to the open line. When no
// line is open the value is kept and applied when the next one opens.
func (c *Controller) SetGain(gain float64) {
	g := NormalizedGainToDeviceGain(gain)
	c.gainBits.Store(math.Float64bits(g))
	c.gainSet.Store(true)

	if s := c.current(); s != nil {
		s.gainDirty.Store(true)
		s.signal()
	}
}

// Gain returns the current clamped gain.
func (c *Controller) Gain() float64 {
	return math.Float64frombits(c.gainBits.Load())
}

// Close stops the render goroutine, waits for it to exit and releases the
// module. It is a no-op when nothing is loaded.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Controller) closeLocked() error {
	s := c.sess
	if s == nil {
		return nil
	}
	c.sess = nil

	s.state.CompareAndSwap(int32(Running), int32(Stopping))
	s.cancel()
	<-s.done

	err := s.module.Close()
	c.log.Info("Module closed", "path", s.path)
	c.events.Push(NewEventWithParams(EventCLOSED, map[string]any{ParamPath: s.path}))
	return err
}

// Wait blocks until the current session's render goroutine exits or ctx is
// done. It returns the session error, which is nil when the song simply ended
// or the session was closed.
func (c *Controller) Wait(ctx context.Context) error {
	s := c.current()
	if s == nil {
		return ErrNotLoaded
	}
	select {
	case <-s.done:
		return s.error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns a snapshot of the controller state.
func (c *Controller) Status() Status {
	st := Status{Gain: c.Gain(), Thread: Stopped}

	s := c.current()
	if s == nil {
		return st
	}
	st.Loaded = true
	st.Thread = s.threadState()
	st.Playing = s.playing.Load() && st.Thread == Running
	st.Loop = s.loop.Load()
	st.SongLengthFrames = s.songLength
	st.RemainingFrames = int(s.remaining.Load())
	st.Path = s.path
	st.Title = s.title
	st.Err = s.error()
	return st
}

// Events returns the queue controller events are pushed to.
func (c *Controller) Events() *EventQueue {
	return c.events
}

func (c *Controller) current() *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// run is the render goroutine. It reports the result of opening the line on
// ready before entering the block loop.
func (c *Controller) run(s *session, ready chan<- error) {
	defer close(s.done)

	line, err := c.openLine()
	if err != nil {
		s.state.Store(int32(Stopped))
		ready <- err
		return
	}

	s.gainDirty.Store(false)
	if c.gainSet.Load() {
		line.SetGain(c.Gain())
	}
	s.state.Store(int32(Running))
	ready <- nil

	c.render(s, line)

	s.playing.Store(false)
	s.state.Store(int32(Stopped))
}

func (c *Controller) openLine() (sink.Line, error) {
	line, err := c.sink.Open(sink.DefaultFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	if err := line.Start(); err != nil {
		_ = line.Close()
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	return line, nil
}

// render runs the block loop until the song ends, the line fails or the
// session is cancelled. The line is closed on every return.
func (c *Controller) render(s *session, line sink.Line) {
	left := make([]int32, c.blockSize)
	right := make([]int32, c.blockSize)
	buf := make([]byte, 0, c.blockSize*bytesPerFrame)
	unflushed := false

	for {
		if s.ctx.Err() != nil {
			c.release(line)
			return
		}
		if s.gainDirty.Swap(false) {
			line.SetGain(c.Gain())
		}

		if !s.playing.Load() {
			if unflushed {
				if err := line.Flush(); err != nil {
					c.log.Warn("Failed to flush output line", "error", err)
				}
				unflushed = false
			}
			c.idle(s)
			continue
		}

		remaining := int(s.remaining.Load())
		if remaining == 0 {
			// only reachable for an empty song
			c.finish(s, line)
			return
		}

		n := min(c.blockSize, remaining)
		s.module.RenderBlock(left[:n], right[:n])
		buf = PackSamples(buf[:0], left[:n], right[:n])

		if _, err := line.Write(s.ctx, buf); err != nil {
			if s.ctx.Err() != nil {
				c.release(line)
				return
			}
			c.fail(s, line, err)
			return
		}
		unflushed = true

		remaining -= n
		switch {
		case remaining > 0:
			s.remaining.Store(int64(remaining))
		case s.loop.Load():
			s.remaining.Store(int64(s.songLength))
			c.log.Debug("Loop boundary", "path", s.path, "frames", s.songLength)
			c.events.Push(NewEventWithParams(EventLOOP, map[string]any{
				ParamPath:   s.path,
				ParamFrames: s.songLength,
			}))
		default:
			s.remaining.Store(0)
			c.finish(s, line)
			return
		}
	}
}

// idle parks the render goroutine until it is woken, cancelled or the idle
// timeout passes.
func (c *Controller) idle(s *session) {
	timer := time.NewTimer(c.idleTimeout)
	defer timer.Stop()

	select {
	case <-s.ctx.Done():
	case <-s.wake:
	case <-timer.C:
	}
}

func (c *Controller) finish(s *session, line sink.Line) {
	c.release(line)
	c.log.Info("Song finished", "path", s.path, "frames", s.songLength)
	c.events.Push(NewEventWithParams(EventSONG_END, map[string]any{
		ParamPath:   s.path,
		ParamFrames: s.songLength,
	}))
}

func (c *Controller) fail(s *session, line sink.Line, cause error) {
	err := fmt.Errorf("%w: %w", ErrDeviceUnavailable, cause)
	s.setErr(err)
	c.log.Error("Output line failed", "path", s.path, "error", err)
	c.events.Push(NewEventWithParams(EventDEVICE_ERROR, map[string]any{
		ParamPath:  s.path,
		ParamError: err,
	}))
	c.release(line)
}

// release flushes and closes the line.
func (c *Controller) release(line sink.Line) {
	if err := line.Flush(); err != nil {
		c.log.Warn("Failed to flush output line", "error", err)
	}
	if err := line.Close(); err != nil {
		c.log.Warn("Failed to close output line", "error", err)
	}
}
