package app

import (
	"log/slog"
	"sync"
	"time"

	"github.com/zurustar/trackplay/pkg/playback"
)

// DefaultMonitorInterval is how often the monitor drains the event queue.
const DefaultMonitorInterval = 50 * time.Millisecond

// Monitor periodically drains the controller's event queue and logs each
// event. It runs in its own goroutine between Start and Stop.
type Monitor struct {
	interval time.Duration
	events   *playback.EventQueue
	log      *slog.Logger

	// onTick, when set, runs after each drain (status line refresh).
	onTick func()

	ticker  *time.Ticker
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
}

// NewMonitor creates a Monitor. If interval is 0 or negative, the default
// interval (50ms) is used.
func NewMonitor(interval time.Duration, events *playback.EventQueue, log *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	return &Monitor{
		interval: interval,
		events:   events,
		log:      log,
	}
}

// Start starts draining. If the monitor is already running, this does nothing.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.ticker = time.NewTicker(m.interval)

	go m.run(m.ticker, m.stopCh, m.doneCh)
}

func (m *Monitor) run(ticker *time.Ticker, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			m.poll()
		}
	}
}

// Stop stops the monitor and drains whatever is left in the queue. If the
// monitor is not running, this does nothing.
func (m *Monitor) Stop() {
	m.mu.Lock()

	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	doneCh := m.doneCh

	m.mu.Unlock()

	// Wait for the goroutine to finish (outside the lock to avoid deadlock)
	<-doneCh

	m.mu.Lock()
	m.ticker.Stop()
	m.ticker = nil
	m.stopCh = nil
	m.doneCh = nil
	m.mu.Unlock()

	m.poll()
}

// IsRunning returns whether the monitor is currently running.
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) poll() {
	for {
		e, ok := m.events.Pop()
		if !ok {
			break
		}
		m.logEvent(e)
	}
	if m.onTick != nil {
		m.onTick()
	}
}

func (m *Monitor) logEvent(e *playback.Event) {
	attrs := []any{"event", string(e.Type)}
	for _, name := range []string{playback.ParamPath, playback.ParamFrames, playback.ParamError} {
		if v, ok := e.GetParam(name); ok {
			attrs = append(attrs, name, v)
		}
	}

	switch e.Type {
	case playback.EventDEVICE_ERROR:
		m.log.Error("Playback event", attrs...)
	case playback.EventLOOP:
		m.log.Debug("Playback event", attrs...)
	default:
		m.log.Info("Playback event", attrs...)
	}
}
