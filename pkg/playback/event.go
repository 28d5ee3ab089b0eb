package playback

import (
	"sort"
	"sync"
	"time"
)

// EventType identifies a controller event.
type EventType string

const (
	// EventLOADED is pushed when Load succeeds.
	EventLOADED EventType = "LOADED"
	// EventPLAY is pushed when playback is requested on a paused session.
	EventPLAY EventType = "PLAY"
	// EventSTOP is pushed when a playing session is paused.
	EventSTOP EventType = "STOP"
	// EventLOOP is pushed each time the render loop wraps to the start of the song.
	EventLOOP EventType = "LOOP"
	// EventSONG_END is pushed when a non-looping song has been fully delivered.
	EventSONG_END EventType = "SONG_END"
	// EventDEVICE_ERROR is pushed when the output line fails mid-playback.
	EventDEVICE_ERROR EventType = "DEVICE_ERROR"
	// EventCLOSED is pushed when a session is torn down.
	EventCLOSED EventType = "CLOSED"
)

// Event parameter names.
const (
	ParamPath   = "Path"
	ParamFrames = "Frames"
	ParamError  = "Error"
)

// Event is a single controller notification.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Params    map[string]any
}

// NewEventWithParams creates an event with the given parameters.
func NewEventWithParams(eventType EventType, params map[string]any) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Params:    params,
	}
}

// GetParam retrieves a parameter value by name.
func (e *Event) GetParam(name string) (any, bool) {
	if e.Params == nil {
		return nil, false
	}
	val, ok := e.Params[name]
	return val, ok
}

// DefaultEventQueueSize bounds the queue when no size is given.
const DefaultEventQueueSize = 256

// EventQueue is a bounded, thread-safe queue kept in timestamp order.
// When full, the oldest event is discarded.
type EventQueue struct {
	events  []*Event
	maxSize int
	mu      sync.Mutex
}

// NewEventQueue creates a queue holding up to DefaultEventQueueSize events.
func NewEventQueue() *EventQueue {
	return NewEventQueueWithSize(DefaultEventQueueSize)
}

// NewEventQueueWithSize creates a queue with a custom bound.
func NewEventQueueWithSize(maxSize int) *EventQueue {
	if maxSize <= 0 {
		maxSize = DefaultEventQueueSize
	}
	return &EventQueue{
		events:  make([]*Event, 0, maxSize),
		maxSize: maxSize,
	}
}

// Push adds an event, assigning a timestamp if it has none.
func (eq *EventQueue) Push(event *Event) {
	eq.mu.Lock()
	defer eq.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if len(eq.events) >= eq.maxSize {
		eq.events = eq.events[1:]
	}
	eq.events = append(eq.events, event)

	// producers race on the caller and render goroutines
	sort.SliceStable(eq.events, func(i, j int) bool {
		return eq.events[i].Timestamp.Before(eq.events[j].Timestamp)
	})
}

// Pop removes and returns the oldest event.
func (eq *EventQueue) Pop() (*Event, bool) {
	eq.mu.Lock()
	defer eq.mu.Unlock()

	if len(eq.events) == 0 {
		return nil, false
	}
	event := eq.events[0]
	eq.events = eq.events[1:]
	return event, true
}

// Len returns the number of queued events.
func (eq *EventQueue) Len() int {
	eq.mu.Lock()
	defer eq.mu.Unlock()
	return len(eq.events)
}
