package loop

import (
	"sync"
	"time"
)

// EventKind identifies the type of run event.
type EventKind string

const (
	EventRunStart      EventKind = "run_start"
	EventModelResponse EventKind = "model_response"
	EventParseWarning  EventKind = "parse_warning"
	EventCommandStart  EventKind = "command_start"
	EventCommandEnd    EventKind = "command_end"
	EventIterationEnd  EventKind = "iteration_end"
	EventLoopDetected  EventKind = "loop_detected"
	EventRunEnd        EventKind = "run_end"
	EventError         EventKind = "error"
)

// Event is a typed event emitted during a run.
type Event struct {
	Kind      EventKind      `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// Emitter delivers run events to the host application via a buffered
// channel. The host polls the channel; the controller never blocks on it.
type Emitter struct {
	runID  string
	ch     chan Event
	closed bool
	mu     sync.Mutex
}

// NewEmitter creates an Emitter with the given channel buffer size.
func NewEmitter(runID string, bufferSize int) *Emitter {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Emitter{
		runID: runID,
		ch:    make(chan Event, bufferSize),
	}
}

// Emit sends an event. Events are silently dropped after Close, or when the
// channel is full, to avoid blocking the loop.
func (e *Emitter) Emit(kind EventKind, data map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	event := Event{
		Kind:      kind,
		Timestamp: time.Now(),
		RunID:     e.runID,
		Data:      data,
	}
	select {
	case e.ch <- event:
	default:
	}
}

// Events returns the read-only event channel.
func (e *Emitter) Events() <-chan Event {
	return e.ch
}

// Close closes the event channel. Safe to call multiple times.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
