package connmgr

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventKind identifies a lifecycle event.
type EventKind string

// Lifecycle events emitted by the Manager.
const (
	// EventRetry is emitted before every connection attempt, including the first.
	// Payload: Attempt (0-based).
	EventRetry EventKind = "retry"

	// EventConnected is emitted when the transport connect succeeds.
	// Payload: Connection.
	EventConnected EventKind = "connected"

	// EventChannel is emitted once a channel or confirm channel is open.
	// Payload: Channel.
	EventChannel EventKind = "channel"

	// EventConnectionError is emitted for errors surfaced by the live connection.
	// Payload: Err.
	EventConnectionError EventKind = "connection-error"

	// EventDisconnected is emitted on a graceful close or explicit disconnect.
	EventDisconnected EventKind = "disconnected"

	// EventError is emitted when the retry loop gives up.
	// Payload: Err (the last attempt's failure).
	EventError EventKind = "error"
)

// Event is a single lifecycle notification. Only the payload field that
// belongs to Kind is set.
type Event struct {
	Kind       EventKind
	Attempt    int
	Connection Connection
	Channel    Channel
	Err        error
	Time       time.Time
}

// Handler receives lifecycle events. Handlers run synchronously on the
// goroutine driving the connection and must not block for long.
type Handler func(Event)

// registration pairs a handler with the kind it listens to ("" = all kinds).
type registration struct {
	kind    EventKind
	handler Handler
}

// emitter dispatches events to handlers in registration order.
type emitter struct {
	mu     sync.RWMutex
	regs   []registration
	logger Logger

	// active counts emit calls in progress.
	active atomic.Int32
}

func (e *emitter) add(kind EventKind, h Handler) {
	if h == nil {
		return
	}
	e.mu.Lock()
	e.regs = append(e.regs, registration{kind: kind, handler: h})
	e.mu.Unlock()
}

func (e *emitter) emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	e.mu.RLock()
	regs := make([]registration, len(e.regs))
	copy(regs, e.regs)
	e.mu.RUnlock()

	e.active.Add(1)
	defer e.active.Add(-1)

	for _, r := range regs {
		if r.kind == "" || r.kind == ev.Kind {
			e.dispatch(r.handler, ev)
		}
	}
}

// dispatching reports whether handlers are being run right now.
func (e *emitter) dispatching() bool {
	return e.active.Load() > 0
}

// dispatch invokes one handler with panic recovery so a faulty subscriber
// cannot stop the state machine.
func (e *emitter) dispatch(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event handler panic recovered",
				"event", string(ev.Kind),
				"panic", r,
			)
		}
	}()
	h(ev)
}

// On registers a handler for one event kind.
func (m *Manager) On(kind EventKind, h Handler) {
	m.events.add(kind, h)
}

// OnEvent registers a handler for every event kind.
func (m *Manager) OnEvent(h Handler) {
	m.events.add("", h)
}

// OnRetry registers a callback invoked before each connection attempt.
func (m *Manager) OnRetry(fn func(attempt int)) {
	m.On(EventRetry, func(ev Event) { fn(ev.Attempt) })
}

// OnConnected registers a callback invoked with each new connection.
func (m *Manager) OnConnected(fn func(conn Connection)) {
	m.On(EventConnected, func(ev Event) { fn(ev.Connection) })
}

// OnChannel registers a callback invoked with each new channel.
func (m *Manager) OnChannel(fn func(ch Channel)) {
	m.On(EventChannel, func(ev Event) { fn(ev.Channel) })
}

// OnConnectionError registers a callback for errors raised by the live connection.
func (m *Manager) OnConnectionError(fn func(err error)) {
	m.On(EventConnectionError, func(ev Event) { fn(ev.Err) })
}

// OnDisconnected registers a callback for graceful closes.
func (m *Manager) OnDisconnected(fn func()) {
	m.On(EventDisconnected, func(Event) { fn() })
}

// OnError registers a callback for terminal retry-loop failures.
func (m *Manager) OnError(fn func(err error)) {
	m.On(EventError, func(ev Event) { fn(ev.Err) })
}
