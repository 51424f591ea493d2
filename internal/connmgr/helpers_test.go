package connmgr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// ============================================================================
// Fake transport
// ============================================================================

type fakeChannel struct {
	confirm bool
	closed  bool
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

type fakeConnection struct {
	id int

	mu             sync.Mutex
	errReceivers   []chan error
	closeReceivers []chan error
	terminated     bool
	closeCalls     int
	closeErr       error
	channelErr     error
	channelCalls   int
	confirmCalls   int
}

func (c *fakeConnection) Channel() (Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channelCalls++
	if c.channelErr != nil {
		return nil, c.channelErr
	}
	return &fakeChannel{}, nil
}

func (c *fakeConnection) ConfirmChannel() (Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirmCalls++
	if c.channelErr != nil {
		return nil, c.channelErr
	}
	return &fakeChannel{confirm: true}, nil
}

func (c *fakeConnection) Close() error {
	c.mu.Lock()
	c.closeCalls++
	err := c.closeErr
	c.mu.Unlock()

	if err != nil {
		return err
	}
	c.terminate(nil)
	return nil
}

func (c *fakeConnection) NotifyError(receiver chan error) chan error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminated {
		close(receiver)
		return receiver
	}
	c.errReceivers = append(c.errReceivers, receiver)
	return receiver
}

func (c *fakeConnection) NotifyClose(receiver chan error) chan error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminated {
		close(receiver)
		return receiver
	}
	c.closeReceivers = append(c.closeReceivers, receiver)
	return receiver
}

// fail simulates the broker dropping the connection with err.
func (c *fakeConnection) fail(err error) {
	c.terminate(err)
}

// terminate delivers err (nil = graceful) to error receivers, then close receivers.
func (c *fakeConnection) terminate(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminated {
		return
	}
	c.terminated = true

	for _, r := range c.errReceivers {
		if err != nil {
			r <- err
		}
		close(r)
	}
	for _, r := range c.closeReceivers {
		if err != nil {
			r <- err
		}
		close(r)
	}
	c.errReceivers, c.closeReceivers = nil, nil
}

func (c *fakeConnection) counts() (closes, channels, confirms int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls, c.channelCalls, c.confirmCalls
}

type fakeDialer struct {
	mu       sync.Mutex
	failures int
	err      error
	dials    int
	urls     []string
	options  []map[string]any
	conns    []*fakeConnection
	prepare  func(c *fakeConnection)
}

func (d *fakeDialer) Dial(_ context.Context, url string, options map[string]any) (Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials++
	d.urls = append(d.urls, url)
	d.options = append(d.options, options)

	if d.dials <= d.failures {
		err := d.err
		if err == nil {
			err = fmt.Errorf("dial %d refused", d.dials)
		}
		return nil, err
	}

	c := &fakeConnection{id: len(d.conns)}
	if d.prepare != nil {
		d.prepare(c)
	}
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) conn(i int) *fakeConnection {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

// ============================================================================
// Recording helpers
// ============================================================================

type logEntry struct {
	level string
	msg   string
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) add(level, msg string) {
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg})
	l.mu.Unlock()
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.add("debug", msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.add("info", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.add("warn", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.add("error", msg) }

func (l *recordingLogger) count(level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			n++
		}
	}
	return n
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventLog) handle(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventLog) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *eventLog) kinds() []EventKind {
	evs := r.all()
	out := make([]EventKind, len(evs))
	for i, ev := range evs {
		out[i] = ev.Kind
	}
	return out
}

func (r *eventLog) count(kind EventKind) int {
	n := 0
	for _, ev := range r.all() {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func equalKinds(got, want []EventKind) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

var errBrokerGone = errors.New("broker closed the connection")
