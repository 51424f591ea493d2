package journal

import (
	"context"
	"time"

	"github.com/nerrad567/rabbitlink/internal/connmgr"
)

// recordTimeout bounds a single insert so a locked database cannot stall
// the goroutine delivering events.
const recordTimeout = 2 * time.Second

// Logger is the logging interface used by Recorder.
// Compatible with *slog.Logger.
type Logger interface {
	Warn(msg string, args ...any)
}

// Recorder writes connection manager events to a Repository.
type Recorder struct {
	repo   Repository
	broker string
	state  func() connmgr.State
	logger Logger
}

// NewRecorder creates a Recorder tagging every entry with broker.
// state may be nil; when set, its result is stored with each entry.
func NewRecorder(repo Repository, broker string, state func() connmgr.State, logger Logger) *Recorder {
	return &Recorder{
		repo:   repo,
		broker: broker,
		state:  state,
		logger: logger,
	}
}

// HandleEvent records ev. It has the connmgr.Handler signature.
// Failures are logged and never reach the connection manager.
func (r *Recorder) HandleEvent(ev connmgr.Event) {
	e := Entry{
		Broker:     r.broker,
		Kind:       ev.Kind,
		Attempt:    ev.Attempt,
		OccurredAt: ev.Time,
	}
	if ev.Err != nil {
		e.Error = ev.Err.Error()
	}
	if r.state != nil {
		e.State = r.state()
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := r.repo.Record(ctx, &e); err != nil && r.logger != nil {
		r.logger.Warn("recording lifecycle event failed", "event", string(ev.Kind), "error", err)
	}
}
