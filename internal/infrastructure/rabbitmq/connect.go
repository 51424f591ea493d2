package rabbitmq

import (
	"context"
	"net/url"

	"github.com/nerrad567/rabbitlink/internal/connmgr"
)

// Connect creates a manager for rawURL using the AMQP dialer and runs its
// first connect cycle.
//
// Handlers are registered for every event kind before connecting, so they
// observe the first cycle. As with Manager.Connect, exhausted retries are
// reported through an EventError rather than the returned error.
//
// Parameters:
//   - ctx: Bounds the connect cycle and any later automatic reconnects
//   - rawURL: Broker URL, ideally with a heartbeat query parameter
//   - opts: Manager options
//   - logger: Shared by the manager and the dialer; nil uses slog.Default()
//   - handlers: Optional catch-all event handlers
//
// Returns:
//   - *connmgr.Manager: The manager, connected unless an EventError was emitted
//   - error: ctx.Err() if ctx was cancelled during the cycle
func Connect(ctx context.Context, rawURL string, opts connmgr.Options, logger connmgr.Logger, handlers ...connmgr.Handler) (*connmgr.Manager, error) {
	m := connmgr.New(rawURL, opts, NewDialer(logger), logger)
	for _, h := range handlers {
		m.OnEvent(h)
	}

	if err := m.Connect(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// RedactURL returns rawURL with any password masked, for logging.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}
