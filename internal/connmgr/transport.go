package connmgr

import "context"

// Dialer opens broker connections. It is the only way the manager reaches the network.
type Dialer interface {
	// Dial connects to url using the resolved, library-specific connection
	// options. It fails on malformed URLs, authentication errors and
	// unreachable hosts.
	Dial(ctx context.Context, url string, options map[string]any) (Connection, error)
}

// Connection is a live broker connection.
//
// The manager owns every Connection it dials; handles passed to event
// handlers are borrowed and must not be closed by subscribers.
type Connection interface {
	// Channel opens a standard channel.
	Channel() (Channel, error)

	// ConfirmChannel opens a channel in publisher-confirm mode.
	ConfirmChannel() (Channel, error)

	// Close closes the connection gracefully.
	Close() error

	// NotifyError registers a receiver for connection-level errors.
	// The receiver is closed when the connection terminates.
	NotifyError(receiver chan error) chan error

	// NotifyClose registers a receiver for the close notification.
	// On abnormal close exactly one non-nil error is sent before the receiver
	// is closed; on graceful close it is closed without a value.
	// Any error for the same failure is delivered to NotifyError receivers first.
	NotifyClose(receiver chan error) chan error
}

// Channel is a logical channel multiplexed over a Connection.
type Channel interface {
	Close() error
}
