package connmgr

import "errors"

// Domain-specific errors for connection management.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAlreadyActive is returned by Connect when the manager is not idle.
	ErrAlreadyActive = errors.New("connmgr: manager already connecting or connected")

	// ErrInvalidTransition is returned when a state change is not in the transition table.
	ErrInvalidTransition = errors.New("connmgr: invalid state transition")

	// ErrRetriesExhausted wraps the last dial error once the retry policy gives up.
	ErrRetriesExhausted = errors.New("connmgr: reconnect attempts exhausted")

	// ErrChannelFailed is returned when the broker accepted the connection but
	// refused to open a channel on it.
	ErrChannelFailed = errors.New("connmgr: channel creation failed")

	// ErrCloseFailed wraps an error returned by the transport while closing.
	ErrCloseFailed = errors.New("connmgr: closing connection failed")

	// ErrNoDialer is reported when the manager was built without a transport.
	ErrNoDialer = errors.New("connmgr: no dialer configured")

	// ErrNotConnected is returned by HealthCheck when no channel is open.
	ErrNotConnected = errors.New("connmgr: not connected")
)
