package rabbitmq

import "errors"

// Domain-specific errors for AMQP transport operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDialFailed is returned when the TCP connection or AMQP handshake fails.
	ErrDialFailed = errors.New("rabbitmq: dial failed")

	// ErrChannelOpen is returned when the broker refuses to open a channel.
	ErrChannelOpen = errors.New("rabbitmq: opening channel failed")

	// ErrConfirmMode is returned when a channel cannot be put into confirm mode.
	ErrConfirmMode = errors.New("rabbitmq: enabling publisher confirms failed")

	// ErrUnknownOption reports a connection option key this package does not handle.
	ErrUnknownOption = errors.New("rabbitmq: unknown connection option")

	// ErrInvalidOption reports a connection option with a value of the wrong type or range.
	ErrInvalidOption = errors.New("rabbitmq: invalid connection option")
)
