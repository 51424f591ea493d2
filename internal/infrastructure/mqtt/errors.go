package mqtt

import "errors"

var (
	ErrNotConnected     = errors.New("mqtt: client not connected")
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// Token failures and timeouts are wrapped in one of these.
	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	ErrInvalidQoS   = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")

	// ErrUnknownCommand is returned for control messages with an unrecognised command.
	ErrUnknownCommand = errors.New("mqtt: unknown command")

	// ErrCommandBusy is returned when a lifecycle command arrives while another is running.
	ErrCommandBusy = errors.New("mqtt: previous command still running")
)
