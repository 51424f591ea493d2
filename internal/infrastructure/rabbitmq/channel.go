package rabbitmq

import (
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel wraps an *amqp.Channel. It implements connmgr.Channel.
type Channel struct {
	ch      *amqp.Channel
	confirm bool
}

// AMQP returns the underlying channel for publishing and consuming.
// The channel is owned by the manager; do not close it directly.
func (c *Channel) AMQP() *amqp.Channel {
	return c.ch
}

// IsConfirm reports whether the channel is in publisher-confirm mode.
func (c *Channel) IsConfirm() bool {
	return c.confirm
}

// Close closes the channel. Closing an already closed channel is not an error.
func (c *Channel) Close() error {
	if err := c.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	return nil
}
