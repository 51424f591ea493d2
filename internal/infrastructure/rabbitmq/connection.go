package rabbitmq

import (
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nerrad567/rabbitlink/internal/connmgr"
)

// amqpConnection is the subset of *amqp.Connection used by Connection.
type amqpConnection interface {
	Channel() (*amqp.Channel, error)
	Close() error
	IsClosed() bool
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
}

// Connection wraps an *amqp.Connection. It implements connmgr.Connection.
//
// The library delivers at most one *amqp.Error per connection, on abnormal
// close only. A single watcher goroutine forwards it to every receiver
// registered with NotifyError, then to every NotifyClose receiver, and closes
// them all. Sends block, so receivers should be buffered.
type Connection struct {
	conn   amqpConnection
	raw    *amqp.Connection
	logger Logger

	mu             sync.Mutex
	errReceivers   []chan error
	closeReceivers []chan error
	closed         bool
	done           chan struct{}
}

func newConnection(conn *amqp.Connection, logger Logger) *Connection {
	c := wrapConnection(conn, logger)
	c.raw = conn
	return c
}

func wrapConnection(conn amqpConnection, logger Logger) *Connection {
	c := &Connection{
		conn:   conn,
		logger: logger,
		done:   make(chan struct{}),
	}
	notify := conn.NotifyClose(make(chan *amqp.Error, 1))
	go c.watch(notify)
	return c
}

// watch waits for the library's close notification and fans it out.
func (c *Connection) watch(notify chan *amqp.Error) {
	defer close(c.done)

	var err error
	if amqpErr, ok := <-notify; ok && amqpErr != nil {
		err = amqpErr
		c.logger.Debug("amqp connection closed by broker",
			"code", amqpErr.Code,
			"reason", amqpErr.Reason,
			"server", amqpErr.Server,
		)
	}

	c.mu.Lock()
	c.closed = true
	errReceivers, closeReceivers := c.errReceivers, c.closeReceivers
	c.errReceivers, c.closeReceivers = nil, nil
	c.mu.Unlock()

	deliver(errReceivers, err)
	deliver(closeReceivers, err)
}

// deliver sends err (if any) to each receiver and closes it.
func deliver(receivers []chan error, err error) {
	for _, r := range receivers {
		if err != nil {
			r <- err
		}
		close(r)
	}
}

// NotifyError registers a receiver for connection-level errors.
func (c *Connection) NotifyError(receiver chan error) chan error {
	return c.register(&c.errReceivers, receiver)
}

// NotifyClose registers a receiver for the close notification.
func (c *Connection) NotifyClose(receiver chan error) chan error {
	return c.register(&c.closeReceivers, receiver)
}

func (c *Connection) register(list *[]chan error, receiver chan error) chan error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		close(receiver)
		return receiver
	}
	*list = append(*list, receiver)
	return receiver
}

// Channel opens a standard channel.
func (c *Connection) Channel() (connmgr.Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrChannelOpen, err)
	}
	return &Channel{ch: ch}, nil
}

// ConfirmChannel opens a channel and puts it into publisher-confirm mode.
func (c *Connection) ConfirmChannel() (connmgr.Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrChannelOpen, err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%w: %w", ErrConfirmMode, err)
	}
	return &Channel{ch: ch, confirm: true}, nil
}

// Close gracefully closes the connection and its channels.
// Closing an already closed connection is not an error.
func (c *Connection) Close() error {
	if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	return nil
}

// IsClosed reports whether the connection has been closed.
func (c *Connection) IsClosed() bool {
	return c.conn.IsClosed()
}

// AMQP returns the underlying connection, or nil for wrapped test doubles.
func (c *Connection) AMQP() *amqp.Connection {
	return c.raw
}

// Done is closed once the close notification has been delivered.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}
