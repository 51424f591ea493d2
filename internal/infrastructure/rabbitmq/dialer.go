package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nerrad567/rabbitlink/internal/connmgr"
)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Dialer opens AMQP connections. It implements connmgr.Dialer.
type Dialer struct {
	logger Logger
}

// NewDialer creates a Dialer. A nil logger uses slog.Default().
func NewDialer(logger Logger) *Dialer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dialer{logger: logger}
}

// Dial connects to rawURL.
//
// The TCP connect honours ctx; the AMQP handshake is bounded by the dial
// timeout and the deadline is cleared by the library once the connection is
// open, leaving liveness to heartbeats.
//
// Parameters:
//   - ctx: Cancels the TCP connect
//   - rawURL: amqp:// or amqps:// URL
//   - options: Connection options, see package documentation
//
// Returns:
//   - connmgr.Connection: *Connection wrapping the live amqp connection
//   - error: ErrInvalidOption for bad options, ErrDialFailed otherwise
func (d *Dialer) Dial(ctx context.Context, rawURL string, options map[string]any) (connmgr.Connection, error) {
	s, err := buildSettings(options)
	if err != nil {
		if errors.Is(err, ErrInvalidOption) {
			return nil, err
		}
		d.logger.Warn("ignoring connection options", "error", err)
	}

	s.config.Dial = contextDial(ctx, s.dialTimeout)

	d.logger.Debug("dialing broker", "url", RedactURL(rawURL), "heartbeat", s.config.Heartbeat)
	conn, err := amqp.DialConfig(rawURL, s.config)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDialFailed, RedactURL(rawURL), err)
	}

	return newConnection(conn, d.logger), nil
}

// contextDial mirrors amqp.DefaultDial with a context-aware connect.
func contextDial(ctx context.Context, timeout time.Duration) func(network, addr string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		dialer := net.Dialer{Timeout: timeout}
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		// Handshake deadline; the library clears it once the connection is open.
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}
