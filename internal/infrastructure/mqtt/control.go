package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
)

// Commands accepted on the command topic.
const (
	CommandStatus     = "status"
	CommandConnect    = "connect"
	CommandDisconnect = "disconnect"
	CommandReconnect  = "reconnect"
)

// Lifecycle is the part of connmgr.Manager the controller drives.
type Lifecycle interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

// CommandMessage is the payload expected on the command topic.
//
//	{"command": "reconnect"}
type CommandMessage struct {
	Command string `json:"command"`
}

// Controller executes lifecycle commands received over MQTT.
//
// Connect and reconnect block for a whole connect cycle, so lifecycle
// commands run on their own goroutine, one at a time. A command arriving
// while another runs is rejected with ErrCommandBusy.
type Controller struct {
	ctx    context.Context
	target Lifecycle
	status *StatusPublisher
	logger Logger

	busy atomic.Bool
	wg   sync.WaitGroup
}

// NewController creates a Controller. ctx bounds every command it runs.
func NewController(ctx context.Context, target Lifecycle, status *StatusPublisher, logger Logger) *Controller {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Controller{
		ctx:    ctx,
		target: target,
		status: status,
		logger: logger,
	}
}

// Listen subscribes the controller to the client's command topic.
func (c *Controller) Listen(client *Client) error {
	topic := client.Topics().Command(client.ClientID())
	return client.Subscribe(topic, byte(client.cfg.QoS), c.Handle)
}

// Handle processes one command message. It has the MessageHandler signature.
func (c *Controller) Handle(_ string, payload []byte) error {
	var msg CommandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrUnknownCommand, err)
	}

	switch msg.Command {
	case CommandStatus:
		if c.status == nil {
			return nil
		}
		return c.status.Republish()
	case CommandConnect:
		return c.run(msg.Command, c.target.Connect)
	case CommandDisconnect:
		return c.run(msg.Command, c.target.Disconnect)
	case CommandReconnect:
		return c.run(msg.Command, func(ctx context.Context) error {
			if err := c.target.Disconnect(ctx); err != nil {
				return err
			}
			return c.target.Connect(ctx)
		})
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, msg.Command)
	}
}

func (c *Controller) run(name string, fn func(ctx context.Context) error) error {
	if !c.busy.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %s", ErrCommandBusy, name)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.busy.Store(false)

		if err := fn(c.ctx); err != nil {
			c.logger.Warn("MQTT command failed", "command", name, "error", err)
		}
	}()
	return nil
}

// Wait blocks until the running command, if any, has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}
