package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/rabbitlink/internal/connmgr"
)

// Publisher is the publishing side of Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// EventMessage is the payload published for every lifecycle event.
type EventMessage struct {
	Event     string `json:"event"`
	ClientID  string `json:"client_id"`
	Attempt   int    `json:"attempt"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// StatusPublisher mirrors connection manager events to MQTT.
//
// Every event is published (not retained) on its event topic. Events that
// change the connection status also update the retained status topic:
//
//	retry        -> connecting
//	channel      -> connected
//	disconnected -> disconnected
//	error        -> failed
type StatusPublisher struct {
	pub      Publisher
	topics   Topics
	clientID string
	qos      byte
	logger   Logger

	mu   sync.Mutex
	last StatusMessage
}

// NewStatusPublisher creates a StatusPublisher. A nil logger discards warnings.
func NewStatusPublisher(pub Publisher, topics Topics, clientID string, qos byte, logger Logger) *StatusPublisher {
	if logger == nil {
		logger = nopLogger{}
	}
	return &StatusPublisher{
		pub:      pub,
		topics:   topics,
		clientID: clientID,
		qos:      qos,
		logger:   logger,
	}
}

// HandleEvent publishes ev. It has the connmgr.Handler signature.
func (p *StatusPublisher) HandleEvent(ev connmgr.Event) {
	p.publishEvent(ev)

	if status, ok := statusFor(ev); ok {
		status.ClientID = p.clientID
		p.publishStatus(status)
	}
}

// statusFor maps an event to the status it implies, if any.
func statusFor(ev connmgr.Event) (StatusMessage, bool) {
	msg := StatusMessage{Timestamp: ev.Time.UTC().Format(time.RFC3339)}

	switch ev.Kind {
	case connmgr.EventRetry:
		msg.Status = StatusConnecting
		msg.Attempt = ev.Attempt
	case connmgr.EventChannel:
		msg.Status = StatusConnected
	case connmgr.EventDisconnected:
		msg.Status = StatusDisconnected
	case connmgr.EventError:
		msg.Status = StatusFailed
		if ev.Err != nil {
			msg.Error = ev.Err.Error()
		}
	default:
		return StatusMessage{}, false
	}
	return msg, true
}

func (p *StatusPublisher) publishEvent(ev connmgr.Event) {
	msg := EventMessage{
		Event:     string(ev.Kind),
		ClientID:  p.clientID,
		Attempt:   ev.Attempt,
		Timestamp: ev.Time.UTC().Format(time.RFC3339),
	}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		p.logger.Warn("encoding event message failed", "event", msg.Event, "error", err)
		return
	}

	p.publish(p.topics.Event(p.clientID, msg.Event), payload, false)
}

func (p *StatusPublisher) publishStatus(msg StatusMessage) {
	p.mu.Lock()
	p.last = msg
	p.mu.Unlock()

	p.publish(p.topics.Status(p.clientID), buildStatusPayload(msg), true)
}

func (p *StatusPublisher) publish(topic string, payload []byte, retained bool) {
	err := p.pub.Publish(topic, payload, p.qos, retained)
	if err == nil || errors.Is(err, ErrNotConnected) {
		// While the mirror is offline the retained status is replayed on reconnect.
		return
	}
	p.logger.Warn("publishing to MQTT failed", "topic", topic, "error", err)
}

// Status returns the last published status, or a zero value before the first event.
func (p *StatusPublisher) Status() StatusMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Republish sends the last status again.
func (p *StatusPublisher) Republish() error {
	msg := p.Status()
	if msg.Status == "" {
		return nil
	}
	if err := p.pub.Publish(p.topics.Status(p.clientID), buildStatusPayload(msg), p.qos, true); err != nil {
		return fmt.Errorf("republishing status: %w", err)
	}
	return nil
}

type nopLogger struct{}

func (nopLogger) Error(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
