package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/rabbitlink/internal/connmgr"
	"github.com/nerrad567/rabbitlink/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "rabbitlink-test",
		},
		QoS:         1,
		TopicPrefix: "rabbitlink",
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// fakePublisher records publishes instead of sending them.
type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

type published struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

func (f *fakePublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{topic, payload, qos, retained})
	return f.err
}

func (f *fakePublisher) onTopic(topic string) []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []published
	for _, m := range f.msgs {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

type testLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *testLogger) Error(msg string, _ ...any) {}

func (l *testLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *testLogger) warnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns)
}

// =============================================================================
// Topic Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := Topics{Prefix: "site-a"}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"status", topics.Status("orders-api"), "site-a/status/orders-api"},
		{"event", topics.Event("orders-api", "retry"), "site-a/events/orders-api/retry"},
		{"all events", topics.AllEvents("orders-api"), "site-a/events/orders-api/+"},
		{"command", topics.Command("orders-api"), "site-a/command/orders-api"},
		{"default prefix", Topics{}.Status("x"), "rabbitlink/status/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

// =============================================================================
// Options Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "mirror", Password: "secret"}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want [tcp://127.0.0.1:1883]", opts.Servers)
	}
	if opts.ClientID != "rabbitlink-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "mirror" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Error("AutoReconnect and CleanSession should be enabled")
	}
	if opts.TLSConfig != nil && opts.TLSConfig.MinVersion != 0 {
		t.Error("TLS should not be configured without broker.tls")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS 1.2 minimum should be configured")
	}
}

func TestConfigureLWT(t *testing.T) {
	cfg := testConfig()
	opts := buildClientOptions(cfg)
	configureLWT(opts, Topics{Prefix: "rabbitlink"}, cfg.Broker.ClientID)

	if !opts.WillEnabled || !opts.WillRetained {
		t.Fatal("LWT should be enabled and retained")
	}
	if opts.WillTopic != "rabbitlink/status/rabbitlink-test" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}

	var msg StatusMessage
	if err := json.Unmarshal(opts.WillPayload, &msg); err != nil {
		t.Fatalf("LWT payload is not JSON: %v", err)
	}
	if msg.Status != StatusOffline || msg.Reason != "unexpected_disconnect" {
		t.Errorf("LWT payload = %+v", msg)
	}
}

func TestBuildStatusPayload_StampsTimestamp(t *testing.T) {
	payload := buildStatusPayload(StatusMessage{Status: StatusConnected, ClientID: "a"})

	var msg StatusMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if _, err := time.Parse(time.RFC3339, msg.Timestamp); err != nil {
		t.Errorf("Timestamp = %q, want RFC3339", msg.Timestamp)
	}
	if strings.Contains(string(payload), "attempt") {
		t.Errorf("zero attempt should be omitted: %s", payload)
	}
}

// =============================================================================
// Client Validation Tests (no broker)
// =============================================================================

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}

	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v", err)
	}
}

func TestPublish_Validation(t *testing.T) {
	client := &Client{}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", nil, 1, ErrInvalidTopic},
		{"invalid qos", "a/b", nil, 3, ErrInvalidQoS},
		{"oversized payload", "a/b", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"disconnected", "a/b", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPublish_RetainedRememberedWhileDisconnected(t *testing.T) {
	client := &Client{}
	payload := []byte(`{"status":"connecting"}`)

	if err := client.Publish("rabbitlink/status/a", payload, 1, true); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Publish() error = %v, want ErrNotConnected", err)
	}

	payload[0] = 'X'
	got := string(client.retained["rabbitlink/status/a"])
	if got != `{"status":"connecting"}` {
		t.Errorf("retained = %q, want a copy of the original payload", got)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	client := &Client{}
	handler := func(string, []byte) error { return nil }

	if err := client.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v", err)
	}
	if err := client.Subscribe("a", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("invalid qos error = %v", err)
	}
	if err := client.Subscribe("a", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler error = %v", err)
	}
	if err := client.Subscribe("a", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected error = %v", err)
	}
	if client.HasSubscription("a") {
		t.Error("failed subscribe should not be tracked")
	}
}

func TestConnect_BrokerRefused(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19998
	cfg.Broker.ClientID = "rabbitlink-test-refused"

	_, err := Connect(cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

// =============================================================================
// StatusPublisher Tests
// =============================================================================

func TestStatusPublisher_MapsEventsToStatus(t *testing.T) {
	tests := []struct {
		event      connmgr.Event
		wantStatus string
	}{
		{connmgr.Event{Kind: connmgr.EventRetry, Attempt: 2}, StatusConnecting},
		{connmgr.Event{Kind: connmgr.EventConnected}, ""},
		{connmgr.Event{Kind: connmgr.EventChannel}, StatusConnected},
		{connmgr.Event{Kind: connmgr.EventConnectionError, Err: errors.New("heartbeat")}, ""},
		{connmgr.Event{Kind: connmgr.EventDisconnected}, StatusDisconnected},
		{connmgr.Event{Kind: connmgr.EventError, Err: errors.New("gave up")}, StatusFailed},
	}

	for _, tt := range tests {
		t.Run(string(tt.event.Kind), func(t *testing.T) {
			pub := &fakePublisher{}
			topics := Topics{Prefix: "rl"}
			sp := NewStatusPublisher(pub, topics, "svc", 1, nil)

			tt.event.Time = time.Now()
			sp.HandleEvent(tt.event)

			events := pub.onTopic(topics.Event("svc", string(tt.event.Kind)))
			if len(events) != 1 || events[0].retained {
				t.Fatalf("event publishes = %+v, want one non-retained", events)
			}

			statuses := pub.onTopic(topics.Status("svc"))
			if tt.wantStatus == "" {
				if len(statuses) != 0 {
					t.Errorf("unexpected status publish: %s", statuses[0].payload)
				}
				return
			}
			if len(statuses) != 1 || !statuses[0].retained {
				t.Fatalf("status publishes = %d, want one retained", len(statuses))
			}

			var msg StatusMessage
			if err := json.Unmarshal(statuses[0].payload, &msg); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if msg.Status != tt.wantStatus || msg.ClientID != "svc" {
				t.Errorf("status = %+v, want %s", msg, tt.wantStatus)
			}
			if sp.Status().Status != tt.wantStatus {
				t.Errorf("Status() = %q, want %q", sp.Status().Status, tt.wantStatus)
			}
		})
	}
}

func TestStatusPublisher_EventPayload(t *testing.T) {
	pub := &fakePublisher{}
	sp := NewStatusPublisher(pub, Topics{}, "svc", 0, nil)

	sp.HandleEvent(connmgr.Event{
		Kind:    connmgr.EventError,
		Attempt: 4,
		Err:     errors.New("gave up"),
		Time:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})

	msgs := pub.onTopic("rabbitlink/events/svc/error")
	if len(msgs) != 1 {
		t.Fatalf("publishes = %d, want 1", len(msgs))
	}

	var got EventMessage
	if err := json.Unmarshal(msgs[0].payload, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	want := EventMessage{
		Event:     "error",
		ClientID:  "svc",
		Attempt:   4,
		Error:     "gave up",
		Timestamp: "2026-01-02T03:04:05Z",
	}
	if got != want {
		t.Errorf("payload = %+v, want %+v", got, want)
	}
}

func TestStatusPublisher_PublishErrors(t *testing.T) {
	logger := &testLogger{}

	offline := NewStatusPublisher(&fakePublisher{err: ErrNotConnected}, Topics{}, "svc", 1, logger)
	offline.HandleEvent(connmgr.Event{Kind: connmgr.EventChannel})
	if logger.warnCount() != 0 {
		t.Errorf("ErrNotConnected should not be logged, got %d warnings", logger.warnCount())
	}

	failing := NewStatusPublisher(&fakePublisher{err: ErrPublishFailed}, Topics{}, "svc", 1, logger)
	failing.HandleEvent(connmgr.Event{Kind: connmgr.EventChannel})
	if logger.warnCount() != 2 {
		t.Errorf("warnings = %d, want 2 (event and status)", logger.warnCount())
	}
}

func TestStatusPublisher_Republish(t *testing.T) {
	pub := &fakePublisher{}
	sp := NewStatusPublisher(pub, Topics{}, "svc", 1, nil)

	if err := sp.Republish(); err != nil {
		t.Fatalf("Republish() before any status error = %v", err)
	}
	if len(pub.onTopic("rabbitlink/status/svc")) != 0 {
		t.Fatal("Republish() without status should not publish")
	}

	sp.HandleEvent(connmgr.Event{Kind: connmgr.EventDisconnected})
	if err := sp.Republish(); err != nil {
		t.Fatalf("Republish() error = %v", err)
	}
	if n := len(pub.onTopic("rabbitlink/status/svc")); n != 2 {
		t.Errorf("status publishes = %d, want 2", n)
	}
}

// =============================================================================
// Controller Tests
// =============================================================================

type fakeLifecycle struct {
	mu       sync.Mutex
	calls    []string
	release  chan struct{}
	connErr  error
	closeErr error
}

func (f *fakeLifecycle) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeLifecycle) Connect(context.Context) error {
	f.record("connect")
	if f.release != nil {
		<-f.release
	}
	return f.connErr
}

func (f *fakeLifecycle) Disconnect(context.Context) error {
	f.record("disconnect")
	return f.closeErr
}

func (f *fakeLifecycle) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestController_Commands(t *testing.T) {
	tests := []struct {
		payload string
		want    []string
	}{
		{`{"command":"connect"}`, []string{"connect"}},
		{`{"command":"disconnect"}`, []string{"disconnect"}},
		{`{"command":"reconnect"}`, []string{"disconnect", "connect"}},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			target := &fakeLifecycle{}
			c := NewController(context.Background(), target, nil, nil)

			if err := c.Handle("rabbitlink/command/svc", []byte(tt.payload)); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			c.Wait()

			got := target.recorded()
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("calls = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestController_ReconnectStopsOnDisconnectError(t *testing.T) {
	logger := &testLogger{}
	target := &fakeLifecycle{closeErr: errors.New("close failed")}
	c := NewController(context.Background(), target, nil, logger)

	if err := c.Handle("", []byte(`{"command":"reconnect"}`)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	c.Wait()

	if got := target.recorded(); len(got) != 1 || got[0] != "disconnect" {
		t.Errorf("calls = %v, want [disconnect]", got)
	}
	if logger.warnCount() != 1 {
		t.Errorf("warnings = %d, want 1", logger.warnCount())
	}
}

func TestController_Status(t *testing.T) {
	pub := &fakePublisher{}
	sp := NewStatusPublisher(pub, Topics{}, "svc", 1, nil)
	sp.HandleEvent(connmgr.Event{Kind: connmgr.EventChannel})

	target := &fakeLifecycle{}
	c := NewController(context.Background(), target, sp, nil)

	if err := c.Handle("", []byte(`{"command":"status"}`)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if n := len(pub.onTopic("rabbitlink/status/svc")); n != 2 {
		t.Errorf("status publishes = %d, want 2", n)
	}
	if len(target.recorded()) != 0 {
		t.Error("status command should not touch the connection")
	}
}

func TestController_RejectsUnknownAndMalformed(t *testing.T) {
	c := NewController(context.Background(), &fakeLifecycle{}, nil, nil)

	for _, payload := range []string{`{"command":"explode"}`, `not json`} {
		if err := c.Handle("", []byte(payload)); !errors.Is(err, ErrUnknownCommand) {
			t.Errorf("Handle(%s) error = %v, want ErrUnknownCommand", payload, err)
		}
	}
}

func TestController_BusyWhileCommandRuns(t *testing.T) {
	target := &fakeLifecycle{release: make(chan struct{})}
	c := NewController(context.Background(), target, nil, nil)

	if err := c.Handle("", []byte(`{"command":"connect"}`)); err != nil {
		t.Fatalf("first Handle() error = %v", err)
	}
	if err := c.Handle("", []byte(`{"command":"disconnect"}`)); !errors.Is(err, ErrCommandBusy) {
		t.Errorf("second Handle() error = %v, want ErrCommandBusy", err)
	}

	close(target.release)
	c.Wait()

	if err := c.Handle("", []byte(`{"command":"disconnect"}`)); err != nil {
		t.Errorf("Handle() after completion error = %v", err)
	}
	c.Wait()
}
