package mqtt

import "fmt"

// DefaultTopicPrefix is used when the configuration leaves topic_prefix empty.
const DefaultTopicPrefix = "rabbitlink"

// Topics builds the MQTT topics of one rabbitlink instance.
//
// All topics share the scheme {prefix}/{category}/{client_id}[/...]:
//
//	topics := mqtt.Topics{Prefix: "rabbitlink"}
//	topics.Status("orders-api")             // rabbitlink/status/orders-api
//	topics.Event("orders-api", "retry")     // rabbitlink/events/orders-api/retry
//	topics.Command("orders-api")            // rabbitlink/command/orders-api
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// Status returns the retained connection status topic.
//
// The LWT is published here too, so subscribers see "offline" if the
// process dies without a graceful shutdown.
func (t Topics) Status(clientID string) string {
	return fmt.Sprintf("%s/status/%s", t.prefix(), clientID)
}

// Event returns the topic for one lifecycle event kind.
func (t Topics) Event(clientID, kind string) string {
	return fmt.Sprintf("%s/events/%s/%s", t.prefix(), clientID, kind)
}

// AllEvents returns a single-level wildcard over every event kind.
func (t Topics) AllEvents(clientID string) string {
	return fmt.Sprintf("%s/events/%s/+", t.prefix(), clientID)
}

// Command returns the topic the control listener subscribes to.
func (t Topics) Command(clientID string) string {
	return fmt.Sprintf("%s/command/%s", t.prefix(), clientID)
}
