package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/rabbitlink/internal/connmgr"
)

// Measurement names.
const (
	measurementConnection = "broker_connection"
	measurementStats      = "broker_stats"
)

// WriteConnectionEvent records one connection lifecycle event.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Point layout:
//
//	broker_connection,broker=<url>,event=<kind> attempt=<n>i[,error="<msg>"] <event time>
func (c *Client) WriteConnectionEvent(ev connmgr.Event) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(connectionEventPoint(c.broker, ev))
}

// HandleEvent records ev. It has the connmgr.Handler signature.
func (c *Client) HandleEvent(ev connmgr.Event) {
	c.WriteConnectionEvent(ev)
}

// WriteStats records a snapshot of the manager's counters.
func (c *Client) WriteStats(stats connmgr.Stats) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(statsPoint(c.broker, stats, time.Now()))
}

func connectionEventPoint(broker string, ev connmgr.Event) *write.Point {
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	fields := map[string]interface{}{
		"attempt": ev.Attempt,
	}
	if ev.Err != nil {
		fields["error"] = ev.Err.Error()
	}

	return write.NewPoint(
		measurementConnection,
		map[string]string{
			"broker": broker,
			"event":  string(ev.Kind),
		},
		fields,
		ts,
	)
}

func statsPoint(broker string, stats connmgr.Stats, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementStats,
		map[string]string{
			"broker": broker,
			"state":  string(stats.State),
		},
		map[string]interface{}{
			"connected":      stats.State == connmgr.StateConnected,
			"attempt":        stats.Attempt,
			"reconnects":     stats.Reconnects,
			"uptime_seconds": stats.Uptime.Seconds(),
		},
		ts,
	)
}
