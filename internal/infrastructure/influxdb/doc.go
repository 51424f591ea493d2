// Package influxdb records broker connection history in InfluxDB.
//
// Points are written through the non-blocking batched API of
// influxdb-client-go v2, so recording an event never stalls the
// connection manager.
//
// # Measurements
//
//   - broker_connection: one point per lifecycle event (tags broker, event)
//   - broker_stats: periodic snapshots of connmgr.Stats (tags broker, state)
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, rabbitmq.RedactURL(cfg.Broker.URL))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	manager.OnEvent(client.HandleEvent)
//
// Batch failures arrive on the SetOnError callback. Connect and HealthCheck
// return their errors directly.
package influxdb
