// Package mqtt mirrors the AMQP connection lifecycle to an MQTT broker.
//
// This package manages:
//   - Connection to the MQTT broker with auto-reconnect (paho)
//   - Retained status per rabbitlink instance, with an "offline" LWT
//   - One non-retained message per lifecycle event
//   - A command topic for status, connect, disconnect and reconnect
//
// The mirror is optional. When its broker is down, lifecycle handling
// continues and the last retained status is republished on reconnect.
//
// # Topics
//
//	{prefix}/status/{client_id}          retained StatusMessage
//	{prefix}/events/{client_id}/{kind}   EventMessage
//	{prefix}/command/{client_id}         CommandMessage
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	status := mqtt.NewStatusPublisher(client, client.Topics(), client.ClientID(), 1, logger)
//	manager.On("", status.HandleEvent)
//
//	ctl := mqtt.NewController(ctx, manager, status, logger)
//	if err := ctl.Listen(client); err != nil {
//	    return err
//	}
package mqtt
