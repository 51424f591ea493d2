// Package api serves the rabbitlink status and control API over HTTP.
//
// Endpoints, all under /api/v1:
//
//	GET  /health                 200 when the broker connection is usable, 503 otherwise
//	GET  /status                 connection manager stats
//	GET  /events                 journalled lifecycle events (kind, since, until, limit, offset)
//	POST /connection/{command}   connect, disconnect or reconnect; answers 202
//	GET  /ws                     websocket stream of lifecycle events
//
// Websocket clients subscribe to event kinds:
//
//	{"type":"subscribe","id":"1","payload":{"channels":["retry","channel"]}}
//
// The "*" channel receives every kind. Events arrive as
//
//	{"type":"event","event_type":"retry","payload":{"kind":"retry","attempt":2,"time":"..."}}
//
// The server follows the same lifecycle as the other components:
//
//	server, err := api.New(deps)
//	manager.OnEvent(server.HandleEvent)
//	server.Start(ctx)
//	defer server.Close()
package api
