// Package journal persists connection manager events to the connection_events
// table so the lifecycle history of a broker connection survives restarts.
//
// A Recorder subscribes to a connmgr.Manager and writes one row per event.
// The SQLiteRepository lists entries newest first with optional filters and
// prunes entries past the retention period.
package journal
