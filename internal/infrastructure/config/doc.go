// Package config loads rabbitlink settings from YAML and applies
// RABBITLINK_* environment overrides on top.
//
//	cfg, err := config.Load("configs/config.yaml")
//
// Load validates the result and reports every problem it finds in one error.
// Secrets such as the broker URL, the MQTT password and the InfluxDB token
// are best supplied through the environment so the file can stay readable.
package config
