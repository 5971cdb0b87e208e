// Package influxdb records device telemetry history: level changes
// observed on the Insteon network and link database sync events.
// Writes are batched and asynchronous; telemetry must never hold up
// the protocol dispatch path.
package influxdb
