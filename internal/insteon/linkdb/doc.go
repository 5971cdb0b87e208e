// Package linkdb maintains a local mirror of a device's all-link
// database: the on-device table of controller/responder records that
// routes scene and group traffic.
//
// Devices report a single "delta" version byte that increments on every
// database change. The mirror stores the delta it last synchronised at;
// comparing it against the delta carried in a status reply detects a
// stale mirror without downloading the full table.
//
// The mirror is mutated only by the protocol dispatch goroutine, after
// on-wire confirmation of each change. Reads may come from other
// goroutines (the MQTT bridge), so access is guarded internally.
package linkdb
