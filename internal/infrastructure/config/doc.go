// Package config loads and validates the bridge configuration.
//
// Configuration is YAML with three layers: built-in defaults, the
// config file, and INSTEON_* environment variable overrides for
// deployment-specific values (credentials, paths). Validate() runs
// after all layers are applied and collects every problem into one
// error.
//
// Device MQTT topics are configured explicitly per device; the bridge
// never derives topic strings from addresses or names.
package config
