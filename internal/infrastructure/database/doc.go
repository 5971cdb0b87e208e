// Package database opens and manages the bridge's SQLite database,
// which persists the per-device all-link database mirrors between
// restarts so a clean start does not force a full download from every
// device.
package database
