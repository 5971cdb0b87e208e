// Package protocol owns the dispatch loop between the modem link and
// the handler state machines.
//
// A single goroutine reads inbound messages in arrival order and offers
// each one to the active handlers in registration order until one
// claims it, which removes data races on handler state by construction.
// Sends are serialized: the next queued message is written only after
// the in-flight handler finishes or expires, mirroring how the
// powerline modem wants traffic paced. A periodic tick polls handler
// expiry, which is also how handlers implement their own retries.
package protocol
