// Package handler contains the protocol state machines that correlate
// outbound Insteon commands with their interleaved replies.
//
// Every in-flight command owns exactly one Handler. The dispatch loop
// offers each inbound message to the active handlers in registration
// order; a handler answers Unknown ("not mine"), Continue ("mine, more
// coming") or Finished ("mine, remove me"). Expiry is polled externally
// on a timer, which is how handlers implement retries: a handler may
// queue a replacement send with itself as the new handler before
// reporting itself expired.
//
// Three state machines cover the command patterns the bridge needs:
//
//   - StandardCmd: one command, one echo, one device reply.
//   - DeviceRefresh: a status probe with bounded resend-on-expiry that
//     conditionally triggers a full link database download.
//   - DeviceDBModify: one or a chained sequence of database writes,
//     each applied to the local mirror only after on-wire confirmation,
//     with the whole chain aborted on the first failure.
//
// DeviceDBGet streams the records of a full database download and is
// spawned by DeviceRefresh when the mirror is stale.
//
// Terminal outcomes are surfaced exclusively through the completion
// callback supplied at construction; Receive never fails and never
// blocks.
package handler
