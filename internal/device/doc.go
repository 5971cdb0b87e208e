// Package device models the Insteon devices the bridge manages.
//
// A Device owns no protocol state of its own; every operation builds an
// outbound message plus the handler state machine that correlates its
// replies, and hands both to the protocol sender. Confirmed state
// flows back in through HandleRefresh and the per-command reply
// callbacks.
package device
