package handler

import (
	"time"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/linkdb"
)

// Result is a handler's verdict on an inbound message.
type Result int

const (
	// Unknown means the message is not for this handler; the dispatch
	// loop should offer it to the next one.
	Unknown Result = iota

	// Continue means the handler consumed the message and expects more.
	Continue

	// Finished means the handler consumed the message and is done; the
	// dispatch loop must remove it and never offer it another message.
	Finished
)

// String returns the verdict name for logs.
func (r Result) String() string {
	switch r {
	case Unknown:
		return "unknown"
	case Continue:
		return "continue"
	case Finished:
		return "finished"
	default:
		return "invalid"
	}
}

// Sender enqueues a message for transmission, associating h to receive
// the eventual echo and reply. It returns immediately; completion is
// observed later through Receive and Expired, never through a return
// value. The protocol dispatch loop implements it; tests substitute a
// recorder.
type Sender interface {
	Send(msg insteon.Message, h Handler)
}

// DoneFunc is the completion callback surface of a handler. It is
// invoked exactly once per logical operation the handler represents - a
// single command, or the whole chain for chained handlers - with the
// outcome, a short human-readable reason, and for database operations
// the entry the operation was about (nil on failure).
type DoneFunc func(success bool, reason string, entry *linkdb.Entry)

// Handler is the polymorphic unit of protocol state owned by the
// dispatch loop.
type Handler interface {
	// Receive offers an inbound message to the handler. It must not
	// block; side effects are limited to the handler's own state, calls
	// to s.Send for follow-up commands, and the completion callback.
	Receive(s Sender, msg insteon.Message) Result

	// Expired reports whether the handler's reply window has lapsed.
	// It is polled at arbitrary intervals and must be idempotent until
	// the handler resends or is removed. Implementations may queue a
	// replacement send with themselves as handler before returning
	// true, which is how retries work without the loop's involvement.
	Expired(s Sender, now time.Time) bool

	// SentAt tells the handler its message was written to the wire,
	// starting the reply window.
	SentAt(now time.Time)
}

// defaultReplyTimeout is the reply window started when a message is
// written. Powerline round trips are slow; five seconds matches what
// devices need under retransmission.
const defaultReplyTimeout = 5 * time.Second

// Base carries the deadline bookkeeping shared by all handlers. The
// zero deadline means "never sent", which never expires.
type Base struct {
	timeout time.Duration
	expires time.Time
}

func newBase() Base {
	return Base{timeout: defaultReplyTimeout}
}

// SentAt starts (or restarts) the reply window.
func (b *Base) SentAt(now time.Time) {
	b.expires = now.Add(b.timeout)
}

// Expired reports whether the reply window has lapsed. Handlers with
// resend behaviour consult this first and layer their retry on top.
func (b *Base) Expired(_ Sender, now time.Time) bool {
	return !b.expires.IsZero() && now.After(b.expires)
}
