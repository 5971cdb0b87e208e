package handler

import (
	"log/slog"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/linkdb"
)

// DeviceDBModify applies one confirmed record change to a device's
// all-link database, optionally chained into a sequence via AddUpdate.
//
// Each step's entry is applied to the local mirror only after the
// device direct-ACKs the write. The first failure - a modem NAK of the
// echo, a device direct-NAK, or an unexpected reply kind - aborts the
// remaining chain; mirror changes already applied by earlier steps are
// not rolled back.
//
// The completion callback fires exactly once for the whole chain: with
// the FIRST entry submitted after the last step confirms, or with
// failure on the step that broke. Callers wanting per-step notification
// must not use this handler; it deliberately collapses the exchange
// into one outcome and one representative entry.
type DeviceDBModify struct {
	Base

	db        *linkdb.DB
	entry     linkdb.Entry
	origEntry linkdb.Entry
	pending   []pendingWrite
	onDone    DoneFunc
}

type pendingWrite struct {
	msg   insteon.Message
	entry linkdb.Entry
}

// NewDeviceDBModify builds a handler whose first in-flight command will
// leave the database holding entry if it succeeds.
func NewDeviceDBModify(db *linkdb.DB, entry linkdb.Entry, onDone DoneFunc) *DeviceDBModify {
	return &DeviceDBModify{
		Base:      newBase(),
		db:        db,
		entry:     entry,
		origEntry: entry,
		onDone:    onDone,
	}
}

// AddUpdate queues a follow-up write to send after the current
// transaction confirms. Must be called before the chain completes;
// appending afterwards has no effect because the handler is already
// retired.
func (h *DeviceDBModify) AddUpdate(msg insteon.Message, entry linkdb.Entry) {
	h.pending = append(h.pending, pendingWrite{msg: msg, entry: entry})
}

// Receive handles the extended write echo and the device's standard
// ACK/NAK reply, advancing or aborting the chain.
func (h *DeviceDBModify) Receive(s Sender, msg insteon.Message) Result {
	switch m := msg.(type) {
	case *insteon.OutExtended:
		if m.To != h.db.Addr() || m.Cmd1 != insteon.CmdLinkDB {
			return Unknown
		}
		if m.Ack {
			return Continue
		}
		// Modem rejected the transmission itself. Drop the queued
		// follow-ups explicitly; the chain is over.
		slog.Error("modem NAK of db modify", "addr", h.db.Addr(), "msg", m)
		h.fail()
		return Finished

	case *insteon.InpStandard:
		if m.From != h.db.Addr() || m.Cmd1 != insteon.CmdLinkDB {
			return Unknown
		}

		switch m.Flags.Type {
		case insteon.TypeDirectAck:
			// The write took: mirror the entry, whether it was an
			// addition, an update, or an unused-marked deletion.
			slog.Info("updating db entry", "addr", h.db.Addr(), "entry", h.entry)
			h.db.AddEntry(h.entry)

			if len(h.pending) > 0 {
				slog.Info("sending next db update", "addr", h.db.Addr(), "remaining", len(h.pending))
				next := h.pending[0]
				h.pending = h.pending[1:]
				h.entry = next.entry
				s.Send(next.msg, h)
			} else if h.onDone != nil {
				// Report the original entry, not the last one, so
				// callers that chained follow-ups see a stable
				// identity for the whole transaction.
				e := h.origEntry
				h.onDone(true, "device database update complete", &e)
			}

		case insteon.TypeDirectNak:
			slog.Error("device NAK of db modify", "addr", h.db.Addr(), "msg", m)
			h.fail()

		default:
			slog.Error("unexpected reply kind for db modify",
				"addr", h.db.Addr(), "kind", m.Flags.Type, "msg", m)
			h.fail()
		}
		return Finished
	}

	return Unknown
}

// fail aborts the chain: pending writes are discarded and the callback
// fires once with failure.
func (h *DeviceDBModify) fail() {
	h.pending = nil
	if h.onDone != nil {
		h.onDone(false, "device database update failed", nil)
	}
}
