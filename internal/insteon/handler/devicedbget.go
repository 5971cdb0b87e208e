package handler

import (
	"log/slog"
	"time"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/linkdb"
)

// DeviceDBGet receives the streamed records of a full all-link database
// download. The device direct-ACKs the dump request and then streams
// one extended message per record as fast as it can; the record whose
// used-before flag is clear is the high-water mark that terminates the
// table.
//
// Like DeviceRefresh, the dump request is resent on expiry with bounded
// retries - database dumps are long multi-message exchanges and a lost
// request would otherwise stall the resync silently.
type DeviceDBGet struct {
	Base

	db        *linkdb.DB
	dump      insteon.Message
	onDone    DoneFunc
	sendCount int
	numRetry  int
}

// NewDeviceDBGet builds a download handler for db. dump is the request
// being sent, kept for resend on expiry.
func NewDeviceDBGet(db *linkdb.DB, onDone DoneFunc, dump insteon.Message) *DeviceDBGet {
	return &DeviceDBGet{
		Base:      newBase(),
		db:        db,
		dump:      dump,
		onDone:    onDone,
		sendCount: 1,
		numRetry:  DefaultRefreshRetries,
	}
}

// Expired resends the dump request while sends remain, then reports
// expiry either way.
func (h *DeviceDBGet) Expired(s Sender, now time.Time) bool {
	if !h.Base.Expired(s, now) {
		return false
	}

	slog.Warn("db download timed out",
		"addr", h.db.Addr(), "try", h.sendCount, "of", h.numRetry)

	if h.sendCount < h.numRetry {
		h.sendCount++
		s.Send(h.dump, h)
	}
	return true
}

// Receive consumes the dump echo, the request ACK and the record
// stream.
func (h *DeviceDBGet) Receive(_ Sender, msg insteon.Message) Result {
	switch m := msg.(type) {
	case *insteon.OutExtended:
		if m.To != h.db.Addr() || m.Cmd1 != insteon.CmdLinkDB {
			return Unknown
		}
		if m.Ack {
			return Continue
		}
		slog.Error("modem NAK of db dump request", "addr", h.db.Addr())
		h.done(false, "device database download failed")
		return Finished

	case *insteon.InpStandard:
		if m.From != h.db.Addr() || m.Cmd1 != insteon.CmdLinkDB {
			return Unknown
		}
		switch m.Flags.Type {
		case insteon.TypeDirectAck:
			// Request accepted; the records follow as extended
			// messages.
			slog.Debug("db dump request accepted", "addr", h.db.Addr())
			return Continue
		case insteon.TypeDirectNak:
			slog.Error("device NAK of db dump request", "addr", h.db.Addr())
			h.done(false, "device database download failed")
			return Finished
		default:
			slog.Warn("ignoring reply kind during db download",
				"addr", h.db.Addr(), "kind", m.Flags.Type)
			return Unknown
		}

	case *insteon.InpExtended:
		if m.From != h.db.Addr() || m.Cmd1 != insteon.CmdLinkDB {
			return Unknown
		}

		// Each record restarts the reply window; streams from large
		// databases easily outlast a single timeout.
		h.SentAt(time.Now())

		entry, err := linkdb.EntryFromRecord(m.Data)
		if err != nil {
			slog.Error("bad db record", "addr", h.db.Addr(), "error", err)
			h.done(false, "device database download failed")
			return Finished
		}

		if entry.IsLast() {
			h.done(true, "device database download complete")
			return Finished
		}

		h.db.AddEntry(entry)
		return Continue
	}

	return Unknown
}

func (h *DeviceDBGet) done(success bool, reason string) {
	if h.onDone != nil {
		h.onDone(success, reason, nil)
	}
}
