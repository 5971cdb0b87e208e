package handler

import (
	"log/slog"
	"time"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/linkdb"
)

// DefaultRefreshRetries is the number of probe sends (initial send
// included) attempted before a refresh is abandoned.
const DefaultRefreshRetries = 3

// Device is the slice of the device model DeviceRefresh needs: the
// address, the state intake for the probe reply, and the link database
// mirror whose freshness is checked.
type Device interface {
	Addr() insteon.Address
	HandleRefresh(msg *insteon.InpStandard)
	LinkDB() *linkdb.DB
}

// DeviceRefresh probes a device for its current state and database
// delta, and triggers a full database download when the mirror is
// stale (or unconditionally when forced).
//
// Some devices respond poorly, so the probe is resent on expiry up to
// numRetry total sends. Retries ride the dispatch loop's expiry
// mechanism: the handler queues the resend with itself as the new
// handler and still reports itself expired, so the loop remains the
// single source of wall-clock truth.
type DeviceRefresh struct {
	Base

	device    Device
	addr      insteon.Address
	probe     *insteon.OutStandard
	force     bool
	sendCount int
	numRetry  int
}

// NewDeviceRefresh builds a refresh handler. probe is the status
// request being sent; it is kept so expiry can resend it. force
// downloads the database regardless of the reported delta. numRetry <= 0
// selects DefaultRefreshRetries.
func NewDeviceRefresh(device Device, probe *insteon.OutStandard, force bool, numRetry int) *DeviceRefresh {
	if numRetry <= 0 {
		numRetry = DefaultRefreshRetries
	}
	return &DeviceRefresh{
		Base:      newBase(),
		device:    device,
		addr:      device.Addr(),
		probe:     probe,
		force:     force,
		sendCount: 1,
		numRetry:  numRetry,
	}
}

// Expired resends the probe while sends remain, then reports expiry
// either way. Before the deadline it has no side effect at all.
func (h *DeviceRefresh) Expired(s Sender, now time.Time) bool {
	if !h.Base.Expired(s, now) {
		return false
	}

	slog.Warn("device refresh timed out",
		"addr", h.addr, "try", h.sendCount, "of", h.numRetry)

	if h.sendCount < h.numRetry {
		h.sendCount++
		// The resend occupies the same logical slot with ourselves as
		// the fresh handler; reporting true lets the loop retire this
		// instance and proceed.
		s.Send(h.probe, h)
	}
	return true
}

// Receive handles the probe echo and the terminal status reply.
func (h *DeviceRefresh) Receive(s Sender, msg insteon.Message) Result {
	switch m := msg.(type) {
	case *insteon.OutStandard:
		if m.To != h.addr {
			return Unknown
		}
		if m.Ack {
			slog.Debug("refresh probe echo", "addr", h.addr)
			return Continue
		}
		// No retry from the echo path; the expiry cycle retries
		// uniformly.
		slog.Error("modem NAK of refresh probe", "addr", h.addr)
		return Finished

	case *insteon.InpStandard:
		if m.From != h.addr {
			return Unknown
		}

		// Got the reply we wanted; a stale expiry check racing in must
		// not schedule another send.
		h.sendCount = h.numRetry

		// cmd2 carries the device state.
		h.device.HandleRefresh(m)

		// cmd1 carries the all-link database delta.
		db := h.device.LinkDB()
		if !h.force && db.IsCurrent(m.Cmd1) {
			slog.Info("device database is current", "addr", h.addr, "delta", m.Cmd1)
			return Finished
		}

		slog.Info("device database out of date, downloading",
			"addr", h.addr, "delta", m.Cmd1, "have", db.Delta())
		db.Clear()

		// The delta is pinned from this reply; when the download below
		// completes it becomes the mirror's synchronised version.
		delta := m.Cmd1
		onDone := func(success bool, _ string, _ *linkdb.Entry) {
			if success {
				slog.Info("device database download complete",
					"addr", h.addr, "entries", db.Len())
				db.SetDelta(delta)
			}
		}

		dump := insteon.NewLinkDBDump(h.addr)
		s.Send(dump, NewDeviceDBGet(db, onDone, dump))
		return Finished
	}

	return Unknown
}
