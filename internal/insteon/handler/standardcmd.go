package handler

import (
	"log/slog"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon"
)

// StandardCmd correlates one outbound standard command with its modem
// echo and the remote device's reply, and hands the reply to a
// caller-supplied callback.
//
// Interpretation of the reply - including whether its flags carry a
// direct ACK or NAK - is entirely the callback's job; this handler only
// decides ownership. A NAK echo is logged but still claimed with
// Continue, because the terminal outcome is decided by the later device
// reply, not by the echo.
type StandardCmd struct {
	Base

	addr     insteon.Address
	cmd      byte
	callback func(*insteon.InpStandard)
}

// NewStandardCmd builds a handler for msg. The reply must match the
// destination address and cmd1 to be claimed.
func NewStandardCmd(msg *insteon.OutStandard, callback func(*insteon.InpStandard)) *StandardCmd {
	return &StandardCmd{
		Base:     newBase(),
		addr:     msg.To,
		cmd:      msg.Cmd1,
		callback: callback,
	}
}

// Receive claims the matching echo (Continue) and the matching device
// reply (callback, then Finished). Everything else is Unknown.
func (h *StandardCmd) Receive(_ Sender, msg insteon.Message) Result {
	switch m := msg.(type) {
	case *insteon.OutStandard:
		// Echo of our own send.
		if m.To == h.addr && m.Cmd1 == h.cmd {
			if !m.Ack {
				slog.Error("modem NAK of standard command", "addr", h.addr, "cmd", h.cmd)
			}
			slog.Debug("standard command echo", "addr", h.addr, "ack", m.Ack)
			return Continue
		}
		slog.Debug("standard command handler skipping echo", "addr", h.addr)
		return Unknown

	case *insteon.InpStandard:
		if m.From == h.addr && m.Cmd1 == h.cmd {
			// The callback decides whether this is really an ACK.
			h.callback(m)
			return Finished
		}
		slog.Warn("possible unexpected message",
			"from", m.From, "cmd", m.Cmd1, "want_addr", h.addr, "want_cmd", h.cmd)
		return Unknown
	}

	return Unknown
}
