package handler

import (
	"testing"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon"
)

func TestStandardCmdEchoThenReply(t *testing.T) {
	s := &mockSender{}
	probe := insteon.NewDirect(devAddr, insteon.CmdOn, 0xff)

	var replies []*insteon.InpStandard
	h := NewStandardCmd(probe, func(m *insteon.InpStandard) {
		replies = append(replies, m)
	})

	if got := h.Receive(s, echoStd(probe, true)); got != Continue {
		t.Fatalf("echo: got %v, want %v", got, Continue)
	}
	if len(replies) != 0 {
		t.Fatalf("callback fired on echo")
	}

	reply := stdReply(devAddr, insteon.TypeDirectAck, insteon.CmdOn, 0xff)
	if got := h.Receive(s, reply); got != Finished {
		t.Fatalf("reply: got %v, want %v", got, Finished)
	}
	if len(replies) != 1 || replies[0] != reply {
		t.Fatalf("callback got %v, want the device reply exactly once", replies)
	}
}

func TestStandardCmdEchoNakStillClaimed(t *testing.T) {
	s := &mockSender{}
	probe := insteon.NewDirect(devAddr, insteon.CmdOff, 0x00)
	h := NewStandardCmd(probe, func(*insteon.InpStandard) {})

	// The echo NAK is not terminal; the device reply decides the outcome.
	if got := h.Receive(s, echoStd(probe, false)); got != Continue {
		t.Fatalf("NAK echo: got %v, want %v", got, Continue)
	}
}

func TestStandardCmdNakReplyDelivered(t *testing.T) {
	s := &mockSender{}
	probe := insteon.NewDirect(devAddr, insteon.CmdOn, 0x80)

	var got *insteon.InpStandard
	h := NewStandardCmd(probe, func(m *insteon.InpStandard) { got = m })

	reply := stdReply(devAddr, insteon.TypeDirectNak, insteon.CmdOn, 0x01)
	if r := h.Receive(s, reply); r != Finished {
		t.Fatalf("NAK reply: got %v, want %v", r, Finished)
	}
	if got != reply {
		t.Fatal("NAK reply not delivered to callback")
	}
}

func TestStandardCmdIgnoresOtherTraffic(t *testing.T) {
	s := &mockSender{}
	probe := insteon.NewDirect(devAddr, insteon.CmdOn, 0xff)

	fired := false
	h := NewStandardCmd(probe, func(*insteon.InpStandard) { fired = true })

	cases := []struct {
		name string
		msg  insteon.Message
	}{
		{"echo to another device", echoStd(insteon.NewDirect(otherAddr, insteon.CmdOn, 0xff), true)},
		{"echo of another command", echoStd(insteon.NewDirect(devAddr, insteon.CmdOff, 0x00), true)},
		{"reply from another device", stdReply(otherAddr, insteon.TypeDirectAck, insteon.CmdOn, 0xff)},
		{"reply for another command", stdReply(devAddr, insteon.TypeDirectAck, insteon.CmdStatusRequest, 0x00)},
		{"extended traffic", &insteon.InpExtended{From: devAddr, Cmd1: insteon.CmdOn}},
	}
	for _, tc := range cases {
		if got := h.Receive(s, tc.msg); got != Unknown {
			t.Errorf("%s: got %v, want %v", tc.name, got, Unknown)
		}
	}
	if fired {
		t.Fatal("callback fired for unrelated traffic")
	}
}
