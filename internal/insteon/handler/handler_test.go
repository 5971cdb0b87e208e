package handler

import (
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon"
)

// Shared test fixtures for the handler state machines.

var (
	devAddr   = insteon.Address{0x3a, 0x29, 0x84}
	otherAddr = insteon.Address{0x12, 0x34, 0x56}
)

// sentCall records one Send invocation.
type sentCall struct {
	msg insteon.Message
	h   Handler
}

// mockSender implements Sender and records every queued send.
type mockSender struct {
	calls []sentCall
}

func (s *mockSender) Send(msg insteon.Message, h Handler) {
	s.calls = append(s.calls, sentCall{msg: msg, h: h})
}

// echoStd returns the modem echo of an outbound standard message.
func echoStd(msg *insteon.OutStandard, ack bool) *insteon.OutStandard {
	cp := *msg
	cp.Ack = ack
	return &cp
}

// echoExt returns the modem echo of an outbound extended message.
func echoExt(msg *insteon.OutExtended, ack bool) *insteon.OutExtended {
	cp := *msg
	cp.Ack = ack
	return &cp
}

// stdReply builds an inbound standard message of the given kind.
func stdReply(from insteon.Address, typ insteon.MsgType, cmd1, cmd2 byte) *insteon.InpStandard {
	return &insteon.InpStandard{
		From:  from,
		Flags: insteon.Flags{Type: typ, HopsLeft: 2, MaxHops: 3},
		Cmd1:  cmd1,
		Cmd2:  cmd2,
	}
}

func TestBaseExpiry(t *testing.T) {
	b := newBase()
	s := &mockSender{}
	now := time.Now()

	// Never sent: never expires, no matter how far ahead we look.
	if b.Expired(s, now.Add(time.Hour)) {
		t.Fatal("unsent handler reported expired")
	}

	b.SentAt(now)
	if b.Expired(s, now.Add(defaultReplyTimeout-time.Second)) {
		t.Fatal("expired before the reply window lapsed")
	}
	if !b.Expired(s, now.Add(defaultReplyTimeout+time.Second)) {
		t.Fatal("not expired after the reply window lapsed")
	}

	// Polling is idempotent.
	if !b.Expired(s, now.Add(defaultReplyTimeout+time.Second)) {
		t.Fatal("second expiry poll disagreed with the first")
	}

	// A resend restarts the window.
	b.SentAt(now.Add(time.Minute))
	if b.Expired(s, now.Add(time.Minute+time.Second)) {
		t.Fatal("expired immediately after restart")
	}
}
