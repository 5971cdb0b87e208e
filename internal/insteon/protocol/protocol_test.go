package protocol

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/handler"
)

var devAddr = insteon.Address{0x3a, 0x29, 0x84}

// fakeLink implements Link and records writes.
type fakeLink struct {
	mu        sync.Mutex
	writes    []insteon.Message
	onMessage func(insteon.Message)
	writeErr  error
	wrote     chan struct{}
}

func newFakeLink() *fakeLink {
	return &fakeLink{wrote: make(chan struct{}, 16)}
}

func (l *fakeLink) Write(msg insteon.Message) error {
	l.mu.Lock()
	l.writes = append(l.writes, msg)
	l.mu.Unlock()
	select {
	case l.wrote <- struct{}{}:
	default:
	}
	return l.writeErr
}

func (l *fakeLink) SetOnMessage(fn func(insteon.Message)) {
	l.mu.Lock()
	l.onMessage = fn
	l.mu.Unlock()
}

func (l *fakeLink) Close() error { return nil }

func (l *fakeLink) written() []insteon.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]insteon.Message, len(l.writes))
	copy(out, l.writes)
	return out
}

// stubHandler implements handler.Handler with scripted verdicts.
type stubHandler struct {
	result    handler.Result
	received  []insteon.Message
	sentAt    int
	expired   bool
	onExpired func(s handler.Sender) bool
}

func (h *stubHandler) Receive(_ handler.Sender, msg insteon.Message) handler.Result {
	h.received = append(h.received, msg)
	return h.result
}

func (h *stubHandler) Expired(s handler.Sender, _ time.Time) bool {
	if h.onExpired != nil {
		return h.onExpired(s)
	}
	return h.expired
}

func (h *stubHandler) SentAt(time.Time) { h.sentAt++ }

func TestWriteNextTransmitsAndInstalls(t *testing.T) {
	link := newFakeLink()
	p := New(link)

	h := &stubHandler{result: handler.Continue}
	msg := insteon.NewDirect(devAddr, insteon.CmdOn, 0xff)
	p.Send(msg, h)
	p.writeNext()

	if got := link.written(); len(got) != 1 || got[0] != insteon.Message(msg) {
		t.Fatalf("link writes = %v, want the queued message", got)
	}
	if h.sentAt != 1 {
		t.Fatalf("SentAt called %d times, want once", h.sentAt)
	}
	if len(p.active) != 1 {
		t.Fatalf("active handlers = %d, want 1", len(p.active))
	}
	if p.Stats().Sent != 1 {
		t.Fatalf("Sent = %d, want 1", p.Stats().Sent)
	}
}

func TestWritesSerialized(t *testing.T) {
	link := newFakeLink()
	p := New(link)

	first := &stubHandler{result: handler.Finished}
	second := &stubHandler{result: handler.Continue}
	msg1 := insteon.NewDirect(devAddr, insteon.CmdOn, 0xff)
	msg2 := insteon.NewDirect(devAddr, insteon.CmdOff, 0x00)
	p.Send(msg1, first)
	p.Send(msg2, second)
	p.writeNext()
	p.writeNext()

	// The second send must wait for the first handler to finish.
	if got := link.written(); len(got) != 1 {
		t.Fatalf("link writes = %v, want only the first message in flight", got)
	}

	// The first handler finishing frees the slot.
	p.dispatch(insteon.NewDirect(devAddr, insteon.CmdOn, 0xff))
	if got := link.written(); len(got) != 2 || got[1] != insteon.Message(msg2) {
		t.Fatalf("link writes = %v, want the second message after finish", got)
	}
	if len(p.active) != 1 || p.active[0] != handler.Handler(second) {
		t.Fatal("second handler not installed after first finished")
	}
}

func TestDispatchOffersInOrder(t *testing.T) {
	link := newFakeLink()
	p := New(link)

	skip := &stubHandler{result: handler.Unknown}
	claim := &stubHandler{result: handler.Continue}
	after := &stubHandler{result: handler.Continue}
	p.active = []handler.Handler{skip, claim, after}

	msg := insteon.NewDirect(devAddr, insteon.CmdOn, 0xff)
	p.dispatch(msg)

	if len(skip.received) != 1 {
		t.Fatal("first handler never offered the message")
	}
	if len(claim.received) != 1 {
		t.Fatal("second handler not offered after Unknown")
	}
	if len(after.received) != 0 {
		t.Fatal("message offered past the claiming handler")
	}
	if p.Stats().Unclaimed != 0 {
		t.Fatal("claimed message counted as unclaimed")
	}
}

func TestDispatchUnclaimed(t *testing.T) {
	link := newFakeLink()
	p := New(link)
	p.active = []handler.Handler{&stubHandler{result: handler.Unknown}}

	p.dispatch(insteon.NewDirect(devAddr, insteon.CmdOn, 0xff))

	if got := p.Stats().Unclaimed; got != 1 {
		t.Fatalf("Unclaimed = %d, want 1", got)
	}
}

func TestFinishedHandlerNeverOfferedAgain(t *testing.T) {
	link := newFakeLink()
	p := New(link)

	h := &stubHandler{result: handler.Finished}
	p.active = []handler.Handler{h}

	msg := insteon.NewDirect(devAddr, insteon.CmdOn, 0xff)
	p.dispatch(msg)
	p.dispatch(msg)

	if len(h.received) != 1 {
		t.Fatalf("finished handler offered %d messages, want 1", len(h.received))
	}
	if len(p.active) != 0 {
		t.Fatal("finished handler still active")
	}
}

func TestExpiryFreesWriteSlot(t *testing.T) {
	link := newFakeLink()
	p := New(link)

	stuck := &stubHandler{expired: true}
	p.active = []handler.Handler{stuck}

	next := &stubHandler{result: handler.Continue}
	msg := insteon.NewDirect(devAddr, insteon.CmdOff, 0x00)
	p.Send(msg, next)

	p.checkExpired(time.Now())

	if got := p.Stats().Expired; got != 1 {
		t.Fatalf("Expired = %d, want 1", got)
	}
	if got := link.written(); len(got) != 1 || got[0] != insteon.Message(msg) {
		t.Fatalf("link writes = %v, want the queued message after expiry", got)
	}
	if len(p.active) != 1 || p.active[0] != handler.Handler(next) {
		t.Fatal("queued handler not installed after expiry freed the slot")
	}
}

func TestExpiryRetryReinstallsHandler(t *testing.T) {
	link := newFakeLink()
	p := New(link)

	// A retrying handler queues its resend with itself attached before
	// reporting expiry, exactly like the refresh handlers do.
	probe := insteon.NewDirect(devAddr, insteon.CmdStatusRequest, 0x00)
	var h *stubHandler
	h = &stubHandler{
		result: handler.Continue,
		onExpired: func(s handler.Sender) bool {
			s.Send(probe, h)
			return true
		},
	}
	p.active = []handler.Handler{h}

	p.checkExpired(time.Now())

	if got := link.written(); len(got) != 1 || got[0] != insteon.Message(probe) {
		t.Fatalf("link writes = %v, want the retried probe", got)
	}
	if len(p.active) != 1 || p.active[0] != handler.Handler(h) {
		t.Fatal("retrying handler not reinstalled")
	}
	if h.sentAt != 1 {
		t.Fatalf("SentAt called %d times on retry, want once", h.sentAt)
	}
}

func TestWriteFailureStillInstallsHandler(t *testing.T) {
	link := newFakeLink()
	link.writeErr = errors.New("port gone")
	p := New(link)

	h := &stubHandler{result: handler.Continue}
	p.Send(insteon.NewDirect(devAddr, insteon.CmdOn, 0xff), h)
	p.writeNext()

	// The handler owns the slot anyway; its expiry will resolve it.
	if len(p.active) != 1 {
		t.Fatal("handler dropped on write failure")
	}
	if h.sentAt != 1 {
		t.Fatal("reply window not started on write failure")
	}
}

func TestInboundOverflowDropsAndCounts(t *testing.T) {
	link := newFakeLink()
	p := New(link)

	msg := insteon.NewDirect(devAddr, insteon.CmdOn, 0xff)
	for i := 0; i < inboundQueueSize+3; i++ {
		p.handleInbound(msg)
	}
	if got := p.Stats().Dropped; got != 3 {
		t.Fatalf("Dropped = %d, want 3", got)
	}
}

func TestStartStop(t *testing.T) {
	link := newFakeLink()
	p := New(link)
	p.Start()
	defer p.Stop()

	h := &stubHandler{result: handler.Continue}
	msg := insteon.NewDirect(devAddr, insteon.CmdOn, 0xff)
	p.Send(msg, h)

	select {
	case <-link.wrote:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch loop never wrote the queued message")
	}
	if got := link.written(); len(got) != 1 || got[0] != insteon.Message(msg) {
		t.Fatalf("link writes = %v", got)
	}
}
