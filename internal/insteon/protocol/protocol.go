package protocol

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/handler"
)

// Timing constants.
const (
	// expiryTick is how often handler deadlines are polled. Handlers
	// tolerate arbitrary poll intervals; one second comfortably beats
	// the five second reply window.
	expiryTick = 1 * time.Second

	// inboundQueueSize bounds the buffer between the link's read
	// goroutine and the dispatch goroutine. Messages beyond it are
	// dropped and counted rather than blocking the link.
	inboundQueueSize = 100
)

// Link is the modem connection the protocol drives. Write transmits one
// message; the callback set with SetOnMessage delivers every message
// read from the wire, echoes included.
type Link interface {
	Write(msg insteon.Message) error
	SetOnMessage(fn func(insteon.Message))
	Close() error
}

// Stats holds dispatch counters.
type Stats struct {
	Sent      uint64
	Received  uint64
	Unclaimed uint64
	Expired   uint64
	Dropped   uint64
}

type outbound struct {
	msg insteon.Message
	h   handler.Handler
}

// Protocol is the dispatch loop. It implements handler.Sender, so
// handlers can queue follow-up or retry sends with themselves
// re-installed as the fresh handler.
//
// Thread Safety: Send may be called from any goroutine; handler state
// is touched only by the dispatch goroutine.
type Protocol struct {
	link Link

	// queue of sends not yet written. Guarded by mu; drained by the
	// dispatch goroutine only.
	mu    sync.Mutex
	queue []outbound

	// active handlers, dispatch goroutine only. With serialized writes
	// this holds at most the one in-flight handler.
	active []handler.Handler

	inbound chan insteon.Message
	kick    chan struct{}

	now func() time.Time

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	sent      atomic.Uint64
	received  atomic.Uint64
	unclaimed atomic.Uint64
	expired   atomic.Uint64
	dropped   atomic.Uint64
}

// Ensure Protocol satisfies the sender contract handlers depend on.
var _ handler.Sender = (*Protocol)(nil)

// New creates a dispatch loop for link. Call Start to begin processing.
func New(link Link) *Protocol {
	return &Protocol{
		link:    link,
		inbound: make(chan insteon.Message, inboundQueueSize),
		kick:    make(chan struct{}, 1),
		now:     time.Now,
		done:    make(chan struct{}),
	}
}

// Start registers with the link and launches the dispatch goroutine.
func (p *Protocol) Start() {
	p.link.SetOnMessage(p.handleInbound)
	p.wg.Add(1)
	go p.run()
}

// Stop terminates the dispatch goroutine. Queued sends are dropped;
// handlers never learn about them, which is indistinguishable from
// expiry to their owners.
func (p *Protocol) Stop() {
	p.stopOnce.Do(func() { close(p.done) })
	p.wg.Wait()
}

// Send enqueues msg for transmission with h owning its echo and reply.
// It returns immediately; outcomes are observed through h.
func (p *Protocol) Send(msg insteon.Message, h handler.Handler) {
	p.mu.Lock()
	p.queue = append(p.queue, outbound{msg: msg, h: h})
	p.mu.Unlock()

	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Stats returns a snapshot of the dispatch counters.
func (p *Protocol) Stats() Stats {
	return Stats{
		Sent:      p.sent.Load(),
		Received:  p.received.Load(),
		Unclaimed: p.unclaimed.Load(),
		Expired:   p.expired.Load(),
		Dropped:   p.dropped.Load(),
	}
}

// handleInbound runs on the link's read goroutine.
func (p *Protocol) handleInbound(msg insteon.Message) {
	select {
	case p.inbound <- msg:
	default:
		p.dropped.Add(1)
		slog.Warn("inbound queue full, dropping message", "msg", msg)
	}
}

func (p *Protocol) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(expiryTick)
	defer ticker.Stop()

	for {
		select {
		case msg := <-p.inbound:
			p.dispatch(msg)
		case <-p.kick:
			p.writeNext()
		case <-ticker.C:
			p.checkExpired(p.now())
		case <-p.done:
			return
		}
	}
}

// dispatch offers msg to the active handlers in order until one claims
// it. A Finished handler is removed and frees the write slot; a message
// no handler claims is logged and discarded.
func (p *Protocol) dispatch(msg insteon.Message) {
	p.received.Add(1)

	for i, h := range p.active {
		switch h.Receive(p, msg) {
		case handler.Continue:
			return
		case handler.Finished:
			p.active = append(p.active[:i], p.active[i+1:]...)
			p.writeNext()
			return
		case handler.Unknown:
			// Next handler's turn.
		}
	}

	p.unclaimed.Add(1)
	slog.Info("unhandled message", "msg", msg)
}

// writeNext transmits the head of the queue if no handler is in flight.
// The handler is installed even when the write fails so its expiry path
// resolves the slot instead of leaving it wedged.
func (p *Protocol) writeNext() {
	if len(p.active) > 0 {
		return
	}

	p.mu.Lock()
	if len(p.queue) == 0 {
		p.mu.Unlock()
		return
	}
	ob := p.queue[0]
	p.queue = p.queue[1:]
	p.mu.Unlock()

	if err := p.link.Write(ob.msg); err != nil {
		slog.Error("link write failed", "msg", ob.msg, "error", err)
	}
	ob.h.SentAt(p.now())
	p.active = append(p.active, ob.h)
	p.sent.Add(1)
}

// checkExpired polls every active handler's deadline. An expired
// handler has already queued its own retry if it wanted one; removal
// frees the write slot either way.
func (p *Protocol) checkExpired(now time.Time) {
	kept := p.active[:0]
	removed := false
	for _, h := range p.active {
		if h.Expired(p, now) {
			p.expired.Add(1)
			removed = true
			continue
		}
		kept = append(kept, h)
	}
	p.active = kept
	if removed {
		p.writeNext()
	}
}
