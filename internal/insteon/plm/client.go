package plm

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon"
)

// Default timeouts and intervals for modem communication.
const (
	// defaultConnectTimeout is the maximum time to wait for connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultWriteTimeout bounds a single frame write on TCP links.
	defaultWriteTimeout = 5 * time.Second

	// defaultReconnectInterval is the initial delay between
	// reconnection attempts.
	defaultReconnectInterval = 5 * time.Second

	// maxReconnectInterval is the backoff ceiling.
	maxReconnectInterval = 2 * time.Minute

	// devicePermissions is the open mode for serial device nodes.
	devicePermissions = 0o600
)

// Config holds modem connection configuration.
type Config struct {
	// Connection is the modem location. Supported formats:
	//   - "tcp://host:port" (ser2net or network-attached PLM)
	//   - "serial:///dev/ttyUSB0" or a bare device path
	Connection string

	// ConnectTimeout is the maximum time to wait for connection.
	// Default: 10 seconds.
	ConnectTimeout time.Duration

	// ReconnectInterval is the initial delay between reconnection
	// attempts. Default: 5 seconds.
	ReconnectInterval time.Duration
}

// Stats holds operational statistics.
type Stats struct {
	FramesTx        uint64
	FramesRx        uint64
	ErrorsTotal     uint64
	ReconnectsTotal uint64
	Connected       bool
}

// Client is a connection to the PLM.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - The message callback is invoked from the read goroutine; it must
//     not block (the protocol layer buffers behind it).
//
// When the connection drops, the client reconnects with exponential
// backoff until Close is called.
type Client struct {
	cfg Config

	connMu    sync.Mutex
	conn      io.ReadWriteCloser
	connected bool

	onMessage  func(insteon.Message)
	callbackMu sync.RWMutex

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	framesTx    atomic.Uint64
	framesRx    atomic.Uint64
	errorsTotal atomic.Uint64
	reconnects  atomic.Uint64
}

// Dial connects to the modem and starts the read goroutine.
func Dial(cfg Config) (*Client, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = defaultReconnectInterval
	}

	c := &Client{
		cfg:  cfg,
		done: make(chan struct{}),
	}

	conn, err := c.open()
	if err != nil {
		return nil, err
	}
	c.setConn(conn)

	c.wg.Add(1)
	go c.readLoop()

	return c, nil
}

// open establishes the underlying byte stream.
func (c *Client) open() (io.ReadWriteCloser, error) {
	conn := c.cfg.Connection
	switch {
	case strings.HasPrefix(conn, "tcp://"):
		addr := strings.TrimPrefix(conn, "tcp://")
		nc, err := net.DialTimeout("tcp", addr, c.cfg.ConnectTimeout)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
		}
		return nc, nil

	case strings.HasPrefix(conn, "serial://"):
		return c.openDevice(strings.TrimPrefix(conn, "serial://"))

	case strings.HasPrefix(conn, "/"):
		return c.openDevice(conn)
	}

	return nil, fmt.Errorf("%w: %q", ErrBadConnection, conn)
}

func (c *Client) openDevice(path string) (io.ReadWriteCloser, error) {
	f, err := os.OpenFile(path, os.O_RDWR, devicePermissions)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return f, nil
}

func (c *Client) setConn(conn io.ReadWriteCloser) {
	c.connMu.Lock()
	c.conn = conn
	c.connected = conn != nil
	c.connMu.Unlock()
}

// SetOnMessage registers the callback invoked for every decoded frame,
// echoes included.
func (c *Client) SetOnMessage(fn func(insteon.Message)) {
	c.callbackMu.Lock()
	c.onMessage = fn
	c.callbackMu.Unlock()
}

// Write encodes and transmits one outbound message.
func (c *Client) Write(msg insteon.Message) error {
	buf, err := encodeSend(msg)
	if err != nil {
		return err
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil || !c.connected {
		return ErrNotConnected
	}

	if nc, ok := c.conn.(net.Conn); ok {
		_ = nc.SetWriteDeadline(time.Now().Add(defaultWriteTimeout))
	}
	if _, err := c.conn.Write(buf); err != nil {
		c.errorsTotal.Add(1)
		return fmt.Errorf("plm: writing frame: %w", err)
	}

	c.framesTx.Add(1)
	return nil
}

// IsConnected reports the current link state.
func (c *Client) IsConnected() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.connected
}

// Stats returns a snapshot of the link counters.
func (c *Client) Stats() Stats {
	return Stats{
		FramesTx:        c.framesTx.Load(),
		FramesRx:        c.framesRx.Load(),
		ErrorsTotal:     c.errorsTotal.Load(),
		ReconnectsTotal: c.reconnects.Load(),
		Connected:       c.IsConnected(),
	}
}

// Close shuts the connection down and stops the read goroutine.
func (c *Client) Close() error {
	c.stopOnce.Do(func() { close(c.done) })

	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.connMu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	c.wg.Wait()
	return nil
}

// readLoop decodes frames off the connection and redials on failure.
func (c *Client) readLoop() {
	defer c.wg.Done()

	for {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()
		if conn == nil {
			return
		}

		reader := newFrameReader(conn)
		for {
			msg, err := reader.Next()
			if err != nil {
				select {
				case <-c.done:
					return
				default:
				}
				c.errorsTotal.Add(1)
				slog.Warn("modem read failed, reconnecting", "error", err)
				if !c.reconnect() {
					return
				}
				break // new connection, new reader
			}

			c.framesRx.Add(1)
			c.callbackMu.RLock()
			fn := c.onMessage
			c.callbackMu.RUnlock()
			if fn != nil {
				fn(msg)
			}
		}
	}
}

// reconnect redials with exponential backoff until it succeeds or the
// client is closed. Returns false when closed.
func (c *Client) reconnect() bool {
	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = nil
	c.connected = false
	c.connMu.Unlock()

	delay := c.cfg.ReconnectInterval
	for {
		select {
		case <-c.done:
			return false
		case <-time.After(delay):
		}

		conn, err := c.open()
		if err == nil {
			c.setConn(conn)
			c.reconnects.Add(1)
			slog.Info("modem reconnected", "connection", c.cfg.Connection)
			return true
		}

		slog.Warn("modem reconnect failed", "error", err, "retry_in", delay)
		delay *= 2
		if delay > maxReconnectInterval {
			delay = maxReconnectInterval
		}
	}
}
