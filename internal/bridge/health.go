package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon/plm"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/protocol"
)

// defaultHealthInterval is how often status is published when no
// interval is configured.
const defaultHealthInterval = 30 * time.Second

// ModemLink provides modem connection statistics. Satisfied by
// *plm.Client.
type ModemLink interface {
	IsConnected() bool
	Stats() plm.Stats
}

// Dispatcher provides dispatch loop statistics. Satisfied by
// *protocol.Protocol.
type Dispatcher interface {
	Stats() protocol.Stats
}

// HealthReporter publishes periodic bridge status to MQTT.
type HealthReporter struct {
	bridgeID  string
	version   string
	topic     string
	interval  time.Duration
	startTime time.Time

	publisher  MQTTClient
	modem      ModemLink
	dispatcher Dispatcher

	deviceCount   int
	deviceCountMu sync.RWMutex

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	BridgeID string
	Version  string

	// Topic is where status messages go.
	Topic string

	// Interval between status messages. Default 30s.
	Interval time.Duration

	Publisher  MQTTClient
	Modem      ModemLink
	Dispatcher Dispatcher
}

// NewHealthReporter creates a reporter; call Start to begin publishing.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	return &HealthReporter{
		bridgeID:   cfg.BridgeID,
		version:    cfg.Version,
		topic:      cfg.Topic,
		interval:   interval,
		startTime:  time.Now(),
		publisher:  cfg.Publisher,
		modem:      cfg.Modem,
		dispatcher: cfg.Dispatcher,
		done:       make(chan struct{}),
	}
}

// SetDeviceCount updates the managed device count.
func (h *HealthReporter) SetDeviceCount(count int) {
	h.deviceCountMu.Lock()
	h.deviceCount = count
	h.deviceCountMu.Unlock()
}

// Start begins periodic reporting until ctx is cancelled or Stop is
// called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop halts reporting and publishes a final stopping status. Safe to
// call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // best-effort during shutdown
		h.publish(HealthStopping, "bridge stopping")
	})
}

// PublishNow publishes the current status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publish(status, reason)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		slog.Warn("publishing initial health status", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				slog.Warn("publishing health status", "error", err)
			}
		}
	}
}

func (h *HealthReporter) determineStatus() (string, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	if h.modem == nil || !h.modem.IsConnected() {
		return HealthDegraded, "modem disconnected"
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) publish(status, reason string) error {
	if h.publisher == nil {
		return nil
	}

	h.deviceCountMu.RLock()
	devices := h.deviceCount
	h.deviceCountMu.RUnlock()

	msg := healthMessage{
		BridgeID:  h.bridgeID,
		Version:   h.version,
		Status:    status,
		Reason:    reason,
		UptimeSec: int64(time.Since(h.startTime).Seconds()),
		Devices:   devices,
		Timestamp: timestamp(),
	}
	if h.modem != nil {
		stats := h.modem.Stats()
		msg.Modem = modemHealth{
			Connected:  stats.Connected,
			FramesTx:   stats.FramesTx,
			FramesRx:   stats.FramesRx,
			Errors:     stats.ErrorsTotal,
			Reconnects: stats.ReconnectsTotal,
		}
	}
	if h.dispatcher != nil {
		stats := h.dispatcher.Stats()
		msg.Dispatch = dispatchHealth{
			Sent:      stats.Sent,
			Received:  stats.Received,
			Unclaimed: stats.Unclaimed,
			Expired:   stats.Expired,
			Dropped:   stats.Dropped,
		}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return h.publisher.Publish(h.topic, payload, 1, true)
}
