package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDeviceLevel records a device level observed on the network.
// The write is non-blocking; data is batched and sent asynchronously.
func (c *Client) WriteDeviceLevel(addr string, name string, level byte) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_level",
		map[string]string{
			"addr": addr,
			"name": name,
		},
		map[string]interface{}{
			"level": int64(level),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteLinkDBSync records a completed link database synchronisation
// with the number of records downloaded.
func (c *Client) WriteLinkDBSync(addr string, entries int, delta int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"linkdb_sync",
		map[string]string{
			"addr": addr,
		},
		map[string]interface{}{
			"entries": int64(entries),
			"delta":   int64(delta),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
