package bridge

import "time"

// Command names accepted on a device command topic.
const (
	CmdOn      = "on"
	CmdOff     = "off"
	CmdSet     = "set"
	CmdRefresh = "refresh"
)

// commandMessage is the JSON payload of a device command.
//
//	{"cmd": "on"}
//	{"cmd": "set", "level": 128}
//	{"cmd": "refresh", "force": true}
//
// Level is a pointer so "set" can distinguish an explicit 0 from an
// absent field.
type commandMessage struct {
	Cmd   string `json:"cmd"`
	Level *int   `json:"level,omitempty"`
	Force bool   `json:"force,omitempty"`
}

// stateMessage is the retained JSON payload published on a device
// state topic whenever a level is confirmed.
type stateMessage struct {
	Address   string `json:"address"`
	Name      string `json:"name,omitempty"`
	Level     int    `json:"level"`
	On        bool   `json:"on"`
	Timestamp string `json:"timestamp"`
}

// Health status values.
const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
	HealthStopping = "stopping"
)

// healthMessage is the periodic bridge status payload.
type healthMessage struct {
	BridgeID  string         `json:"bridge_id"`
	Version   string         `json:"version"`
	Status    string         `json:"status"`
	Reason    string         `json:"reason,omitempty"`
	UptimeSec int64          `json:"uptime_sec"`
	Devices   int            `json:"devices"`
	Modem     modemHealth    `json:"modem"`
	Dispatch  dispatchHealth `json:"dispatch"`
	Timestamp string         `json:"timestamp"`
}

type modemHealth struct {
	Connected  bool   `json:"connected"`
	FramesTx   uint64 `json:"frames_tx"`
	FramesRx   uint64 `json:"frames_rx"`
	Errors     uint64 `json:"errors"`
	Reconnects uint64 `json:"reconnects"`
}

type dispatchHealth struct {
	Sent      uint64 `json:"sent"`
	Received  uint64 `json:"received"`
	Unclaimed uint64 `json:"unclaimed"`
	Expired   uint64 `json:"expired"`
	Dropped   uint64 `json:"dropped"`
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
