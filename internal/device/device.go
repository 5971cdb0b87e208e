package device

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/handler"
	"github.com/nerrad567/gray-logic-insteon/internal/insteon/linkdb"
)

// Type is the device category, which decides how on-levels are
// interpreted.
type Type string

// Supported device types.
const (
	TypeDimmer Type = "dimmer"
	TypeSwitch Type = "switch"
)

// fullOn is the level byte for a fully-on device.
const fullOn byte = 0xff

// Device is one Insteon device: its address, link database mirror, and
// last known state.
//
// Thread Safety: state reads and writes are guarded; protocol
// interactions are serialized by the dispatch loop.
type Device struct {
	addr   insteon.Address
	name   string
	typ    Type
	sender handler.Sender
	db     *linkdb.DB

	mu       sync.RWMutex
	level    byte
	lastSeen time.Time
	onLevel  func(d *Device, level byte)
}

// New creates a device. sender is the protocol dispatch loop; db is
// the device's link database mirror.
func New(addr insteon.Address, name string, typ Type, sender handler.Sender, db *linkdb.DB) *Device {
	if typ == "" {
		typ = TypeSwitch
	}
	return &Device{
		addr:   addr,
		name:   name,
		typ:    typ,
		sender: sender,
		db:     db,
	}
}

// Addr returns the device address.
func (d *Device) Addr() insteon.Address { return d.addr }

// Name returns the configured device name.
func (d *Device) Name() string { return d.name }

// Type returns the device category.
func (d *Device) Type() Type { return d.typ }

// LinkDB returns the device's all-link database mirror.
func (d *Device) LinkDB() *linkdb.DB { return d.db }

// Level returns the last confirmed level (0 off, 0xff full on).
func (d *Device) Level() byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.level
}

// LastSeen returns when the device last confirmed anything.
func (d *Device) LastSeen() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastSeen
}

// SetOnLevel registers the callback invoked whenever a confirmed level
// change arrives from the network.
func (d *Device) SetOnLevel(fn func(d *Device, level byte)) {
	d.mu.Lock()
	d.onLevel = fn
	d.mu.Unlock()
}

// setLevel records a confirmed level and notifies the state callback.
func (d *Device) setLevel(level byte) {
	d.mu.Lock()
	d.level = level
	d.lastSeen = time.Now()
	fn := d.onLevel
	d.mu.Unlock()

	if fn != nil {
		fn(d, level)
	}
}

// HandleRefresh takes the status probe reply: cmd2 carries the current
// level. (cmd1 carries the database delta, which the refresh handler
// consumes itself.)
func (d *Device) HandleRefresh(msg *insteon.InpStandard) {
	slog.Debug("device refresh state", "addr", d.addr, "level", msg.Cmd2)
	d.setLevel(msg.Cmd2)
}

// Refresh probes the device for state and database freshness. force
// downloads the link database even when the delta says the mirror is
// current.
func (d *Device) Refresh(force bool) {
	probe := insteon.NewDirect(d.addr, insteon.CmdStatusRequest, 0x00)
	d.sender.Send(probe, handler.NewDeviceRefresh(d, probe, force, 0))
}

// On turns the device on at level (dimmers) or fully on (switches).
func (d *Device) On(level byte) {
	if d.typ != TypeDimmer {
		level = fullOn
	}
	d.sendCommand(insteon.CmdOn, level, level)
}

// Off turns the device off.
func (d *Device) Off() {
	d.sendCommand(insteon.CmdOff, 0x00, 0x00)
}

// sendCommand issues one standard command whose direct ACK confirms the
// target level.
func (d *Device) sendCommand(cmd1, cmd2, confirmed byte) {
	msg := insteon.NewDirect(d.addr, cmd1, cmd2)
	d.sender.Send(msg, handler.NewStandardCmd(msg, func(reply *insteon.InpStandard) {
		switch reply.Flags.Type {
		case insteon.TypeDirectAck:
			d.setLevel(confirmed)
		case insteon.TypeDirectNak:
			slog.Error("device rejected command",
				"addr", d.addr, "cmd", cmd1, "reply_cmd2", reply.Cmd2)
		default:
			slog.Warn("unexpected reply kind for command",
				"addr", d.addr, "cmd", cmd1, "kind", reply.Flags.Type)
		}
	}))
}

// AddLink writes a new all-link record linking (group, other) and
// pushes the table's high-water mark one slot down, as a single
// chained transaction. onDone fires once for the whole chain with the
// new record.
func (d *Device) AddLink(group byte, other insteon.Address, controller bool, data [3]byte, onDone handler.DoneFunc) error {
	loc, err := d.db.NextFreeLoc()
	if err != nil {
		return fmt.Errorf("adding link on %s: %w", d.addr, err)
	}
	if loc < linkdb.RecordSize {
		return fmt.Errorf("adding link on %s: %w", d.addr, linkdb.ErrDBFull)
	}

	flags := linkdb.FlagInUse | linkdb.FlagUsedBefore
	if controller {
		flags |= linkdb.FlagController
	}
	entry := linkdb.Entry{
		MemLoc: loc,
		Flags:  flags,
		Group:  group,
		Addr:   other,
		Data:   data,
	}

	// The slot below the new record becomes the new high-water mark.
	marker := linkdb.Entry{MemLoc: loc - linkdb.RecordSize}

	h := handler.NewDeviceDBModify(d.db, entry, onDone)
	h.AddUpdate(marker.WriteMessage(d.addr), marker)
	d.sender.Send(entry.WriteMessage(d.addr), h)
	return nil
}

// RemoveLink clears the in-use flag of the record linking
// (group, other), logically deleting it on the device and in the
// mirror. onDone fires once with the erased record.
func (d *Device) RemoveLink(group byte, other insteon.Address, controller bool, onDone handler.DoneFunc) error {
	entry, ok := d.db.Find(group, other, controller)
	if !ok {
		return fmt.Errorf("removing link on %s: no record for group %#02x addr %s", d.addr, group, other)
	}

	entry.Flags &^= linkdb.FlagInUse
	h := handler.NewDeviceDBModify(d.db, entry, onDone)
	d.sender.Send(entry.WriteMessage(d.addr), h)
	return nil
}
