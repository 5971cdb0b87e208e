package insteon

import "fmt"

// Command bytes used by the bridge core.
const (
	// CmdOn turns a device on; cmd2 carries the level for dimmers.
	CmdOn byte = 0x11

	// CmdOff turns a device off.
	CmdOff byte = 0x13

	// CmdStatusRequest probes a device. The reply carries the all-link
	// database delta in cmd1 and the device state in cmd2.
	CmdStatusRequest byte = 0x19

	// CmdLinkDB reads and writes the device all-link database. Both the
	// full dump request and individual record writes use this opcode.
	CmdLinkDB byte = 0x2f
)

// ExtDataLen is the payload length of extended messages.
const ExtDataLen = 14

// Message is the closed set of protocol messages the dispatch core
// operates on. Handlers branch on the concrete type.
type Message interface {
	fmt.Stringer

	// message restricts implementations to this package.
	message()
}

// OutStandard is a standard-length outbound message. When read back from
// the modem it is the echo of a send, with Ack reporting whether the
// modem accepted the transmission.
type OutStandard struct {
	To    Address
	Flags Flags
	Cmd1  byte
	Cmd2  byte

	// Ack is meaningful only on the echo reflected by the modem.
	Ack bool
}

// OutExtended is an extended-length outbound message carrying a 14-byte
// payload, used for all-link database operations.
type OutExtended struct {
	To    Address
	Flags Flags
	Cmd1  byte
	Cmd2  byte
	Data  [ExtDataLen]byte

	// Ack is meaningful only on the echo reflected by the modem.
	Ack bool
}

// InpStandard is a standard-length message received from the network:
// a direct ACK/NAK reply, a broadcast, or unsolicited device traffic.
type InpStandard struct {
	From  Address
	To    Address
	Flags Flags
	Cmd1  byte
	Cmd2  byte
}

// InpExtended is an extended-length received message, e.g. one streamed
// all-link database record.
type InpExtended struct {
	From  Address
	To    Address
	Flags Flags
	Cmd1  byte
	Cmd2  byte
	Data  [ExtDataLen]byte
}

func (*OutStandard) message() {}
func (*OutExtended) message() {}
func (*InpStandard) message() {}
func (*InpExtended) message() {}

// NewDirect builds a standard direct message to the given address.
func NewDirect(to Address, cmd1, cmd2 byte) *OutStandard {
	return &OutStandard{To: to, Flags: DirectFlags(false), Cmd1: cmd1, Cmd2: cmd2}
}

// NewDirectExtended builds an extended direct message with payload data.
func NewDirectExtended(to Address, cmd1, cmd2 byte, data [ExtDataLen]byte) *OutExtended {
	return &OutExtended{To: to, Flags: DirectFlags(true), Cmd1: cmd1, Cmd2: cmd2, Data: data}
}

// NewLinkDBDump builds the extended request asking a device to stream
// every record of its all-link database. The payload is exactly 14 zero
// bytes after the 0x00 sub-command; devices reject anything else.
func NewLinkDBDump(to Address) *OutExtended {
	return NewDirectExtended(to, CmdLinkDB, 0x00, [ExtDataLen]byte{})
}

// Checksum computes the two's-complement checksum that terminates the
// payload of extended database-write messages (cmd1 + cmd2 + D1..D13).
func Checksum(cmd1, cmd2 byte, data []byte) byte {
	sum := cmd1 + cmd2
	for _, b := range data {
		sum += b
	}
	return ^sum + 1
}

func (m *OutStandard) String() string {
	return fmt.Sprintf("out std to=%s cmd=%#02x/%#02x ack=%v", m.To, m.Cmd1, m.Cmd2, m.Ack)
}

func (m *OutExtended) String() string {
	return fmt.Sprintf("out ext to=%s cmd=%#02x/%#02x ack=%v", m.To, m.Cmd1, m.Cmd2, m.Ack)
}

func (m *InpStandard) String() string {
	return fmt.Sprintf("inp std from=%s %s cmd=%#02x/%#02x", m.From, m.Flags, m.Cmd1, m.Cmd2)
}

func (m *InpExtended) String() string {
	return fmt.Sprintf("inp ext from=%s %s cmd=%#02x/%#02x", m.From, m.Flags, m.Cmd1, m.Cmd2)
}
