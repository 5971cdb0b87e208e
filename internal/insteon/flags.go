package insteon

import "fmt"

// MsgType is the three-bit message type carried in the flags byte
// (bits 7-5). The values are wire protocol.
type MsgType byte

// Message type codes.
const (
	TypeDirect           MsgType = 0b000
	TypeDirectAck        MsgType = 0b001
	TypeAllLinkCleanup   MsgType = 0b010
	TypeCleanupAck       MsgType = 0b011
	TypeBroadcast        MsgType = 0b100
	TypeDirectNak        MsgType = 0b101
	TypeAllLinkBroadcast MsgType = 0b110
	TypeCleanupNak       MsgType = 0b111
)

// String returns a short human-readable name for logs.
func (t MsgType) String() string {
	switch t {
	case TypeDirect:
		return "direct"
	case TypeDirectAck:
		return "direct_ack"
	case TypeAllLinkCleanup:
		return "all_link_cleanup"
	case TypeCleanupAck:
		return "cleanup_ack"
	case TypeBroadcast:
		return "broadcast"
	case TypeDirectNak:
		return "direct_nak"
	case TypeAllLinkBroadcast:
		return "all_link_broadcast"
	case TypeCleanupNak:
		return "cleanup_nak"
	default:
		return fmt.Sprintf("type(%d)", byte(t))
	}
}

// Flags is the decoded Insteon message flags byte:
//
//	bits 7-5: message type
//	bit 4:    extended message (14-byte payload follows cmd2)
//	bits 3-2: hops left
//	bits 1-0: max hops
type Flags struct {
	Type     MsgType
	Extended bool
	HopsLeft byte
	MaxHops  byte
}

// ParseFlags decodes a raw flags byte.
func ParseFlags(b byte) Flags {
	return Flags{
		Type:     MsgType(b >> 5),
		Extended: b&0x10 != 0,
		HopsLeft: (b >> 2) & 0x03,
		MaxHops:  b & 0x03,
	}
}

// Byte encodes the flags back to wire form.
func (f Flags) Byte() byte {
	b := byte(f.Type)<<5 | f.HopsLeft<<2 | f.MaxHops
	if f.Extended {
		b |= 0x10
	}
	return b
}

// DirectFlags returns the flags used for outbound direct messages with
// the customary 3/3 hop counts.
func DirectFlags(extended bool) Flags {
	return Flags{Type: TypeDirect, Extended: extended, HopsLeft: 3, MaxHops: 3}
}

// String returns a compact form like "direct_ack:std" for logs.
func (f Flags) String() string {
	size := "std"
	if f.Extended {
		size = "ext"
	}
	return f.Type.String() + ":" + size
}
