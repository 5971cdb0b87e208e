package linkdb

import (
	"fmt"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon"
)

// Record flag bits.
const (
	// FlagInUse marks a live record. Clearing it is a logical deletion;
	// the slot may be reused later.
	FlagInUse byte = 0x80

	// FlagController marks the record as a controller link (we trigger
	// the remote device). Clear means responder.
	FlagController byte = 0x40

	// FlagUsedBefore is set on every record except the trailing
	// high-water mark. A record with this bit clear terminates a
	// database dump.
	FlagUsedBefore byte = 0x02
)

// Record geometry. The all-link database grows downward from the top of
// device memory in fixed 8-byte records.
const (
	// StartMemLoc is the memory location of the first record.
	StartMemLoc uint16 = 0x0FFF

	// RecordSize is the size of one record in device memory.
	RecordSize uint16 = 8
)

// Sub-command bytes in D2 of 0x2f extended payloads.
const (
	recordResponse byte = 0x01
	recordWrite    byte = 0x02
)

// Entry is one all-link database record: a (group, address) link with
// three bytes of link-specific data (typically on-level, ramp rate and
// responder button).
//
// An Entry may represent an addition, an update of an existing record at
// the same memory location, or a logical deletion (FlagInUse cleared).
// Handlers only propose entries; the DB mirror decides storage.
type Entry struct {
	MemLoc uint16
	Flags  byte
	Group  byte
	Addr   insteon.Address
	Data   [3]byte
}

// InUse reports whether the record is live.
func (e Entry) InUse() bool { return e.Flags&FlagInUse != 0 }

// IsController reports whether the record is a controller link.
func (e Entry) IsController() bool { return e.Flags&FlagController != 0 }

// IsLast reports whether this record is the high-water mark that
// terminates the database.
func (e Entry) IsLast() bool { return e.Flags&FlagUsedBefore == 0 }

// String returns a one-line form for logs.
func (e Entry) String() string {
	kind := "resp"
	if e.IsController() {
		kind = "ctrl"
	}
	state := "unused"
	if e.InUse() {
		state = "in-use"
	}
	return fmt.Sprintf("mem=%#04x %s %s grp=%#02x addr=%s data=%#02x %#02x %#02x",
		e.MemLoc, kind, state, e.Group, e.Addr, e.Data[0], e.Data[1], e.Data[2])
}

// EntryFromRecord parses one streamed database record out of the
// 14-byte payload of an extended 0x2f response:
//
//	D1 0x00, D2 0x01 (record response), D3-D4 memory location,
//	D5 0x00, D6 flags, D7 group, D8-D10 address, D11-D13 data.
func EntryFromRecord(data [insteon.ExtDataLen]byte) (Entry, error) {
	if data[1] != recordResponse {
		return Entry{}, fmt.Errorf("%w: sub-command %#02x", ErrBadRecord, data[1])
	}

	e := Entry{
		MemLoc: uint16(data[2])<<8 | uint16(data[3]),
		Flags:  data[5],
		Group:  data[6],
		Addr:   insteon.Address{data[7], data[8], data[9]},
	}
	copy(e.Data[:], data[10:13])
	return e, nil
}

// WriteRecord builds the 14-byte payload of the extended 0x2f message
// that writes this entry into device memory. The final byte is the
// two's-complement checksum newer devices require.
func (e Entry) WriteRecord() [insteon.ExtDataLen]byte {
	var d [insteon.ExtDataLen]byte
	d[0] = 0x00
	d[1] = recordWrite
	d[2] = byte(e.MemLoc >> 8)
	d[3] = byte(e.MemLoc)
	d[4] = 0x08 // record length
	d[5] = e.Flags
	d[6] = e.Group
	copy(d[7:10], e.Addr[:])
	copy(d[10:13], e.Data[:])
	d[13] = insteon.Checksum(insteon.CmdLinkDB, 0x00, d[:13])
	return d
}

// WriteMessage builds the outbound message that commits this entry to
// the device at to.
func (e Entry) WriteMessage(to insteon.Address) *insteon.OutExtended {
	return insteon.NewDirectExtended(to, insteon.CmdLinkDB, 0x00, e.WriteRecord())
}
