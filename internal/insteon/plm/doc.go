// Package plm connects to an Insteon PowerLinc Modem and converts
// between wire frames and the typed message model.
//
// The modem speaks a simple framed serial protocol: every frame starts
// with 0x02 followed by a type byte. The bridge uses three frame types:
//
//	0x62  send direct message; the modem reflects the full frame back
//	      with a trailing ACK (0x06) or NAK (0x15) byte - the "echo"
//	0x50  standard message received
//	0x51  extended message received
//
// Frames with other type bytes are skipped byte-wise until the next
// 0x02 resynchronises the stream.
//
// The modem may be reached over TCP (ser2net or a network-attached
// PLM) or a serial device node. Serial ports are opened as raw files;
// line speed is expected to be preconfigured on the port.
package plm
