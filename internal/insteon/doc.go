// Package insteon defines the typed Insteon message model shared by the
// protocol core.
//
// Insteon traffic falls into two directions and two frame sizes:
//
//   - OutStandard / OutExtended: messages we send to the modem. The modem
//     reflects each one back with an ACK or NAK flag set - the "echo" -
//     which confirms physical transmission but says nothing about whether
//     the addressed device accepted the command.
//   - InpStandard / InpExtended: messages received from the network,
//     including direct ACK/NAK replies from devices and broadcasts.
//
// Handlers dispatch on the concrete message type with a type switch, so
// the four message structs form a closed tagged variant behind the
// Message interface.
//
// Command bytes used by the core are defined here as well. The all-link
// database read/write opcode (0x2f) and its extended payload layout are
// wire protocol; they must not change.
package insteon
