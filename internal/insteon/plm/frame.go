package plm

import (
	"bufio"
	"fmt"
	"io"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon"
)

// PLM frame bytes.
const (
	frameStart byte = 0x02
	frameAck   byte = 0x06
	frameNak   byte = 0x15

	typeSend        byte = 0x62 // send direct message (echoed with ACK/NAK)
	typeStdReceived byte = 0x50 // standard message received
	typeExtReceived byte = 0x51 // extended message received
)

// encodeSend builds the 0x62 frame for an outbound message.
func encodeSend(msg insteon.Message) ([]byte, error) {
	switch m := msg.(type) {
	case *insteon.OutStandard:
		return []byte{
			frameStart, typeSend,
			m.To[0], m.To[1], m.To[2],
			m.Flags.Byte(), m.Cmd1, m.Cmd2,
		}, nil

	case *insteon.OutExtended:
		buf := make([]byte, 0, 8+insteon.ExtDataLen)
		buf = append(buf,
			frameStart, typeSend,
			m.To[0], m.To[1], m.To[2],
			m.Flags.Byte(), m.Cmd1, m.Cmd2)
		buf = append(buf, m.Data[:]...)
		return buf, nil
	}

	return nil, fmt.Errorf("%w: %T", ErrUnsupportedMessage, msg)
}

// frameReader decodes modem frames off a byte stream.
type frameReader struct {
	r *bufio.Reader
}

func newFrameReader(r io.Reader) *frameReader {
	return &frameReader{r: bufio.NewReader(r)}
}

// Next blocks until a complete frame the bridge understands arrives and
// returns its decoded message. Bytes outside a recognised frame are
// skipped; only transport errors are returned.
func (f *frameReader) Next() (insteon.Message, error) {
	for {
		b, err := f.r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != frameStart {
			continue
		}

		frameType, err := f.r.ReadByte()
		if err != nil {
			return nil, err
		}

		switch frameType {
		case typeSend:
			msg, err := f.readEcho()
			if err != nil {
				return nil, err
			}
			if msg != nil {
				return msg, nil
			}
			// Corrupt echo; resync on the next start byte.

		case typeStdReceived:
			return f.readStandard()

		case typeExtReceived:
			return f.readExtended()

		default:
			// A modem management frame (link status, button events,
			// ...) we do not consume. Lengths differ per type, so skip
			// byte-wise until the next start byte resynchronises us.
		}
	}
}

// readEcho parses the modem's reflection of a 0x62 send: the original
// payload followed by one ACK/NAK byte.
func (f *frameReader) readEcho() (insteon.Message, error) {
	var head [6]byte // addr(3) flags cmd1 cmd2
	if _, err := io.ReadFull(f.r, head[:]); err != nil {
		return nil, err
	}

	flags := insteon.ParseFlags(head[3])
	addr := insteon.Address{head[0], head[1], head[2]}

	var data [insteon.ExtDataLen]byte
	if flags.Extended {
		if _, err := io.ReadFull(f.r, data[:]); err != nil {
			return nil, err
		}
	}

	status, err := f.r.ReadByte()
	if err != nil {
		return nil, err
	}
	if status != frameAck && status != frameNak {
		// Stream slipped mid-frame; tell the caller to resync.
		return nil, nil //nolint:nilnil // sentinel for resync, not an error
	}

	if flags.Extended {
		return &insteon.OutExtended{
			To: addr, Flags: flags, Cmd1: head[4], Cmd2: head[5],
			Data: data, Ack: status == frameAck,
		}, nil
	}
	return &insteon.OutStandard{
		To: addr, Flags: flags, Cmd1: head[4], Cmd2: head[5],
		Ack: status == frameAck,
	}, nil
}

// readStandard parses a 0x50 frame: from(3) to(3) flags cmd1 cmd2.
func (f *frameReader) readStandard() (insteon.Message, error) {
	var body [9]byte
	if _, err := io.ReadFull(f.r, body[:]); err != nil {
		return nil, err
	}
	return &insteon.InpStandard{
		From:  insteon.Address{body[0], body[1], body[2]},
		To:    insteon.Address{body[3], body[4], body[5]},
		Flags: insteon.ParseFlags(body[6]),
		Cmd1:  body[7],
		Cmd2:  body[8],
	}, nil
}

// readExtended parses a 0x51 frame: the 0x50 layout plus 14 data bytes.
func (f *frameReader) readExtended() (insteon.Message, error) {
	var body [9 + insteon.ExtDataLen]byte
	if _, err := io.ReadFull(f.r, body[:]); err != nil {
		return nil, err
	}
	m := &insteon.InpExtended{
		From:  insteon.Address{body[0], body[1], body[2]},
		To:    insteon.Address{body[3], body[4], body[5]},
		Flags: insteon.ParseFlags(body[6]),
		Cmd1:  body[7],
		Cmd2:  body[8],
	}
	copy(m.Data[:], body[9:])
	return m, nil
}
