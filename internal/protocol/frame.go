package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Frame is one complete request read from a client.
type Frame struct {
	Opcode uint8
	Extra  uint8
	Body   []byte
}

// ErrBigRequest is returned for a zero length field, which only the
// BIG-REQUESTS extension gives a meaning to.
var ErrBigRequest = fmt.Errorf("zero-length request: %w", BadLength())

// ReadFrame reads the 4-byte request header and the body its length field
// announces.
func ReadFrame(r io.Reader, order binary.ByteOrder) (*Frame, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}

	words := order.Uint16(hdr[2:])
	if words == 0 {
		return nil, ErrBigRequest
	}

	body := make([]byte, int(words)*4-len(hdr))
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}

	return &Frame{
		Opcode: hdr[0],
		Extra:  hdr[1],
		Body:   body,
	}, nil
}

// EncodeFrame builds a request packet. body is padded to a word boundary.
func EncodeFrame(order binary.ByteOrder, opcode, extra uint8, body []byte) []byte {
	buf := make([]byte, 4+len(body)+Pad(len(body)))
	buf[0] = opcode
	buf[1] = extra
	order.PutUint16(buf[2:], uint16(len(buf)/4))
	copy(buf[4:], body)
	return buf
}
