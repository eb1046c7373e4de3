package protocol

import (
	"encoding/binary"
	"io"
)

// reply is a reply packet under construction: the 32-byte header followed
// by extra bytes of payload and their padding.
type reply struct {
	order binary.ByteOrder
	buf   []byte
}

// newReply allocates a reply whose payload after the fixed header is extra
// bytes long. The reply length field counts the padded payload in words.
func newReply(order binary.ByteOrder, seq uint16, detail byte, extra int) *reply {
	padded := extra + Pad(extra)
	r := &reply{
		order: order,
		buf:   make([]byte, HeaderSize+padded),
	}
	r.buf[0] = ReplyTypeReply
	r.buf[1] = detail
	order.PutUint16(r.buf[2:], seq)
	order.PutUint32(r.buf[4:], uint32(padded/4))
	return r
}

func (r *reply) put8(off int, v uint8)    { r.buf[off] = v }
func (r *reply) put16(off int, v uint16)  { r.order.PutUint16(r.buf[off:], v) }
func (r *reply) put32(off int, v uint32)  { r.order.PutUint32(r.buf[off:], v) }
func (r *reply) copyAt(off int, b []byte) { copy(r.buf[off:], b) }

// writeTo sends the whole reply in a single write so replies from
// concurrent writers on the same sink never interleave.
func (r *reply) writeTo(w io.Writer) error {
	return writeAll(w, r.buf)
}

func writeAll(w io.Writer, b []byte) error {
	if _, err := w.Write(b); err != nil {
		return &IOError{Err: err}
	}
	return nil
}

// WriteError serializes e as a 32-byte error packet.
func WriteError(w io.Writer, order binary.ByteOrder, seq uint16, e *Error) error {
	buf := make([]byte, HeaderSize)
	buf[0] = ReplyTypeError
	buf[1] = e.Code
	order.PutUint16(buf[2:], seq)
	order.PutUint32(buf[4:], e.BadValue)
	order.PutUint16(buf[8:], e.MinorOpcode)
	buf[10] = e.MajorOpcode
	return writeAll(w, buf)
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
