// Package protocol implements the X11 core wire protocol engine: request
// framing and decoding, per-request handlers over the shared resource
// model, reply and error serialization, and the connection setup exchange.
package protocol

import (
	"encoding/binary"

	"github.com/BurntSushi/xgb"
)

// Reply type tags, the first byte of every server-to-client packet.
const (
	ReplyTypeError = 0
	ReplyTypeReply = 1
)

// Request opcodes handled by the server.
const (
	OpCreateWindow           = 1
	OpChangeWindowAttributes = 2
	OpGetWindowAttributes    = 3
	OpDestroyWindow          = 4
	OpMapWindow              = 8
	OpUnmapWindow            = 10
	OpConfigureWindow        = 12
	OpGetGeometry            = 14
	OpInternAtom             = 16
	OpGetAtomName            = 17
	OpChangeProperty         = 18
	OpDeleteProperty         = 19
	OpGetProperty            = 20
	OpListProperties         = 21
	OpGetInputFocus          = 43
	OpNoOperation            = 127
)

// HeaderSize is the size of every reply and error header, and of events.
const HeaderSize = 32

// Pad returns the number of zero bytes that follow n bytes of payload so
// that the total is a multiple of 4.
func Pad(n int) int {
	return xgb.Pad(n) - n
}

// ByteOrderFor returns the byte order selected by a setup byte-order
// marker ('l' or 'B'), or nil for an invalid marker.
func ByteOrderFor(marker byte) binary.ByteOrder {
	switch marker {
	case 'l':
		return binary.LittleEndian
	case 'B':
		return binary.BigEndian
	}
	return nil
}
