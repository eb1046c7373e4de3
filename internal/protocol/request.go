package protocol

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/bnema/xkms/internal/resource"
)

// Atoms is the atom table contract used by handlers.
type Atoms interface {
	Resolve(id uint32) (string, bool)
	Lookup(name string) (uint32, bool)
	Intern(name string, onlyIfExists bool) (uint32, bool)
}

// Context carries the per-connection and server-wide state a request
// handler operates on.
type Context struct {
	Resources *resource.Store
	Atoms     Atoms
	Order     binary.ByteOrder

	// Range of window identifiers the client may allocate
	ResourceBase uint32
	ResourceMask uint32
}

// ownsID reports whether id lies in the client's allocation range.
func (c *Context) ownsID(id uint32) bool {
	return id != 0 && id&^c.ResourceMask == c.ResourceBase
}

// Request is a decoded request. Handle either writes the reply (if the
// request has one) to w and returns nil, or returns a *Error to be turned
// into an error packet, or an *IOError when w failed.
type Request interface {
	Opcode() uint8
	Handle(ctx *Context, w io.Writer, seq uint16) error
}

// decoder parses the body that follows the 4-byte request header. It
// returns a nil Request and nil error when body is shorter than the
// request's fixed part.
type decoder func(body []byte, extra uint8, order binary.ByteOrder) (Request, error)

var decoders = map[uint8]decoder{
	OpCreateWindow:           readCreateWindow,
	OpChangeWindowAttributes: readChangeWindowAttributes,
	OpGetWindowAttributes:    readGetWindowAttributes,
	OpDestroyWindow:          readDestroyWindow,
	OpMapWindow:              readMapWindow,
	OpUnmapWindow:            readUnmapWindow,
	OpConfigureWindow:        readConfigureWindow,
	OpGetGeometry:            readGetGeometry,
	OpInternAtom:             readInternAtom,
	OpGetAtomName:            readGetAtomName,
	OpChangeProperty:         readChangeProperty,
	OpDeleteProperty:         readDeleteProperty,
	OpGetProperty:            readGetProperty,
	OpListProperties:         readListProperties,
	OpGetInputFocus:          readGetInputFocus,
	OpNoOperation:            readNoOperation,
}

// Decode selects the decoder for opcode and runs it. Unknown opcodes yield
// BadRequest.
func Decode(opcode, extra uint8, body []byte, order binary.ByteOrder) (Request, error) {
	read, ok := decoders[opcode]
	if !ok {
		return nil, BadRequest()
	}
	return read(body, extra, order)
}

// Dispatch decodes and handles one complete request. Protocol errors are
// written to w as error packets and swallowed; only transport failures are
// returned.
func Dispatch(ctx *Context, w io.Writer, seq uint16, opcode, extra uint8, body []byte) error {
	req, err := Decode(opcode, extra, body, ctx.Order)
	if err == nil && req == nil {
		// The frame is complete, so a short body is a length fault
		err = BadLength()
	}
	if err == nil {
		err = req.Handle(ctx, w, seq)
	}
	if err == nil {
		return nil
	}

	var perr *Error
	if errors.As(err, &perr) {
		out := *perr
		out.MajorOpcode = opcode
		return WriteError(w, ctx.Order, seq, &out)
	}
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		return ioErr
	}
	// Anything else is a server fault, reported to the client as such
	out := BadImplementation()
	out.MajorOpcode = opcode
	return WriteError(w, ctx.Order, seq, out)
}
