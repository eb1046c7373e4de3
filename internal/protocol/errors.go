package protocol

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/bnema/xkms/internal/resource"
)

var errorNames = map[uint8]string{
	xproto.BadRequest:        "BadRequest",
	xproto.BadValue:          "BadValue",
	xproto.BadWindow:         "BadWindow",
	xproto.BadAtom:           "BadAtom",
	xproto.BadMatch:          "BadMatch",
	xproto.BadAlloc:          "BadAlloc",
	xproto.BadIDChoice:       "BadIDChoice",
	xproto.BadLength:         "BadLength",
	xproto.BadImplementation: "BadImplementation",
}

// Error is a protocol-level fault caused by a client request. It is
// recoverable: the connection answers it with an error packet and keeps
// serving.
type Error struct {
	Code        uint8
	BadValue    uint32
	MinorOpcode uint16
	MajorOpcode uint8
}

func (e *Error) Error() string {
	name, ok := errorNames[e.Code]
	if !ok {
		name = fmt.Sprintf("error %d", e.Code)
	}
	return fmt.Sprintf("%s (value %#x, opcode %d.%d)", name, e.BadValue, e.MajorOpcode, e.MinorOpcode)
}

// IOError is a transport failure while writing to the client. It is fatal
// to the connection.
type IOError struct {
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// UnknownAtom reports an atom identifier the atom table cannot resolve.
func UnknownAtom(id uint32) *Error {
	return &Error{Code: xproto.BadAtom, BadValue: id}
}

func BadWindow(id uint32) *Error {
	return &Error{Code: xproto.BadWindow, BadValue: id}
}

func BadValue(v uint32) *Error {
	return &Error{Code: xproto.BadValue, BadValue: v}
}

func BadIDChoice(id uint32) *Error {
	return &Error{Code: xproto.BadIDChoice, BadValue: id}
}

func BadLength() *Error {
	return &Error{Code: xproto.BadLength}
}

func BadMatch() *Error {
	return &Error{Code: xproto.BadMatch}
}

func BadRequest() *Error {
	return &Error{Code: xproto.BadRequest}
}

func BadImplementation() *Error {
	return &Error{Code: xproto.BadImplementation}
}

// windowError maps a resource model failure on window id to the
// protocol error a client sees.
func windowError(id uint32, err error) error {
	var perr *Error
	switch {
	case errors.As(err, &perr):
		return perr
	case errors.Is(err, resource.ErrNoSuchWindow):
		return BadWindow(id)
	case errors.Is(err, resource.ErrWindowExists):
		return BadIDChoice(id)
	case errors.Is(err, resource.ErrRootWindow):
		return BadMatch()
	case errors.Is(err, resource.ErrValueListShort):
		return BadLength()
	default:
		return BadImplementation()
	}
}
