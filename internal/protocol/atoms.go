package protocol

import (
	"encoding/binary"
	"io"
)

// GetAtomName returns the name interned under an atom.
type GetAtomName struct {
	Atom uint32
}

func readGetAtomName(body []byte, _ uint8, order binary.ByteOrder) (Request, error) {
	if len(body) < 4 {
		return nil, nil
	}
	return &GetAtomName{Atom: order.Uint32(body[0:])}, nil
}

func (r *GetAtomName) Opcode() uint8 { return OpGetAtomName }

func (r *GetAtomName) Handle(ctx *Context, w io.Writer, seq uint16) error {
	name, ok := ctx.Atoms.Resolve(r.Atom)
	if !ok {
		return UnknownAtom(r.Atom)
	}

	// name_length at 8, 22 unused bytes, then the name
	rep := newReply(ctx.Order, seq, 0, len(name))
	rep.put16(8, uint16(len(name)))
	rep.copyAt(HeaderSize, []byte(name))
	return rep.writeTo(w)
}

// InternAtom returns the identifier of a name, creating it unless
// OnlyIfExists is set.
type InternAtom struct {
	OnlyIfExists bool
	Name         string
}

func readInternAtom(body []byte, extra uint8, order binary.ByteOrder) (Request, error) {
	if len(body) < 4 {
		return nil, nil
	}
	n := int(order.Uint16(body[0:]))
	if len(body) < 4+n {
		return nil, BadLength()
	}
	return &InternAtom{
		OnlyIfExists: extra != 0,
		Name:         string(body[4 : 4+n]),
	}, nil
}

func (r *InternAtom) Opcode() uint8 { return OpInternAtom }

func (r *InternAtom) Handle(ctx *Context, w io.Writer, seq uint16) error {
	if r.Name == "" {
		return BadValue(0)
	}
	id, _ := ctx.Atoms.Intern(r.Name, r.OnlyIfExists)

	rep := newReply(ctx.Order, seq, 0, 0)
	rep.put32(8, id)
	return rep.writeTo(w)
}
