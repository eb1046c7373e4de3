package protocol

import (
	"encoding/binary"
	"io"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/bnema/xkms/internal/resource"
)

// ChangeProperty replaces, prepends to or appends to a window property.
type ChangeProperty struct {
	Mode     uint8
	Window   uint32
	Property uint32
	Type     uint32
	Format   uint8
	Data     []byte
}

func readChangeProperty(body []byte, extra uint8, order binary.ByteOrder) (Request, error) {
	if len(body) < 20 {
		return nil, nil
	}
	format := body[12]
	if format != 8 && format != 16 && format != 32 {
		return nil, BadValue(uint32(format))
	}
	units := order.Uint32(body[16:])
	size := uint64(units) * uint64(format/8)
	if size > uint64(len(body)-20) {
		return nil, BadLength()
	}
	return &ChangeProperty{
		Mode:     extra,
		Window:   order.Uint32(body[0:]),
		Property: order.Uint32(body[4:]),
		Type:     order.Uint32(body[8:]),
		Format:   format,
		Data:     append([]byte(nil), body[20:20+size]...),
	}, nil
}

func (r *ChangeProperty) Opcode() uint8 { return OpChangeProperty }

func (r *ChangeProperty) Handle(ctx *Context, w io.Writer, seq uint16) error {
	if r.Mode > xproto.PropModeAppend {
		return BadValue(uint32(r.Mode))
	}
	name, ok := ctx.Atoms.Resolve(r.Property)
	if !ok {
		return UnknownAtom(r.Property)
	}
	if _, ok := ctx.Atoms.Resolve(r.Type); !ok {
		return UnknownAtom(r.Type)
	}

	err := ctx.Resources.Update(r.Window, func(win *resource.Window) error {
		next := resource.Property{Type: r.Type, Format: r.Format, Data: r.Data}

		old, exists := win.Property(name)
		if exists && r.Mode != xproto.PropModeReplace {
			if old.Type != r.Type || old.Format != r.Format {
				return BadMatch()
			}
			switch r.Mode {
			case xproto.PropModePrepend:
				next.Data = append(append([]byte(nil), r.Data...), old.Data...)
			case xproto.PropModeAppend:
				next.Data = append(old.Data, r.Data...)
			}
		}

		win.SetProperty(name, next)
		return nil
	})
	if err != nil {
		return windowError(r.Window, err)
	}
	return nil
}

// DeleteProperty removes a property. Removing an absent property is not
// an error.
type DeleteProperty struct {
	Window   uint32
	Property uint32
}

func readDeleteProperty(body []byte, _ uint8, order binary.ByteOrder) (Request, error) {
	if len(body) < 8 {
		return nil, nil
	}
	return &DeleteProperty{
		Window:   order.Uint32(body[0:]),
		Property: order.Uint32(body[4:]),
	}, nil
}

func (r *DeleteProperty) Opcode() uint8 { return OpDeleteProperty }

func (r *DeleteProperty) Handle(ctx *Context, w io.Writer, seq uint16) error {
	name, ok := ctx.Atoms.Resolve(r.Property)
	if !ok {
		return UnknownAtom(r.Property)
	}
	err := ctx.Resources.Update(r.Window, func(win *resource.Window) error {
		win.DeleteProperty(name)
		return nil
	})
	if err != nil {
		return windowError(r.Window, err)
	}
	return nil
}

// anyPropertyType matches a property of any type in GetProperty.
const anyPropertyType = 0

// GetProperty reads part of a property, optionally deleting it once fully
// read.
type GetProperty struct {
	Delete   bool
	Window   uint32
	Property uint32
	// Type is the requested type, or anyPropertyType
	Type       uint32
	LongOffset uint32
	LongLength uint32
}

func readGetProperty(body []byte, extra uint8, order binary.ByteOrder) (Request, error) {
	if len(body) < 20 {
		return nil, nil
	}
	return &GetProperty{
		Delete:     extra != 0,
		Window:     order.Uint32(body[0:]),
		Property:   order.Uint32(body[4:]),
		Type:       order.Uint32(body[8:]),
		LongOffset: order.Uint32(body[12:]),
		LongLength: order.Uint32(body[16:]),
	}, nil
}

func (r *GetProperty) Opcode() uint8 { return OpGetProperty }

func (r *GetProperty) Handle(ctx *Context, w io.Writer, seq uint16) error {
	name, ok := ctx.Atoms.Resolve(r.Property)
	if !ok {
		return UnknownAtom(r.Property)
	}
	if r.Type != anyPropertyType {
		if _, ok := ctx.Atoms.Resolve(r.Type); !ok {
			return UnknownAtom(r.Type)
		}
	}

	var (
		prop     resource.Property
		exists   bool
		value    []byte
		after    uint32
		typeMiss bool
	)
	err := ctx.Resources.Update(r.Window, func(win *resource.Window) error {
		prop, exists = win.Property(name)
		if !exists {
			return nil
		}
		if r.Type != anyPropertyType && r.Type != prop.Type {
			typeMiss = true
			after = uint32(len(prop.Data))
			return nil
		}

		total := uint64(len(prop.Data))
		start := 4 * uint64(r.LongOffset)
		if start > total {
			return BadValue(r.LongOffset)
		}
		end := start + 4*uint64(r.LongLength)
		if end > total {
			end = total
		}
		value = prop.Data[start:end]
		after = uint32(total - end)

		if r.Delete && after == 0 {
			win.DeleteProperty(name)
		}
		return nil
	})
	if err != nil {
		return windowError(r.Window, err)
	}

	if !exists {
		rep := newReply(ctx.Order, seq, 0, 0)
		return rep.writeTo(w)
	}
	if typeMiss {
		rep := newReply(ctx.Order, seq, prop.Format, 0)
		rep.put32(8, prop.Type)
		rep.put32(12, after)
		return rep.writeTo(w)
	}

	rep := newReply(ctx.Order, seq, prop.Format, len(value))
	rep.put32(8, prop.Type)
	rep.put32(12, after)
	rep.put32(16, uint32(len(value)/int(prop.Format/8)))
	rep.copyAt(HeaderSize, value)
	return rep.writeTo(w)
}

// ListProperties returns the atoms of every property on a window.
type ListProperties struct {
	Window uint32
}

func readListProperties(body []byte, _ uint8, order binary.ByteOrder) (Request, error) {
	if len(body) < 4 {
		return nil, nil
	}
	return &ListProperties{Window: order.Uint32(body[0:])}, nil
}

func (r *ListProperties) Opcode() uint8 { return OpListProperties }

func (r *ListProperties) Handle(ctx *Context, w io.Writer, seq uint16) error {
	var names []string
	err := ctx.Resources.View(r.Window, func(win *resource.Window) error {
		names = win.PropertyNames()
		return nil
	})
	if err != nil {
		return windowError(r.Window, err)
	}

	atoms := make([]uint32, 0, len(names))
	for _, name := range names {
		if id, ok := ctx.Atoms.Lookup(name); ok {
			atoms = append(atoms, id)
		}
	}

	rep := newReply(ctx.Order, seq, 0, 4*len(atoms))
	rep.put16(8, uint16(len(atoms)))
	for i, id := range atoms {
		rep.put32(HeaderSize+4*i, id)
	}
	return rep.writeTo(w)
}
