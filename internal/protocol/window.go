package protocol

import (
	"encoding/binary"
	"io"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/bnema/xkms/internal/resource"
)

// CreateWindow creates an unmapped child window.
type CreateWindow struct {
	Depth       uint8
	Window      uint32
	Parent      uint32
	Rect        resource.Rectangle
	BorderWidth uint16
	Class       uint16
	Visual      uint32
	ValueMask   uint32
	Values      []uint32
}

func readValueList(b []byte, order binary.ByteOrder) []uint32 {
	values := make([]uint32, len(b)/4)
	for i := range values {
		values[i] = order.Uint32(b[i*4:])
	}
	return values
}

func readCreateWindow(body []byte, extra uint8, order binary.ByteOrder) (Request, error) {
	if len(body) < 28 {
		return nil, nil
	}
	return &CreateWindow{
		Depth:  extra,
		Window: order.Uint32(body[0:]),
		Parent: order.Uint32(body[4:]),
		Rect: resource.Rectangle{
			X:      int16(order.Uint16(body[8:])),
			Y:      int16(order.Uint16(body[10:])),
			Width:  order.Uint16(body[12:]),
			Height: order.Uint16(body[14:]),
		},
		BorderWidth: order.Uint16(body[16:]),
		Class:       order.Uint16(body[18:]),
		Visual:      order.Uint32(body[20:]),
		ValueMask:   order.Uint32(body[24:]),
		Values:      readValueList(body[28:], order),
	}, nil
}

func (r *CreateWindow) Opcode() uint8 { return OpCreateWindow }

func (r *CreateWindow) Handle(ctx *Context, w io.Writer, seq uint16) error {
	if !ctx.ownsID(r.Window) {
		return BadIDChoice(r.Window)
	}
	if r.Rect.Width == 0 || r.Rect.Height == 0 {
		return BadValue(0)
	}
	if r.Class > xproto.WindowClassInputOnly {
		return BadValue(uint32(r.Class))
	}

	var parent struct {
		depth  uint8
		class  uint16
		visual uint32
	}
	err := ctx.Resources.View(r.Parent, func(p *resource.Window) error {
		parent.depth = p.Depth()
		parent.class = p.Attributes.Class
		parent.visual = p.Attributes.Visual
		return nil
	})
	if err != nil {
		return windowError(r.Parent, err)
	}

	class := r.Class
	if class == xproto.WindowClassCopyFromParent {
		class = parent.class
	}
	depth := r.Depth
	visual := r.Visual
	switch class {
	case xproto.WindowClassInputOnly:
		if r.BorderWidth != 0 || depth != 0 {
			return BadMatch()
		}
	default:
		if parent.class == xproto.WindowClassInputOnly {
			return BadMatch()
		}
		if depth == 0 {
			depth = parent.depth
		}
		if visual == 0 && depth != parent.depth {
			return BadMatch()
		}
	}
	if visual == 0 {
		visual = parent.visual
	}

	win := resource.NewWindow(r.Window, r.Parent, depth, r.Rect, r.BorderWidth)
	win.Attributes.Class = class
	win.Attributes.Visual = visual
	if err := win.Attributes.Apply(r.ValueMask, r.Values); err != nil {
		return windowError(r.Window, err)
	}

	if err := ctx.Resources.Create(win); err != nil {
		return windowError(r.Window, err)
	}
	return nil
}

// ChangeWindowAttributes updates the attributes named by ValueMask.
type ChangeWindowAttributes struct {
	Window    uint32
	ValueMask uint32
	Values    []uint32
}

func readChangeWindowAttributes(body []byte, _ uint8, order binary.ByteOrder) (Request, error) {
	if len(body) < 8 {
		return nil, nil
	}
	return &ChangeWindowAttributes{
		Window:    order.Uint32(body[0:]),
		ValueMask: order.Uint32(body[4:]),
		Values:    readValueList(body[8:], order),
	}, nil
}

func (r *ChangeWindowAttributes) Opcode() uint8 { return OpChangeWindowAttributes }

func (r *ChangeWindowAttributes) Handle(ctx *Context, w io.Writer, seq uint16) error {
	err := ctx.Resources.Update(r.Window, func(win *resource.Window) error {
		return win.Attributes.Apply(r.ValueMask, r.Values)
	})
	if err != nil {
		return windowError(r.Window, err)
	}
	return nil
}

// GetWindowAttributes returns a window's attributes.
type GetWindowAttributes struct {
	Window uint32
}

func readGetWindowAttributes(body []byte, _ uint8, order binary.ByteOrder) (Request, error) {
	if len(body) < 4 {
		return nil, nil
	}
	return &GetWindowAttributes{Window: order.Uint32(body[0:])}, nil
}

func (r *GetWindowAttributes) Opcode() uint8 { return OpGetWindowAttributes }

func (r *GetWindowAttributes) Handle(ctx *Context, w io.Writer, seq uint16) error {
	var a resource.WindowAttributes
	err := ctx.Resources.View(r.Window, func(win *resource.Window) error {
		a = win.Attributes
		return nil
	})
	if err != nil {
		return windowError(r.Window, err)
	}

	rep := newReply(ctx.Order, seq, a.BackingStore, 12)
	rep.put32(8, a.Visual)
	rep.put16(12, a.Class)
	rep.put8(14, a.BitGravity)
	rep.put8(15, a.WinGravity)
	rep.put32(16, a.BackingPlanes)
	rep.put32(20, a.BackingPixel)
	rep.put8(24, boolByte(a.SaveUnder))
	rep.put8(25, boolByte(a.MapInstalled))
	rep.put8(26, a.MapState)
	rep.put8(27, boolByte(a.OverrideRedirect))
	rep.put32(28, a.Colormap)
	// Event selection is per client; a single client view is reported
	rep.put32(32, a.EventMask)
	rep.put32(36, a.EventMask)
	rep.put16(40, uint16(a.DoNotPropagateMask))
	return rep.writeTo(w)
}

// DestroyWindow destroys a window and its descendants. Destroying the root
// window does nothing.
type DestroyWindow struct {
	Window uint32
}

func readDestroyWindow(body []byte, _ uint8, order binary.ByteOrder) (Request, error) {
	if len(body) < 4 {
		return nil, nil
	}
	return &DestroyWindow{Window: order.Uint32(body[0:])}, nil
}

func (r *DestroyWindow) Opcode() uint8 { return OpDestroyWindow }

func (r *DestroyWindow) Handle(ctx *Context, w io.Writer, seq uint16) error {
	if r.Window == ctx.Resources.RootID() {
		return nil
	}
	if _, err := ctx.Resources.Destroy(r.Window); err != nil {
		return windowError(r.Window, err)
	}
	return nil
}

// MapWindow marks a window as mapped.
type MapWindow struct {
	Window uint32
}

func readMapWindow(body []byte, _ uint8, order binary.ByteOrder) (Request, error) {
	if len(body) < 4 {
		return nil, nil
	}
	return &MapWindow{Window: order.Uint32(body[0:])}, nil
}

func (r *MapWindow) Opcode() uint8 { return OpMapWindow }

func (r *MapWindow) Handle(ctx *Context, w io.Writer, seq uint16) error {
	return setMapped(ctx, r.Window, true)
}

// UnmapWindow marks a window as unmapped.
type UnmapWindow struct {
	Window uint32
}

func readUnmapWindow(body []byte, _ uint8, order binary.ByteOrder) (Request, error) {
	if len(body) < 4 {
		return nil, nil
	}
	return &UnmapWindow{Window: order.Uint32(body[0:])}, nil
}

func (r *UnmapWindow) Opcode() uint8 { return OpUnmapWindow }

func (r *UnmapWindow) Handle(ctx *Context, w io.Writer, seq uint16) error {
	return setMapped(ctx, r.Window, false)
}

func setMapped(ctx *Context, id uint32, mapped bool) error {
	if err := ctx.Resources.SetMapped(id, mapped); err != nil {
		return windowError(id, err)
	}
	return nil
}

// ConfigureWindow changes a window's geometry. Stacking values are
// accepted and ignored.
type ConfigureWindow struct {
	Window    uint32
	ValueMask uint16
	Values    []uint32
}

func readConfigureWindow(body []byte, _ uint8, order binary.ByteOrder) (Request, error) {
	if len(body) < 8 {
		return nil, nil
	}
	return &ConfigureWindow{
		Window:    order.Uint32(body[0:]),
		ValueMask: order.Uint16(body[4:]),
		Values:    readValueList(body[8:], order),
	}, nil
}

func (r *ConfigureWindow) Opcode() uint8 { return OpConfigureWindow }

func (r *ConfigureWindow) Handle(ctx *Context, w io.Writer, seq uint16) error {
	const known = xproto.ConfigWindowX | xproto.ConfigWindowY | xproto.ConfigWindowWidth |
		xproto.ConfigWindowHeight | xproto.ConfigWindowBorderWidth |
		xproto.ConfigWindowSibling | xproto.ConfigWindowStackMode
	if r.ValueMask&^uint16(known) != 0 {
		return BadValue(uint32(r.ValueMask))
	}

	values := r.Values
	take := func(bit uint16) (uint32, bool, error) {
		if r.ValueMask&bit == 0 {
			return 0, false, nil
		}
		if len(values) == 0 {
			return 0, false, BadLength()
		}
		v := values[0]
		values = values[1:]
		return v, true, nil
	}

	err := ctx.Resources.Update(r.Window, func(win *resource.Window) error {
		rect := win.Rectangle()
		border := win.BorderWidth()

		if v, ok, err := take(xproto.ConfigWindowX); err != nil {
			return err
		} else if ok {
			rect.X = int16(v)
		}
		if v, ok, err := take(xproto.ConfigWindowY); err != nil {
			return err
		} else if ok {
			rect.Y = int16(v)
		}
		if v, ok, err := take(xproto.ConfigWindowWidth); err != nil {
			return err
		} else if ok {
			if v == 0 {
				return BadValue(v)
			}
			rect.Width = uint16(v)
		}
		if v, ok, err := take(xproto.ConfigWindowHeight); err != nil {
			return err
		} else if ok {
			if v == 0 {
				return BadValue(v)
			}
			rect.Height = uint16(v)
		}
		if v, ok, err := take(xproto.ConfigWindowBorderWidth); err != nil {
			return err
		} else if ok {
			border = uint16(v)
		}
		if _, _, err := take(xproto.ConfigWindowSibling); err != nil {
			return err
		}
		if _, _, err := take(xproto.ConfigWindowStackMode); err != nil {
			return err
		}

		// The root window keeps its origin but accepts the new size
		if win.IsRoot() {
			rect.X, rect.Y = 0, 0
		}
		win.SetRectangle(rect)
		win.SetBorderWidth(border)
		return nil
	})
	if err != nil {
		return windowError(r.Window, err)
	}
	return nil
}

// GetGeometry returns a drawable's depth, position and size.
type GetGeometry struct {
	Drawable uint32
}

func readGetGeometry(body []byte, _ uint8, order binary.ByteOrder) (Request, error) {
	if len(body) < 4 {
		return nil, nil
	}
	return &GetGeometry{Drawable: order.Uint32(body[0:])}, nil
}

func (r *GetGeometry) Opcode() uint8 { return OpGetGeometry }

func (r *GetGeometry) Handle(ctx *Context, w io.Writer, seq uint16) error {
	var d struct {
		depth  uint8
		rect   resource.Rectangle
		border uint16
	}
	err := ctx.Resources.View(r.Drawable, func(win *resource.Window) error {
		d.depth = win.Depth()
		d.rect = win.Rectangle()
		d.border = win.BorderWidth()
		return nil
	})
	if err != nil {
		// Pixmaps are not modelled, so any unknown drawable is a bad window
		return windowError(r.Drawable, err)
	}

	rep := newReply(ctx.Order, seq, d.depth, 0)
	rep.put32(8, ctx.Resources.RootID())
	rep.put16(12, uint16(d.rect.X))
	rep.put16(14, uint16(d.rect.Y))
	rep.put16(16, d.rect.Width)
	rep.put16(18, d.rect.Height)
	rep.put16(20, d.border)
	return rep.writeTo(w)
}

// GetInputFocus reports the focus window. Focus tracking is not modelled,
// so the root window always has it with revert-to PointerRoot.
type GetInputFocus struct{}

func readGetInputFocus(_ []byte, _ uint8, _ binary.ByteOrder) (Request, error) {
	return &GetInputFocus{}, nil
}

func (r *GetInputFocus) Opcode() uint8 { return OpGetInputFocus }

func (r *GetInputFocus) Handle(ctx *Context, w io.Writer, seq uint16) error {
	rep := newReply(ctx.Order, seq, xproto.InputFocusPointerRoot, 0)
	rep.put32(8, ctx.Resources.RootID())
	return rep.writeTo(w)
}

// NoOperation does nothing and has no reply.
type NoOperation struct{}

func readNoOperation(_ []byte, _ uint8, _ binary.ByteOrder) (Request, error) {
	return &NoOperation{}, nil
}

func (r *NoOperation) Opcode() uint8 { return OpNoOperation }

func (r *NoOperation) Handle(*Context, io.Writer, uint16) error { return nil }
