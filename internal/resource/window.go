// Package resource holds the server-side model of windows and their
// properties shared by every client connection.
package resource

import (
	"sort"

	"github.com/BurntSushi/xgb/xproto"
)

// RootDepth is the depth of the root window.
const RootDepth = 24

// Rectangle is a window's position relative to its parent and its size.
type Rectangle struct {
	X      int16
	Y      int16
	Width  uint16
	Height uint16
}

// Property is a typed, named byte blob attached to a window.
type Property struct {
	// Type is the atom naming the semantic type of Data.
	Type uint32
	// Format is the bit width of each data unit: 8, 16 or 32.
	Format uint8
	Data   []byte
}

// Units returns the number of Format-sized items in Data.
func (p Property) Units() int {
	if p.Format == 0 {
		return 0
	}
	return len(p.Data) / int(p.Format/8)
}

func (p Property) clone() Property {
	p.Data = append([]byte(nil), p.Data...)
	return p
}

// Drawable is the geometry contract shared by renderable surfaces.
type Drawable interface {
	Depth() uint8
	X() int16
	Y() int16
	Width() uint16
	Height() uint16
	BorderWidth() uint16
}

// Window is a window to be rendered on screen.
type Window struct {
	id     uint32
	parent uint32
	root   bool

	depth       uint8
	rect        Rectangle
	borderWidth uint16

	// Keyed by the property's atom name
	properties map[string]Property

	Attributes WindowAttributes
}

var _ Drawable = (*Window)(nil)

// NewRootWindow creates the root window. It starts with a zero size and is
// resized once an output reports its mode.
func NewRootWindow(id, visual uint32) *Window {
	attrs := DefaultAttributes()
	attrs.Visual = visual
	attrs.MapState = xproto.MapStateViewable
	attrs.MapInstalled = true

	return &Window{
		id:         id,
		root:       true,
		depth:      RootDepth,
		properties: make(map[string]Property),
		Attributes: attrs,
	}
}

// NewWindow creates a regular child window.
func NewWindow(id, parent uint32, depth uint8, rect Rectangle, borderWidth uint16) *Window {
	return &Window{
		id:          id,
		parent:      parent,
		depth:       depth,
		rect:        rect,
		borderWidth: borderWidth,
		properties:  make(map[string]Property),
		Attributes:  DefaultAttributes(),
	}
}

func (w *Window) ID() uint32     { return w.id }
func (w *Window) Parent() uint32 { return w.parent }
func (w *Window) IsRoot() bool   { return w.root }

func (w *Window) Depth() uint8        { return w.depth }
func (w *Window) X() int16            { return w.rect.X }
func (w *Window) Y() int16            { return w.rect.Y }
func (w *Window) Width() uint16       { return w.rect.Width }
func (w *Window) Height() uint16      { return w.rect.Height }
func (w *Window) BorderWidth() uint16 { return w.borderWidth }

// Rectangle returns the position and size of the window.
func (w *Window) Rectangle() Rectangle {
	return w.rect
}

// SetRectangle sets the position and size of the window. The root window
// never moves: a rectangle with a nonzero offset is ignored for it.
func (w *Window) SetRectangle(r Rectangle) {
	if w.root && (r.X != 0 || r.Y != 0) {
		return
	}
	w.rect = r
}

// SetBorderWidth sets the border width. The root window has no border.
func (w *Window) SetBorderWidth(width uint16) {
	if w.root {
		return
	}
	w.borderWidth = width
}

// Property returns the property with the given name.
func (w *Window) Property(name string) (Property, bool) {
	p, ok := w.properties[name]
	if !ok {
		return Property{}, false
	}
	return p.clone(), true
}

// SetProperty creates or replaces the property with the given name.
func (w *Window) SetProperty(name string, p Property) {
	w.properties[name] = p.clone()
}

// DeleteProperty deletes the property with the given name. Deleting an
// absent property does nothing.
func (w *Window) DeleteProperty(name string) {
	delete(w.properties, name)
}

// PropertyNames returns the names of all properties in lexical order.
func (w *Window) PropertyNames() []string {
	names := make([]string, 0, len(w.properties))
	for name := range w.properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
