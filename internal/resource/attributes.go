package resource

import (
	"errors"

	"github.com/BurntSushi/xgb/xproto"
)

// ErrValueListShort is returned when a value-mask names more values than
// the list carries.
var ErrValueListShort = errors.New("value list shorter than value mask")

// WindowAttributes stores a window's presentation hints.
type WindowAttributes struct {
	BackgroundPixmap   uint32
	BackgroundPixel    uint32
	BorderPixmap       uint32
	BorderPixel        uint32
	BitGravity         uint8
	WinGravity         uint8
	BackingStore       uint8
	BackingPlanes      uint32
	BackingPixel       uint32
	OverrideRedirect   bool
	SaveUnder          bool
	EventMask          uint32
	DoNotPropagateMask uint32
	Colormap           uint32
	Cursor             uint32

	Visual       uint32
	Class        uint16
	MapInstalled bool
	MapState     uint8
}

// DefaultAttributes returns the attributes of a freshly created window.
func DefaultAttributes() WindowAttributes {
	return WindowAttributes{
		BackgroundPixmap: xproto.BackPixmapNone,
		BitGravity:       xproto.GravityBitForget,
		WinGravity:       xproto.GravityNorthWest,
		BackingStore:     xproto.BackingStoreNotUseful,
		BackingPlanes:    0xFFFFFFFF,
		Class:            xproto.WindowClassInputOutput,
		MapState:         xproto.MapStateUnmapped,
	}
}

// Apply sets the attributes selected by mask from values, which are
// ordered by increasing mask bit. Bits outside the attribute set are
// ignored.
func (a *WindowAttributes) Apply(mask uint32, values []uint32) error {
	fields := []struct {
		bit uint32
		set func(v uint32)
	}{
		{xproto.CwBackPixmap, func(v uint32) { a.BackgroundPixmap = v }},
		{xproto.CwBackPixel, func(v uint32) { a.BackgroundPixel = v }},
		{xproto.CwBorderPixmap, func(v uint32) { a.BorderPixmap = v }},
		{xproto.CwBorderPixel, func(v uint32) { a.BorderPixel = v }},
		{xproto.CwBitGravity, func(v uint32) { a.BitGravity = uint8(v) }},
		{xproto.CwWinGravity, func(v uint32) { a.WinGravity = uint8(v) }},
		{xproto.CwBackingStore, func(v uint32) { a.BackingStore = uint8(v) }},
		{xproto.CwBackingPlanes, func(v uint32) { a.BackingPlanes = v }},
		{xproto.CwBackingPixel, func(v uint32) { a.BackingPixel = v }},
		{xproto.CwOverrideRedirect, func(v uint32) { a.OverrideRedirect = v != 0 }},
		{xproto.CwSaveUnder, func(v uint32) { a.SaveUnder = v != 0 }},
		{xproto.CwEventMask, func(v uint32) { a.EventMask = v }},
		{xproto.CwDontPropagate, func(v uint32) { a.DoNotPropagateMask = v }},
		{xproto.CwColormap, func(v uint32) { a.Colormap = v }},
		{xproto.CwCursor, func(v uint32) { a.Cursor = v }},
	}

	// A short list must leave the attributes untouched
	want := 0
	for _, f := range fields {
		if mask&f.bit != 0 {
			want++
		}
	}
	if len(values) < want {
		return ErrValueListShort
	}

	i := 0
	for _, f := range fields {
		if mask&f.bit == 0 {
			continue
		}
		f.set(values[i])
		i++
	}
	return nil
}
