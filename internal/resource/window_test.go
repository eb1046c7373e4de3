package resource

import (
	"testing"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootWindowRectangle(t *testing.T) {
	tests := []struct {
		name     string
		proposed Rectangle
		want     Rectangle
	}{
		{
			name:     "resize at origin",
			proposed: Rectangle{X: 0, Y: 0, Width: 1920, Height: 1080},
			want:     Rectangle{X: 0, Y: 0, Width: 1920, Height: 1080},
		},
		{
			name:     "nonzero x rejected",
			proposed: Rectangle{X: 10, Y: 0, Width: 800, Height: 600},
			want:     Rectangle{Width: 1024, Height: 768},
		},
		{
			name:     "nonzero y rejected",
			proposed: Rectangle{X: 0, Y: -5, Width: 800, Height: 600},
			want:     Rectangle{Width: 1024, Height: 768},
		},
		{
			name:     "zero size accepted",
			proposed: Rectangle{},
			want:     Rectangle{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := NewRootWindow(0x100, 0x21)
			root.SetRectangle(Rectangle{Width: 1024, Height: 768})

			root.SetRectangle(tt.proposed)
			assert.Equal(t, tt.want, root.Rectangle())
			assert.Equal(t, int16(0), root.X())
			assert.Equal(t, int16(0), root.Y())
		})
	}
}

func TestNewRootWindow(t *testing.T) {
	root := NewRootWindow(0x100, 0x21)

	assert.True(t, root.IsRoot())
	assert.Equal(t, uint8(RootDepth), root.Depth())
	assert.Equal(t, Rectangle{}, root.Rectangle())
	assert.Equal(t, uint32(0x21), root.Attributes.Visual)
	assert.Equal(t, uint8(xproto.MapStateViewable), root.Attributes.MapState)

	root.SetBorderWidth(3)
	assert.Equal(t, uint16(0), root.BorderWidth())
}

func TestChildWindowMoves(t *testing.T) {
	w := NewWindow(0x200001, 0x100, 24, Rectangle{X: 5, Y: 5, Width: 10, Height: 10}, 1)
	w.SetRectangle(Rectangle{X: -20, Y: 40, Width: 300, Height: 200})

	assert.Equal(t, Rectangle{X: -20, Y: 40, Width: 300, Height: 200}, w.Rectangle())
	assert.Equal(t, uint8(xproto.MapStateUnmapped), w.Attributes.MapState)
}

func TestPropertyRoundTrip(t *testing.T) {
	w := NewRootWindow(0x100, 0x21)
	p := Property{Type: xproto.AtomString, Format: 8, Data: []byte("xterm")}

	w.SetProperty("k", p)
	got, ok := w.Property("k")
	require.True(t, ok)
	assert.Equal(t, p, got)

	w.DeleteProperty("k")
	_, ok = w.Property("k")
	assert.False(t, ok)

	assert.NotPanics(t, func() { w.DeleteProperty("missing") })
}

func TestPropertyIsCopied(t *testing.T) {
	w := NewRootWindow(0x100, 0x21)
	data := []byte{1, 2, 3, 4}
	w.SetProperty("k", Property{Type: xproto.AtomCardinal, Format: 32, Data: data})

	data[0] = 9
	got, _ := w.Property("k")
	assert.Equal(t, byte(1), got.Data[0])

	got.Data[1] = 9
	again, _ := w.Property("k")
	assert.Equal(t, byte(2), again.Data[1])
	assert.Equal(t, 1, again.Units())
}

func TestPropertyOverwrite(t *testing.T) {
	w := NewRootWindow(0x100, 0x21)
	w.SetProperty("WM_NAME", Property{Type: xproto.AtomString, Format: 8, Data: []byte("one")})
	w.SetProperty("WM_NAME", Property{Type: xproto.AtomString, Format: 8, Data: []byte("two")})
	w.SetProperty("WM_CLASS", Property{Type: xproto.AtomString, Format: 8, Data: []byte("x\x00X\x00")})

	got, ok := w.Property("WM_NAME")
	require.True(t, ok)
	assert.Equal(t, []byte("two"), got.Data)
	assert.Equal(t, []string{"WM_CLASS", "WM_NAME"}, w.PropertyNames())
}

func TestAttributesApply(t *testing.T) {
	a := DefaultAttributes()

	err := a.Apply(xproto.CwBackPixel|xproto.CwOverrideRedirect|xproto.CwEventMask,
		[]uint32{0x00ff00, 1, xproto.EventMaskExposure})
	require.NoError(t, err)
	assert.Equal(t, uint32(0x00ff00), a.BackgroundPixel)
	assert.True(t, a.OverrideRedirect)
	assert.Equal(t, uint32(xproto.EventMaskExposure), a.EventMask)

	before := a
	err = a.Apply(xproto.CwBorderPixel|xproto.CwCursor, []uint32{7})
	assert.ErrorIs(t, err, ErrValueListShort)
	assert.Equal(t, before, a)
}
