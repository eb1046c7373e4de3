package protocol

import (
	"testing"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createBody(id, parent uint32, x, y int16, w, h, border, class uint16, mask uint32, values ...uint32) []byte {
	b := words(id, parent)
	for _, v := range []uint16{uint16(x), uint16(y), w, h, border, class} {
		b = le.AppendUint16(b, v)
	}
	b = le.AppendUint32(b, 0) // visual: copy from parent
	b = le.AppendUint32(b, mask)
	return append(b, words(values...)...)
}

func geometry(t *testing.T, ctx *Context, id uint32) (depth uint8, x, y int16, w, h, border uint16) {
	t.Helper()
	out := dispatch(t, ctx, 1, OpGetGeometry, 0, words(id))
	require.Len(t, out, HeaderSize)
	require.Equal(t, uint8(ReplyTypeReply), out[0])
	return out[1], int16(le.Uint16(out[12:])), int16(le.Uint16(out[14:])),
		le.Uint16(out[16:]), le.Uint16(out[18:]), le.Uint16(out[20:])
}

func TestCreateWindow(t *testing.T) {
	ctx := newTestContext(t)
	const win = testBase + 1

	out := dispatch(t, ctx, 1, OpCreateWindow, 0,
		createBody(win, testRoot, 10, 20, 300, 200, 2, xproto.WindowClassInputOutput,
			xproto.CwBackPixel|xproto.CwOverrideRedirect, 0xFF00FF, 1))
	assert.Empty(t, out)

	depth, x, y, w, h, border := geometry(t, ctx, win)
	assert.Equal(t, uint8(24), depth, "depth copied from parent")
	assert.Equal(t, int16(10), x)
	assert.Equal(t, int16(20), y)
	assert.Equal(t, uint16(300), w)
	assert.Equal(t, uint16(200), h)
	assert.Equal(t, uint16(2), border)

	out = dispatch(t, ctx, 2, OpGetWindowAttributes, 0, words(win))
	require.Len(t, out, HeaderSize+12)
	assert.Equal(t, uint32(3), le.Uint32(out[4:]))
	assert.Equal(t, uint32(testVisual), le.Uint32(out[8:]))
	assert.Equal(t, uint16(xproto.WindowClassInputOutput), le.Uint16(out[12:]))
	assert.Equal(t, uint8(xproto.MapStateUnmapped), out[26])
	assert.Equal(t, uint8(1), out[27], "override redirect")
}

func TestCreateWindowErrors(t *testing.T) {
	tests := []struct {
		name  string
		depth uint8
		body  []byte
		code  uint8
	}{
		{
			name: "id outside client range",
			body: createBody(0x42, testRoot, 0, 0, 10, 10, 0, 1, 0),
			code: xproto.BadIDChoice,
		},
		{
			name: "unknown parent",
			body: createBody(testBase+1, 0xdead, 0, 0, 10, 10, 0, 1, 0),
			code: xproto.BadWindow,
		},
		{
			name: "zero width",
			body: createBody(testBase+1, testRoot, 0, 0, 0, 10, 0, 1, 0),
			code: xproto.BadValue,
		},
		{
			name: "bad class",
			body: createBody(testBase+1, testRoot, 0, 0, 10, 10, 0, 7, 0),
			code: xproto.BadValue,
		},
		{
			name: "value list shorter than mask",
			body: createBody(testBase+1, testRoot, 0, 0, 10, 10, 0, 1, xproto.CwBackPixel|xproto.CwBorderPixel, 1),
			code: xproto.BadLength,
		},
		{
			name: "input only with border",
			body: createBody(testBase+1, testRoot, 0, 0, 10, 10, 1, xproto.WindowClassInputOnly, 0),
			code: xproto.BadMatch,
		},
		{
			name:  "input only with depth",
			depth: 24,
			body:  createBody(testBase+1, testRoot, 0, 0, 10, 10, 0, xproto.WindowClassInputOnly, 0),
			code:  xproto.BadMatch,
		},
		{
			name:  "depth differs from parent with copied visual",
			depth: 8,
			body:  createBody(testBase+1, testRoot, 0, 0, 10, 10, 0, 1, 0),
			code:  xproto.BadMatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newTestContext(t)
			out := dispatch(t, ctx, 1, OpCreateWindow, tt.depth, tt.body)
			requireError(t, out, tt.code, OpCreateWindow)
		})
	}
}

func TestCreateWindowInputOnly(t *testing.T) {
	ctx := newTestContext(t)
	const input, child = testBase + 1, testBase + 2
	out := dispatch(t, ctx, 1, OpCreateWindow, 0, createBody(input, testRoot, 0, 0, 10, 10, 0, xproto.WindowClassInputOnly, 0))
	assert.Empty(t, out)

	depth, _, _, _, _, _ := geometry(t, ctx, input)
	assert.Equal(t, uint8(0), depth)

	// Children of an InputOnly window copy its class
	assert.Empty(t, dispatch(t, ctx, 2, OpCreateWindow, 0, createBody(child, input, 0, 0, 5, 5, 0, 0, 0)))
	requireError(t, dispatch(t, ctx, 3, OpCreateWindow, 0, createBody(child+1, input, 0, 0, 5, 5, 0, 1, 0)), xproto.BadMatch, OpCreateWindow)
}

func TestCreateWindowDuplicateID(t *testing.T) {
	ctx := newTestContext(t)
	body := createBody(testBase+1, testRoot, 0, 0, 10, 10, 0, 1, 0)

	assert.Empty(t, dispatch(t, ctx, 1, OpCreateWindow, 0, body))
	requireError(t, dispatch(t, ctx, 2, OpCreateWindow, 0, body), xproto.BadIDChoice, OpCreateWindow)
}

func TestMapAndUnmap(t *testing.T) {
	ctx := newTestContext(t)
	const parent, child = testBase + 1, testBase + 2
	dispatch(t, ctx, 1, OpCreateWindow, 0, createBody(parent, testRoot, 0, 0, 10, 10, 0, 1, 0))
	dispatch(t, ctx, 2, OpCreateWindow, 0, createBody(child, parent, 0, 0, 5, 5, 0, 1, 0))

	mapState := func(id uint32) uint8 {
		out := dispatch(t, ctx, 9, OpGetWindowAttributes, 0, words(id))
		require.Len(t, out, HeaderSize+12)
		return out[26]
	}

	assert.Empty(t, dispatch(t, ctx, 3, OpMapWindow, 0, words(child)))
	assert.Equal(t, uint8(xproto.MapStateUnviewable), mapState(child), "parent is unmapped")

	dispatch(t, ctx, 4, OpMapWindow, 0, words(parent))
	assert.Equal(t, uint8(xproto.MapStateViewable), mapState(parent))
	assert.Equal(t, uint8(xproto.MapStateViewable), mapState(child), "mapping the parent makes the child viewable")

	dispatch(t, ctx, 5, OpUnmapWindow, 0, words(parent))
	assert.Equal(t, uint8(xproto.MapStateUnmapped), mapState(parent))
	assert.Equal(t, uint8(xproto.MapStateUnviewable), mapState(child), "unmapping the parent hides the child")

	// The root window stays viewable
	dispatch(t, ctx, 6, OpUnmapWindow, 0, words(testRoot))
	assert.Equal(t, uint8(xproto.MapStateViewable), mapState(testRoot))

	requireError(t, dispatch(t, ctx, 7, OpMapWindow, 0, words(0xdead)), xproto.BadWindow, OpMapWindow)
}

func TestDestroyWindow(t *testing.T) {
	ctx := newTestContext(t)
	const parent, child = testBase + 1, testBase + 2
	dispatch(t, ctx, 1, OpCreateWindow, 0, createBody(parent, testRoot, 0, 0, 10, 10, 0, 1, 0))
	dispatch(t, ctx, 2, OpCreateWindow, 0, createBody(child, parent, 0, 0, 5, 5, 0, 1, 0))

	assert.Empty(t, dispatch(t, ctx, 3, OpDestroyWindow, 0, words(parent)))
	assert.False(t, ctx.Resources.Exists(parent))
	assert.False(t, ctx.Resources.Exists(child))

	assert.Empty(t, dispatch(t, ctx, 4, OpDestroyWindow, 0, words(testRoot)))
	assert.True(t, ctx.Resources.Exists(testRoot))

	requireError(t, dispatch(t, ctx, 5, OpDestroyWindow, 0, words(parent)), xproto.BadWindow, OpDestroyWindow)
}

func configureBody(id uint32, mask uint16, values ...uint32) []byte {
	b := le.AppendUint32(nil, id)
	b = le.AppendUint16(b, mask)
	b = append(b, 0, 0)
	return append(b, words(values...)...)
}

func TestConfigureWindow(t *testing.T) {
	ctx := newTestContext(t)
	const win = testBase + 1
	dispatch(t, ctx, 1, OpCreateWindow, 0, createBody(win, testRoot, 0, 0, 10, 10, 0, 1, 0))

	mask := uint16(xproto.ConfigWindowX | xproto.ConfigWindowY | xproto.ConfigWindowWidth |
		xproto.ConfigWindowBorderWidth | xproto.ConfigWindowStackMode)
	neg := int16(-5)
	out := dispatch(t, ctx, 2, OpConfigureWindow, 0,
		configureBody(win, mask, uint32(uint16(neg)), 40, 640, 3, xproto.StackModeAbove))
	assert.Empty(t, out)

	_, x, y, w, h, border := geometry(t, ctx, win)
	assert.Equal(t, int16(-5), x)
	assert.Equal(t, int16(40), y)
	assert.Equal(t, uint16(640), w)
	assert.Equal(t, uint16(10), h)
	assert.Equal(t, uint16(3), border)
}

func TestConfigureRootKeepsOrigin(t *testing.T) {
	ctx := newTestContext(t)
	mask := uint16(xproto.ConfigWindowX | xproto.ConfigWindowY | xproto.ConfigWindowWidth | xproto.ConfigWindowHeight)

	out := dispatch(t, ctx, 1, OpConfigureWindow, 0, configureBody(testRoot, mask, 10, 20, 800, 600))
	assert.Empty(t, out)

	_, x, y, w, h, _ := geometry(t, ctx, testRoot)
	assert.Equal(t, int16(0), x)
	assert.Equal(t, int16(0), y)
	assert.Equal(t, uint16(800), w)
	assert.Equal(t, uint16(600), h)
}

func TestConfigureWindowErrors(t *testing.T) {
	ctx := newTestContext(t)
	const win = testBase + 1
	dispatch(t, ctx, 1, OpCreateWindow, 0, createBody(win, testRoot, 0, 0, 10, 10, 0, 1, 0))

	out := dispatch(t, ctx, 2, OpConfigureWindow, 0, configureBody(win, 0x80, 1))
	requireError(t, out, xproto.BadValue, OpConfigureWindow)

	out = dispatch(t, ctx, 3, OpConfigureWindow, 0, configureBody(win, xproto.ConfigWindowWidth, 0))
	requireError(t, out, xproto.BadValue, OpConfigureWindow)

	out = dispatch(t, ctx, 4, OpConfigureWindow, 0, configureBody(win, xproto.ConfigWindowX|xproto.ConfigWindowY, 1))
	requireError(t, out, xproto.BadLength, OpConfigureWindow)

	// A failed request leaves the window untouched
	_, x, _, w, _, _ := geometry(t, ctx, win)
	assert.Equal(t, int16(0), x)
	assert.Equal(t, uint16(10), w)
}

func TestGetGeometryUnknownDrawable(t *testing.T) {
	ctx := newTestContext(t)
	out := dispatch(t, ctx, 1, OpGetGeometry, 0, words(0xdead))
	requireError(t, out, xproto.BadWindow, OpGetGeometry)
	assert.Equal(t, uint32(0xdead), le.Uint32(out[4:]))
}
