package drm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIoctlNumbers(t *testing.T) {
	tests := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"GETRESOURCES", ioctlModeGetResources, 0xC04064A0},
		{"GETCRTC", ioctlModeGetCRTC, 0xC06864A1},
		{"SETCRTC", ioctlModeSetCRTC, 0xC06864A2},
		{"GETENCODER", ioctlModeGetEncoder, 0xC01464A6},
		{"GETCONNECTOR", ioctlModeGetConnector, 0xC05064A7},
		{"PAGE_FLIP", ioctlModePageFlip, 0xC01864B0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.got, tt.name)
	}
}

func TestModeInfoEncoding(t *testing.T) {
	b := make([]byte, modeInfoSize)
	mode1080.marshal(b)
	assert.Equal(t, mode1080, unmarshalModeInfo(b))

	long := mode720
	long.Name = strings.Repeat("x", 40)
	long.marshal(b)
	got := unmarshalModeInfo(b)
	assert.Len(t, got.Name, modeNameLen-1)
	assert.Zero(t, b[36+modeNameLen-1], "name stays NUL terminated")
}

func TestUnmarshalCRTC(t *testing.T) {
	b := make([]byte, crtcSize)
	ne.PutUint32(b[12:], crtcA)
	ne.PutUint32(b[16:], uint32(scanoutFB))
	ne.PutUint32(b[28:], 256)
	ne.PutUint32(b[32:], 1)
	mode1080.marshal(b[36:])

	crtc := unmarshalCRTC(b)
	assert.Equal(t, uint32(crtcA), crtc.ID)
	assert.Equal(t, scanoutFB, crtc.FramebufferID)
	assert.Equal(t, uint32(256), crtc.GammaSize)
	assert.True(t, crtc.ModeValid)
	assert.Equal(t, mode1080, crtc.Mode)
}

func TestPageFlipRequestLayout(t *testing.T) {
	r := PageFlipRequest{CRTCID: crtcA, FramebufferID: 7, Flags: PageFlipEvent, UserData: connHDMI}
	b := r.marshal()

	assert.Len(t, b, pageFlipSize)
	assert.Equal(t, uint32(crtcA), ne.Uint32(b[0:]))
	assert.Equal(t, uint32(7), ne.Uint32(b[4:]))
	assert.Equal(t, uint32(PageFlipEvent), ne.Uint32(b[8:]))
	assert.Zero(t, ne.Uint32(b[12:]))
	assert.Equal(t, uint64(connHDMI), ne.Uint64(b[16:]))
}

func TestConnectorName(t *testing.T) {
	assert.Equal(t, "HDMI-A-1", ConnectorName(11, 1))
	assert.Equal(t, "eDP-2", ConnectorName(14, 2))
	assert.Equal(t, "Unknown-1", ConnectorName(99, 1))
}
