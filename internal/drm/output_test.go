package drm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func loadOutput(t *testing.T, k *fakeKernel, id uint32) *Output {
	t.Helper()
	conn, err := LoadConnector(k, id)
	require.NoError(t, err)
	require.NotNil(t, conn)
	out := NewOutput(conn)
	require.Equal(t, StateLoaded, out.State())
	return out
}

func TestOutputBind(t *testing.T) {
	k := newFakeKernel()

	hdmi := loadOutput(t, k, connHDMI)
	assert.Equal(t, StateBound, hdmi.Bind(k))
	crtc, fb, mode, ok := hdmi.Binding()
	require.True(t, ok)
	assert.Equal(t, uint32(crtcA), crtc)
	assert.Equal(t, scanoutFB, fb)
	assert.Equal(t, mode1080, mode)

	dp := loadOutput(t, k, connDP)
	assert.Equal(t, StateNoCRTC, dp.Bind(k))
	_, _, _, ok = dp.Binding()
	assert.False(t, ok)
}

func TestOutputBindIdleCRTC(t *testing.T) {
	k := newFakeKernel()
	k.crtcs[crtcA] = CRTC{ID: crtcA, ModeValid: true, Mode: mode1080}

	out := loadOutput(t, k, connHDMI)
	assert.Equal(t, StateNoCRTC, out.Bind(k), "no framebuffer")
}

func TestUnloadedOutput(t *testing.T) {
	k := newFakeKernel()
	out := NewOutput(nil)
	assert.Equal(t, StateUnloaded, out.State())
	assert.Equal(t, StateUnloaded, out.Bind(k))
}

func TestPageFlip(t *testing.T) {
	k := newFakeKernel()
	out := loadOutput(t, k, connHDMI)
	out.Bind(k)

	require.NoError(t, PageFlip(k, out, crtcA, 100))
	assert.Equal(t, PageFlipRequest{
		CRTCID:        crtcA,
		FramebufferID: 100,
		Flags:         PageFlipEvent,
		UserData:      connHDMI,
	}, k.lastFlip)

	_, fb, _, _ := out.Binding()
	assert.Equal(t, FramebufferID(100), fb)
}

func TestPageFlipRequiresBinding(t *testing.T) {
	k := newFakeKernel()

	idle := loadOutput(t, k, connDP)
	idle.Bind(k)
	assert.ErrorIs(t, PageFlip(k, idle, crtcB, 100), ErrNotBound)

	bound := loadOutput(t, k, connHDMI)
	bound.Bind(k)
	assert.ErrorIs(t, PageFlip(k, bound, crtcB, 100), ErrNotBound, "wrong CRTC")

	assert.Zero(t, k.flipCalls)
}

func TestPageFlipBusy(t *testing.T) {
	k := newFakeKernel()
	out := loadOutput(t, k, connHDMI)
	out.Bind(k)
	k.flipErr = unix.EBUSY

	err := PageFlip(k, out, crtcA, 100)
	assert.ErrorIs(t, err, ErrFlipPending)
	assert.ErrorIs(t, err, unix.EBUSY)

	_, fb, _, _ := out.Binding()
	assert.Equal(t, scanoutFB, fb, "rejected flip keeps the old buffer")
}

func scannedDevice(t *testing.T, k *fakeKernel) *Device {
	t.Helper()
	dev := NewDevice(k, nil)
	snaps := dev.Scan()
	require.Len(t, snaps, 2)
	return dev
}

func stateOf(t *testing.T, dev *Device, id uint32) OutputSnapshot {
	t.Helper()
	for _, s := range dev.Snapshots() {
		if s.ConnectorID == id {
			return s
		}
	}
	t.Fatalf("no output %d", id)
	return OutputSnapshot{}
}

func TestDeviceScan(t *testing.T) {
	k := newFakeKernel()
	dev := scannedDevice(t, k)

	hdmi := stateOf(t, dev, connHDMI)
	assert.Equal(t, "HDMI-A-1", hdmi.Name)
	assert.True(t, hdmi.Bound())
	assert.Equal(t, uint32(crtcA), hdmi.CRTCID)
	require.NotNil(t, hdmi.Mode)
	assert.Equal(t, mode1080, *hdmi.Mode)

	dp := stateOf(t, dev, connDP)
	assert.Equal(t, "DP-1", dp.Name)
	assert.Equal(t, StateNoCRTC, dp.State)
	assert.Nil(t, dp.Mode)
}

func TestSetModePicksFreeCRTC(t *testing.T) {
	k := newFakeKernel()
	dev := scannedDevice(t, k)

	require.NoError(t, dev.SetMode(connDP, mode1440, 7))
	assert.Equal(t, 1, k.setCalls)
	assert.Equal(t, uint32(crtcB), k.lastCommit.CRTCID, "crtcA is driving HDMI")
	assert.Equal(t, []uint32{connDP}, k.lastCommit.Connectors)
	assert.Equal(t, FramebufferID(7), k.lastCommit.FramebufferID)
	assert.Equal(t, mode1440, k.lastCommit.Mode)

	dp := stateOf(t, dev, connDP)
	assert.True(t, dp.Bound())
	assert.Equal(t, uint32(crtcB), dp.CRTCID)

	// A rescan reads the same binding back from the hardware
	dev.Scan()
	assert.Equal(t, uint32(crtcB), stateOf(t, dev, connDP).CRTCID)
}

func TestSetModeKeepsCurrentCRTC(t *testing.T) {
	k := newFakeKernel()
	dev := scannedDevice(t, k)

	require.NoError(t, dev.SetMode(connHDMI, mode720, scanoutFB))
	assert.Equal(t, uint32(crtcA), k.lastCommit.CRTCID)
	assert.Equal(t, mode720, *stateOf(t, dev, connHDMI).Mode)
}

func TestSetModeErrors(t *testing.T) {
	tests := []struct {
		name    string
		conn    uint32
		mode    ModeInfo
		setup   func(k *fakeKernel)
		wantErr error
		calls   int
	}{
		{
			name:    "mode not listed",
			conn:    connDP,
			mode:    mode720,
			wantErr: ErrModeNotListed,
		},
		{
			name:    "unknown output",
			conn:    404,
			mode:    mode1080,
			wantErr: ErrNoSuchOutput,
		},
		{
			name: "no free CRTC",
			conn: connDP,
			mode: mode1440,
			setup: func(k *fakeKernel) {
				enc := k.encoders[encDP]
				enc.PossibleCRTCs = 0b01
				k.encoders[encDP] = enc
			},
			wantErr: ErrNoCRTC,
		},
		{
			name:    "kernel rejects mode",
			conn:    connDP,
			mode:    mode1440,
			setup:   func(k *fakeKernel) { k.setErr = unix.EINVAL },
			wantErr: ErrModeRejected,
			calls:   1,
		},
		{
			name:    "kernel rejects range",
			conn:    connDP,
			mode:    mode1440,
			setup:   func(k *fakeKernel) { k.setErr = unix.ERANGE },
			wantErr: ErrModeRejected,
			calls:   1,
		},
		{
			name:    "framebuffer too small for mode",
			conn:    connDP,
			mode:    mode1440,
			setup:   func(k *fakeKernel) { k.setErr = unix.ENOSPC },
			wantErr: ErrModeRejected,
			calls:   1,
		},
		{
			name:    "other kernel failure",
			conn:    connDP,
			mode:    mode1440,
			setup:   func(k *fakeKernel) { k.setErr = unix.EIO },
			wantErr: unix.EIO,
			calls:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := newFakeKernel()
			dev := scannedDevice(t, k)
			if tt.setup != nil {
				tt.setup(k)
			}

			err := dev.SetMode(tt.conn, tt.mode, 7)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.calls, k.setCalls)
			assert.Equal(t, StateNoCRTC, stateOf(t, dev, connDP).State, "failure leaves the output unbound")
		})
	}
}

func TestSetModeEIOIsNotRejection(t *testing.T) {
	k := newFakeKernel()
	dev := scannedDevice(t, k)
	k.setErr = unix.EIO

	assert.NotErrorIs(t, dev.SetMode(connDP, mode1440, 7), ErrModeRejected)
}

func TestSwitchMode(t *testing.T) {
	k := newFakeKernel()
	dev := scannedDevice(t, k)

	require.NoError(t, dev.SwitchMode(connHDMI, "1280x720", 0))
	assert.Equal(t, mode720, k.lastCommit.Mode)
	assert.Equal(t, scanoutFB, k.lastCommit.FramebufferID)

	assert.ErrorIs(t, dev.SwitchMode(connHDMI, "1280x720", 75), ErrModeNotListed)
	assert.ErrorIs(t, dev.SwitchMode(connDP, "2560x1440", 0), ErrNoFramebuffer)
}

func TestSwitchModeLargerThanFramebuffer(t *testing.T) {
	k := newFakeKernel()
	k.connectors[connHDMI].modes = []ModeInfo{mode1080, mode720, mode1440}
	dev := scannedDevice(t, k)

	err := dev.SwitchMode(connHDMI, "2560x1440", 0)
	assert.ErrorIs(t, err, ErrFramebufferTooSmall)
	assert.ErrorIs(t, err, ErrModeRejected)
	assert.Zero(t, k.setCalls, "no commit is attempted")

	// The framebuffer keeps its size across a rescan at the smaller mode
	require.NoError(t, dev.SwitchMode(connHDMI, "1280x720", 0))
	dev.Scan()
	require.NoError(t, dev.SwitchMode(connHDMI, "1920x1080", 0))
}

func TestDevicePageFlip(t *testing.T) {
	k := newFakeKernel()
	dev := scannedDevice(t, k)

	assert.ErrorIs(t, dev.PageFlip(connDP, crtcB, 5), ErrNotBound)
	require.NoError(t, dev.PageFlip(connHDMI, crtcA, 5))
	assert.Equal(t, FramebufferID(5), stateOf(t, dev, connHDMI).FramebufferID)
	assert.ErrorIs(t, dev.PageFlip(404, crtcA, 5), ErrNoSuchOutput)
}
