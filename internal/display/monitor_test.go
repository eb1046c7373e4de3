package display

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/xkms/internal/drm"
)

type fakeRoot struct {
	calls         int
	width, height uint16
}

func (r *fakeRoot) ResizeRoot(width, height uint16) {
	r.calls++
	r.width, r.height = width, height
}

var (
	mode1080 = drm.ModeInfo{HDisplay: 1920, VDisplay: 1080, VRefresh: 60, Name: "1920x1080"}
	mode1440 = drm.ModeInfo{HDisplay: 2560, VDisplay: 1440, VRefresh: 144, Name: "2560x1440"}
)

func boundOutput(id uint32, name string, mode drm.ModeInfo) drm.OutputSnapshot {
	return drm.OutputSnapshot{
		ConnectorID: id,
		Name:        name,
		Connection:  drm.Connected,
		MMWidth:     510,
		MMHeight:    290,
		Modes:       []drm.ModeInfo{mode},
		State:       drm.StateBound,
		CRTCID:      40,
		Mode:        &mode,
	}
}

func idleOutput(id uint32, name string, modes ...drm.ModeInfo) drm.OutputSnapshot {
	return drm.OutputSnapshot{
		ConnectorID: id,
		Name:        name,
		Connection:  drm.Connected,
		Modes:       modes,
		State:       drm.StateNoCRTC,
	}
}

func TestPrimaryMonitorDetermination(t *testing.T) {
	tests := []struct {
		name            string
		snaps           []drm.OutputSnapshot
		expectedPrimary string
	}{
		{
			name:            "first bound output is primary",
			snaps:           []drm.OutputSnapshot{idleOutput(1, "DP-1", mode1440), boundOutput(2, "HDMI-A-1", mode1080)},
			expectedPrimary: "HDMI-A-1",
		},
		{
			name:            "first connected output when none is bound",
			snaps:           []drm.OutputSnapshot{idleOutput(1, "DP-1", mode1440), idleOutput(2, "HDMI-A-1", mode1080)},
			expectedPrimary: "DP-1",
		},
		{
			name: "disconnected outputs are ignored",
			snaps: []drm.OutputSnapshot{
				{ConnectorID: 1, Name: "eDP-1", Connection: drm.Disconnected},
				idleOutput(2, "HDMI-A-1", mode1080),
			},
			expectedPrimary: "HDMI-A-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(nil)
			d.Apply(tt.snaps)

			p, ok := d.Primary()
			require.True(t, ok)
			assert.Equal(t, tt.expectedPrimary, p.Name)

			primaries := 0
			for _, m := range d.Monitors() {
				if m.Primary {
					primaries++
				}
			}
			assert.Equal(t, 1, primaries)
		})
	}
}

func TestNoMonitors(t *testing.T) {
	root := &fakeRoot{}
	d := New(root)
	d.Apply(nil)

	_, ok := d.Primary()
	assert.False(t, ok)
	assert.Empty(t, d.Monitors())
	assert.Zero(t, root.calls)
}

func TestApplyResizesRoot(t *testing.T) {
	root := &fakeRoot{}
	d := New(root)

	d.Apply([]drm.OutputSnapshot{boundOutput(1, "HDMI-A-1", mode1080)})
	assert.Equal(t, 1, root.calls)
	assert.Equal(t, uint16(1920), root.width)
	assert.Equal(t, uint16(1080), root.height)

	d.Apply([]drm.OutputSnapshot{boundOutput(1, "HDMI-A-1", mode1440)})
	assert.Equal(t, uint16(2560), root.width)
	assert.Equal(t, uint16(1440), root.height)
}

func TestApplyIdlePrimaryKeepsRoot(t *testing.T) {
	root := &fakeRoot{}
	d := New(root)
	d.Apply([]drm.OutputSnapshot{idleOutput(1, "DP-1", mode1440)})

	assert.Zero(t, root.calls)
	p, ok := d.Primary()
	require.True(t, ok)
	assert.False(t, p.Bound)
	assert.Equal(t, int32(2560), p.Width, "preferred mode")
}

func TestLayoutAndLookup(t *testing.T) {
	d := New(nil)
	d.Apply([]drm.OutputSnapshot{
		boundOutput(1, "HDMI-A-1", mode1080),
		boundOutput(2, "DP-1", mode1440),
	})

	mons := d.Monitors()
	require.Len(t, mons, 2)
	assert.Equal(t, int32(0), mons[0].X)
	assert.Equal(t, int32(1920), mons[1].X)
	assert.Equal(t, uint32(144), mons[1].RefreshHz)

	m, ok := d.MonitorAt(2000, 100)
	require.True(t, ok)
	assert.Equal(t, "DP-1", m.Name)

	_, ok = d.MonitorAt(-1, 0)
	assert.False(t, ok)

	x1, y1, x2, y2 := mons[1].Bounds()
	assert.Equal(t, [4]int32{1920, 0, 4480, 1440}, [4]int32{x1, y1, x2, y2})
}

func TestMonitorsReturnsCopies(t *testing.T) {
	d := New(nil)
	d.Apply([]drm.OutputSnapshot{boundOutput(1, "HDMI-A-1", mode1080)})

	mons := d.Monitors()
	mons[0].Name = "changed"
	assert.Equal(t, "HDMI-A-1", d.Monitors()[0].Name)
}

func TestApplyNotifiesLayout(t *testing.T) {
	d := New(nil)

	var got [][]Monitor
	d.SetOnChange(func(m []Monitor) {
		// The layout is already visible when the callback runs
		assert.Equal(t, m, d.Monitors())
		got = append(got, m)
	})

	d.Apply([]drm.OutputSnapshot{boundOutput(1, "HDMI-A-1", mode1080)})
	d.Apply(nil)

	require.Len(t, got, 2)
	require.Len(t, got[0], 1)
	assert.Equal(t, "HDMI-A-1", got[0][0].Name)
	assert.True(t, got[0][0].Primary)
	assert.Empty(t, got[1])
}
