package drm

import (
	"fmt"
	"slices"
)

// String formats the mode as WIDTHxHEIGHT@REFRESH.
func (m ModeInfo) String() string {
	return fmt.Sprintf("%dx%d@%d", m.HDisplay, m.VDisplay, m.VRefresh)
}

// OutputSnapshot is a copy of an output's state, safe to hand to other
// goroutines.
type OutputSnapshot struct {
	ConnectorID   uint32        `json:"connector_id" yaml:"connector_id"`
	Name          string        `json:"name" yaml:"name"`
	Connection    uint32        `json:"connection" yaml:"connection"`
	MMWidth       uint32        `json:"mm_width" yaml:"mm_width"`
	MMHeight      uint32        `json:"mm_height" yaml:"mm_height"`
	Modes         []ModeInfo    `json:"modes" yaml:"modes"`
	State         State         `json:"state" yaml:"state"`
	CRTCID        uint32        `json:"crtc_id,omitempty" yaml:"crtc_id,omitempty"`
	FramebufferID FramebufferID `json:"framebuffer_id,omitempty" yaml:"framebuffer_id,omitempty"`
	Mode          *ModeInfo     `json:"mode,omitempty" yaml:"mode,omitempty"`
}

// Connected reports whether a sink is attached.
func (s OutputSnapshot) Connected() bool {
	return s.Connection == Connected
}

// Bound reports whether the output is being scanned out.
func (s OutputSnapshot) Bound() bool {
	return s.State == StateBound
}

func snapshot(out *Output) OutputSnapshot {
	conn := out.Connector.clone()
	s := OutputSnapshot{
		ConnectorID: conn.ID,
		Name:        conn.Name(),
		Connection:  conn.Connection,
		MMWidth:     conn.MMWidth,
		MMHeight:    conn.MMHeight,
		Modes:       conn.Modes,
		State:       out.state,
	}
	if crtc, fb, mode, ok := out.Binding(); ok {
		s.CRTCID = crtc
		s.FramebufferID = fb
		s.Mode = &mode
	}
	return s
}

// equalSnapshots reports whether two scans observed the same hardware
// state. Framebuffer ids are ignored since every flip changes them.
func equalSnapshots(a, b []OutputSnapshot) bool {
	return slices.EqualFunc(a, b, func(x, y OutputSnapshot) bool {
		if x.ConnectorID != y.ConnectorID || x.Connection != y.Connection ||
			x.State != y.State || x.CRTCID != y.CRTCID {
			return false
		}
		if (x.Mode == nil) != (y.Mode == nil) || (x.Mode != nil && *x.Mode != *y.Mode) {
			return false
		}
		return slices.Equal(x.Modes, y.Modes)
	})
}
