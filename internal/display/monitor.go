// Package display turns output driver snapshots into the monitor layout
// seen by clients and keeps the root window sized to the primary monitor.
package display

import (
	"sync"

	"github.com/bnema/xkms/internal/drm"
	"github.com/bnema/xkms/internal/logger"
)

// Monitor represents a physical display
type Monitor struct {
	ID        uint32 `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	X         int32  `json:"x" yaml:"x"` // Position in root window coordinates
	Y         int32  `json:"y" yaml:"y"`
	Width     int32  `json:"width" yaml:"width"`
	Height    int32  `json:"height" yaml:"height"`
	MMWidth   uint32 `json:"mm_width" yaml:"mm_width"`
	MMHeight  uint32 `json:"mm_height" yaml:"mm_height"`
	RefreshHz uint32 `json:"refresh_hz" yaml:"refresh_hz"`
	Primary   bool   `json:"primary" yaml:"primary"`
	Bound     bool   `json:"bound" yaml:"bound"`
}

// Bounds returns the monitor's boundaries
func (m *Monitor) Bounds() (x1, y1, x2, y2 int32) {
	return m.X, m.Y, m.X + m.Width, m.Y + m.Height
}

// Contains checks if a point is within this monitor
func (m *Monitor) Contains(x, y int32) bool {
	return x >= m.X && x < m.X+m.Width && y >= m.Y && y < m.Y+m.Height
}

// RootResizer is the part of the resource store the display drives.
type RootResizer interface {
	ResizeRoot(width, height uint16)
}

// Display tracks the monitor layout
type Display struct {
	mu       sync.RWMutex
	monitors []*Monitor
	root     RootResizer
	onChange func([]Monitor)
}

// New creates a display that resizes root whenever the primary monitor's
// mode changes. root may be nil.
func New(root RootResizer) *Display {
	return &Display{root: root}
}

// SetOnChange sets the callback run with the new layout after every Apply
func (d *Display) SetOnChange(fn func([]Monitor)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onChange = fn
}

// Apply replaces the layout with the connected outputs in snaps. Bound
// monitors are placed left to right in connector order; unbound ones
// report their preferred mode and sit at the origin.
func (d *Display) Apply(snaps []drm.OutputSnapshot) {
	monitors := make([]*Monitor, 0, len(snaps))
	var x int32
	for _, s := range snaps {
		if !s.Connected() {
			continue
		}
		m := &Monitor{
			ID:       s.ConnectorID,
			Name:     s.Name,
			MMWidth:  s.MMWidth,
			MMHeight: s.MMHeight,
			Bound:    s.Bound(),
		}

		mode := s.Mode
		if mode == nil && len(s.Modes) > 0 {
			mode = &s.Modes[0]
		}
		if mode != nil {
			m.Width = int32(mode.HDisplay)
			m.Height = int32(mode.VDisplay)
			m.RefreshHz = mode.VRefresh
		}
		if m.Bound {
			m.X = x
			x += m.Width
		}
		monitors = append(monitors, m)
	}
	determinePrimaryMonitor(monitors)

	d.mu.Lock()
	d.monitors = monitors
	notify := d.onChange
	d.mu.Unlock()

	if p := primary(monitors); p != nil && p.Bound && d.root != nil {
		logger.Debug("Resizing root window", "monitor", p.Name, "width", p.Width, "height", p.Height)
		d.root.ResizeRoot(uint16(p.Width), uint16(p.Height))
	}
	if notify != nil {
		notify(d.Monitors())
	}
}

// Monitors returns a copy of the current layout
func (d *Display) Monitors() []Monitor {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Monitor, len(d.monitors))
	for i, m := range d.monitors {
		out[i] = *m
	}
	return out
}

// Primary returns the primary monitor
func (d *Display) Primary() (Monitor, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if p := primary(d.monitors); p != nil {
		return *p, true
	}
	return Monitor{}, false
}

// MonitorAt returns the monitor containing the given coordinates
func (d *Display) MonitorAt(x, y int32) (Monitor, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, m := range d.monitors {
		if m.Bound && m.Contains(x, y) {
			return *m, true
		}
	}
	return Monitor{}, false
}

func primary(monitors []*Monitor) *Monitor {
	for _, m := range monitors {
		if m.Primary {
			return m
		}
	}
	return nil
}

// determinePrimaryMonitor marks the first bound monitor as primary, with
// fallback to the first connected one
func determinePrimaryMonitor(monitors []*Monitor) {
	for _, monitor := range monitors {
		monitor.Primary = false
	}

	for _, monitor := range monitors {
		if monitor.Bound {
			monitor.Primary = true
			return
		}
	}

	if len(monitors) > 0 {
		monitors[0].Primary = true
	}
}
