package drm

import (
	"errors"
	"fmt"

	"github.com/bnema/xkms/internal/logger"
)

// Device owns the outputs of one card. It is not safe for concurrent use:
// the Driver serializes all access on its own goroutine.
type Device struct {
	kernel  Kernel
	res     *Resources
	outputs []*Output

	// Size of each framebuffer, taken from the first mode seen scanning it out
	fbSizes map[FramebufferID]fbSize
}

type fbSize struct {
	width, height uint16
}

// NewDevice creates a device over k with the given resources. Outputs are
// loaded by Scan.
func NewDevice(k Kernel, res *Resources) *Device {
	return &Device{kernel: k, res: res, fbSizes: make(map[FramebufferID]fbSize)}
}

// Scan reloads the card resources and every connector, then resolves the
// current binding of each. If the resources cannot be reloaded the
// previous list is used.
func (d *Device) Scan() []OutputSnapshot {
	if res, err := LoadResources(d.kernel); err != nil {
		logger.Warn("Keeping previous resource list", "error", err)
	} else {
		d.res = res
	}

	conns := Scan(d.kernel, d.res)
	outputs := make([]*Output, 0, len(conns))
	for i := range conns {
		out := NewOutput(&conns[i])
		if out.Bind(d.kernel) == StateBound {
			d.noteFramebuffer(out.fb, out.mode)
		}
		outputs = append(outputs, out)
	}
	d.outputs = outputs
	return d.Snapshots()
}

func (d *Device) noteFramebuffer(fb FramebufferID, mode ModeInfo) {
	if _, ok := d.fbSizes[fb]; !ok {
		d.fbSizes[fb] = fbSize{width: mode.HDisplay, height: mode.VDisplay}
	}
}

// Snapshots returns copies of the current output state.
func (d *Device) Snapshots() []OutputSnapshot {
	snaps := make([]OutputSnapshot, 0, len(d.outputs))
	for _, out := range d.outputs {
		snaps = append(snaps, snapshot(out))
	}
	return snaps
}

func (d *Device) output(connID uint32) (*Output, error) {
	for _, out := range d.outputs {
		if out.Connector.ID == connID {
			return out, nil
		}
	}
	return nil, fmt.Errorf("connector %d: %w", connID, ErrNoSuchOutput)
}

// crtcInUse reports whether an output other than self is bound to crtc.
func (d *Device) crtcInUse(crtc uint32, self *Output) bool {
	for _, out := range d.outputs {
		if out != self && out.state == StateBound && out.crtc == crtc {
			return true
		}
	}
	return false
}

// pickCRTC chooses the CRTC a mode set on out will use: its current one,
// else the one its encoder is attached to, else the first free CRTC any
// of its encoders can drive.
func (d *Device) pickCRTC(out *Output) (uint32, error) {
	if out.state == StateBound {
		return out.crtc, nil
	}

	conn := out.Connector
	var encoders []Encoder
	if conn.EncoderID != 0 {
		if enc, err := d.kernel.GetEncoder(conn.EncoderID); err == nil {
			if enc.CRTCID != 0 && !d.crtcInUse(enc.CRTCID, out) {
				return enc.CRTCID, nil
			}
			encoders = append(encoders, enc)
		}
	}
	for _, id := range conn.Encoders {
		if id == conn.EncoderID {
			continue
		}
		enc, err := d.kernel.GetEncoder(id)
		if err != nil {
			continue
		}
		encoders = append(encoders, enc)
	}

	for _, enc := range encoders {
		for i, crtc := range d.res.CRTCs {
			if i >= 32 || enc.PossibleCRTCs&(1<<i) == 0 {
				continue
			}
			if !d.crtcInUse(crtc, out) {
				return crtc, nil
			}
		}
	}
	return 0, fmt.Errorf("connector %d: %w", conn.ID, ErrNoCRTC)
}

// SetMode programs mode on the output, scanning out fb. The mode must be
// one the connector listed.
func (d *Device) SetMode(connID uint32, mode ModeInfo, fb FramebufferID) error {
	out, err := d.output(connID)
	if err != nil {
		return err
	}
	return d.setMode(out, mode, fb)
}

func (d *Device) setMode(out *Output, mode ModeInfo, fb FramebufferID) error {
	if !out.Connector.HasMode(mode) {
		return fmt.Errorf("%w: %s", ErrModeNotListed, mode)
	}

	crtc, err := d.pickCRTC(out)
	if err != nil {
		return err
	}

	err = d.kernel.SetCRTC(CRTCCommit{
		CRTCID:        crtc,
		FramebufferID: fb,
		Connectors:    []uint32{out.Connector.ID},
		Mode:          mode,
	})
	if rejected(err) {
		return fmt.Errorf("%w: %w", ErrModeRejected, err)
	}
	if err != nil {
		return fmt.Errorf("failed to set mode on connector %d: %w", out.Connector.ID, err)
	}

	out.state = StateBound
	out.crtc = crtc
	out.fb = fb
	out.mode = mode
	d.noteFramebuffer(fb, mode)
	logger.Info("Mode set", "output", out.Connector.Name(), "mode", mode.String(), "crtc", crtc)
	return nil
}

// ErrNoFramebuffer is returned when a mode switch needs the output's
// current framebuffer and it has none.
var ErrNoFramebuffer = errors.New("output has no framebuffer")

// ErrFramebufferTooSmall is returned when a mode switch would scan out past
// the edge of the output's current framebuffer.
var ErrFramebufferTooSmall = errors.New("mode larger than current framebuffer")

// SwitchMode reprograms a bound output to the listed mode matching name,
// keeping its current framebuffer. A zero refresh matches any rate.
func (d *Device) SwitchMode(connID uint32, name string, refresh uint32) error {
	out, err := d.output(connID)
	if err != nil {
		return err
	}
	if out.state != StateBound {
		return fmt.Errorf("connector %d: %w", connID, ErrNoFramebuffer)
	}

	for _, m := range out.Connector.Modes {
		if m.Name != name || (refresh != 0 && m.VRefresh != refresh) {
			continue
		}
		if size, ok := d.fbSizes[out.fb]; ok && (m.HDisplay > size.width || m.VDisplay > size.height) {
			return fmt.Errorf("%w: %w: %s on %dx%d", ErrModeRejected, ErrFramebufferTooSmall, m, size.width, size.height)
		}
		return d.setMode(out, m, out.fb)
	}
	return fmt.Errorf("%w: %s", ErrModeNotListed, name)
}

// PageFlip swaps fb onto the output's CRTC at the next vblank.
func (d *Device) PageFlip(connID, crtc uint32, fb FramebufferID) error {
	out, err := d.output(connID)
	if err != nil {
		return err
	}
	return PageFlip(d.kernel, out, crtc, fb)
}
