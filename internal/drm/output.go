package drm

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

var (
	ErrNoSuchOutput  = errors.New("no such output")
	ErrModeNotListed = errors.New("mode not listed by connector")
	ErrNoCRTC        = errors.New("no CRTC available for connector")
	ErrModeRejected  = errors.New("mode rejected by kernel")
	ErrNotBound      = errors.New("output not bound to CRTC")
	ErrFlipPending   = errors.New("page flip already pending")
)

// State is the lifecycle stage of an Output.
type State int

const (
	StateUnloaded State = iota
	StateLoaded
	StateNoCRTC
	StateBound
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	case StateNoCRTC:
		return "no-crtc"
	case StateBound:
		return "bound"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{StateUnloaded, StateLoaded, StateNoCRTC, StateBound} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown output state %q", text)
}

// Output tracks one connector and the pipeline currently driving it.
type Output struct {
	Connector *Connector

	state State
	crtc  uint32
	fb    FramebufferID
	mode  ModeInfo
}

// NewOutput wraps a loaded connector. A nil connector gives an unloaded
// output.
func NewOutput(conn *Connector) *Output {
	if conn == nil {
		return &Output{}
	}
	return &Output{Connector: conn, state: StateLoaded}
}

func (o *Output) State() State { return o.state }

// Binding returns the CRTC, framebuffer and mode of a bound output.
func (o *Output) Binding() (crtc uint32, fb FramebufferID, mode ModeInfo, ok bool) {
	if o.state != StateBound {
		return 0, 0, ModeInfo{}, false
	}
	return o.crtc, o.fb, o.mode, true
}

// Bind resolves the CRTC currently driving the connector. The output is
// bound only when that CRTC scans out a framebuffer with a valid mode.
func (o *Output) Bind(k Kernel) State {
	if o.state == StateUnloaded {
		return o.state
	}
	crtc, ok := ResolveCRTC(k, o.Connector)
	if !ok || crtc.FramebufferID == 0 || !crtc.ModeValid {
		o.unbind()
		return o.state
	}
	o.state = StateBound
	o.crtc = crtc.ID
	o.fb = crtc.FramebufferID
	o.mode = crtc.Mode
	return o.state
}

func (o *Output) unbind() {
	o.state = StateNoCRTC
	o.crtc = 0
	o.fb = 0
	o.mode = ModeInfo{}
}

// rejected reports kernel errors that mean the requested configuration is
// invalid rather than the call failing.
func rejected(err error) bool {
	return errors.Is(err, unix.EINVAL) || errors.Is(err, unix.ERANGE) || errors.Is(err, unix.ENOSPC)
}

// PageFlip schedules a swap to fb on crtc at the next vblank. It is legal
// only while the output is bound to crtc. The kernel is asked for a
// completion event tagged with the connector id.
func PageFlip(k Kernel, out *Output, crtc uint32, fb FramebufferID) error {
	if out.state != StateBound || out.crtc != crtc {
		return ErrNotBound
	}

	err := k.PageFlip(PageFlipRequest{
		CRTCID:        crtc,
		FramebufferID: fb,
		Flags:         PageFlipEvent,
		UserData:      uint64(out.Connector.ID),
	})
	if errors.Is(err, unix.EBUSY) {
		return fmt.Errorf("%w: %w", ErrFlipPending, err)
	}
	if err != nil {
		return fmt.Errorf("failed to flip connector %d: %w", out.Connector.ID, err)
	}

	out.fb = fb
	return nil
}
