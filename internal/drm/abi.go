package drm

import (
	"bytes"
	"encoding/binary"
)

const (
	iocWrite = 1
	iocRead  = 2
)

// iowr builds a read/write DRM ioctl request number, _IOWR('d', nr, size).
func iowr(nr, size uintptr) uintptr {
	return uintptr(((iocRead | iocWrite) << 30) | (size << 16) | ('d' << 8) | nr)
}

// Record sizes of the uapi structures.
const (
	cardResSize      = 64
	crtcSize         = 104
	getEncoderSize   = 20
	getConnectorSize = 80
	pageFlipSize     = 24
	modeInfoSize     = 68
	modeNameLen      = 32
)

var (
	ioctlModeGetResources = iowr(0xA0, cardResSize)
	ioctlModeGetCRTC      = iowr(0xA1, crtcSize)
	ioctlModeSetCRTC      = iowr(0xA2, crtcSize)
	ioctlModeGetEncoder   = iowr(0xA6, getEncoderSize)
	ioctlModeGetConnector = iowr(0xA7, getConnectorSize)
	ioctlModePageFlip     = iowr(0xB0, pageFlipSize)
)

// PageFlipEvent asks the kernel to queue a completion event for a flip.
const PageFlipEvent = 0x1

var ne = binary.NativeEndian

// ModeInfo is a display timing, as listed by a connector.
type ModeInfo struct {
	Clock      uint32 `json:"clock" yaml:"clock"`
	HDisplay   uint16 `json:"hdisplay" yaml:"hdisplay"`
	HSyncStart uint16 `json:"hsync_start" yaml:"hsync_start"`
	HSyncEnd   uint16 `json:"hsync_end" yaml:"hsync_end"`
	HTotal     uint16 `json:"htotal" yaml:"htotal"`
	HSkew      uint16 `json:"hskew" yaml:"hskew"`
	VDisplay   uint16 `json:"vdisplay" yaml:"vdisplay"`
	VSyncStart uint16 `json:"vsync_start" yaml:"vsync_start"`
	VSyncEnd   uint16 `json:"vsync_end" yaml:"vsync_end"`
	VTotal     uint16 `json:"vtotal" yaml:"vtotal"`
	VScan      uint16 `json:"vscan" yaml:"vscan"`
	VRefresh   uint32 `json:"vrefresh" yaml:"vrefresh"`
	Flags      uint32 `json:"flags" yaml:"flags"`
	Type       uint32 `json:"type" yaml:"type"`
	Name       string `json:"name" yaml:"name"`
}

func (m ModeInfo) marshal(b []byte) {
	ne.PutUint32(b[0:], m.Clock)
	for i, v := range []uint16{
		m.HDisplay, m.HSyncStart, m.HSyncEnd, m.HTotal, m.HSkew,
		m.VDisplay, m.VSyncStart, m.VSyncEnd, m.VTotal, m.VScan,
	} {
		ne.PutUint16(b[4+2*i:], v)
	}
	ne.PutUint32(b[24:], m.VRefresh)
	ne.PutUint32(b[28:], m.Flags)
	ne.PutUint32(b[32:], m.Type)

	name := b[36 : 36+modeNameLen]
	clear(name)
	// Keep the terminating NUL
	copy(name[:modeNameLen-1], m.Name)
}

func unmarshalModeInfo(b []byte) ModeInfo {
	name := b[36 : 36+modeNameLen]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return ModeInfo{
		Clock:      ne.Uint32(b[0:]),
		HDisplay:   ne.Uint16(b[4:]),
		HSyncStart: ne.Uint16(b[6:]),
		HSyncEnd:   ne.Uint16(b[8:]),
		HTotal:     ne.Uint16(b[10:]),
		HSkew:      ne.Uint16(b[12:]),
		VDisplay:   ne.Uint16(b[14:]),
		VSyncStart: ne.Uint16(b[16:]),
		VSyncEnd:   ne.Uint16(b[18:]),
		VTotal:     ne.Uint16(b[20:]),
		VScan:      ne.Uint16(b[22:]),
		VRefresh:   ne.Uint32(b[24:]),
		Flags:      ne.Uint32(b[28:]),
		Type:       ne.Uint32(b[32:]),
		Name:       string(name),
	}
}

// ResourcesQuery is one DRM_IOCTL_MODE_GETRESOURCES exchange. The id
// slices are the caller's buffers: the kernel fills at most len entries of
// each and reports the real totals in the Count fields.
type ResourcesQuery struct {
	FBs        []uint32
	CRTCs      []uint32
	Connectors []uint32
	Encoders   []uint32

	CountFBs        uint32
	CountCRTCs      uint32
	CountConnectors uint32
	CountEncoders   uint32

	MinWidth, MaxWidth   uint32
	MinHeight, MaxHeight uint32
}

// ConnectorQuery is one DRM_IOCTL_MODE_GETCONNECTOR exchange, with the same
// buffer convention as ResourcesQuery. PropValues is sized like Props.
type ConnectorQuery struct {
	ConnectorID uint32

	Encoders   []uint32
	Modes      []ModeInfo
	Props      []uint32
	PropValues []uint64

	CountEncoders uint32
	CountModes    uint32
	CountProps    uint32

	EncoderID  uint32
	Type       uint32
	TypeID     uint32
	Connection uint32
	MMWidth    uint32
	MMHeight   uint32
	Subpixel   uint32
}

// Encoder routes a CRTC's output to connectors.
type Encoder struct {
	ID             uint32
	Type           uint32
	CRTCID         uint32
	PossibleCRTCs  uint32
	PossibleClones uint32
}

func unmarshalEncoder(b []byte) Encoder {
	return Encoder{
		ID:             ne.Uint32(b[0:]),
		Type:           ne.Uint32(b[4:]),
		CRTCID:         ne.Uint32(b[8:]),
		PossibleCRTCs:  ne.Uint32(b[12:]),
		PossibleClones: ne.Uint32(b[16:]),
	}
}

// FramebufferID names a scanout buffer allocated elsewhere.
type FramebufferID uint32

// CRTC is a scanout engine. A zero FramebufferID means it drives nothing.
type CRTC struct {
	ID            uint32
	FramebufferID FramebufferID
	X, Y          uint32
	GammaSize     uint32
	ModeValid     bool
	Mode          ModeInfo
}

func unmarshalCRTC(b []byte) CRTC {
	return CRTC{
		ID:            ne.Uint32(b[12:]),
		FramebufferID: FramebufferID(ne.Uint32(b[16:])),
		X:             ne.Uint32(b[20:]),
		Y:             ne.Uint32(b[24:]),
		GammaSize:     ne.Uint32(b[28:]),
		ModeValid:     ne.Uint32(b[32:]) != 0,
		Mode:          unmarshalModeInfo(b[36:]),
	}
}

// CRTCCommit binds connectors, a framebuffer and a mode to a CRTC.
type CRTCCommit struct {
	CRTCID        uint32
	FramebufferID FramebufferID
	X, Y          uint32
	Connectors    []uint32
	Mode          ModeInfo
}

// PageFlipRequest schedules a framebuffer swap on the next vblank.
type PageFlipRequest struct {
	CRTCID        uint32
	FramebufferID FramebufferID
	Flags         uint32
	UserData      uint64
}

func (r *PageFlipRequest) marshal() []byte {
	b := make([]byte, pageFlipSize)
	ne.PutUint32(b[0:], r.CRTCID)
	ne.PutUint32(b[4:], uint32(r.FramebufferID))
	ne.PutUint32(b[8:], r.Flags)
	ne.PutUint64(b[16:], r.UserData)
	return b
}
