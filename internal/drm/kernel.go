package drm

import (
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Kernel is the set of mode-setting commands the driver issues. The
// ioctl-backed implementation is returned by NewKernel.
type Kernel interface {
	GetResources(q *ResourcesQuery) error
	GetConnector(q *ConnectorQuery) error
	GetEncoder(id uint32) (Encoder, error)
	GetCRTC(id uint32) (CRTC, error)
	SetCRTC(c CRTCCommit) error
	PageFlip(r PageFlipRequest) error
}

type ioctlKernel struct {
	fd int
}

// NewKernel returns a Kernel issuing ioctls on an open DRM device.
func NewKernel(fd int) Kernel {
	return &ioctlKernel{fd: fd}
}

// ioctl runs req on arg, restarting on EINTR and EAGAIN. Every address
// stored inside arg must be pinned by the caller.
func (k *ioctlKernel) ioctl(req uintptr, arg []byte) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(k.fd), req, uintptr(unsafe.Pointer(&arg[0])))
		switch errno {
		case 0:
			return nil
		case unix.EINTR, unix.EAGAIN:
			continue
		default:
			return errno
		}
	}
}

// buffer returns the address of b for an ioctl pointer field, pinning it
// for the lifetime of p. Empty buffers are passed as a null pointer.
func buffer(p *runtime.Pinner, b []byte) uint64 {
	if len(b) == 0 {
		return 0
	}
	p.Pin(&b[0])
	return uint64(uintptr(unsafe.Pointer(&b[0])))
}

func decodeIDs(dst []uint32, src []byte, count uint32) {
	n := min(int(count), len(dst))
	for i := 0; i < n; i++ {
		dst[i] = ne.Uint32(src[4*i:])
	}
}

func (k *ioctlKernel) GetResources(q *ResourcesQuery) error {
	var pin runtime.Pinner
	defer pin.Unpin()

	fbs := make([]byte, 4*len(q.FBs))
	crtcs := make([]byte, 4*len(q.CRTCs))
	conns := make([]byte, 4*len(q.Connectors))
	encs := make([]byte, 4*len(q.Encoders))

	b := make([]byte, cardResSize)
	ne.PutUint64(b[0:], buffer(&pin, fbs))
	ne.PutUint64(b[8:], buffer(&pin, crtcs))
	ne.PutUint64(b[16:], buffer(&pin, conns))
	ne.PutUint64(b[24:], buffer(&pin, encs))
	ne.PutUint32(b[32:], uint32(len(q.FBs)))
	ne.PutUint32(b[36:], uint32(len(q.CRTCs)))
	ne.PutUint32(b[40:], uint32(len(q.Connectors)))
	ne.PutUint32(b[44:], uint32(len(q.Encoders)))

	if err := k.ioctl(ioctlModeGetResources, b); err != nil {
		return fmt.Errorf("GETRESOURCES: %w", err)
	}

	q.CountFBs = ne.Uint32(b[32:])
	q.CountCRTCs = ne.Uint32(b[36:])
	q.CountConnectors = ne.Uint32(b[40:])
	q.CountEncoders = ne.Uint32(b[44:])
	q.MinWidth = ne.Uint32(b[48:])
	q.MaxWidth = ne.Uint32(b[52:])
	q.MinHeight = ne.Uint32(b[56:])
	q.MaxHeight = ne.Uint32(b[60:])

	decodeIDs(q.FBs, fbs, q.CountFBs)
	decodeIDs(q.CRTCs, crtcs, q.CountCRTCs)
	decodeIDs(q.Connectors, conns, q.CountConnectors)
	decodeIDs(q.Encoders, encs, q.CountEncoders)
	return nil
}

func (k *ioctlKernel) GetConnector(q *ConnectorQuery) error {
	var pin runtime.Pinner
	defer pin.Unpin()

	encs := make([]byte, 4*len(q.Encoders))
	modes := make([]byte, modeInfoSize*len(q.Modes))
	props := make([]byte, 4*len(q.Props))
	values := make([]byte, 8*len(q.Props))

	b := make([]byte, getConnectorSize)
	ne.PutUint64(b[0:], buffer(&pin, encs))
	ne.PutUint64(b[8:], buffer(&pin, modes))
	ne.PutUint64(b[16:], buffer(&pin, props))
	ne.PutUint64(b[24:], buffer(&pin, values))
	ne.PutUint32(b[32:], uint32(len(q.Modes)))
	ne.PutUint32(b[36:], uint32(len(q.Props)))
	ne.PutUint32(b[40:], uint32(len(q.Encoders)))
	ne.PutUint32(b[48:], q.ConnectorID)

	if err := k.ioctl(ioctlModeGetConnector, b); err != nil {
		return fmt.Errorf("GETCONNECTOR %d: %w", q.ConnectorID, err)
	}

	q.CountModes = ne.Uint32(b[32:])
	q.CountProps = ne.Uint32(b[36:])
	q.CountEncoders = ne.Uint32(b[40:])
	q.EncoderID = ne.Uint32(b[44:])
	q.Type = ne.Uint32(b[52:])
	q.TypeID = ne.Uint32(b[56:])
	q.Connection = ne.Uint32(b[60:])
	q.MMWidth = ne.Uint32(b[64:])
	q.MMHeight = ne.Uint32(b[68:])
	q.Subpixel = ne.Uint32(b[72:])

	decodeIDs(q.Encoders, encs, q.CountEncoders)
	for i, n := 0, min(int(q.CountModes), len(q.Modes)); i < n; i++ {
		q.Modes[i] = unmarshalModeInfo(modes[modeInfoSize*i:])
	}
	decodeIDs(q.Props, props, q.CountProps)
	if len(q.PropValues) >= len(q.Props) {
		for i, n := 0, min(int(q.CountProps), len(q.Props)); i < n; i++ {
			q.PropValues[i] = ne.Uint64(values[8*i:])
		}
	}
	return nil
}

func (k *ioctlKernel) GetEncoder(id uint32) (Encoder, error) {
	b := make([]byte, getEncoderSize)
	ne.PutUint32(b[0:], id)
	if err := k.ioctl(ioctlModeGetEncoder, b); err != nil {
		return Encoder{}, fmt.Errorf("GETENCODER %d: %w", id, err)
	}
	return unmarshalEncoder(b), nil
}

func (k *ioctlKernel) GetCRTC(id uint32) (CRTC, error) {
	b := make([]byte, crtcSize)
	ne.PutUint32(b[12:], id)
	if err := k.ioctl(ioctlModeGetCRTC, b); err != nil {
		return CRTC{}, fmt.Errorf("GETCRTC %d: %w", id, err)
	}
	return unmarshalCRTC(b), nil
}

func (k *ioctlKernel) SetCRTC(c CRTCCommit) error {
	var pin runtime.Pinner
	defer pin.Unpin()

	conns := make([]byte, 4*len(c.Connectors))
	for i, id := range c.Connectors {
		ne.PutUint32(conns[4*i:], id)
	}

	b := make([]byte, crtcSize)
	ne.PutUint64(b[0:], buffer(&pin, conns))
	ne.PutUint32(b[8:], uint32(len(c.Connectors)))
	ne.PutUint32(b[12:], c.CRTCID)
	ne.PutUint32(b[16:], uint32(c.FramebufferID))
	ne.PutUint32(b[20:], c.X)
	ne.PutUint32(b[24:], c.Y)
	ne.PutUint32(b[32:], 1) // mode_valid
	c.Mode.marshal(b[36:])

	if err := k.ioctl(ioctlModeSetCRTC, b); err != nil {
		return fmt.Errorf("SETCRTC %d: %w", c.CRTCID, err)
	}
	return nil
}

func (k *ioctlKernel) PageFlip(r PageFlipRequest) error {
	if err := k.ioctl(ioctlModePageFlip, r.marshal()); err != nil {
		return fmt.Errorf("PAGE_FLIP %d: %w", r.CRTCID, err)
	}
	return nil
}
