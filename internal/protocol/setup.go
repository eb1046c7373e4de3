package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/BurntSushi/xgb/xproto"
)

// Protocol version spoken by the server.
const (
	MajorVersion = 11
	MinorVersion = 0
)

// Setup status codes.
const (
	setupFailed  = 0
	setupSuccess = 1
)

var ErrBadByteOrder = errors.New("invalid byte-order marker")

// SetupRequest is the connection setup sent by a client before any request.
type SetupRequest struct {
	Order    binary.ByteOrder
	Major    uint16
	Minor    uint16
	AuthName string
	AuthData []byte
}

// ReadSetup reads the 12-byte setup prefix and the padded authorization
// strings that follow it.
func ReadSetup(r io.Reader) (*SetupRequest, error) {
	var hdr [12]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}

	order := ByteOrderFor(hdr[0])
	if order == nil {
		return nil, fmt.Errorf("%w: %#x", ErrBadByteOrder, hdr[0])
	}

	nameLen := int(order.Uint16(hdr[6:]))
	dataLen := int(order.Uint16(hdr[8:]))
	auth := make([]byte, nameLen+Pad(nameLen)+dataLen+Pad(dataLen))
	if _, err := io.ReadFull(r, auth); err != nil {
		return nil, err
	}

	dataOff := nameLen + Pad(nameLen)
	return &SetupRequest{
		Order:    order,
		Major:    order.Uint16(hdr[2:]),
		Minor:    order.Uint16(hdr[4:]),
		AuthName: string(auth[:nameLen]),
		AuthData: append([]byte(nil), auth[dataOff:dataOff+dataLen]...),
	}, nil
}

// Screen describes the single screen advertised in the setup reply.
type Screen struct {
	Root       uint32
	Colormap   uint32
	WhitePixel uint32
	BlackPixel uint32
	Width      uint16
	Height     uint16
	MMWidth    uint16
	MMHeight   uint16
	RootVisual uint32
	RootDepth  uint8
}

// SetupInfo is the server side of a successful connection setup.
type SetupInfo struct {
	Release      uint32
	ResourceBase uint32
	ResourceMask uint32
	Vendor       string
	Screen       Screen
}

// Sizes of the fixed parts of a success reply.
const (
	setupFixedSize  = 32
	formatSize      = 8
	screenSize      = 40
	depthSize       = 8
	visualTypeSize  = 24
	minKeycode      = 8
	maxKeycode      = 255
	maxRequestWords = 0xFFFF
)

// WriteSetupSuccess writes the accepted-connection reply: one pixmap
// format, one screen, one depth, one TrueColor visual.
func WriteSetupSuccess(w io.Writer, order binary.ByteOrder, info SetupInfo) error {
	vendor := []byte(info.Vendor)
	extra := setupFixedSize + len(vendor) + Pad(len(vendor)) +
		formatSize + screenSize + depthSize + visualTypeSize

	buf := make([]byte, 8+extra)
	buf[0] = setupSuccess
	order.PutUint16(buf[2:], MajorVersion)
	order.PutUint16(buf[4:], MinorVersion)
	order.PutUint16(buf[6:], uint16(extra/4))

	b := buf[8:]
	order.PutUint32(b[0:], info.Release)
	order.PutUint32(b[4:], info.ResourceBase)
	order.PutUint32(b[8:], info.ResourceMask)
	order.PutUint32(b[12:], 0) // motion buffer size
	order.PutUint16(b[16:], uint16(len(vendor)))
	order.PutUint16(b[18:], maxRequestWords)
	b[20] = 1 // screens
	b[21] = 1 // pixmap formats
	b[22] = xproto.ImageOrderLSBFirst
	b[23] = xproto.ImageOrderLSBFirst
	b[24] = 32 // bitmap scanline unit
	b[25] = 32 // bitmap scanline pad
	b[26] = minKeycode
	b[27] = maxKeycode
	copy(b[setupFixedSize:], vendor)

	off := setupFixedSize + len(vendor) + Pad(len(vendor))
	f := b[off:]
	f[0] = info.Screen.RootDepth
	f[1] = 32 // bits per pixel
	f[2] = 32 // scanline pad
	off += formatSize

	s := b[off:]
	order.PutUint32(s[0:], info.Screen.Root)
	order.PutUint32(s[4:], info.Screen.Colormap)
	order.PutUint32(s[8:], info.Screen.WhitePixel)
	order.PutUint32(s[12:], info.Screen.BlackPixel)
	order.PutUint32(s[16:], 0) // current input masks
	order.PutUint16(s[20:], info.Screen.Width)
	order.PutUint16(s[22:], info.Screen.Height)
	order.PutUint16(s[24:], info.Screen.MMWidth)
	order.PutUint16(s[26:], info.Screen.MMHeight)
	order.PutUint16(s[28:], 1) // min installed maps
	order.PutUint16(s[30:], 1) // max installed maps
	order.PutUint32(s[32:], info.Screen.RootVisual)
	s[36] = xproto.BackingStoreNotUseful
	s[37] = 0 // save unders
	s[38] = info.Screen.RootDepth
	s[39] = 1 // allowed depths
	off += screenSize

	d := b[off:]
	d[0] = info.Screen.RootDepth
	order.PutUint16(d[2:], 1) // visuals
	off += depthSize

	v := b[off:]
	order.PutUint32(v[0:], info.Screen.RootVisual)
	v[4] = xproto.VisualClassTrueColor
	v[5] = 8 // bits per rgb value
	order.PutUint16(v[6:], 256)
	order.PutUint32(v[8:], 0xFF0000)
	order.PutUint32(v[12:], 0x00FF00)
	order.PutUint32(v[16:], 0x0000FF)

	return writeAll(w, buf)
}

// WriteSetupFailed writes a refused-connection reply carrying reason.
func WriteSetupFailed(w io.Writer, order binary.ByteOrder, reason string) error {
	if len(reason) > 255 {
		reason = reason[:255]
	}
	padded := len(reason) + Pad(len(reason))

	buf := make([]byte, 8+padded)
	buf[0] = setupFailed
	buf[1] = uint8(len(reason))
	order.PutUint16(buf[2:], MajorVersion)
	order.PutUint16(buf[4:], MinorVersion)
	order.PutUint16(buf[6:], uint16(padded/4))
	copy(buf[8:], reason)
	return writeAll(w, buf)
}
