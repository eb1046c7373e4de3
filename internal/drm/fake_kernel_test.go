package drm

import (
	"golang.org/x/sys/unix"
)

type fakeConnector struct {
	encoderID  uint32
	typ        uint32
	typeID     uint32
	connection uint32
	mmWidth    uint32
	mmHeight   uint32
	encoders   []uint32
	modes      []ModeInfo
	props      []uint32
	values     []uint64
}

// fakeKernel models one card in memory. Buffers are filled the way the
// kernel does: at most len entries, with the real counts reported.
type fakeKernel struct {
	crtcIDs    []uint32
	connectors map[uint32]*fakeConnector
	connOrder  []uint32
	encoders   map[uint32]Encoder
	crtcs      map[uint32]CRTC

	connectorErr error
	encoderErr   error
	crtcErr      error
	setErr       error
	flipErr      error

	// beforeConnector runs at the start of every GetConnector call
	beforeConnector func(call int, c *fakeConnector)

	connectorCalls int
	setCalls       int
	flipCalls      int
	lastCommit     CRTCCommit
	lastFlip       PageFlipRequest
}

var (
	mode1080 = ModeInfo{Clock: 148500, HDisplay: 1920, HSyncStart: 2008, HSyncEnd: 2052, HTotal: 2200,
		VDisplay: 1080, VSyncStart: 1084, VSyncEnd: 1089, VTotal: 1125, VRefresh: 60, Flags: 5, Type: 0x48, Name: "1920x1080"}
	mode720 = ModeInfo{Clock: 74250, HDisplay: 1280, HSyncStart: 1390, HSyncEnd: 1430, HTotal: 1650,
		VDisplay: 720, VSyncStart: 725, VSyncEnd: 730, VTotal: 750, VRefresh: 60, Flags: 5, Type: 0x40, Name: "1280x720"}
	mode1440 = ModeInfo{Clock: 241500, HDisplay: 2560, HSyncStart: 2608, HSyncEnd: 2640, HTotal: 2720,
		VDisplay: 1440, VSyncStart: 1443, VSyncEnd: 1448, VTotal: 1481, VRefresh: 60, Flags: 9, Type: 0x48, Name: "2560x1440"}
)

const (
	crtcA = 40
	crtcB = 41

	connHDMI     = 70
	connDP       = 71
	connUnusable = 72

	encHDMI = 50
	encDP   = 51

	scanoutFB FramebufferID = 99
)

// newFakeKernel returns a card with two CRTCs: HDMI-A-1 is being scanned
// out on crtcA, DP-1 is connected but idle, and a third connector has no
// modes.
func newFakeKernel() *fakeKernel {
	return &fakeKernel{
		crtcIDs:   []uint32{crtcA, crtcB},
		connOrder: []uint32{connHDMI, connDP, connUnusable},
		connectors: map[uint32]*fakeConnector{
			connHDMI: {
				encoderID: encHDMI, typ: 11, typeID: 1, connection: Connected,
				mmWidth: 510, mmHeight: 290,
				encoders: []uint32{encHDMI},
				modes:    []ModeInfo{mode1080, mode720},
				props:    []uint32{1, 2},
				values:   []uint64{0, 1},
			},
			connDP: {
				typ: 10, typeID: 1, connection: Connected,
				mmWidth: 600, mmHeight: 340,
				encoders: []uint32{encDP},
				modes:    []ModeInfo{mode1440, mode1080},
				props:    []uint32{1},
				values:   []uint64{0},
			},
			connUnusable: {
				typ: 14, typeID: 1, connection: Disconnected,
				encoders: []uint32{encDP},
				props:    []uint32{1},
				values:   []uint64{0},
			},
		},
		encoders: map[uint32]Encoder{
			encHDMI: {ID: encHDMI, Type: 2, CRTCID: crtcA, PossibleCRTCs: 0b01},
			encDP:   {ID: encDP, Type: 2, PossibleCRTCs: 0b11},
		},
		crtcs: map[uint32]CRTC{
			crtcA: {ID: crtcA, FramebufferID: scanoutFB, ModeValid: true, Mode: mode1080},
			crtcB: {ID: crtcB},
		},
	}
}

func (k *fakeKernel) GetResources(q *ResourcesQuery) error {
	q.CountCRTCs = uint32(len(k.crtcIDs))
	q.CountConnectors = uint32(len(k.connOrder))
	q.CountEncoders = uint32(len(k.encoders))
	copy(q.CRTCs, k.crtcIDs)
	copy(q.Connectors, k.connOrder)
	i := 0
	for id := range k.encoders {
		if i < len(q.Encoders) {
			q.Encoders[i] = id
		}
		i++
	}
	q.MaxWidth, q.MaxHeight = 8192, 8192
	return nil
}

func (k *fakeKernel) GetConnector(q *ConnectorQuery) error {
	k.connectorCalls++
	c, ok := k.connectors[q.ConnectorID]
	if !ok {
		return unix.ENOENT
	}
	if k.beforeConnector != nil {
		k.beforeConnector(k.connectorCalls, c)
	}
	if k.connectorErr != nil {
		return k.connectorErr
	}

	q.CountEncoders = uint32(len(c.encoders))
	q.CountModes = uint32(len(c.modes))
	q.CountProps = uint32(len(c.props))
	q.EncoderID = c.encoderID
	q.Type = c.typ
	q.TypeID = c.typeID
	q.Connection = c.connection
	q.MMWidth = c.mmWidth
	q.MMHeight = c.mmHeight
	copy(q.Encoders, c.encoders)
	copy(q.Modes, c.modes)
	copy(q.Props, c.props)
	copy(q.PropValues, c.values)
	return nil
}

func (k *fakeKernel) GetEncoder(id uint32) (Encoder, error) {
	if k.encoderErr != nil {
		return Encoder{}, k.encoderErr
	}
	enc, ok := k.encoders[id]
	if !ok {
		return Encoder{}, unix.ENOENT
	}
	return enc, nil
}

func (k *fakeKernel) GetCRTC(id uint32) (CRTC, error) {
	if k.crtcErr != nil {
		return CRTC{}, k.crtcErr
	}
	crtc, ok := k.crtcs[id]
	if !ok {
		return CRTC{}, unix.ENOENT
	}
	return crtc, nil
}

func (k *fakeKernel) SetCRTC(c CRTCCommit) error {
	k.setCalls++
	k.lastCommit = c
	if k.setErr != nil {
		return k.setErr
	}

	k.crtcs[c.CRTCID] = CRTC{ID: c.CRTCID, FramebufferID: c.FramebufferID, ModeValid: true, Mode: c.Mode}
	for _, id := range c.Connectors {
		conn := k.connectors[id]
		if conn.encoderID == 0 {
			conn.encoderID = conn.encoders[0]
		}
		enc := k.encoders[conn.encoderID]
		enc.CRTCID = c.CRTCID
		k.encoders[conn.encoderID] = enc
	}
	return nil
}

func (k *fakeKernel) PageFlip(r PageFlipRequest) error {
	k.flipCalls++
	k.lastFlip = r
	return k.flipErr
}
