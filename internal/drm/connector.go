// Package drm drives display hardware through the Linux kernel
// mode-setting interface: it discovers connectors, resolves the CRTC that
// scans out to each of them, sets modes and schedules page flips.
package drm

import (
	"errors"
	"fmt"

	"github.com/bnema/xkms/internal/logger"
)

var (
	// ErrTransient is returned when the kernel's view kept changing
	// between the two phases of a query, typically during a hotplug.
	ErrTransient = errors.New("object changed while being read")
)

// maxLoadAttempts bounds the sized re-reads of a two-phase query.
const maxLoadAttempts = 5

// Connection states reported by the kernel.
const (
	Connected         = 1
	Disconnected      = 2
	UnknownConnection = 3
)

var connectorTypeNames = []string{
	"Unknown", "VGA", "DVI-I", "DVI-D", "DVI-A", "Composite", "SVIDEO",
	"LVDS", "Component", "DIN", "DP", "HDMI-A", "HDMI-B", "TV", "eDP",
	"Virtual", "DSI", "DPI", "Writeback", "SPI", "USB",
}

// ConnectorName returns the conventional output name, such as HDMI-A-1.
func ConnectorName(typ, typeID uint32) string {
	name := "Unknown"
	if int(typ) < len(connectorTypeNames) {
		name = connectorTypeNames[typ]
	}
	return fmt.Sprintf("%s-%d", name, typeID)
}

// Resources lists the mode-setting objects of a card.
type Resources struct {
	FBs        []uint32
	CRTCs      []uint32
	Connectors []uint32
	Encoders   []uint32

	MinWidth, MaxWidth   uint32
	MinHeight, MaxHeight uint32
}

// LoadResources reads the card's object lists with a sizing query followed
// by sized re-reads until the counts are stable.
func LoadResources(k Kernel) (*Resources, error) {
	var q ResourcesQuery
	if err := k.GetResources(&q); err != nil {
		return nil, fmt.Errorf("failed to query resources: %w", err)
	}

	for attempt := 0; attempt < maxLoadAttempts; attempt++ {
		sized := ResourcesQuery{
			FBs:        make([]uint32, q.CountFBs),
			CRTCs:      make([]uint32, q.CountCRTCs),
			Connectors: make([]uint32, q.CountConnectors),
			Encoders:   make([]uint32, q.CountEncoders),
		}
		if err := k.GetResources(&sized); err != nil {
			return nil, fmt.Errorf("failed to read resources: %w", err)
		}
		if sized.CountFBs == q.CountFBs && sized.CountCRTCs == q.CountCRTCs &&
			sized.CountConnectors == q.CountConnectors && sized.CountEncoders == q.CountEncoders {
			return &Resources{
				FBs:        sized.FBs,
				CRTCs:      sized.CRTCs,
				Connectors: sized.Connectors,
				Encoders:   sized.Encoders,
				MinWidth:   sized.MinWidth,
				MaxWidth:   sized.MaxWidth,
				MinHeight:  sized.MinHeight,
				MaxHeight:  sized.MaxHeight,
			}, nil
		}
		q = sized
	}
	return nil, fmt.Errorf("resources: %w", ErrTransient)
}

// Connector is a physical display port and what is attached to it.
type Connector struct {
	ID         uint32
	Type       uint32
	TypeID     uint32
	Connection uint32
	MMWidth    uint32
	MMHeight   uint32
	Subpixel   uint32

	// EncoderID is the currently attached encoder, or 0
	EncoderID  uint32
	Encoders   []uint32
	Modes      []ModeInfo
	Props      []uint32
	PropValues []uint64
}

// Name returns the connector's conventional output name.
func (c *Connector) Name() string {
	return ConnectorName(c.Type, c.TypeID)
}

// HasMode reports whether m is one of the connector's listed modes.
func (c *Connector) HasMode(m ModeInfo) bool {
	for _, mode := range c.Modes {
		if mode == m {
			return true
		}
	}
	return false
}

func (c *Connector) clone() *Connector {
	out := *c
	out.Encoders = append([]uint32(nil), c.Encoders...)
	out.Modes = append([]ModeInfo(nil), c.Modes...)
	out.Props = append([]uint32(nil), c.Props...)
	out.PropValues = append([]uint64(nil), c.PropValues...)
	return &out
}

func usable(q *ConnectorQuery) bool {
	return q.CountEncoders != 0 && q.CountModes != 0 && q.CountProps != 0
}

// LoadConnector reads connector id. A connector without encoders, modes or
// properties is not usable and yields (nil, nil). If the counts change
// between the sizing query and the sized read the read is retried, and
// ErrTransient is returned once the attempts run out.
func LoadConnector(k Kernel, id uint32) (*Connector, error) {
	q := ConnectorQuery{ConnectorID: id}
	if err := k.GetConnector(&q); err != nil {
		return nil, fmt.Errorf("failed to query connector %d: %w", id, err)
	}

	for attempt := 0; attempt < maxLoadAttempts; attempt++ {
		if !usable(&q) {
			return nil, nil
		}

		sized := ConnectorQuery{
			ConnectorID: id,
			Encoders:    make([]uint32, q.CountEncoders),
			Modes:       make([]ModeInfo, q.CountModes),
			Props:       make([]uint32, q.CountProps),
			PropValues:  make([]uint64, q.CountProps),
		}
		if err := k.GetConnector(&sized); err != nil {
			return nil, fmt.Errorf("failed to read connector %d: %w", id, err)
		}

		if sized.CountEncoders == q.CountEncoders && sized.CountModes == q.CountModes &&
			sized.CountProps == q.CountProps {
			return &Connector{
				ID:         id,
				Type:       sized.Type,
				TypeID:     sized.TypeID,
				Connection: sized.Connection,
				MMWidth:    sized.MMWidth,
				MMHeight:   sized.MMHeight,
				Subpixel:   sized.Subpixel,
				EncoderID:  sized.EncoderID,
				Encoders:   sized.Encoders,
				Modes:      sized.Modes,
				Props:      sized.Props,
				PropValues: sized.PropValues,
			}, nil
		}

		logger.Debugf("Connector %d changed while reading, retrying", id)
		q = sized
	}
	return nil, fmt.Errorf("connector %d: %w", id, ErrTransient)
}

// Scan loads every connector listed in res. Unusable connectors and those
// that fail to load are skipped.
func Scan(k Kernel, res *Resources) []Connector {
	var conns []Connector
	for _, id := range res.Connectors {
		conn, err := LoadConnector(k, id)
		if err != nil {
			logger.Warn("Skipping connector", "id", id, "error", err)
			continue
		}
		if conn == nil {
			logger.Debug("Skipping unusable connector", "id", id)
			continue
		}
		conns = append(conns, *conn)
	}
	return conns
}

// ResolveCRTC follows the connector's current encoder to the CRTC it is
// driven by. An unset encoder or CRTC, or any kernel failure on the way,
// means the connector is not driven, which is a normal state.
func ResolveCRTC(k Kernel, conn *Connector) (*CRTC, bool) {
	if conn.EncoderID == 0 {
		return nil, false
	}
	enc, err := k.GetEncoder(conn.EncoderID)
	if err != nil {
		logger.Debug("Encoder lookup failed", "connector", conn.ID, "encoder", conn.EncoderID, "error", err)
		return nil, false
	}
	if enc.CRTCID == 0 {
		return nil, false
	}
	crtc, err := k.GetCRTC(enc.CRTCID)
	if err != nil {
		logger.Debug("CRTC lookup failed", "connector", conn.ID, "crtc", enc.CRTCID, "error", err)
		return nil, false
	}
	return &crtc, true
}
