package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/bnema/xkms/internal/atom"
	"github.com/bnema/xkms/internal/display"
	"github.com/bnema/xkms/internal/logger"
	"github.com/bnema/xkms/internal/protocol"
	"github.com/bnema/xkms/internal/resource"
)

// Server-owned identifiers, all in client block 0
const (
	RootWindowID   = 0x100
	ColormapID     = 0x20
	RootVisualID   = 0x21
	rootDepth      = 24
	releaseNumber  = 1
	whitePixel     = 0xFFFFFF
	blackPixel     = 0
	fallbackDPI    = 96
	millimetreInch = 25.4
)

// ConnServer accepts X11 clients and runs one request loop per connection
type ConnServer struct {
	store   *resource.Store
	atoms   *atom.Table
	clients *ClientManager
	display *display.Display
	vendor  string

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewConnServer creates a connection server over the shared state. disp
// may be nil, in which case physical sizes are derived at 96 dpi.
func NewConnServer(store *resource.Store, atoms *atom.Table, clients *ClientManager, disp *display.Display, vendor string) *ConnServer {
	return &ConnServer{
		store:   store,
		atoms:   atoms,
		clients: clients,
		display: disp,
		vendor:  vendor,
		conns:   make(map[net.Conn]struct{}),
	}
}

// Serve accepts connections on l until ctx is cancelled. Cancellation closes
// the listener and every open connection, then waits for their loops.
func (s *ConnServer) Serve(ctx context.Context, l net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		_ = l.Close()
		s.closeAll()
	})
	defer stop()

	logger.Info("Accepting X11 clients", "address", l.Addr().String())

	var wg sync.WaitGroup
	for {
		conn, err := l.Accept()
		if err != nil {
			s.closeAll()
			wg.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept on %s: %w", l.Addr(), err)
		}

		if !s.track(conn) {
			_ = conn.Close()
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.untrack(conn)
			s.handleConnection(conn)
		}()
	}
}

func (s *ConnServer) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *ConnServer) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
	_ = conn.Close()
}

func (s *ConnServer) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.conns = nil
}

// handleConnection runs the setup exchange and then processes requests in
// arrival order until the client goes away.
func (s *ConnServer) handleConnection(conn net.Conn) {
	address := remoteAddress(conn)
	r := bufio.NewReader(conn)

	setup, err := protocol.ReadSetup(r)
	if err != nil {
		logger.Debug("Connection setup failed", "address", address, "error", err)
		return
	}
	order := setup.Order

	if setup.Major != protocol.MajorVersion {
		reason := fmt.Sprintf("protocol version %d.%d not supported", setup.Major, setup.Minor)
		logger.Warn("Rejecting client", "address", address, "reason", reason)
		_ = protocol.WriteSetupFailed(conn, order, reason)
		return
	}

	client, err := s.clients.RegisterClient(address)
	if err != nil {
		logger.Warn("Rejecting client", "address", address, "error", err)
		_ = protocol.WriteSetupFailed(conn, order, err.Error())
		return
	}
	defer s.clients.UnregisterClient(client.ID)

	info := protocol.SetupInfo{
		Release:      releaseNumber,
		ResourceBase: client.ResourceBase,
		ResourceMask: ResourceMask,
		Vendor:       s.vendor,
		Screen:       s.screen(),
	}
	if err := protocol.WriteSetupSuccess(conn, order, info); err != nil {
		logger.Debug("Writing setup reply failed", "client", client.ID, "error", err)
		return
	}

	pctx := &protocol.Context{
		Resources:    s.store,
		Atoms:        s.atoms,
		Order:        order,
		ResourceBase: client.ResourceBase,
		ResourceMask: ResourceMask,
	}

	var seq uint16
	for {
		frame, err := protocol.ReadFrame(r, order)
		if err != nil {
			if errors.Is(err, protocol.ErrBigRequest) {
				seq++
				_ = protocol.WriteError(conn, order, seq, protocol.BadLength())
				logger.Warn("Closing client after zero-length request", "client", client.ID)
			} else if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				logger.Debug("Reading request failed", "client", client.ID, "error", err)
			}
			return
		}

		seq++
		client.requests.Add(1)
		if err := protocol.Dispatch(pctx, conn, seq, frame.Opcode, frame.Extra, frame.Body); err != nil {
			logger.Debug("Writing reply failed", "client", client.ID, "seq", seq, "error", err)
			return
		}
	}
}

// screen describes the root window as it is now
func (s *ConnServer) screen() protocol.Screen {
	var width, height uint16
	_ = s.store.View(s.store.RootID(), func(w *resource.Window) error {
		width, height = w.Width(), w.Height()
		return nil
	})

	mmWidth := uint16(float64(width) * millimetreInch / fallbackDPI)
	mmHeight := uint16(float64(height) * millimetreInch / fallbackDPI)
	if s.display != nil {
		if m, ok := s.display.Primary(); ok && m.MMWidth > 0 && m.MMHeight > 0 {
			mmWidth, mmHeight = uint16(m.MMWidth), uint16(m.MMHeight)
		}
	}

	return protocol.Screen{
		Root:       s.store.RootID(),
		Colormap:   ColormapID,
		WhitePixel: whitePixel,
		BlackPixel: blackPixel,
		Width:      width,
		Height:     height,
		MMWidth:    mmWidth,
		MMHeight:   mmHeight,
		RootVisual: RootVisualID,
		RootDepth:  rootDepth,
	}
}

func remoteAddress(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil && addr.String() != "" {
		return addr.String()
	}
	return "local"
}
