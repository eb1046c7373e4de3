// Package server runs the X11 display server: client listeners, the output
// driver, the control socket and the SSH console.
package server

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/bnema/xkms/internal/atom"
	"github.com/bnema/xkms/internal/config"
	"github.com/bnema/xkms/internal/display"
	"github.com/bnema/xkms/internal/drm"
	"github.com/bnema/xkms/internal/ipc"
	"github.com/bnema/xkms/internal/logger"
	"github.com/bnema/xkms/internal/network"
	"github.com/bnema/xkms/internal/resource"
)

// Root size used when no output drives it
const (
	headlessWidth  = 1920
	headlessHeight = 1080
)

// Server owns the shared state and every long-running component
type Server struct {
	config  *config.Config
	store   *resource.Store
	atoms   *atom.Table
	display *display.Display
	clients *ClientManager
	conns   *ConnServer

	// Nil when running headless
	driver *drm.Driver

	control *ipc.SocketServer
	ssh     *network.SSHServer
}

// New builds the server. With outputs enabled the DRM card is opened and
// scanned once so the root window has its final size before any client
// connects.
func New(cfg *config.Config) (*Server, error) {
	store := resource.NewStore()
	store.CreateRoot(RootWindowID, RootVisualID)

	s := &Server{
		config:  cfg,
		store:   store,
		atoms:   atom.NewTable(),
		display: display.New(store),
		clients: NewClientManager(),
	}

	if cfg.Output.Enabled {
		driver, err := s.openOutputs(cfg.Output)
		if err != nil {
			return nil, err
		}
		s.driver = driver
	} else {
		logger.Info("Output driver disabled, running headless", "width", headlessWidth, "height", headlessHeight)
		store.ResizeRoot(headlessWidth, headlessHeight)
	}

	s.conns = NewConnServer(s.store, s.atoms, s.clients, s.display, cfg.Server.Vendor)
	s.control = ipc.NewSocketServer(cfg.ControlSocketPath(), s)
	if cfg.SSH.Enabled {
		s.ssh = network.NewSSHServer(cfg.SSH.Port, cfg.SSH.HostKeyPath, cfg.SSH.AuthorizedKeysPath, s)
	}
	return s, nil
}

// GetClientManager returns the registry of connected X11 clients
func (s *Server) GetClientManager() *ClientManager {
	return s.clients
}

// GetDisplay returns the monitor layout
func (s *Server) GetDisplay() *display.Display {
	return s.display
}

func (s *Server) openOutputs(cfg config.OutputConfig) (*drm.Driver, error) {
	card, err := drm.OpenCard(cfg.Card)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.Card, err)
	}

	dev := drm.NewDevice(card.Kernel(), card.Resources())
	s.display.Apply(dev.Scan())

	return drm.NewDriver(dev,
		drm.WithHotplugInterval(cfg.HotplugInterval),
		drm.WithOnChange(s.display.Apply),
		drm.WithCloser(card),
	), nil
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails.
func (s *Server) Run(ctx context.Context) error {
	listeners, err := s.listen()
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, l := range listeners {
		l := l
		g.Go(func() error { return s.conns.Serve(ctx, l) })
	}
	if s.driver != nil {
		g.Go(func() error { return s.driver.Run(ctx) })
	}
	g.Go(func() error { return s.control.Serve(ctx) })
	if s.ssh != nil {
		g.Go(func() error { return s.ssh.Run(ctx) })
	}

	logger.Info("xkms running", "display", fmt.Sprintf(":%d", s.config.Server.Display))
	err = g.Wait()
	_ = os.Remove(s.config.SocketPath())
	return err
}

// listen opens the X11 unix socket and, when enabled, the TCP port
func (s *Server) listen() ([]net.Listener, error) {
	path := s.config.SocketPath()
	if err := os.MkdirAll(filepath.Dir(path), os.ModeSticky|0777); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove stale socket: %w", err)
	}

	unixListener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", path, err)
	}
	listeners := []net.Listener{unixListener}

	if s.config.Server.ListenTCP {
		tcpListener, err := net.Listen("tcp", s.config.TCPAddress())
		if err != nil {
			_ = unixListener.Close()
			return nil, fmt.Errorf("failed to listen on %s: %w", s.config.TCPAddress(), err)
		}
		listeners = append(listeners, tcpListener)
	}
	return listeners, nil
}
