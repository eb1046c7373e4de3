package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/xkms/internal/display"
	"github.com/bnema/xkms/internal/drm"
	"github.com/bnema/xkms/internal/ipc"
	"github.com/bnema/xkms/internal/resource"
)

var ErrOutputsDisabled = errors.New("output driver disabled (headless)")

// Outputs returns the driver's current output snapshots
func (s *Server) Outputs(ctx context.Context) ([]drm.OutputSnapshot, error) {
	if s.driver == nil {
		return nil, ErrOutputsDisabled
	}
	return s.driver.Outputs(ctx)
}

// Rescan forces a connector scan and returns the result
func (s *Server) Rescan(ctx context.Context) ([]drm.OutputSnapshot, error) {
	if s.driver == nil {
		return nil, ErrOutputsDisabled
	}
	return s.driver.Scan(ctx)
}

// Monitors returns the monitor layout
func (s *Server) Monitors() []display.Monitor {
	return s.display.Monitors()
}

// Windows returns every window, root included
func (s *Server) Windows() []resource.Info {
	return s.store.Windows()
}

// Clients returns the connected X11 clients
func (s *Server) Clients() []ipc.ClientInfo {
	return s.clients.GetConnectedClients()
}

// SetMode switches the named output to one of its listed modes. A zero
// refresh matches any rate.
func (s *Server) SetMode(ctx context.Context, output, mode string, refresh uint32) error {
	if s.driver == nil {
		return ErrOutputsDisabled
	}

	snaps, err := s.driver.Outputs(ctx)
	if err != nil {
		return err
	}
	for _, snap := range snaps {
		if snap.Name == output {
			return s.driver.SwitchMode(ctx, snap.ConnectorID, mode, refresh)
		}
	}
	return fmt.Errorf("%w: %s", drm.ErrNoSuchOutput, output)
}
