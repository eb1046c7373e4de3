package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bnema/xkms/internal/display"
	"github.com/bnema/xkms/internal/drm"
	"github.com/bnema/xkms/internal/logger"
	"github.com/bnema/xkms/internal/resource"
)

// Controller is the server state the control commands act on.
type Controller interface {
	Outputs(ctx context.Context) ([]drm.OutputSnapshot, error)
	Monitors() []display.Monitor
	Windows() []resource.Info
	Clients() []ClientInfo
	Rescan(ctx context.Context) ([]drm.OutputSnapshot, error)
	SetMode(ctx context.Context, output, mode string, refresh uint32) error
}

// ClientInfo describes a connected X11 client
type ClientInfo struct {
	ID           uint32    `json:"id" yaml:"id"`
	Address      string    `json:"address" yaml:"address"`
	ResourceBase uint32    `json:"resource_base" yaml:"resource_base"`
	ConnectedAt  time.Time `json:"connected_at" yaml:"connected_at"`
	Requests     uint64    `json:"requests" yaml:"requests"`
}

// SocketServer handles incoming control connections
type SocketServer struct {
	socketPath string
	ctrl       Controller
	wg         sync.WaitGroup
}

// NewSocketServer creates a control socket server at socketPath
func NewSocketServer(socketPath string, ctrl Controller) *SocketServer {
	return &SocketServer{
		socketPath: socketPath,
		ctrl:       ctrl,
	}
}

// SocketPath returns the path the server listens on
func (s *SocketServer) SocketPath() string {
	return s.socketPath
}

// Listen creates the unix socket, replacing a stale one
func (s *SocketServer) Listen() (net.Listener, error) {
	if err := os.RemoveAll(s.socketPath); err != nil {
		return nil, fmt.Errorf("failed to remove existing socket: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create socket listener: %w", err)
	}

	// Set socket permissions (user only)
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}
	return listener, nil
}

// Serve listens on the socket and serves connections until ctx is done
func (s *SocketServer) Serve(ctx context.Context) error {
	listener, err := s.Listen()
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, listener)
}

// ServeListener serves connections from listener until ctx is done
func (s *SocketServer) ServeListener(ctx context.Context, listener net.Listener) error {
	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()

	logger.Infof("Control socket listening at %s", s.socketPath)
	defer logger.Info("Control socket stopped")

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			logger.Errorf("Failed to accept control connection: %v", err)
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(ctx, conn)
	}
}

// handleConnection handles a single client connection
func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		msg, err := readMessage(conn)
		if err != nil {
			logger.Debugf("Control connection closed: %v", err)
			return
		}

		if err := writeMessage(conn, Execute(ctx, s.ctrl, msg)); err != nil {
			logger.Errorf("Failed to send response: %v", err)
			return
		}
	}
}

// Execute runs one request against ctrl and builds the response
func Execute(ctx context.Context, ctrl Controller, msg *structpb.Struct) *structpb.Struct {
	cmd, args, err := GetCommand(msg)
	if err != nil {
		return NewErrorMessage(err.Error())
	}
	logger.Debug("Control command", "command", cmd)

	var result any
	switch cmd {
	case CommandOutputs:
		result, err = ctrl.Outputs(ctx)
	case CommandMonitors:
		result = ctrl.Monitors()
	case CommandWindows:
		result = ctrl.Windows()
	case CommandClients:
		result = ctrl.Clients()
	case CommandRescan:
		result, err = ctrl.Rescan(ctx)
	case CommandSetMode:
		output, _ := args["output"].(string)
		mode, _ := args["mode"].(string)
		refresh, _ := args["refresh"].(float64)
		if output == "" || mode == "" {
			return NewErrorMessage("set-mode needs an output and a mode")
		}
		err = ctrl.SetMode(ctx, output, mode, uint32(refresh))
		result = map[string]string{"output": output, "mode": mode}
	default:
		return NewErrorMessage(fmt.Sprintf("unknown command: %s", strconv.Quote(cmd)))
	}
	if err != nil {
		return NewErrorMessage(err.Error())
	}

	resp, err := NewResultMessage(result)
	if err != nil {
		return NewErrorMessage(err.Error())
	}
	return resp
}
