package ipc

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bnema/xkms/internal/display"
	"github.com/bnema/xkms/internal/drm"
	"github.com/bnema/xkms/internal/logger"
	"github.com/bnema/xkms/internal/resource"
)

// ErrNotRunning is returned when no server listens on the control socket.
var ErrNotRunning = errors.New("xkms is not running")

// Client handles IPC communication with a running xkms server
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a client for the control socket at socketPath
func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// NewClientWithTimeout creates a new IPC client with custom timeout
func NewClientWithTimeout(socketPath string, timeout time.Duration) *Client {
	client := NewClient(socketPath)
	client.timeout = timeout
	return client
}

// Outputs lists the outputs known to the driver
func (c *Client) Outputs() ([]drm.OutputSnapshot, error) {
	var outs []drm.OutputSnapshot
	if err := c.call(CommandOutputs, nil, &outs); err != nil {
		return nil, err
	}
	return outs, nil
}

// Monitors lists the monitor layout
func (c *Client) Monitors() ([]display.Monitor, error) {
	var mons []display.Monitor
	if err := c.call(CommandMonitors, nil, &mons); err != nil {
		return nil, err
	}
	return mons, nil
}

// Windows lists every window in the resource store
func (c *Client) Windows() ([]resource.Info, error) {
	var wins []resource.Info
	if err := c.call(CommandWindows, nil, &wins); err != nil {
		return nil, err
	}
	return wins, nil
}

// Clients lists the connected X11 clients
func (c *Client) Clients() ([]ClientInfo, error) {
	var clients []ClientInfo
	if err := c.call(CommandClients, nil, &clients); err != nil {
		return nil, err
	}
	return clients, nil
}

// Rescan forces a connector rescan and returns the new outputs
func (c *Client) Rescan() ([]drm.OutputSnapshot, error) {
	var outs []drm.OutputSnapshot
	if err := c.call(CommandRescan, nil, &outs); err != nil {
		return nil, err
	}
	return outs, nil
}

// SetMode switches output to the named mode. A zero refresh picks the
// first listed rate.
func (c *Client) SetMode(output, mode string, refresh uint32) error {
	return c.call(CommandSetMode, map[string]any{
		"output":  output,
		"mode":    mode,
		"refresh": float64(refresh),
	}, nil)
}

func (c *Client) call(command string, args map[string]any, out any) error {
	req, err := NewRequest(command, args)
	if err != nil {
		return err
	}
	resp, err := c.sendMessage(req)
	if err != nil {
		return err
	}
	return DecodeResult(resp, out)
}

// sendMessage sends a message and returns the response
func (c *Client) sendMessage(msg *structpb.Struct) (*structpb.Struct, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		if isConnectionRefused(err) {
			return nil, ErrNotRunning
		}
		return nil, fmt.Errorf("failed to connect to xkms: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Errorf("Failed to close IPC connection: %v", err)
		}
	}()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		logger.Warnf("Failed to set connection deadline: %v", err)
	}

	if err := writeMessage(conn, msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	response, err := readMessage(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return response, nil
}

// isConnectionRefused reports a missing or dead socket
func isConnectionRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ENOENT)
}
