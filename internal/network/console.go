// Package network exposes the control commands over an SSH admin console.
package network

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bnema/xkms/internal/display"
	"github.com/bnema/xkms/internal/drm"
	"github.com/bnema/xkms/internal/ipc"
	"github.com/bnema/xkms/internal/resource"
	"github.com/bnema/xkms/internal/ui"
)

var ErrUsage = errors.New("usage")

const usage = `Commands:
  outputs                          list kernel outputs
  monitors                         show the monitor layout
  windows                          list windows
  clients                          list connected X11 clients
  rescan                           rescan connectors now
  set-mode <output> <mode> [hz]    switch an output to one of its modes`

// RunCommand executes one console command line against ctrl and prints the
// result with p.
func RunCommand(ctx context.Context, ctrl ipc.Controller, p *ui.Printer, args []string) error {
	if len(args) == 0 || args[0] == "help" {
		p.Println(usage)
		return nil
	}

	req, err := request(args)
	if err != nil {
		p.Println(usage)
		return err
	}
	resp := ipc.Execute(ctx, ctrl, req)

	switch args[0] {
	case ipc.CommandOutputs, ipc.CommandRescan:
		var snaps []drm.OutputSnapshot
		if err := ipc.DecodeResult(resp, &snaps); err != nil {
			return err
		}
		p.Println(p.Outputs(snaps))
	case ipc.CommandMonitors:
		var monitors []display.Monitor
		if err := ipc.DecodeResult(resp, &monitors); err != nil {
			return err
		}
		p.Println(p.Monitors(monitors))
	case ipc.CommandWindows:
		var windows []resource.Info
		if err := ipc.DecodeResult(resp, &windows); err != nil {
			return err
		}
		p.Println(p.Windows(windows))
	case ipc.CommandClients:
		var clients []ipc.ClientInfo
		if err := ipc.DecodeResult(resp, &clients); err != nil {
			return err
		}
		p.Println(p.Clients(clients, time.Now()))
	case ipc.CommandSetMode:
		if err := ipc.DecodeResult(resp, nil); err != nil {
			return err
		}
		p.Println(p.Success(fmt.Sprintf("%s set to %s", args[1], args[2])))
	}
	return nil
}

// request converts a command line to a control request
func request(args []string) (*structpb.Struct, error) {
	cmd := args[0]
	switch cmd {
	case ipc.CommandOutputs, ipc.CommandMonitors, ipc.CommandWindows, ipc.CommandClients, ipc.CommandRescan:
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: %s takes no arguments", ErrUsage, cmd)
		}
		return ipc.NewRequest(cmd, nil)
	case ipc.CommandSetMode:
		if len(args) < 3 || len(args) > 4 {
			return nil, fmt.Errorf("%w: set-mode <output> <mode> [hz]", ErrUsage)
		}
		reqArgs := map[string]any{"output": args[1], "mode": args[2]}
		if len(args) == 4 {
			hz, err := strconv.ParseUint(strings.TrimSuffix(args[3], "Hz"), 10, 32)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid refresh %q", ErrUsage, args[3])
			}
			reqArgs["refresh"] = float64(hz)
		}
		return ipc.NewRequest(cmd, reqArgs)
	}
	return nil, fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
}
