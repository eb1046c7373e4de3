package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bnema/xkms/internal/config"
	"github.com/bnema/xkms/internal/drm"
	"github.com/bnema/xkms/internal/ipc"
	"github.com/bnema/xkms/internal/ui"
)

// Output formats accepted by --format
const (
	formatTable = "table"
	formatYAML  = "yaml"
	formatJSON  = "json"
)

var outputFormat string

var ErrUnknownFormat = errors.New("unknown output format")

var outputsCmd = &cobra.Command{
	Use:   "outputs",
	Short: "List kernel outputs",
	Long:  `List every connector the output driver knows about, its state and current mode.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snaps, err := newClient().Outputs()
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), snaps, func(p *ui.Printer) string { return p.Outputs(snaps) })
	},
}

var modesCmd = &cobra.Command{
	Use:   "modes <output>",
	Short: "List the modes of one output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snaps, err := newClient().Outputs()
		if err != nil {
			return err
		}
		for _, s := range snaps {
			if s.Name == args[0] {
				return render(cmd.OutOrStdout(), s.Modes, func(p *ui.Printer) string { return p.Modes(s) })
			}
		}
		return fmt.Errorf("%w: %s", drm.ErrNoSuchOutput, args[0])
	},
}

var rescanCmd = &cobra.Command{
	Use:   "rescan",
	Short: "Rescan connectors now",
	Long:  `Ask the output driver to rescan its connectors immediately instead of waiting for the next hotplug poll.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snaps, err := newClient().Rescan()
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), snaps, func(p *ui.Printer) string { return p.Outputs(snaps) })
	},
}

var monitorsCmd = &cobra.Command{
	Use:   "monitors",
	Short: "Show the monitor layout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		monitors, err := newClient().Monitors()
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), monitors, func(p *ui.Printer) string { return p.Monitors(monitors) })
	},
}

var windowsCmd = &cobra.Command{
	Use:   "windows",
	Short: "List windows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		windows, err := newClient().Windows()
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), windows, func(p *ui.Printer) string { return p.Windows(windows) })
	},
}

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "List connected X11 clients",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		clients, err := newClient().Clients()
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), clients, func(p *ui.Printer) string { return p.Clients(clients, time.Now()) })
	},
}

var setModeRefresh uint32

var setModeCmd = &cobra.Command{
	Use:   "set-mode <output> <mode>",
	Short: "Switch an output to one of its modes",
	Long: `Switch a bound output to one of the modes it lists (see "xkms modes <output>").
The output keeps its current framebuffer.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().SetMode(args[0], args[1], setModeRefresh); err != nil {
			return err
		}
		p := ui.NewPrinter(cmd.OutOrStdout())
		p.Println(p.Success(fmt.Sprintf("%s set to %s", args[0], args[1])))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{outputsCmd, modesCmd, rescanCmd, monitorsCmd, windowsCmd, clientsCmd} {
		c.Flags().StringVarP(&outputFormat, "format", "o", formatTable, "Output format (table, yaml, json)")
		rootCmd.AddCommand(c)
	}

	setModeCmd.Flags().Uint32Var(&setModeRefresh, "refresh", 0, "Refresh rate in Hz, 0 matches any")
	rootCmd.AddCommand(setModeCmd)
}

func newClient() *ipc.Client {
	return ipc.NewClient(config.Get().ControlSocketPath())
}

// render writes v in the selected format. table builds the styled view.
func render(w io.Writer, v any, table func(p *ui.Printer) string) error {
	switch outputFormat {
	case formatTable, "":
		p := ui.NewPrinter(w)
		p.Println(table(p))
		return nil
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return fmt.Errorf("%w: %s", ErrUnknownFormat, outputFormat)
}
