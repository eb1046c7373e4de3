package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bnema/xkms/internal/config"
	"github.com/bnema/xkms/internal/display"
	"github.com/bnema/xkms/internal/ipc"
	"github.com/bnema/xkms/internal/logger"
	"github.com/bnema/xkms/internal/server"
	"github.com/bnema/xkms/internal/ui"
)

var (
	headless bool
	noTUI    bool
)

// Period of the request counter refresh in the server view
const clientRefreshInterval = time.Second

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the xkms display server",
	Long: `Run the display server. Clients connect on the X11 unix socket for the
configured display number (and on TCP 6000+display when enabled). Outputs are
driven through the configured DRM card unless --headless is given.`,
	Args: cobra.NoArgs,
	RunE: runServer,
}

func init() {
	serverCmd.Flags().IntP("display", "d", 0, "Display number")
	serverCmd.Flags().String("card", "", "DRM device node")
	serverCmd.Flags().Bool("listen-tcp", false, "Also accept clients over TCP")
	serverCmd.Flags().Duration("hotplug-interval", 0, "Connector rescan period, 0 disables")
	serverCmd.Flags().BoolVar(&headless, "headless", false, "Run without driving any output")
	serverCmd.Flags().BoolVar(&noTUI, "no-tui", false, "Log to stderr instead of showing the live server view")

	// Bind flags to viper
	_ = viper.BindPFlag("server.display", serverCmd.Flags().Lookup("display"))
	_ = viper.BindPFlag("output.card", serverCmd.Flags().Lookup("card"))
	_ = viper.BindPFlag("server.listen_tcp", serverCmd.Flags().Lookup("listen-tcp"))
	_ = viper.BindPFlag("output.hotplug_interval", serverCmd.Flags().Lookup("hotplug-interval"))

	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	ensureServerConfig()

	cfg := config.Get()
	if headless {
		cfg.Output.Enabled = false
	}

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("Starting xkms",
		"version", Version,
		"socket", cfg.SocketPath(),
		"control", cfg.ControlSocketPath(),
		"card", outputCard(cfg),
	)
	if cfg.SSH.Enabled {
		logger.Info("SSH console enabled", "port", cfg.SSH.Port, "authorized_keys", cfg.SSH.AuthorizedKeysPath)
	}

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if noTUI || !ui.IsTerminal(os.Stdout) {
		err = srv.Run(ctx)
	} else {
		err = runWithTUI(ctx, srv, cfg)
	}
	if err != nil {
		return err
	}
	logger.Info("xkms stopped")
	return nil
}

// runWithTUI runs the server behind the inline server view. Quitting the
// view stops the server; the server stopping closes the view.
func runWithTUI(ctx context.Context, srv *server.Server, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := ui.NewServerModel(ui.ServerInfo{
		Version: Version,
		Socket:  cfg.SocketPath(),
		Control: cfg.ControlSocketPath(),
		Card:    outputCard(cfg),
	}, srv.Monitors())
	p := tea.NewProgram(model)

	srv.GetClientManager().SetOnConnect(func(c ipc.ClientInfo) {
		p.Send(ui.ClientConnectedMsg{Client: c})
	})
	srv.GetClientManager().SetOnDisconnect(func(c ipc.ClientInfo) {
		p.Send(ui.ClientDisconnectedMsg{Client: c})
	})
	srv.GetDisplay().SetOnChange(func(m []display.Monitor) {
		p.Send(ui.MonitorsChangedMsg{Monitors: m})
	})

	logger.SetOutput(ui.LogWriter{Send: p.Send})
	defer logger.SetOutput(os.Stderr)

	errc := make(chan error, 1)
	go func() {
		err := srv.Run(ctx)
		p.Send(ui.ServerStoppedMsg{Err: err})
		errc <- err
	}()
	go func() {
		ticker := time.NewTicker(clientRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Send(ui.ClientsMsg{Clients: srv.Clients()})
			}
		}
	}()

	_, tuiErr := p.Run()
	logger.SetOutput(os.Stderr)
	cancel()
	err := <-errc
	if tuiErr != nil {
		return fmt.Errorf("server view failed: %w", tuiErr)
	}
	return err
}

func outputCard(cfg *config.Config) string {
	if !cfg.Output.Enabled {
		return "headless"
	}
	return cfg.Output.Card
}

// ensureServerConfig writes the default config file on first run. A
// read-only location is not fatal.
func ensureServerConfig() {
	configPath := config.GetConfigPath()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		logger.Infof("No config file found. Creating default config at %s", configPath)
		if err := config.Save(); err != nil {
			logger.Warn("Could not write default config", "error", err)
			return
		}
		logger.Info("Default configuration created successfully")
	}
}
