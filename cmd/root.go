package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bnema/xkms/internal/config"
	"github.com/bnema/xkms/internal/logger"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "xkms",
		Short: "xkms - X11 display server on kernel mode-setting",
		Long: `xkms is an X11 display server that keeps window and property state for
its clients and drives displays directly through the Linux DRM/KMS interface.
The server command runs it; the other commands talk to a running server over
its control socket.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

// Execute runs the root command
func Execute() error {
	rootCmd.Version = Version
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: /etc/xkms/xkms.toml or ~/.config/xkms/xkms.toml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("socket", "", "Control socket path")

	// Bind flags to viper
	_ = viper.BindPFlag("logging.log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("control.socket_path", rootCmd.PersistentFlags().Lookup("socket"))
}

func initConfig(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		config.SetConfigPath(configPath)
	}
	if err := config.Init(); err != nil {
		return err
	}
	if level := config.Get().Logging.LogLevel; level != "" {
		logger.SetLevel(level)
	}
	return nil
}
