package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bnema/xkms/internal/config"
	"github.com/bnema/xkms/internal/logger"
	"github.com/bnema/xkms/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage xkms configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# %s\n", config.GetConfigPath())

		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(config.Get()); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		return enc.Close()
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), config.GetConfigPath())
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the configuration file",
	Long: `Write the configuration file. On a terminal a short form asks for the
main settings; otherwise, or with --defaults, the current values are written
as they are.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GetConfigPath()
		force, _ := cmd.Flags().GetBool("force")
		defaults, _ := cmd.Flags().GetBool("defaults")
		interactive := !defaults && ui.IsTerminal(os.Stdin) && ui.IsTerminal(os.Stdout)

		if _, err := os.Stat(path); err == nil && !force {
			if !interactive {
				return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
			}
			overwrite, err := ui.ConfirmOverwrite(path)
			if err != nil {
				return fmt.Errorf("configuration cancelled: %w", err)
			}
			if !overwrite {
				fmt.Fprintln(cmd.OutOrStdout(), "Configuration left unchanged")
				return nil
			}
		}

		if interactive {
			answers := ui.NewConfigAnswers(config.Get())
			if err := ui.ConfigForm(answers).Run(); err != nil {
				return fmt.Errorf("configuration cancelled: %w", err)
			}
			c, err := answers.Apply(config.Get())
			if err != nil {
				return err
			}
			if err := config.Update(c); err != nil {
				return err
			}
		}

		if err := config.Save(); err != nil {
			return err
		}
		logger.Infof("Configuration saved to: %s", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().Bool("force", false, "Force overwrite existing configuration")
	configInitCmd.Flags().Bool("defaults", false, "Write the current values without prompting")

	rootCmd.AddCommand(configCmd)
}
