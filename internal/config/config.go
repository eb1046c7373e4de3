// Package config handles configuration management using Viper
package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output"`
	Control ControlConfig `mapstructure:"control" yaml:"control"`
	SSH     SSHConfig     `mapstructure:"ssh" yaml:"ssh"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig contains the X11 listener settings
type ServerConfig struct {
	Display   int    `mapstructure:"display" yaml:"display"`       // Display number, socket is <socket_dir>/X<display>
	SocketDir string `mapstructure:"socket_dir" yaml:"socket_dir"` // Directory holding the X11 unix sockets
	ListenTCP bool   `mapstructure:"listen_tcp" yaml:"listen_tcp"` // Also accept clients on 6000+display
	Vendor    string `mapstructure:"vendor" yaml:"vendor"`         // Vendor string sent in the setup reply
}

// OutputConfig contains the kernel mode-setting settings
type OutputConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`                   // Disable to run headless
	Card            string        `mapstructure:"card" yaml:"card"`                         // DRM device node
	HotplugInterval time.Duration `mapstructure:"hotplug_interval" yaml:"hotplug_interval"` // Connector rescan period, 0 disables
}

// ControlConfig contains the local control socket settings
type ControlConfig struct {
	SocketPath string `mapstructure:"socket_path" yaml:"socket_path"` // Empty means /tmp/xkms-<user>.sock
}

// SSHConfig contains the SSH admin console settings
type SSHConfig struct {
	Enabled            bool   `mapstructure:"enabled" yaml:"enabled"`
	Port               int    `mapstructure:"port" yaml:"port"`
	HostKeyPath        string `mapstructure:"host_key_path" yaml:"host_key_path"`
	AuthorizedKeysPath string `mapstructure:"authorized_keys_path" yaml:"authorized_keys_path"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level"` // Overrides LOG_LEVEL env var when set
}

var (
	// DefaultConfig provides sensible defaults
	DefaultConfig = Config{
		Server: ServerConfig{
			Display:   1,
			SocketDir: "/tmp/.X11-unix",
			ListenTCP: false,
			Vendor:    "xkms",
		},
		Output: OutputConfig{
			Enabled:         true,
			Card:            "/dev/dri/card0",
			HotplugInterval: 5 * time.Second,
		},
		Control: ControlConfig{
			SocketPath: "",
		},
		SSH: SSHConfig{
			Enabled:            false,
			Port:               2223,
			HostKeyPath:        "/etc/xkms/host_key",
			AuthorizedKeysPath: "/etc/xkms/authorized_keys",
		},
		Logging: LoggingConfig{
			LogLevel: "",
		},
	}

	// Global config instance
	cfg *Config

	// Override config path if set
	configPathOverride string
)

// SetConfigPath allows overriding the config path
func SetConfigPath(path string) {
	configPathOverride = path
}

// Init initializes the configuration system
func Init() error {
	viper.SetConfigName("xkms")
	viper.SetConfigType("toml")

	if configPathOverride != "" {
		viper.SetConfigFile(configPathOverride)
	} else {
		viper.AddConfigPath("/etc/xkms")
		if home := os.Getenv("HOME"); home != "" {
			viper.AddConfigPath(filepath.Join(home, ".config", "xkms"))
		}
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("XKMS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Individual keys so that partial files merge with the defaults
	viper.SetDefault("server.display", DefaultConfig.Server.Display)
	viper.SetDefault("server.socket_dir", DefaultConfig.Server.SocketDir)
	viper.SetDefault("server.listen_tcp", DefaultConfig.Server.ListenTCP)
	viper.SetDefault("server.vendor", DefaultConfig.Server.Vendor)

	viper.SetDefault("output.enabled", DefaultConfig.Output.Enabled)
	viper.SetDefault("output.card", DefaultConfig.Output.Card)
	viper.SetDefault("output.hotplug_interval", DefaultConfig.Output.HotplugInterval)

	viper.SetDefault("control.socket_path", DefaultConfig.Control.SocketPath)

	viper.SetDefault("ssh.enabled", DefaultConfig.SSH.Enabled)
	viper.SetDefault("ssh.port", DefaultConfig.SSH.Port)
	viper.SetDefault("ssh.host_key_path", DefaultConfig.SSH.HostKeyPath)
	viper.SetDefault("ssh.authorized_keys_path", DefaultConfig.SSH.AuthorizedKeysPath)

	viper.SetDefault("logging.log_level", DefaultConfig.Logging.LogLevel)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	c := &Config{}
	if err := viper.Unmarshal(c); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c

	return nil
}

// Validate reports configuration values the server cannot start with
func (c *Config) Validate() error {
	if c.Server.Display < 0 || c.Server.Display > 59535 {
		return fmt.Errorf("invalid display number: %d", c.Server.Display)
	}
	if c.Output.HotplugInterval < 0 {
		return fmt.Errorf("invalid hotplug interval: %s", c.Output.HotplugInterval)
	}
	if c.SSH.Enabled && (c.SSH.Port <= 0 || c.SSH.Port > 65535) {
		return fmt.Errorf("invalid ssh port: %d", c.SSH.Port)
	}
	return nil
}

// Get returns the current configuration
func Get() *Config {
	if cfg == nil {
		d := DefaultConfig
		return &d
	}
	return cfg
}

// Set sets the current configuration (for testing)
func Set(c *Config) {
	cfg = c
}

// Update validates c, makes it the current configuration and stages its
// values for the next Save
func Update(c *Config) error {
	if err := c.Validate(); err != nil {
		return err
	}

	viper.Set("server.display", c.Server.Display)
	viper.Set("server.socket_dir", c.Server.SocketDir)
	viper.Set("server.listen_tcp", c.Server.ListenTCP)
	viper.Set("server.vendor", c.Server.Vendor)

	viper.Set("output.enabled", c.Output.Enabled)
	viper.Set("output.card", c.Output.Card)
	viper.Set("output.hotplug_interval", c.Output.HotplugInterval.String())

	viper.Set("control.socket_path", c.Control.SocketPath)

	viper.Set("ssh.enabled", c.SSH.Enabled)
	viper.Set("ssh.port", c.SSH.Port)
	viper.Set("ssh.host_key_path", c.SSH.HostKeyPath)
	viper.Set("ssh.authorized_keys_path", c.SSH.AuthorizedKeysPath)

	viper.Set("logging.log_level", c.Logging.LogLevel)

	cfg = c
	return nil
}

// Save saves the current configuration to file
func Save() error {
	configPath := GetConfigPath()

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		if os.IsPermission(err) && strings.Contains(configPath, "/etc/") {
			return fmt.Errorf("failed to create config directory %s: permission denied. Try running with sudo", dir)
		}
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	if configPathOverride != "" {
		return configPathOverride
	}

	if viper.ConfigFileUsed() != "" {
		return viper.ConfigFileUsed()
	}

	if os.Getuid() == 0 {
		return "/etc/xkms/xkms.toml"
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "/etc/xkms/xkms.toml"
	}

	return filepath.Join(home, ".config", "xkms", "xkms.toml")
}

// SocketPath returns the X11 unix socket path for the configured display
func (c *Config) SocketPath() string {
	return filepath.Join(c.Server.SocketDir, fmt.Sprintf("X%d", c.Server.Display))
}

// TCPAddress returns the X11 TCP listen address for the configured display
func (c *Config) TCPAddress() string {
	return fmt.Sprintf(":%d", 6000+c.Server.Display)
}

// ControlSocketPath returns the control socket path, deriving it from the
// current user when none is configured
func (c *Config) ControlSocketPath() string {
	if c.Control.SocketPath != "" {
		return c.Control.SocketPath
	}
	name := "default"
	if u, err := user.Current(); err == nil {
		name = u.Username
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("xkms-%s.sock", name))
}
