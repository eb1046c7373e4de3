package server

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/xkms/internal/config"
	"github.com/bnema/xkms/internal/ipc"
)

func headlessConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig
	cfg.Output.Enabled = false
	cfg.Server.SocketDir = t.TempDir()
	cfg.Control.SocketPath = filepath.Join(t.TempDir(), "control.sock")
	return &cfg
}

func TestNewHeadless(t *testing.T) {
	s, err := New(headlessConfig(t))
	require.NoError(t, err)

	assert.Nil(t, s.driver)
	assert.Nil(t, s.ssh)

	windows := s.Windows()
	require.Len(t, windows, 1)
	assert.True(t, windows[0].Root)
	assert.Equal(t, uint32(RootWindowID), windows[0].ID)
	assert.Equal(t, uint16(headlessWidth), windows[0].Rect.Width)
	assert.Equal(t, uint16(headlessHeight), windows[0].Rect.Height)

	assert.Empty(t, s.Monitors())
	assert.Empty(t, s.Clients())
}

func TestHeadlessOutputCommands(t *testing.T) {
	s, err := New(headlessConfig(t))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Outputs(ctx)
	assert.ErrorIs(t, err, ErrOutputsDisabled)
	_, err = s.Rescan(ctx)
	assert.ErrorIs(t, err, ErrOutputsDisabled)
	assert.ErrorIs(t, s.SetMode(ctx, "HDMI-A-1", "1920x1080", 0), ErrOutputsDisabled)
}

func TestNewFailsWithoutCard(t *testing.T) {
	cfg := headlessConfig(t)
	cfg.Output.Enabled = true
	cfg.Output.Card = filepath.Join(t.TempDir(), "card0")

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestRunServesControlSocket(t *testing.T) {
	cfg := headlessConfig(t)
	s, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	client := ipc.NewClient(cfg.ControlSocketPath())
	require.Eventually(t, func() bool {
		_, err := client.Windows()
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	windows, err := client.Windows()
	require.NoError(t, err)
	assert.Len(t, windows, 1)

	_, err = client.Outputs()
	assert.ErrorContains(t, err, "headless")

	assert.FileExists(t, cfg.SocketPath())

	cancel()
	require.NoError(t, <-done)
	assert.NoFileExists(t, cfg.SocketPath())
}
