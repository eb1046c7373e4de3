package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/bnema/xkms/internal/config"
)

// ConfigAnswers holds the settings edited by the config form
type ConfigAnswers struct {
	Display   string
	Outputs   bool
	Card      string
	ListenTCP bool
	SSH       bool
}

// NewConfigAnswers prefills the answers from cfg
func NewConfigAnswers(cfg *config.Config) *ConfigAnswers {
	return &ConfigAnswers{
		Display:   strconv.Itoa(cfg.Server.Display),
		Outputs:   cfg.Output.Enabled,
		Card:      cfg.Output.Card,
		ListenTCP: cfg.Server.ListenTCP,
		SSH:       cfg.SSH.Enabled,
	}
}

// Apply returns a copy of cfg with the answers applied
func (a *ConfigAnswers) Apply(cfg *config.Config) (*config.Config, error) {
	display, err := parseDisplay(a.Display)
	if err != nil {
		return nil, err
	}

	c := *cfg
	c.Server.Display = display
	c.Server.ListenTCP = a.ListenTCP
	c.Output.Enabled = a.Outputs
	if card := strings.TrimSpace(a.Card); card != "" {
		c.Output.Card = card
	}
	c.SSH.Enabled = a.SSH
	return &c, nil
}

func parseDisplay(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(s), ":"))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid display number %q", s)
	}
	return n, nil
}

func validateDisplay(s string) error {
	_, err := parseDisplay(s)
	return err
}

// ConfigForm builds the interactive form behind `xkms config init`
func ConfigForm(a *ConfigAnswers) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Display number").
				Description("Clients connect to :N through /tmp/.X11-unix/XN").
				Value(&a.Display).
				Validate(validateDisplay),
			huh.NewConfirm().
				Title("Drive outputs through DRM/KMS?").
				Description("Answer no to run headless").
				Value(&a.Outputs),
			huh.NewInput().
				Title("DRM card").
				Value(&a.Card),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Accept X11 clients over TCP?").
				Value(&a.ListenTCP),
			huh.NewConfirm().
				Title("Enable the SSH admin console?").
				Value(&a.SSH),
		),
	)
}

// ConfirmOverwrite asks before replacing an existing config file
func ConfirmOverwrite(path string) (bool, error) {
	overwrite := false
	err := huh.NewConfirm().
		Title(fmt.Sprintf("Overwrite %s?", path)).
		Affirmative("Overwrite").
		Negative("Keep").
		Value(&overwrite).
		Run()
	return overwrite, err
}
