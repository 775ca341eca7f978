package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notification-center/internal/credential"
	"github.com/nhle/notification-center/internal/model"
	"github.com/nhle/notification-center/internal/theme"
	"github.com/nhle/notification-center/internal/ui/login"
)

func loginCommand(c *Command, args []string) error {
	fs := c.NewFlagSet()
	configPath := fs.String("config", model.DefaultConfigPath(), "Path to config file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	fields := login.FromConfig(cfg)
	if err := login.NewForm(fields).Run(); err != nil {
		return err
	}

	key, secret, err := fields.Apply(cfg)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	vault, err := credential.Open(model.DefaultConfigDir())
	if err != nil {
		return err
	}
	if err := vault.Set(key, secret); err != nil {
		return err
	}
	if err := model.SaveConfig(*configPath, cfg); err != nil {
		return err
	}

	ok := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorGreen)
	fmt.Println(ok.Render("✓ Logged in.") + " Settings saved to " + *configPath)
	return nil
}

func logoutCommand(c *Command, args []string) error {
	fs := c.NewFlagSet()
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	vault, err := credential.Open(model.DefaultConfigDir())
	if err != nil {
		return err
	}
	for _, key := range []string{credential.KeyAPIToken, credential.KeyMailboxPassword} {
		if err := vault.Delete(key); err != nil {
			return err
		}
	}
	fmt.Println("Credentials removed.")
	return nil
}
