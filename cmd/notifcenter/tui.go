package main

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/notification-center/internal/app"
	"github.com/nhle/notification-center/internal/model"
	appsync "github.com/nhle/notification-center/internal/sync"
)

func tuiCommand(c *Command, args []string) error {
	fs := c.NewFlagSet()
	configPath := fs.String("config", model.DefaultConfigPath(), "Path to config file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	rt, err := setup(*configPath, logToFile)
	if err != nil {
		return err
	}
	defer rt.Close()

	poller := appsync.New(rt.center, rt.cfg.Sync.Interval, rt.log)
	m := app.New(rt.center, poller)
	defer m.Close()

	rt.log.Info("starting tui")
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
