package main

import (
	"fmt"
	"os"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	registry := NewCommandRegistry(VersionInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	})
	registerCommands(registry)

	if err := registry.Execute(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func registerCommands(r *CommandRegistry) {
	tui := &Command{
		Name:        "tui",
		Description: "Open the interactive notification center (default)",
		Usage:       "notifcenter [tui] [--config path]",
		Examples: []string{
			"notifcenter",
			"notifcenter tui --config ~/.config/notifcenter/config.yaml",
		},
	}
	tui.Run = func(args []string) error { return tuiCommand(tui, args) }
	r.Register(tui)
	r.SetDefault(tui.Name)

	serve := &Command{
		Name:        "serve",
		Description: "Serve the notification API for the web dashboard",
		Usage:       "notifcenter serve [--config path] [--addr :8090]",
		Examples: []string{
			"notifcenter serve",
			"NOTIFCENTER_SERVER_ADDR=:9000 notifcenter serve",
		},
	}
	serve.Run = func(args []string) error { return serveCommand(serve, args) }
	r.Register(serve)

	list := &Command{
		Name:        "list",
		Description: "Print one page of notifications and exit",
		Usage:       "notifcenter list [--status all|unread|read] [--search text] [--page n]",
		Examples: []string{
			"notifcenter list --status unread",
			"notifcenter list --search deploy --page 2",
		},
	}
	list.Run = func(args []string) error { return listCommand(list, args) }
	r.Register(list)

	login := &Command{
		Name:        "login",
		Description: "Configure the notification source and store credentials",
		Usage:       "notifcenter login [--config path]",
		Examples:    []string{"notifcenter login"},
	}
	login.Run = func(args []string) error { return loginCommand(login, args) }
	r.Register(login)

	logout := &Command{
		Name:        "logout",
		Description: "Remove stored credentials",
		Usage:       "notifcenter logout",
		Examples:    []string{"notifcenter logout"},
	}
	logout.Run = func(args []string) error { return logoutCommand(logout, args) }
	r.Register(logout)

	r.Register(&Command{
		Name:        "version",
		Description: "Show version information",
		Usage:       "notifcenter version",
		Run: func([]string) error {
			fmt.Printf("notifcenter %s (commit %s, built %s)\n", r.version.Version, r.version.Commit, r.version.Date)
			return nil
		},
	})
}
