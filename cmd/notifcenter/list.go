package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/nhle/notification-center/internal/model"
	"github.com/nhle/notification-center/internal/projection"
)

const (
	listTimeout   = 30 * time.Second
	maxTitleWidth = 60
)

func listCommand(c *Command, args []string) error {
	fs := c.NewFlagSet()
	configPath := fs.String("config", model.DefaultConfigPath(), "Path to config file")
	status := fs.String("status", "all", "Status filter: all, unread, read")
	search := fs.String("search", "", "Search text")
	page := fs.Int("page", 1, "Page number")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	filter, err := projection.ParseStatusFilter(*status)
	if err != nil {
		return err
	}

	rt, err := setup(*configPath, logToFile)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), listTimeout)
	defer cancel()

	if err := rt.center.Load(ctx); err != nil {
		if rt.center.Snapshot().Version == 0 {
			return err
		}
		fmt.Fprintf(os.Stderr, "warning: %v; showing cached notifications\n", err)
	}

	view := projection.Project(rt.center.Snapshot(),
		projection.DefaultFilterState().WithStatus(filter).WithSearch(*search).WithPage(*page))

	table := NewTableWriter([]string{"", "ID", "TITLE", "CATEGORY", "CREATED"})
	for _, n := range view.Pinned {
		table.AddRow(row(n))
	}
	for _, n := range view.Items {
		table.AddRow(row(n))
	}
	table.Print(os.Stdout)

	fmt.Printf("page %d/%d, %d matching, %d unread\n",
		view.Page, view.TotalPages, view.FilteredCount, view.UnreadCount)
	return nil
}

func row(n model.Notification) []string {
	marker := " "
	if !n.IsRead {
		marker = "●"
	}
	if n.IsPinned {
		marker += "📌"
	}
	created := ""
	if !n.CreatedAt.IsZero() {
		created = n.CreatedAt.Local().Format("2006-01-02 15:04")
	}
	return []string{
		marker,
		n.ID,
		runewidth.Truncate(n.Title, maxTitleWidth, "…"),
		n.Category,
		created,
	}
}
