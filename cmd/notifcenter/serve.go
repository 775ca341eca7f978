package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/time/rate"

	"github.com/nhle/notification-center/internal/model"
	"github.com/nhle/notification-center/internal/server"
	appsync "github.com/nhle/notification-center/internal/sync"
)

func serveCommand(c *Command, args []string) error {
	fs := c.NewFlagSet()
	configPath := fs.String("config", model.DefaultConfigPath(), "Path to config file")
	addr := fs.String("addr", "", "Listen address (overrides server.addr)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	rt, err := setup(*configPath, logToStdout)
	if err != nil {
		return err
	}
	defer rt.Close()

	listen := rt.cfg.Server.Addr
	if *addr != "" {
		listen = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Keep the cache warm so API reads rarely wait on the gateway.
	poller := appsync.New(rt.center, rt.cfg.Sync.Interval, rt.log)
	poller.Start()
	defer poller.Stop()
	go logSyncResults(ctx, poller, rt)

	router := server.NewRouter(server.Deps{
		Notifications:  rt.center,
		Metrics:        rt.metrics,
		Gatherer:       rt.registry,
		Logger:         rt.log,
		AllowedOrigins: rt.cfg.Server.AllowedOrigins,
		RateLimit:      rate.Limit(rt.cfg.Server.RateLimit),
		Burst:          rt.cfg.Server.Burst,
	})
	return server.New(listen, router, rt.log).Run(ctx)
}

func logSyncResults(ctx context.Context, p *appsync.Poller, rt *runtime) {
	for {
		select {
		case <-ctx.Done():
			return
		case res := <-p.Results():
			switch {
			case res.AuthError != nil:
				rt.log.Error("gateway rejected credentials", "error", res.Error)
			case res.Error != nil:
				// Already logged by the poller.
			case res.NewCount > 0:
				rt.log.Info("new notifications", "count", res.NewCount)
			}
		}
	}
}
