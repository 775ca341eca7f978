package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nhle/notification-center/internal/app"
	"github.com/nhle/notification-center/internal/cache"
	"github.com/nhle/notification-center/internal/center"
	"github.com/nhle/notification-center/internal/credential"
	"github.com/nhle/notification-center/internal/logger"
	"github.com/nhle/notification-center/internal/metrics"
	"github.com/nhle/notification-center/internal/model"
	"github.com/nhle/notification-center/internal/mutation"
	"github.com/nhle/notification-center/internal/store"
)

const defaultLogFile = "notifcenter.log"

// runtime is the wired notification center shared by every command.
type runtime struct {
	cfg      *model.AppConfig
	log      *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	center   *center.Center
	closers  []io.Closer
}

// logTarget selects where a command writes its logs. The TUI owns the
// terminal, so it always logs to a file.
type logTarget int

const (
	logToStdout logTarget = iota
	logToFile
)

func parseFlags(fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	return err
}

func newLogger(cfg *model.AppConfig, target logTarget) (*slog.Logger, io.Closer, error) {
	path := cfg.Log.File
	if path == "" && target == logToFile {
		path = filepath.Join(model.DefaultConfigDir(), defaultLogFile)
	}
	if path == "" {
		return logger.New(os.Stdout, cfg.Log.Level), nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	return logger.NewFile(path, cfg.Log.Level)
}

// setup loads configuration and wires gateway, cache, persistence and
// the mutation coordinator into a Center.
func setup(configPath string, target logTarget) (*runtime, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	log, logCloser, err := newLogger(cfg, target)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, log: log}
	if logCloser != nil {
		rt.closers = append(rt.closers, logCloser)
	}

	rt.registry = prometheus.NewRegistry()
	rt.metrics = metrics.New(rt.registry)

	vault, err := credential.Open(model.DefaultConfigDir())
	if err != nil {
		rt.Close()
		return nil, err
	}

	gw, err := app.BuildGateway(cfg, vault, rt.metrics, log)
	if err != nil {
		rt.Close()
		return nil, err
	}

	remoteBound := remoteCallBound(cfg.Gateway)
	opts := []cache.Option{
		cache.WithStaleAfter(cfg.Cache.StaleAfter),
		cache.WithFetchTimeout(remoteBound),
		cache.WithLogger(log),
		cache.WithMetrics(rt.metrics),
	}

	var db *store.SQLiteStore
	if cfg.Cache.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Cache.DBPath), 0o755); err != nil {
			rt.Close()
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
		db, err = store.NewSQLiteStore(cfg.Cache.DBPath)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, db)
		opts = append(opts, cache.WithPersister(db))
	}

	cs := cache.New(gw, opts...)
	coord := mutation.New(cs, gw,
		mutation.WithLogger(log),
		mutation.WithMetrics(rt.metrics),
		mutation.WithCallTimeout(remoteBound),
	)

	if db != nil {
		seed(cs, db, log)
	}

	rt.center = center.New(cs, coord, log)
	return rt, nil
}

// remoteCallBound is how long a shared gateway call may run once no
// caller is waiting on it: every attempt plus a second of backoff each.
func remoteCallBound(g model.GatewayConfig) time.Duration {
	attempts := time.Duration(g.MaxRetries + 1)
	return attempts * (g.Timeout + time.Second)
}

// seed paints the last persisted snapshot so the first screen is not
// empty. It stays stale until a real fetch succeeds.
func seed(cs *cache.Store, db store.Store, log *slog.Logger) {
	snap, err := db.LoadSnapshot(context.Background())
	switch {
	case errors.Is(err, store.ErrNoSnapshot):
		return
	case err != nil:
		log.Warn("loading persisted snapshot failed", "error", err)
		return
	}
	cs.Seed(snap)
	log.Debug("seeded from persisted snapshot", "version", snap.Version, "fetched_at", snap.FetchedAt)
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		_ = rt.closers[i].Close()
	}
	rt.closers = nil
}
