package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/abelbrown/hush/internal/config"
	"github.com/abelbrown/hush/internal/hidelist"
	"github.com/abelbrown/hush/internal/logging"
	"github.com/abelbrown/hush/internal/otel"
	"github.com/abelbrown/hush/internal/profile"
	"github.com/abelbrown/hush/internal/store"
)

// env holds everything a command needs that outlives a single page.
type env struct {
	cfg      *config.Config
	log      *log.Logger
	events   *otel.Logger
	ring     *otel.RingBuffer
	kv       store.KV
	list     *hidelist.Store
	profiles *profile.Registry

	closers []func()
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(o *Options) (*config.Config, error) {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return nil, err
	}
	if o.DataDir != "" {
		cfg.DataDir = o.DataDir
	}
	if o.Debug {
		cfg.Debug = true
	}
	return cfg, nil
}

// loadProfiles returns the built-in profiles plus any in the profiles dir.
func loadProfiles(cfg *config.Config) (*profile.Registry, error) {
	reg := profile.NewRegistry()
	if err := reg.LoadDir(cfg.ProfilesDir); err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	return reg, nil
}

// openEnv opens the logs, the event log and the hide list.
func openEnv(o *Options) (*env, error) {
	cfg, err := loadConfig(o)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	e := &env{cfg: cfg}

	logger, logFile, err := logging.OpenFile(cfg.LogDir(), cfg.Debug)
	if err != nil {
		return nil, err
	}
	e.log = logger
	e.closers = append(e.closers, func() { logFile.Close() })

	eventsFile, err := os.OpenFile(cfg.EventsPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("open event log: %w", err)
	}
	e.events = otel.NewLogger(eventsFile)
	e.ring = otel.NewRingBuffer(cfg.UI.DebugRing)
	e.events.SetRingBuffer(e.ring)
	e.closers = append(e.closers, func() {
		e.events.Info(otel.KindShutdown, "main", "")
		e.events.Close()
		eventsFile.Close()
	})
	e.events.Info(otel.KindStartup, "main", Version)

	kv, err := store.Open(cfg.Storage.Backend, cfg.StoragePath())
	if err != nil {
		e.Close()
		return nil, err
	}
	e.kv = kv
	e.closers = append(e.closers, func() { kv.Close() })

	e.list = hidelist.Load(kv, cfg.BlockedAuthors, logger,
		hidelist.WithKeyVersion(cfg.KeyVersion),
		hidelist.WithEvents(e.events))

	e.profiles, err = loadProfiles(cfg)
	if err != nil {
		e.Close()
		return nil, err
	}

	logger.Debug("environment ready", "data_dir", cfg.DataDir, "backend", cfg.Storage.Backend)
	return e, nil
}

// Close releases resources in reverse order of opening.
func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}
