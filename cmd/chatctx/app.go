package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"chatctx/internal/config"
	"chatctx/internal/contextprofile"
	"chatctx/internal/logging"
)

// app holds the resources shared by every subcommand. open and close bracket each run.
type app struct {
	in      io.Reader
	out     io.Writer
	cfgPath string

	cfg     config.Config
	logger  *log.Logger
	logFile io.Closer
	store   *contextprofile.EventStore
}

func (a *app) open() error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg

	rotator := &lumberjack.Logger{
		Filename:   cfg.LogPath,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	}
	a.logFile = rotator
	logging.SetOutput(rotator)
	a.logger = logging.Logger

	store, err := contextprofile.OpenEventStore(cfg.EventStorePath)
	if err != nil {
		// digests still work without event history
		logging.ErrorLog("event store unavailable at %s: %v", cfg.EventStorePath, err)
		return nil
	}
	a.store = store
	logging.UserLog("event store opened at %s", store.Path())
	return nil
}

func (a *app) loadConfig() (config.Config, error) {
	if path := strings.TrimSpace(a.cfgPath); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return config.Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
		return cfg, nil
	}
	if err := config.EnsureDefaultConfig(); err != nil {
		return config.Config{}, fmt.Errorf("ensure default config: %w", err)
	}
	cfg, err := config.LoadUserConfig()
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logging.ErrorLog("close event store: %v", err)
		}
		a.store = nil
	}
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
	logging.SetOutput(os.Stderr)
}

// profile builds the named context profile; an empty name uses the configured one.
func (a *app) profile(name string, cfg config.Config) (contextprofile.Profile, error) {
	if strings.TrimSpace(name) == "" {
		name = cfg.ContextProfile
	}
	return contextprofile.New(name, contextprofile.Dependencies{
		Logger: a.logger,
		Config: cfg,
		Store:  a.store,
	})
}

// run opens the app around fn.
func (a *app) run(fn func() error) error {
	if err := a.open(); err != nil {
		return err
	}
	defer a.close()
	return fn()
}
