package main

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/lox/luckywheel/cmd/luckywheel/shared"
	"github.com/lox/luckywheel/internal/game"
	"github.com/lox/luckywheel/internal/hub"
	"github.com/lox/luckywheel/internal/server"
	"github.com/lox/luckywheel/internal/storage"
)

// ServerCmd runs the wheel server
type ServerCmd struct {
	Config string `kong:"default='luckywheel.hcl',help='Path to HCL config file'"`
	Debug  bool   `kong:"help='Enable debug logging'"`
}

func (c *ServerCmd) Run() error {
	cfg, err := server.LoadServerConfig(c.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.Debug {
		cfg.Server.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, logFile, err := shared.SetupFileLogger(cfg.Server.LogLevel, cfg.Server.LogFile)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	var store storage.Store
	switch cfg.Storage.Driver {
	case "sqlite":
		store, err = storage.NewSQLiteStore(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
	case "memory":
		store = storage.NewMemoryStore()
	}
	defer store.Close()

	h := hub.New(logger, hub.DefaultQueueSize)
	eng := game.NewRoundEngine(cfg.EngineConfig(), quartz.NewReal(), store, h, logger)
	h.SetSnapshot(eng.SnapshotEvents)
	srv := server.NewServer(cfg.Server, eng, h, logger)

	logger.Info("Starting luckywheel server",
		"addr", cfg.GetServerAddress(),
		"storage", cfg.Storage.Driver,
		"strategy", cfg.Game.Strategy,
		"betting_seconds", cfg.Game.BettingSeconds)

	ctx := shared.SetupSignalHandlerWithLogger(logger)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return eng.Run(ctx)
	})
	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
