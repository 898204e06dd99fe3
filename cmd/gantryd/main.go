package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"gantry/internal/browser"
	"gantry/internal/config"
	"gantry/internal/daemon"
	"gantry/internal/events"
	"gantry/internal/ipc"
	"gantry/internal/logging"
	"gantry/internal/notifications"
	"gantry/internal/pipeline"
	"gantry/internal/pool"
	"gantry/internal/steps"
	"gantry/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open account store", logging.Error(err))
		return
	}

	backend := browser.New(cfg)
	sessions := pool.New(backend, cfg.Browser.Capacity, logger,
		pool.WithOpenTimeout(time.Duration(cfg.Browser.OpenTimeoutSeconds)*time.Second))

	registry, err := pipeline.NewRegistry(steps.NewRunner(cfg).Bindings())
	if err != nil {
		logger.Error("build step registry", logging.Error(err))
		return
	}

	broadcaster := events.NewBroadcaster(cfg.Events.BufferSize, cfg.Events.SubscriberBuffer)
	notifier := notifications.NewService(cfg)
	orch := pipeline.NewOrchestrator(cfg, st, sessions, registry, broadcaster, notifier, logger)

	d, err := daemon.New(cfg, st, sessions, orch, notifier, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger, cancel)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		return
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("gantryd shutting down")
}
