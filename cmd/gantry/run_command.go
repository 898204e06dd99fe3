package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gantry/internal/browser"
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

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			st, err := store.Open(cfg)
			if err != nil {
				return fmt.Errorf("open account store: %w", err)
			}

			backend := browser.New(cfg)
			sessions := pool.New(backend, cfg.Browser.Capacity, logger,
				pool.WithOpenTimeout(time.Duration(cfg.Browser.OpenTimeoutSeconds)*time.Second))

			registry, err := pipeline.NewRegistry(steps.NewRunner(cfg).Bindings())
			if err != nil {
				return fmt.Errorf("build step registry: %w", err)
			}

			broadcaster := events.NewBroadcaster(cfg.Events.BufferSize, cfg.Events.SubscriberBuffer)
			notifier := notifications.NewService(cfg)
			orch := pipeline.NewOrchestrator(cfg, st, sessions, registry, broadcaster, notifier, logger)

			d, err := daemon.New(cfg, st, sessions, orch, notifier, logger)
			if err != nil {
				return fmt.Errorf("create daemon: %w", err)
			}
			defer d.Close()

			socket := cfg.SocketPath()
			if ctx.socketFlag != nil && strings.TrimSpace(*ctx.socketFlag) != "" {
				socket = strings.TrimSpace(*ctx.socketFlag)
			}
			ipcServer, err := ipc.NewServer(signalCtx, socket, d, logger, cancel)
			if err != nil {
				return fmt.Errorf("start IPC server: %w", err)
			}
			defer ipcServer.Close()
			ipcServer.Serve()

			if err := d.Start(signalCtx); err != nil {
				return fmt.Errorf("daemon start: %w", err)
			}

			<-signalCtx.Done()
			logger.Info("gantry daemon shutting down")
			return nil
		},
	}
}
