package daemon_test

import (
	"context"
	"testing"

	"gantry/internal/account"
	"gantry/internal/config"
	"gantry/internal/daemon"
	"gantry/internal/events"
	"gantry/internal/logging"
	"gantry/internal/notifications"
	"gantry/internal/pipeline"
	"gantry/internal/pool"
	"gantry/internal/testsupport"
)

func newDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()

	st := testsupport.MustOpenStore(t, cfg)
	sessions := pool.New(testsupport.NewFakeBackend(), cfg.Browser.Capacity, nil)

	bindings := make(map[account.Stage]pipeline.StepFunc)
	for _, stage := range account.AllStages() {
		bindings[stage] = func(ctx context.Context, snap account.Snapshot, s *pool.Session) (account.Outcome, error) {
			return account.Success(""), nil
		}
	}
	registry, err := pipeline.NewRegistry(bindings)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	broadcaster := events.NewBroadcaster(cfg.Events.BufferSize, cfg.Events.SubscriberBuffer)
	notifier := notifications.NewService(cfg)
	orch := pipeline.NewOrchestrator(cfg, st, sessions, registry, broadcaster, notifier, nil)

	d, err := daemon.New(cfg, st, sessions, orch, notifier, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)
	t.Cleanup(func() { d.Close() })

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	status := d.Status(context.Background())
	if !status.Running {
		t.Fatal("daemon not running after Start")
	}
	if status.LockFilePath != cfg.LockPath() {
		t.Fatalf("lock path = %q, want %q", status.LockFilePath, cfg.LockPath())
	}

	if err := d.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail while running")
	}

	d.Stop()
	if d.Status(context.Background()).Running {
		t.Fatal("daemon still running after Stop")
	}
}

func TestDaemonSingleInstanceLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	first := newDaemon(t, cfg)
	t.Cleanup(func() { first.Close() })
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start first: %v", err)
	}

	second := newDaemon(t, cfg)
	t.Cleanup(func() { second.Close() })
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("second instance acquired the lock")
	}

	first.Stop()
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("Start after lock release: %v", err)
	}
}
