package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"gantry/internal/account"
	"gantry/internal/config"
	"gantry/internal/events"
	"gantry/internal/logging"
	"gantry/internal/notifications"
	"gantry/internal/pipeline"
	"gantry/internal/pool"
	"gantry/internal/store"
)

// Daemon coordinates the orchestrator, session pool, and account store, and
// enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	sessions *pool.Pool
	orch     *pipeline.Orchestrator
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DatabasePath string
	LockFilePath string
	Workers      int
	PoolCapacity int
	PoolInUse    int
	PoolIdle     int
	QueueDepth   int
	InFlight     []pipeline.WorkItem
	AccountStats store.Stats
}

// New constructs a daemon with initialized dependencies.
func New(
	cfg *config.Config,
	st *store.Store,
	sessions *pool.Pool,
	orch *pipeline.Orchestrator,
	notifier notifications.Service,
	logger *slog.Logger,
) (*Daemon, error) {
	if cfg == nil || st == nil || sessions == nil || orch == nil {
		return nil, errors.New("daemon requires config, store, pool, and orchestrator")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logger.With(logging.String(logging.FieldComponent, "daemon")),
		store:    st,
		sessions: sessions,
		orch:     orch,
		notifier: notifier,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the orchestrator.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another gantry daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.orch.Start(d.ctx)
	d.running.Store(true)
	d.logger.Info("gantry daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.orch.Stop()
	d.sessions.Close(context.Background())
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("gantry daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status reports runtime and account statistics.
func (d *Daemon) Status(ctx context.Context) Status {
	inUse, idle := d.sessions.Stats()
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		Workers:      d.cfg.Pipeline.Workers,
		PoolCapacity: d.sessions.Capacity(),
		PoolInUse:    inUse,
		PoolIdle:     idle,
		QueueDepth:   d.orch.QueueDepth(),
		InFlight:     d.orch.InFlight(),
	}
	if stats, err := d.store.Stats(ctx); err == nil {
		status.AccountStats = stats
	}
	return status
}

// Submit schedules pipeline work for one account.
func (d *Daemon) Submit(ctx context.Context, email string, mode pipeline.Mode, force bool) (account.Stage, error) {
	return d.orch.Submit(ctx, email, mode, force)
}

// SubmitAll schedules every runnable account.
func (d *Daemon) SubmitAll(ctx context.Context, mode pipeline.Mode) (int, int, error) {
	return d.orch.SubmitAll(ctx, mode)
}

// Cancel withdraws or aborts an account's in-flight work.
func (d *Daemon) Cancel(email string) error {
	return d.orch.Cancel(email)
}

// ListAccounts returns accounts matching the filter.
func (d *Daemon) ListAccounts(ctx context.Context, filter store.ListFilter) ([]*account.Account, int, error) {
	return d.store.List(ctx, filter)
}

// GetAccount fetches one account by email.
func (d *Daemon) GetAccount(ctx context.Context, email string) (*account.Account, error) {
	return d.store.Get(ctx, email)
}

// UpsertAccount inserts or updates account credentials.
func (d *Daemon) UpsertAccount(ctx context.Context, acct account.Account) (*account.Account, error) {
	return d.store.Upsert(ctx, acct)
}

// RemoveAccount deletes an account record.
func (d *Daemon) RemoveAccount(ctx context.Context, email string) error {
	return d.store.Delete(ctx, email)
}

// ImportAccounts ingests bulk credential text.
func (d *Daemon) ImportAccounts(ctx context.Context, content, separator string) (store.ImportResult, error) {
	return d.store.Import(ctx, content, separator)
}

// ExportAccounts renders accounts as bulk credential text.
func (d *Daemon) ExportAccounts(ctx context.Context, status account.Status) (string, int, error) {
	return d.store.Export(ctx, status)
}

// AccountStats aggregates per-status counts.
func (d *Daemon) AccountStats(ctx context.Context) (store.Stats, error) {
	return d.store.Stats(ctx)
}

// Events exposes the progress broadcaster.
func (d *Daemon) Events() *events.Broadcaster {
	return d.orch.Events()
}

// TestNotification sends a test push notification.
func (d *Daemon) TestNotification(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return d.notifier.TestNotification(ctx)
}
