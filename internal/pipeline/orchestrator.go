package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gantry/internal/account"
	"gantry/internal/config"
	"gantry/internal/events"
	"gantry/internal/logging"
	"gantry/internal/notifications"
	"gantry/internal/pool"
	"gantry/internal/store"
)

// Orchestrator schedules account stage work onto the worker pool and owns
// the at-most-one-in-flight-per-account invariant.
type Orchestrator struct {
	cfg         *config.Config
	store       *store.Store
	sessions    *pool.Pool
	registry    *Registry
	broadcaster *events.Broadcaster
	notifier    notifications.Service
	logger      *slog.Logger

	queue *workQueue

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	inflight map[string]*flight
}

// flight tracks one account's scheduled or running work. cancel is nil while
// the item sits in the queue.
type flight struct {
	item      *WorkItem
	cancel    context.CancelFunc
	cancelled bool
	batch     *batchState
}

// batchState accumulates the results of one SubmitAll call. The batch
// notification fires once the last member settles, but never before sealing:
// members finishing while SubmitAll is still enrolling must not drain it.
type batchState struct {
	started   time.Time
	sealed    bool
	remaining int
	succeeded int
	failed    int
}

// NewOrchestrator wires the scheduler over its collaborators.
func NewOrchestrator(
	cfg *config.Config,
	st *store.Store,
	sessions *pool.Pool,
	registry *Registry,
	broadcaster *events.Broadcaster,
	notifier notifications.Service,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		cfg:         cfg,
		store:       st,
		sessions:    sessions,
		registry:    registry,
		broadcaster: broadcaster,
		notifier:    notifier,
		logger:      logger.With(logging.String(logging.FieldComponent, "orchestrator")),
		queue:       newWorkQueue(),
		inflight:    make(map[string]*flight),
	}
}

// Start launches the worker pool. It is idempotent.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.running = true

	workers := o.cfg.Pipeline.Workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		o.wg.Add(1)
		go o.worker(runCtx, i)
	}
	o.logger.Info("orchestrator started", logging.Int("workers", workers))
}

// Stop cancels in-flight work cooperatively and waits for workers to drain.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	cancel := o.cancel
	o.cancel = nil
	o.mu.Unlock()

	cancel()
	o.queue.Close()
	o.wg.Wait()
	o.logger.Info("orchestrator stopped")
}

// Submit schedules work for an account. The starting stage is computed from
// the account's current status so error and partial accounts resume where
// they left off; force restarts from the first stage even on terminal
// accounts. Returns the stage the run will begin at.
func (o *Orchestrator) Submit(ctx context.Context, email string, mode Mode, force bool) (account.Stage, error) {
	return o.submit(ctx, email, mode, force, nil)
}

func (o *Orchestrator) submit(ctx context.Context, email string, mode Mode, force bool, batch *batchState) (account.Stage, error) {
	email = account.NormalizeEmail(email)
	acct, err := o.store.Get(ctx, email)
	if err != nil {
		return "", err
	}

	var stage account.Stage
	if force {
		stage = account.StageSetup2FA
	} else {
		var ok bool
		stage, ok = account.StartStage(acct.Status)
		if !ok {
			return "", fmt.Errorf("%w: %s is %s", account.ErrInvalidTransition, email, acct.Status)
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.inflight[email]; exists {
		return "", Wrap(ErrAlreadyRunning, string(stage), "submit", email, nil)
	}
	item := newWorkItem(email, stage, mode, force)
	o.inflight[email] = &flight{item: item, batch: batch}
	if batch != nil {
		batch.remaining++
	}
	o.queue.Push(item)

	o.logger.Info("work submitted",
		logging.String(logging.FieldAccount, email),
		logging.String(logging.FieldStage, string(stage)),
		logging.String("mode", string(mode)))
	return stage, nil
}

// SubmitAll schedules every runnable account. Accounts already in flight or
// in a terminal status are skipped, not errors. The members form a batch:
// once the last one settles, a batch-completion notification is sent.
func (o *Orchestrator) SubmitAll(ctx context.Context, mode Mode) (submitted, skipped int, err error) {
	accounts, _, err := o.store.List(ctx, store.ListFilter{})
	if err != nil {
		return 0, 0, err
	}
	batch := &batchState{started: time.Now()}
	for _, acct := range accounts {
		if _, serr := o.submit(ctx, acct.Email, mode, false, batch); serr != nil {
			skipped++
			continue
		}
		submitted++
	}

	o.mu.Lock()
	batch.sealed = true
	drained := submitted > 0 && batch.remaining == 0
	o.mu.Unlock()
	if drained {
		o.notifyBatch(batch)
	}
	return submitted, skipped, nil
}

// Cancel stops an account's work: a queued item is withdrawn, a running one
// is cancelled cooperatively and releases its session on the way out.
func (o *Orchestrator) Cancel(email string) error {
	email = account.NormalizeEmail(email)
	o.mu.Lock()
	fl, exists := o.inflight[email]
	if !exists {
		o.mu.Unlock()
		return Wrap(ErrNotRunning, "", "cancel", email, nil)
	}
	fl.cancelled = true
	cancel := fl.cancel
	var drained *batchState
	if cancel == nil {
		// Still queued: withdraw it before a worker picks it up.
		o.queue.Remove(email)
		delete(o.inflight, email)
		drained = o.settleBatchLocked(fl, false)
	}
	o.mu.Unlock()
	if drained != nil {
		o.notifyBatch(drained)
	}

	if cancel != nil {
		cancel()
	}
	o.logger.Info("work cancelled", logging.String(logging.FieldAccount, email))
	return nil
}

// InFlight returns a snapshot of scheduled and running work items.
func (o *Orchestrator) InFlight() []WorkItem {
	o.mu.Lock()
	defer o.mu.Unlock()
	items := make([]WorkItem, 0, len(o.inflight))
	for _, fl := range o.inflight {
		items = append(items, *fl.item)
	}
	return items
}

// QueueDepth reports how many items wait for a worker.
func (o *Orchestrator) QueueDepth() int {
	return o.queue.Len()
}

// Running reports whether the worker pool is active.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Subscribe returns a live progress event channel and its cancel func.
func (o *Orchestrator) Subscribe() (<-chan events.Event, func()) {
	return o.broadcaster.Subscribe()
}

// Events exposes the broadcaster for polling clients.
func (o *Orchestrator) Events() *events.Broadcaster {
	return o.broadcaster
}

func (o *Orchestrator) publish(evtType events.Type, item *WorkItem, status account.Status, message string, attempt int) {
	o.logger.Debug("progress event",
		logging.String(logging.FieldEventType, string(evtType)),
		logging.String(logging.FieldAccount, item.Email),
		logging.String(logging.FieldStage, string(item.Stage)))
	o.broadcaster.Publish(events.Event{
		Type:    evtType,
		Email:   item.Email,
		Stage:   string(item.Stage),
		Status:  string(status),
		Message: message,
		Attempt: attempt,
	})
}

// finishFlight retires an account's work and folds the result into its batch,
// firing the batch notification when the last member settles.
func (o *Orchestrator) finishFlight(email string, succeeded bool) {
	o.mu.Lock()
	fl := o.inflight[email]
	delete(o.inflight, email)
	drained := o.settleBatchLocked(fl, succeeded)
	o.mu.Unlock()
	if drained != nil {
		o.notifyBatch(drained)
	}
}

// settleBatchLocked records one member's result and reports the batch when it
// has sealed and drained. Callers hold o.mu.
func (o *Orchestrator) settleBatchLocked(fl *flight, succeeded bool) *batchState {
	if fl == nil || fl.batch == nil {
		return nil
	}
	b := fl.batch
	b.remaining--
	if succeeded {
		b.succeeded++
	} else {
		b.failed++
	}
	if b.sealed && b.remaining == 0 {
		return b
	}
	return nil
}

func (o *Orchestrator) notifyBatch(b *batchState) {
	if err := o.notifier.NotifyBatchCompleted(context.Background(), b.succeeded, b.failed, time.Since(b.started)); err != nil {
		o.logger.Warn("notify batch completion", logging.Error(err))
	}
}
