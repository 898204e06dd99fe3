package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"gantry/internal/account"
	"gantry/internal/events"
	"gantry/internal/logging"
	"gantry/internal/pool"
)

func (o *Orchestrator) worker(ctx context.Context, id int) {
	defer o.wg.Done()
	logger := o.logger.With(logging.Int("worker", id))
	for {
		item, ok := o.queue.Pop(ctx)
		if !ok {
			return
		}
		o.process(ctx, item, logger)
	}
}

func (o *Orchestrator) process(ctx context.Context, item *WorkItem, logger *slog.Logger) {
	flightCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.mu.Lock()
	fl := o.inflight[item.Email]
	if fl == nil || fl.cancelled {
		o.mu.Unlock()
		return
	}
	fl.cancel = cancel
	o.mu.Unlock()

	flightCtx = logging.WithAccount(flightCtx, item.Email)
	flightCtx = logging.WithStage(flightCtx, string(item.Stage))
	flightCtx = logging.WithRequestID(flightCtx, item.ID)
	logger = logging.WithContext(flightCtx, logger)

	acct, err := o.store.Get(flightCtx, item.Email)
	if err != nil {
		logger.Error("load account", logging.Error(err))
		o.notifyError(err, "load account", logger)
		o.publish(events.TypeStageFailed, item, "", err.Error(), 0)
		o.finishFlight(item.Email, false)
		return
	}

	o.publish(events.TypeStageStarted, item, acct.Status, "", 1)
	outcome, runErr := o.runStage(flightCtx, item, acct, logger)

	if runErr != nil {
		if flightCtx.Err() != nil {
			logger.Info("stage cancelled")
			o.publish(events.TypeStageFailed, item, acct.Status, "cancelled", 0)
			o.finishFlight(item.Email, false)
			return
		}
		// Scheduling failure (e.g. session budget exhausted): the account
		// goes to error so a later resubmission can resume this stage.
		outcome = account.Failure(runErr.Error())
	}

	newStatus, terr := account.Transition(acct.Status, item.Stage, outcome, item.Force)
	if terr != nil {
		logger.Error("transition rejected", logging.Error(terr))
		o.publish(events.TypeStageFailed, item, acct.Status, terr.Error(), 0)
		o.finishFlight(item.Email, false)
		return
	}

	message := formatMessage(outcome)
	if err := o.store.ApplyTransition(context.Background(), item.Email, newStatus, message); err != nil {
		logger.Error("persist transition", logging.Error(err))
		o.notifyError(err, "persist transition", logger)
		o.publish(events.TypeStageFailed, item, acct.Status, err.Error(), 0)
		o.finishFlight(item.Email, false)
		return
	}

	switch outcome.Kind {
	case account.OutcomeFailure:
		logger.Warn("stage failed", logging.String("message", message))
		o.publish(events.TypeStageFailed, item, newStatus, message, 0)
		if err := o.notifier.NotifyAccountFailed(context.Background(), item.Email, string(item.Stage), message); err != nil {
			logger.Warn("notify failure", logging.Error(err))
		}
		o.finishFlight(item.Email, false)

	case account.OutcomeIneligible:
		logger.Info("account ineligible", logging.String("message", message))
		o.publish(events.TypeStageSucceeded, item, newStatus, message, 0)
		o.publish(events.TypePipelineCompleted, item, newStatus, message, 0)
		if err := o.notifier.NotifyAccountIneligible(context.Background(), item.Email, message); err != nil {
			logger.Warn("notify ineligible", logging.Error(err))
		}
		o.finishFlight(item.Email, true)

	case account.OutcomeSuccess:
		logger.Info("stage succeeded", logging.String("status", string(newStatus)))
		o.publish(events.TypeStageSucceeded, item, newStatus, message, 0)

		// A forced run can sit on a stale terminal status until a later stage
		// overwrites it, so force keeps the chain advancing (and overriding).
		next, hasNext := account.NextStage(item.Stage)
		advance := item.Mode == ModePipeline && o.cfg.Pipeline.AutoAdvance &&
			hasNext && (!newStatus.IsTerminal() || item.Force)
		if advance {
			o.mu.Lock()
			if fl.cancelled {
				o.mu.Unlock()
				o.finishFlight(item.Email, false)
				return
			}
			nextItem := newWorkItem(item.Email, next, item.Mode, item.Force)
			fl.item = nextItem
			fl.cancel = nil
			o.queue.Push(nextItem)
			o.mu.Unlock()
			return
		}

		if newStatus.IsTerminal() {
			o.publish(events.TypePipelineCompleted, item, newStatus, message, 0)
			if newStatus == account.StatusSubscribed {
				if err := o.notifier.NotifyPipelineCompleted(context.Background(), item.Email); err != nil {
					logger.Warn("notify completion", logging.Error(err))
				}
			}
		}
		o.finishFlight(item.Email, true)
	}
}

// notifyError forwards an operational failure to the notifier; delivery
// problems are only logged.
func (o *Orchestrator) notifyError(err error, label string, logger *slog.Logger) {
	if nerr := o.notifier.NotifyError(context.Background(), err, label); nerr != nil {
		logger.Warn("notify error", logging.Error(nerr))
	}
}

// runStage leases a session and drives step attempts for one work item. It
// returns the final outcome, or an error when the stage could not run at all
// (cancellation, exhausted session budget).
func (o *Orchestrator) runStage(ctx context.Context, item *WorkItem, acct *account.Account, logger *slog.Logger) (account.Outcome, error) {
	step, ok := o.registry.Step(item.Stage)
	if !ok {
		return account.Outcome{}, Wrap(ErrConfiguration, string(item.Stage), "run", "no step bound", nil)
	}

	session, err := o.acquireSession(ctx, item, logger)
	if err != nil {
		return account.Outcome{}, err
	}
	if err := o.store.AssignBrowser(ctx, item.Email, session.ID); err != nil {
		logger.Warn("record browser binding", logging.Error(err))
	}

	stepTimeout := time.Duration(o.cfg.Pipeline.StepTimeoutSeconds) * time.Second
	maxAttempts := o.cfg.Pipeline.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		stepCtx, cancelStep := context.WithTimeout(ctx, stepTimeout)
		outcome, stepErr := step(stepCtx, acct.Snapshot(), session)
		timedOut := errors.Is(stepCtx.Err(), context.DeadlineExceeded)
		cancelStep()

		if ctx.Err() != nil {
			o.sessions.Release(context.Background(), session)
			return account.Outcome{}, ctx.Err()
		}

		if stepErr == nil && outcome.Kind != account.OutcomeFailure {
			o.sessions.Release(ctx, session)
			return outcome, nil
		}

		failure := stepFailureMessage(item.Stage, outcome, stepErr, timedOut, stepTimeout)
		if attempt < maxAttempts {
			logger.Warn("stage attempt failed, retrying",
				logging.Int(logging.FieldAttempt, attempt),
				logging.String("message", failure))
			o.publish(events.TypeStageRetrying, item, acct.Status, failure, attempt)
			if err := o.backoff(ctx, attempt); err != nil {
				o.sessions.Release(context.Background(), session)
				return account.Outcome{}, err
			}
			continue
		}

		// Out of attempts: assume the session is part of the problem and
		// tear it down rather than parking it for reuse.
		o.sessions.Destroy(ctx, session)
		if err := o.store.ClearBrowser(context.Background(), item.Email); err != nil {
			logger.Warn("clear browser binding", logging.Error(err))
		}
		return account.Failure(failure), nil
	}
}

// acquireSession leases a session, retrying with exponential backoff when
// the pool is saturated. After the retry budget it reports exhaustion.
func (o *Orchestrator) acquireSession(ctx context.Context, item *WorkItem, logger *slog.Logger) (*pool.Session, error) {
	acquireTimeout := time.Duration(o.cfg.Pipeline.AcquireTimeoutSeconds) * time.Second
	attempts := o.cfg.Pipeline.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, acquireTimeout)
		session, err := o.sessions.Acquire(attemptCtx, item.Email)
		cancel()
		if err == nil {
			return session, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt >= attempts {
			return nil, Wrap(ErrResourceExhausted, string(item.Stage), "acquire",
				fmt.Sprintf("after %d attempts", attempts), err)
		}
		logger.Warn("session acquire failed, retrying",
			logging.Int(logging.FieldAttempt, attempt),
			logging.Error(err))
		o.publish(events.TypeStageRetrying, item, "", "waiting for browser session", attempt)
		if err := o.backoff(ctx, attempt); err != nil {
			return nil, err
		}
	}
}

// backoff sleeps for the attempt's exponential delay, capped by config.
func (o *Orchestrator) backoff(ctx context.Context, attempt int) error {
	base := time.Duration(o.cfg.Pipeline.BackoffSeconds) * time.Second
	maxDelay := time.Duration(o.cfg.Pipeline.BackoffMaxSeconds) * time.Second
	delay := base << (attempt - 1)
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func stepFailureMessage(stage account.Stage, outcome account.Outcome, stepErr error, timedOut bool, stepTimeout time.Duration) string {
	switch {
	case timedOut:
		return Wrap(ErrStepTimeout, string(stage), "step",
			fmt.Sprintf("no result within %s", stepTimeout), nil).Error()
	case stepErr != nil:
		return Wrap(ErrStepFailure, string(stage), "step", "", stepErr).Error()
	default:
		return Wrap(ErrStepFailure, string(stage), "step", outcome.Message, nil).Error()
	}
}

// formatMessage folds step data into the persisted message so results like
// retrieved links survive next to the human-readable text.
func formatMessage(outcome account.Outcome) string {
	message := strings.TrimSpace(outcome.Message)
	if len(outcome.Data) == 0 {
		return message
	}
	keys := make([]string, 0, len(outcome.Data))
	for key := range outcome.Data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+"="+outcome.Data[key])
	}
	joined := strings.Join(parts, " ")
	if message == "" {
		return joined
	}
	return message + " [" + joined + "]"
}
