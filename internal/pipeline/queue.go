package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"gantry/internal/account"
)

// Mode selects how far a submission runs.
type Mode string

const (
	// ModeSingleStage runs exactly one stage and stops.
	ModeSingleStage Mode = "single_stage"
	// ModePipeline runs the submitted stage and auto-advances to the end.
	ModePipeline Mode = "pipeline"
)

// ParseMode converts a string into a known Mode. Empty defaults to pipeline.
func ParseMode(value string) (Mode, bool) {
	switch Mode(value) {
	case "":
		return ModePipeline, true
	case ModeSingleStage, ModePipeline:
		return Mode(value), true
	default:
		return "", false
	}
}

// WorkItem is one scheduled stage execution for an account.
type WorkItem struct {
	ID         string
	Email      string
	Stage      account.Stage
	Mode       Mode
	Force      bool
	EnqueuedAt time.Time
}

func newWorkItem(email string, stage account.Stage, mode Mode, force bool) *WorkItem {
	return &WorkItem{
		ID:         uuid.NewString(),
		Email:      email,
		Stage:      stage,
		Mode:       mode,
		Force:      force,
		EnqueuedAt: time.Now(),
	}
}

// workQueue is a blocking FIFO of pending work items. Cancellation needs to
// pull queued items back out, which rules out a plain channel.
type workQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []*WorkItem
	closed bool
}

func newWorkQueue() *workQueue {
	q := &workQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *workQueue) Push(item *WorkItem) {
	q.mu.Lock()
	if !q.closed {
		q.items = append(q.items, item)
	}
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Pop blocks until an item is available, the queue closes, or ctx ends.
func (q *workQueue) Pop(ctx context.Context) (*WorkItem, bool) {
	cancelWait := make(chan struct{})
	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				q.cond.Broadcast()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			return item, true
		}
		if q.closed || (ctx != nil && ctx.Err() != nil) {
			return nil, false
		}
		q.cond.Wait()
	}
}

// Remove drops the queued item for email, if any.
func (q *workQueue) Remove(email string) *WorkItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, item := range q.items {
		if item.Email == email {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return item
		}
	}
	return nil
}

func (q *workQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *workQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}
