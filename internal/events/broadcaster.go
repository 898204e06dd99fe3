package events

import (
	"context"
	"sync"
	"time"
)

// Type identifies a progress event kind.
type Type string

const (
	TypeStageStarted      Type = "stage_started"
	TypeStageSucceeded    Type = "stage_succeeded"
	TypeStageFailed       Type = "stage_failed"
	TypeStageRetrying     Type = "stage_retrying"
	TypePipelineCompleted Type = "pipeline_completed"
)

// Event records one observable pipeline state change for an account.
type Event struct {
	Sequence  uint64    `json:"seq"`
	Timestamp time.Time `json:"ts"`
	Type      Type      `json:"type"`
	Email     string    `json:"email"`
	Stage     string    `json:"stage,omitempty"`
	Status    string    `json:"status,omitempty"`
	Message   string    `json:"message,omitempty"`
	Attempt   int       `json:"attempt,omitempty"`
}

type subscriber struct {
	ch chan Event
}

// Broadcaster stores recent events and fans new ones out to subscribers.
// Channel subscribers see only events published after they subscribe; slow
// subscribers lose their oldest buffered events rather than blocking
// Publish. Pollers use Fetch with a sequence cursor against the ring
// buffer.
type Broadcaster struct {
	mu        sync.Mutex
	cond      *sync.Cond
	capacity  int
	subBuffer int
	buffer    []Event
	nextSeq   uint64
	subs      map[*subscriber]struct{}
}

// NewBroadcaster constructs a broadcaster holding up to capacity events,
// with per-subscriber channel buffers of subBuffer events.
func NewBroadcaster(capacity, subBuffer int) *Broadcaster {
	if capacity <= 0 {
		capacity = 512
	}
	if subBuffer <= 0 {
		subBuffer = 64
	}
	b := &Broadcaster{
		capacity:  capacity,
		subBuffer: subBuffer,
		subs:      make(map[*subscriber]struct{}),
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Publish stamps the event with a sequence number and timestamp, records it,
// and delivers it to every subscriber.
func (b *Broadcaster) Publish(evt Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.nextSeq++
	evt.Sequence = b.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	if len(b.buffer) == b.capacity {
		copy(b.buffer, b.buffer[1:])
		b.buffer = b.buffer[:b.capacity-1]
	}
	b.buffer = append(b.buffer, evt)

	for sub := range b.subs {
		for {
			select {
			case sub.ch <- evt:
			default:
				// Full: drop the subscriber's oldest event and retry.
				select {
				case <-sub.ch:
				default:
				}
				continue
			}
			break
		}
	}
	b.cond.Broadcast()
	b.mu.Unlock()
}

// Subscribe registers a live event channel. The returned cancel func must be
// called to release the subscription; the channel is closed on cancel.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, b.subBuffer)}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, sub)
			b.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Fetch returns buffered events with sequence greater than since. When wait
// is true, Fetch blocks until at least one is available or ctx ends.
func (b *Broadcaster) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Event, uint64, error) {
	if b == nil {
		return nil, since, nil
	}
	if limit <= 0 || limit > b.capacity {
		limit = b.capacity
	}

	cancelWait := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				b.cond.Broadcast()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		events, next := b.snapshotLocked(since, limit)
		if len(events) > 0 || !wait {
			return events, next, ctxErr(ctx)
		}
		if err := ctxErr(ctx); err != nil {
			return nil, next, err
		}
		b.cond.Wait()
		if err := ctxErr(ctx); err != nil {
			return nil, next, err
		}
	}
}

// Tail returns the most recent limit events without blocking.
func (b *Broadcaster) Tail(limit int) ([]Event, uint64) {
	if b == nil {
		return nil, 0
	}
	if limit <= 0 || limit > b.capacity {
		limit = b.capacity
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buffer) == 0 {
		return nil, b.nextSeq
	}
	start := len(b.buffer) - limit
	if start < 0 {
		start = 0
	}
	out := make([]Event, len(b.buffer)-start)
	copy(out, b.buffer[start:])
	return out, b.nextSeq
}

func (b *Broadcaster) snapshotLocked(since uint64, limit int) ([]Event, uint64) {
	if len(b.buffer) == 0 {
		return nil, b.nextSeq
	}
	startIdx := -1
	for i, evt := range b.buffer {
		if evt.Sequence > since {
			startIdx = i
			break
		}
	}
	if startIdx < 0 {
		return nil, b.nextSeq
	}
	end := startIdx + limit
	if end > len(b.buffer) {
		end = len(b.buffer)
	}
	out := make([]Event, end-startIdx)
	copy(out, b.buffer[startIdx:end])
	return out, b.nextSeq
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
