package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gantry/internal/browser"
	"gantry/internal/logging"
)

// Backend abstracts the browser window-manager API the pool drives.
type Backend interface {
	CreateWindow(ctx context.Context, email string) (string, error)
	OpenWindow(ctx context.Context, id string) (browser.WindowInfo, error)
	CloseWindow(ctx context.Context, id string) error
	DeleteWindow(ctx context.Context, id string) error
	Alive(ctx context.Context, id string) bool
}

// ErrAcquireTimeout indicates no session became available before the
// caller's deadline.
var ErrAcquireTimeout = errors.New("timed out waiting for a browser session")

// ErrPoolClosed indicates the pool has been shut down.
var ErrPoolClosed = errors.New("session pool closed")

// Session is one live browser window leased to a worker. ID is the backend
// window ID; Endpoint is the CDP websocket automation steps connect to.
type Session struct {
	ID       string
	Email    string
	Endpoint string
	OpenedAt time.Time
}

// Pool hands out browser sessions up to a fixed capacity. An account's
// window survives release so a later acquire for the same email reuses its
// warm profile; windows are only deleted on Destroy.
type Pool struct {
	backend     Backend
	capacity    int
	openTimeout time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	inUse   map[string]*Session
	idle    []*Session
	opening int
	windows map[string]string
	waiters []chan struct{}
	closed  bool
}

// Option configures optional pool behavior.
type Option func(*Pool)

// WithOpenTimeout bounds each cold window open (create plus open calls
// against the backend) independently of the acquirer's deadline.
func WithOpenTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.openTimeout = d
		}
	}
}

// New constructs a pool over the given backend. Capacity must be positive.
func New(backend Backend, capacity int, logger *slog.Logger, opts ...Option) *Pool {
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Pool{
		backend:  backend,
		capacity: capacity,
		logger:   logger.With(logging.String(logging.FieldComponent, "pool")),
		inUse:    make(map[string]*Session),
		windows:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Capacity returns the maximum number of concurrently open sessions.
func (p *Pool) Capacity() int {
	return p.capacity
}

// Stats reports current lease counts.
func (p *Pool) Stats() (inUse, idle int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inUse), len(p.idle)
}

func (p *Pool) openCountLocked() int {
	return len(p.inUse) + len(p.idle) + p.opening
}

// Acquire leases a session bound to email, blocking until capacity frees up
// or ctx expires. Waiters are served in arrival order. A deadline expiry is
// reported as ErrAcquireTimeout.
func (p *Pool) Acquire(ctx context.Context, email string) (*Session, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}

		// Warm path: this account already has an idle window.
		for i, session := range p.idle {
			if session.Email == email {
				p.idle = append(p.idle[:i], p.idle[i+1:]...)
				p.inUse[session.ID] = session
				p.mu.Unlock()
				return session, nil
			}
		}

		if p.openCountLocked() < p.capacity {
			p.opening++
			p.mu.Unlock()
			return p.openSession(ctx, email)
		}

		// Full but some other account holds an idle window: close it to
		// free the slot. Its profile stays on the backend for later.
		if len(p.idle) > 0 {
			evicted := p.idle[0]
			p.idle = p.idle[1:]
			p.opening++
			p.mu.Unlock()
			if err := p.backend.CloseWindow(ctx, evicted.ID); err != nil {
				p.logger.Warn("close evicted window",
					logging.String(logging.FieldSessionID, evicted.ID),
					logging.Error(err))
			}
			return p.openSession(ctx, email)
		}

		ready := make(chan struct{})
		p.waiters = append(p.waiters, ready)
		p.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			p.dropWaiter(ready)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrAcquireTimeout
			}
			return nil, ctx.Err()
		}
	}
}

func (p *Pool) openSession(ctx context.Context, email string) (*Session, error) {
	session, err := p.coldOpen(ctx, email)

	p.mu.Lock()
	p.opening--
	if err != nil {
		p.notifyLocked()
		p.mu.Unlock()
		return nil, err
	}
	if p.closed {
		p.mu.Unlock()
		_ = p.backend.CloseWindow(context.Background(), session.ID)
		return nil, ErrPoolClosed
	}
	p.inUse[session.ID] = session
	p.mu.Unlock()
	return session, nil
}

func (p *Pool) coldOpen(ctx context.Context, email string) (*Session, error) {
	if p.openTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.openTimeout)
		defer cancel()
	}

	p.mu.Lock()
	windowID := p.windows[email]
	p.mu.Unlock()

	if windowID == "" {
		id, err := p.backend.CreateWindow(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("create browser window: %w", err)
		}
		windowID = id
		p.mu.Lock()
		p.windows[email] = windowID
		p.mu.Unlock()
	}

	info, err := p.backend.OpenWindow(ctx, windowID)
	if err != nil {
		return nil, fmt.Errorf("open browser window: %w", err)
	}

	p.logger.Info("session opened",
		logging.String(logging.FieldAccount, email),
		logging.String(logging.FieldSessionID, windowID))
	return &Session{
		ID:       windowID,
		Email:    email,
		Endpoint: info.Endpoint,
		OpenedAt: time.Now(),
	}, nil
}

// Release returns a session after successful or transient work. The window
// is health-checked first: a dead window is torn down instead of being
// parked for reuse.
func (p *Pool) Release(ctx context.Context, session *Session) {
	if session == nil {
		return
	}
	if !p.backend.Alive(ctx, session.ID) {
		p.logger.Warn("released session unhealthy, destroying",
			logging.String(logging.FieldAccount, session.Email),
			logging.String(logging.FieldSessionID, session.ID))
		p.Destroy(ctx, session)
		return
	}

	p.mu.Lock()
	delete(p.inUse, session.ID)
	if p.closed {
		p.mu.Unlock()
		_ = p.backend.CloseWindow(ctx, session.ID)
		return
	}
	p.idle = append(p.idle, session)
	p.notifyLocked()
	p.mu.Unlock()
}

// Destroy tears a corrupted session down completely, deleting the backend
// window and its profile, then frees the slot.
func (p *Pool) Destroy(ctx context.Context, session *Session) {
	if session == nil {
		return
	}
	if err := p.backend.CloseWindow(ctx, session.ID); err != nil {
		p.logger.Warn("close window",
			logging.String(logging.FieldSessionID, session.ID), logging.Error(err))
	}
	if err := p.backend.DeleteWindow(ctx, session.ID); err != nil {
		p.logger.Warn("delete window",
			logging.String(logging.FieldSessionID, session.ID), logging.Error(err))
	}

	p.mu.Lock()
	delete(p.inUse, session.ID)
	if p.windows[session.Email] == session.ID {
		delete(p.windows, session.Email)
	}
	p.notifyLocked()
	p.mu.Unlock()

	p.logger.Info("session destroyed",
		logging.String(logging.FieldAccount, session.Email),
		logging.String(logging.FieldSessionID, session.ID))
}

// Close shuts the pool down, closing every idle window and waking all
// waiters. In-use sessions are closed as they come back.
func (p *Pool) Close(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	waiters := p.waiters
	p.waiters = nil
	p.mu.Unlock()

	for _, waiter := range waiters {
		close(waiter)
	}
	for _, session := range idle {
		if err := p.backend.CloseWindow(ctx, session.ID); err != nil {
			p.logger.Warn("close window on shutdown",
				logging.String(logging.FieldSessionID, session.ID), logging.Error(err))
		}
	}
}

// notifyLocked wakes the longest-waiting acquirer. Callers hold p.mu.
func (p *Pool) notifyLocked() {
	if len(p.waiters) == 0 {
		return
	}
	ready := p.waiters[0]
	p.waiters = p.waiters[1:]
	close(ready)
}

func (p *Pool) dropWaiter(ready chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, waiter := range p.waiters {
		if waiter == ready {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return
		}
	}
	// Already signaled: pass the wakeup on so the slot isn't lost.
	select {
	case <-ready:
		p.notifyLocked()
	default:
	}
}
