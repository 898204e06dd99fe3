package testsupport

import (
	"context"
	"fmt"
	"sync"

	"gantry/internal/browser"
)

// FakeBackend is an in-memory stand-in for the browser window-manager API.
// Windows are tracked by ID; Fail* hooks force errors, and DeadWindows marks
// windows that report as not alive.
type FakeBackend struct {
	mu          sync.Mutex
	nextID      int
	windows     map[string]string
	open        map[string]bool
	deleted     []string
	FailOpen    bool
	FailCreate  bool
	DeadWindows map[string]bool
}

// NewFakeBackend returns an empty fake backend.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		windows:     make(map[string]string),
		open:        make(map[string]bool),
		DeadWindows: make(map[string]bool),
	}
}

func (b *FakeBackend) CreateWindow(ctx context.Context, email string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailCreate {
		return "", fmt.Errorf("backend create failure")
	}
	b.nextID++
	id := fmt.Sprintf("win-%d", b.nextID)
	b.windows[id] = email
	return id, nil
}

func (b *FakeBackend) OpenWindow(ctx context.Context, id string) (browser.WindowInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailOpen {
		return browser.WindowInfo{}, fmt.Errorf("backend open failure")
	}
	email, ok := b.windows[id]
	if !ok {
		return browser.WindowInfo{}, fmt.Errorf("unknown window %s", id)
	}
	b.open[id] = true
	return browser.WindowInfo{
		ID:       id,
		Email:    email,
		Endpoint: "ws://127.0.0.1:9222/" + id,
		Open:     true,
	}, nil
}

func (b *FakeBackend) CloseWindow(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.open, id)
	return nil
}

func (b *FakeBackend) DeleteWindow(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.open, id)
	delete(b.windows, id)
	b.deleted = append(b.deleted, id)
	return nil
}

func (b *FakeBackend) Alive(ctx context.Context, id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.DeadWindows[id] {
		return false
	}
	return b.open[id]
}

// OpenCount returns the number of currently open windows.
func (b *FakeBackend) OpenCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.open)
}

// Deleted returns the IDs of windows removed via DeleteWindow.
func (b *FakeBackend) Deleted() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.deleted...)
}

// MarkDead flags a window so Alive reports false for it.
func (b *FakeBackend) MarkDead(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.DeadWindows[id] = true
}
