package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lectern/lectern/internal/storage"
)

// Coordinator states.
const (
	StateStopped  = "stopped"
	StateStarting = "starting"
	StateRunning  = "running"
)

// NewProviderFunc builds a storage provider for a library root. The
// coordinator uses it when the watched root changes.
type NewProviderFunc func(root string) (storage.Provider, error)

// Coordinator owns full-tree rescans and the watcher lifecycle for one
// library root. The root is set at construction and only changes through
// Reconfigure, which runs stop, swap root, start; there is no shared mutable
// configuration to race on.
type Coordinator struct {
	db          *DB
	logger      *slog.Logger
	cb          EventCallback
	debounce    time.Duration
	newProvider NewProviderFunc

	mu     sync.Mutex
	state  string
	store  storage.Provider
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCoordinator creates a stopped coordinator for the given provider.
func NewCoordinator(db *DB, store storage.Provider, debounce time.Duration, logger *slog.Logger, cb EventCallback, newProvider NewProviderFunc) *Coordinator {
	return &Coordinator{
		db:          db,
		logger:      logger,
		cb:          cb,
		debounce:    debounce,
		newProvider: newProvider,
		state:       StateStopped,
		store:       store,
	}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Provider returns the active storage provider.
func (c *Coordinator) Provider() storage.Provider {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store
}

// Start performs an initial full rescan and then registers live watch
// subscriptions. It is an error to start a coordinator that is not stopped.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateStopped {
		c.mu.Unlock()
		return fmt.Errorf("coordinator: start from state %q", c.state)
	}
	c.state = StateStarting
	store := c.store
	c.mu.Unlock()

	// Initial scan runs before live subscriptions; rescans are idempotent,
	// so anything changed in the gap is picked up by the watcher afterwards.
	if err := Sync(ctx, c.db, store, c.logger); err != nil {
		c.mu.Lock()
		c.state = StateStopped
		c.mu.Unlock()
		return fmt.Errorf("coordinator: initial scan: %w", err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	c.mu.Lock()
	c.cancel = cancel
	c.done = done
	c.state = StateRunning
	c.mu.Unlock()

	w := NewWatcher(c.db, store, store.Root(), c.debounce, c.logger, c.cb)
	go func() {
		defer close(done)
		if err := w.Run(watchCtx); err != nil {
			c.logger.Error("coordinator: watcher failed", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Stop tears down the watch subscriptions without touching the index and
// waits for the watcher loop to drain. Stopping a stopped coordinator is a
// no-op.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.done = nil
	c.state = StateStopped
	c.mu.Unlock()

	cancel()
	<-done
}

// Reconfigure points the coordinator at a new library root: stop, swap the
// provider, start. The implied full rescan is safe to repeat.
func (c *Coordinator) Reconfigure(ctx context.Context, newRoot string) error {
	if c.newProvider == nil {
		return fmt.Errorf("coordinator: no provider factory configured")
	}
	store, err := c.newProvider(newRoot)
	if err != nil {
		return fmt.Errorf("coordinator: reconfigure: %w", err)
	}

	c.Stop()

	c.mu.Lock()
	c.store = store
	c.mu.Unlock()

	return c.Start(ctx)
}

// Rescan triggers a full walk of the current root, upserting changed files
// and purging entries whose files are gone.
func (c *Coordinator) Rescan(ctx context.Context) error {
	c.mu.Lock()
	store := c.store
	c.mu.Unlock()
	return Sync(ctx, c.db, store, c.logger)
}
