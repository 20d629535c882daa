package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/glefebvre/housou/internal/logger"
)

// Hook releases one resource during shutdown
type Hook struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Handler runs registered hooks when the process is asked to stop
type Handler struct {
	mu      sync.Mutex
	hooks   []Hook
	timeout time.Duration
	done    chan struct{}
	started bool
	trigger chan struct{}
	once    sync.Once
	log     *logger.Logger
}

// New creates a new shutdown handler
func New(timeout time.Duration) *Handler {
	return &Handler{
		timeout: timeout,
		done:    make(chan struct{}),
		trigger: make(chan struct{}),
		log:     logger.AppLogger(),
	}
}

// Register adds a hook. Hooks run one at a time in reverse registration
// order so that the HTTP server stops before the store it uses is closed.
func (h *Handler) Register(name string, fn func(ctx context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, Hook{Name: name, Fn: fn})
}

// Wait blocks until SIGINT, SIGTERM, Trigger or ctx cancellation, then shuts down
func (h *Handler) Wait(ctx context.Context) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case sig := <-sigs:
		h.log.WithFields(map[string]interface{}{"signal": sig.String()}).Info("Shutdown signal received")
	case <-h.trigger:
		h.log.Info("Shutdown triggered")
	case <-ctx.Done():
	}

	return h.Shutdown()
}

// Trigger makes a pending Wait return
func (h *Handler) Trigger() {
	h.once.Do(func() { close(h.trigger) })
}

// Shutdown runs every hook within the handler timeout. Only the first call does any work.
func (h *Handler) Shutdown() error {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return nil
	}
	h.started = true
	hooks := make([]Hook, len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.Unlock()

	close(h.done)

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		hook := hooks[i]
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("%s: %w", hook.Name, ctx.Err()))
			continue
		}
		if err := hook.Fn(ctx); err != nil {
			h.log.WithFields(map[string]interface{}{"hook": hook.Name}).Error("Shutdown hook failed", err)
			errs = append(errs, fmt.Errorf("%s: %w", hook.Name, err))
			continue
		}
		h.log.WithFields(map[string]interface{}{"hook": hook.Name}).Debug("Shutdown hook completed")
	}

	return errors.Join(errs...)
}

// IsShuttingDown reports whether Shutdown has started
func (h *Handler) IsShuttingDown() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started
}

// Done is closed once Shutdown starts
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
