// Package shutdown stops the server in stages when the process is signalled.
//
// Hooks sharing a priority form one stage and run concurrently. Stages run
// in ascending priority, each after the previous one has finished, all
// within one overall timeout.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/gabrielmiguelok/crimedesk/pkg/logging"
)

var (
	ErrShutdownTimeout = errors.New("shutdown timed out")
	ErrAlreadyClosed   = errors.New("shutdown already ran")
)

// Stage priorities used by serve. Lower runs earlier.
const (
	PriorityHTTP    = 100 // stop accepting requests
	PriorityLive    = 200 // close live sessions
	PriorityStorage = 300 // flush drafts and the store snapshot
	PriorityLast    = 1000
)

// Hook is one named shutdown step.
type Hook struct {
	Name     string
	Priority int
	Fn       func(ctx context.Context) error
}

// Closer adapts an io.Closer to a Hook.
func Closer(name string, priority int, c io.Closer) Hook {
	return Hook{Name: name, Priority: priority, Fn: func(context.Context) error { return c.Close() }}
}

// Config configures a Handler.
type Config struct {
	// Timeout bounds the whole shutdown. Defaults to 30s.
	Timeout time.Duration
	// Signals trigger Wait. Defaults to SIGINT and SIGTERM.
	Signals []os.Signal
	Log     logging.Logger
}

// Handler collects hooks and runs them once.
type Handler struct {
	config Config
	hooks  []Hook
	done   chan struct{}
	closed bool
	mu     sync.Mutex
}

// NewHandler creates a handler.
func NewHandler(config Config) *Handler {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if len(config.Signals) == 0 {
		config.Signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	if config.Log == nil {
		config.Log = logging.NopLogger{}
	}
	return &Handler{config: config, done: make(chan struct{})}
}

func (h *Handler) Register(hook Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
}

func (h *Handler) RegisterFunc(name string, priority int, fn func(ctx context.Context) error) {
	h.Register(Hook{Name: name, Priority: priority, Fn: fn})
}

// Wait blocks until a signal arrives or ctx ends, then shuts down. It
// returns nil without running hooks if Shutdown already ran.
func (h *Handler) Wait(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, h.config.Signals...)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		h.config.Log.Info("shutdown signal received", logging.String("signal", sig.String()))
	case <-ctx.Done():
	case <-h.done:
		return nil
	}
	return h.Shutdown()
}

// Done is closed once shutdown starts.
func (h *Handler) Done() <-chan struct{} { return h.done }

// Shutdown runs the stages. Hook errors are joined and prefixed with the
// hook name. Stages left when the timeout expires are skipped.
func (h *Handler) Shutdown() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrAlreadyClosed
	}
	h.closed = true
	close(h.done)
	stages := group(h.hooks)
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var errs []error
	for _, stage := range stages {
		errs = append(errs, h.run(ctx, stage)...)
		if ctx.Err() != nil {
			return errors.Join(append(errs, ErrShutdownTimeout)...)
		}
	}
	return errors.Join(errs...)
}

func (h *Handler) run(ctx context.Context, stage []Hook) []error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, hook := range stage {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			err := hook.Fn(ctx)
			if err != nil {
				h.config.Log.Warn("shutdown hook failed", logging.String("hook", hook.Name), logging.Err(err))
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", hook.Name, err))
				mu.Unlock()
				return
			}
			h.config.Log.Debug("shutdown hook done", logging.String("hook", hook.Name), logging.Duration("took", time.Since(start)))
		}()
	}
	wg.Wait()
	return errs
}

// group splits hooks into stages of equal priority, in ascending order.
func group(hooks []Hook) [][]Hook {
	sorted := make([]Hook, len(hooks))
	copy(sorted, hooks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	var stages [][]Hook
	for i, hook := range sorted {
		if i == 0 || hook.Priority != sorted[i-1].Priority {
			stages = append(stages, nil)
		}
		stages[len(stages)-1] = append(stages[len(stages)-1], hook)
	}
	return stages
}
