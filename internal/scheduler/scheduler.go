// Package scheduler runs a named periodic worker loop. The evaluator and
// dispatcher passes are both built on it; each loop is independently
// startable and stoppable at runtime.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type Loop struct {
	name     string
	interval time.Duration
	tickFn   func(context.Context)
	logger   *slog.Logger

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(name string, interval time.Duration, tickFn func(context.Context), logger *slog.Logger) (*Loop, error) {
	if name == "" {
		return nil, errors.New("name must not be empty")
	}
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if tickFn == nil {
		return nil, errors.New("tickFn must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		name:     name,
		interval: interval,
		tickFn:   tickFn,
		logger:   logger.With("loop", name),
		done:     make(chan struct{}),
	}, nil
}

func (l *Loop) Name() string { return l.name }

// Start launches the loop goroutine. The first tick fires immediately.
// Returns false if the loop is already running.
func (l *Loop) Start() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})
	l.running.Store(true)

	go func() {
		defer close(l.done)

		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()

		l.logger.Info("loop started", "interval", l.interval.String())

		l.safeTick(ctx)

		for {
			select {
			case <-ctx.Done():
				l.logger.Info("loop stopping")
				return
			case <-ticker.C:
				l.safeTick(ctx)
			}
		}
	}()

	return true
}

// Stop cancels the loop context and waits for the goroutine to exit.
// Returns false if the loop was not running.
func (l *Loop) Stop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running.Load() {
		return false
	}

	l.cancel()
	<-l.done
	l.running.Store(false)

	l.logger.Info("loop stopped")
	return true
}

func (l *Loop) IsRunning() bool {
	return l.running.Load()
}

// safeTick recovers a panicking tick so one bad pass cannot take the loop
// down.
func (l *Loop) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("tick panic recovered", "panic", r)
		}
	}()

	start := time.Now()
	l.tickFn(ctx)
	l.logger.Debug("tick completed", "duration_ms", time.Since(start).Milliseconds())
}
