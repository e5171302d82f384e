package reconciler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/averbaflow/backend/internal/infrastructure/cache"
)

// TriggerConfig holds scheduling settings for the interval trigger.
type TriggerConfig struct {
	// Interval is how often a cycle is started.
	Interval time.Duration

	// CycleTimeout bounds a single cycle. Must not exceed Interval so
	// cycles never pile up behind each other.
	CycleTimeout time.Duration
}

// DefaultTriggerConfig returns default scheduling settings.
func DefaultTriggerConfig() TriggerConfig {
	return TriggerConfig{
		Interval:     10 * time.Minute,
		CycleTimeout: 8 * time.Minute,
	}
}

// IntervalTrigger runs reconciliation cycles on a fixed interval. The
// cycle lock guarantees that only one instance runs a cycle at a time
// when several share the same ledger.
type IntervalTrigger struct {
	config     TriggerConfig
	reconciler *Reconciler
	lock       cache.CycleLock
	logger     *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewIntervalTrigger creates a new interval trigger.
func NewIntervalTrigger(config TriggerConfig, rec *Reconciler, lock cache.CycleLock, log *zap.Logger) *IntervalTrigger {
	if config.Interval <= 0 {
		config.Interval = 10 * time.Minute
	}
	if config.CycleTimeout <= 0 || config.CycleTimeout > config.Interval {
		config.CycleTimeout = config.Interval
	}
	return &IntervalTrigger{
		config:     config,
		reconciler: rec,
		lock:       lock,
		logger:     log,
	}
}

// Start starts the trigger. The first cycle runs immediately.
func (t *IntervalTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Reconciliation trigger started",
		zap.Duration("interval", t.config.Interval),
		zap.Duration("cycle_timeout", t.config.CycleTimeout),
	)
	return nil
}

// Stop stops the trigger and waits for an in-flight cycle to finish or
// the given context to expire.
func (t *IntervalTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Reconciliation trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *IntervalTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	// Run immediately on start
	t.runGuarded(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.runGuarded(ctx)
		}
	}
}

// runGuarded runs one cycle under the cycle lock and the cycle timeout.
func (t *IntervalTrigger) runGuarded(ctx context.Context) {
	acquired, err := t.lock.Acquire(ctx)
	if err != nil {
		t.logger.Error("Failed to acquire cycle lock", zap.Error(err))
		return
	}
	if !acquired {
		t.logger.Info("Skipping cycle, another instance holds the lock")
		return
	}
	defer func() {
		if err := t.lock.Release(ctx); err != nil {
			t.logger.Warn("Failed to release cycle lock", zap.Error(err))
		}
	}()

	cycleCtx, cancel := context.WithTimeout(ctx, t.config.CycleTimeout)
	defer cancel()

	if _, err := t.reconciler.RunCycle(cycleCtx); err != nil {
		t.logger.Error("Reconciliation cycle failed", zap.Error(err))
	}
}
