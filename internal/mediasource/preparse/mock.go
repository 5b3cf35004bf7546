package preparse

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nmxmxh/master-ovasabi/internal/mediasource"
	"github.com/nmxmxh/master-ovasabi/pkg/metrics"
)

const mockEnginePool = "preparse-mock"

// MockEngineConfig configures MockEngine's synthetic expansion.
type MockEngineConfig struct {
	// ChildrenPerItem children are generated per submitted item.
	ChildrenPerItem int
	// Delay is how long the engine waits before reporting completion.
	Delay time.Duration
	// Fail, if true, makes every request end with PreparseFailed instead of
	// producing children.
	Fail bool
	// Workers bounds how many requests run concurrently; Submit still
	// returns at once, and additional requests wait for a free slot before
	// starting. Zero means unbounded.
	Workers int
}

// MockEngine is an in-process stand-in for a real preparse engine: it
// "expands" an item by synthesizing ChildrenPerItem leaf items after
// Delay, honoring cancellation via a per-token context. Concurrency is
// bounded by a semaphore sized to cfg.Workers.
type MockEngine struct {
	cfg MockEngineConfig
	sem chan struct{}

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewMockEngine constructs a MockEngine.
func NewMockEngine(cfg MockEngineConfig) *MockEngine {
	if cfg.ChildrenPerItem <= 0 {
		cfg.ChildrenPerItem = 2
	}
	e := &MockEngine{cfg: cfg, cancels: make(map[string]context.CancelFunc)}
	if cfg.Workers > 0 {
		e.sem = make(chan struct{}, cfg.Workers)
	}
	return e
}

func (e *MockEngine) Submit(ctx context.Context, item *mediasource.Item, cb EngineCallbacks) (Token, error) {
	token := uuid.NewString()
	runCtx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	e.cancels[token] = cancel
	e.mu.Unlock()

	metrics.WorkerPoolGauges.WithLabelValues(mockEnginePool, "active").Inc()
	metrics.WorkerPoolCounters.WithLabelValues(mockEnginePool, "submitted").Inc()
	go e.run(runCtx, token, item, cb)
	return token, nil
}

func (e *MockEngine) Cancel(token Token) {
	key, ok := token.(string)
	if !ok {
		return
	}
	e.mu.Lock()
	cancel, ok := e.cancels[key]
	delete(e.cancels, key)
	e.mu.Unlock()
	if ok {
		cancel()
	}
}

func (e *MockEngine) run(ctx context.Context, token string, item *mediasource.Item, cb EngineCallbacks) {
	start := time.Now()
	defer func() {
		e.mu.Lock()
		delete(e.cancels, token)
		e.mu.Unlock()
		metrics.WorkerPoolGauges.WithLabelValues(mockEnginePool, "active").Dec()
		metrics.WorkerPoolHistograms.WithLabelValues(mockEnginePool).Observe(time.Since(start).Seconds())
	}()

	if e.sem != nil {
		select {
		case e.sem <- struct{}{}:
			defer func() { <-e.sem }()
		case <-ctx.Done():
			metrics.WorkerPoolCounters.WithLabelValues(mockEnginePool, "cancelled").Inc()
			if cb.OnPreparseEnded != nil {
				cb.OnPreparseEnded(item, mediasource.PreparseCancelled)
			}
			return
		}
	}

	select {
	case <-ctx.Done():
		metrics.WorkerPoolCounters.WithLabelValues(mockEnginePool, "cancelled").Inc()
		if cb.OnPreparseEnded != nil {
			cb.OnPreparseEnded(item, mediasource.PreparseCancelled)
		}
		return
	case <-time.After(e.cfg.Delay):
	}

	if e.cfg.Fail {
		metrics.WorkerPoolCounters.WithLabelValues(mockEnginePool, "failed").Inc()
		if cb.OnPreparseEnded != nil {
			cb.OnPreparseEnded(item, mediasource.PreparseFailed)
		}
		return
	}

	children := make([]*mediasource.Item, 0, e.cfg.ChildrenPerItem)
	for i := 0; i < e.cfg.ChildrenPerItem; i++ {
		children = append(children, mediasource.NewItem(
			item.Name()+"/child", item.URL()))
	}
	if cb.OnSubtreeAdded != nil {
		cb.OnSubtreeAdded(item, children)
	}
	metrics.WorkerPoolCounters.WithLabelValues(mockEnginePool, "completed").Inc()
	if cb.OnPreparseEnded != nil {
		cb.OnPreparseEnded(item, mediasource.PreparseOK)
	}
}
