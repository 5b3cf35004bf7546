package mediasource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/nmxmxh/master-ovasabi/internal/mediasource/sd"
	mserrors "github.com/nmxmxh/master-ovasabi/pkg/errors"
	"github.com/nmxmxh/master-ovasabi/pkg/metrics"
)

// Provider is the registry of live Sources, keyed by name. It owns the
// only mutex that guards that registry; no tree lock is ever held while
// acquiring it, and no provider operation may be called while holding a
// tree lock.
type Provider struct {
	mu      sync.Mutex
	sources map[string]*Source

	factory sd.DiscovererFactory
	group   singleflight.Group
	breaker *gobreaker.CircuitBreaker

	catalogMu sync.RWMutex
	catalog   []sd.DiscovererMeta
	cron      *cron.Cron

	log *zap.Logger
}

// BreakerConfig bounds how aggressively the provider gives up on a
// repeatedly-failing SD plugin before letting a trial request through
// again.
type BreakerConfig struct {
	// MaxFailures consecutive SD construction failures trip the breaker.
	// Zero means the default of 3.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before a trial
	// request is allowed through. Zero means the default of 30s.
	OpenTimeout time.Duration
}

// New allocates a Provider bound to factory. If refreshInterval is
// positive, a background job refreshes the cached plugin catalog used by
// List on that cadence, so List never blocks on the SD subsystem
// directly.
func New(factory sd.DiscovererFactory, log *zap.Logger, refreshInterval time.Duration, breakerCfg BreakerConfig) *Provider {
	if breakerCfg.MaxFailures == 0 {
		breakerCfg.MaxFailures = 3
	}
	if breakerCfg.OpenTimeout == 0 {
		breakerCfg.OpenTimeout = 30 * time.Second
	}
	p := &Provider{
		sources: make(map[string]*Source),
		factory: factory,
		log:     log,
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "sd-construct",
		Timeout: breakerCfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerCfg.MaxFailures
		},
		OnStateChange: func(_ string, _ gobreaker.State, to gobreaker.State) {
			metrics.CircuitBreakerState.Set(float64(to))
		},
	})

	if refreshInterval > 0 {
		p.cron = cron.New()
		_, _ = p.cron.AddFunc(fmt.Sprintf("@every %s", refreshInterval), func() {
			if err := p.refreshCatalog(context.Background()); err != nil && p.log != nil {
				p.log.Warn("catalog refresh failed", zap.Error(err))
			}
		})
		p.cron.Start()
		_ = p.refreshCatalog(context.Background())
	}
	return p
}

// Close stops the background catalog refresh job. It does not touch any
// live sources; callers are responsible for releasing their own handles.
func (p *Provider) Close() {
	if p.cron != nil {
		ctx := p.cron.Stop()
		<-ctx.Done()
	}
}

// GetMediaSource returns a held handle to the named source, constructing
// it if absent. Concurrent calls for the same absent name are collapsed
// into a single construction via singleflight: group.Do runs its function
// exactly once and hands the same *Source to every caller waiting on that
// flight, so every caller — not just the one whose goroutine happened to
// execute the function — must mint its own reference afterward. That
// reference-per-caller step is re-validated under the registry lock
// against p.sources[name] before incrementing, because the source handed
// back by a "found existing" flight may be torn down by a concurrent
// Release between the flight completing and this caller claiming its
// share; if so, this caller retries rather than holding a half-released
// source.
func (p *Provider) GetMediaSource(ctx context.Context, name string) (*Source, error) {
	for {
		p.mu.Lock()
		if s, ok := p.sources[name]; ok {
			s.Hold()
			p.mu.Unlock()
			metrics.ProviderRequests.WithLabelValues("hit").Inc()
			return s, nil
		}
		p.mu.Unlock()

		v, err, _ := p.group.Do(name, func() (interface{}, error) {
			p.mu.Lock()
			if s, ok := p.sources[name]; ok {
				p.mu.Unlock()
				return s, nil
			}
			p.mu.Unlock()

			disc, err := p.constructDiscoverer(ctx, name)
			if err != nil {
				return nil, err
			}
			s := newSource(name, p.describe(name), disc, p.log)
			s.provider = p

			p.mu.Lock()
			p.sources[name] = s
			// newSource seeds refcount at 1 for standalone callers
			// (construct implies one outstanding reference). Nothing external
			// can have observed this brand-new source yet, so that seed
			// reference is discarded here: every real caller of
			// GetMediaSource mints its own reference below, once per caller.
			s.refcount.Add(-1)
			p.mu.Unlock()
			metrics.ActiveSources.Inc()
			return s, nil
		})
		if err != nil {
			metrics.ProviderRequests.WithLabelValues("error").Inc()
			return nil, err
		}

		s := v.(*Source)
		p.mu.Lock()
		if p.sources[name] != s {
			// Released and removed between the flight completing and this
			// caller claiming a reference. Retry: either a fresher source is
			// now registered, or none is and we construct one.
			p.mu.Unlock()
			continue
		}
		s.Hold()
		p.mu.Unlock()
		metrics.ProviderRequests.WithLabelValues("miss").Inc()
		return s, nil
	}
}

func (p *Provider) constructDiscoverer(ctx context.Context, name string) (sd.Discoverer, error) {
	v, err := p.breaker.Execute(func() (interface{}, error) {
		return p.factory.New(ctx, name)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("%w: %s: circuit open", mserrors.ErrSdInitFailed, name)
		}
		return nil, fmt.Errorf("%w: %s: %v", mserrors.ErrNotFound, name, err)
	}
	return v.(sd.Discoverer), nil
}

func (p *Provider) describe(name string) string {
	p.catalogMu.RLock()
	defer p.catalogMu.RUnlock()
	for _, m := range p.catalog {
		if m.Name == name {
			return m.Description
		}
	}
	return ""
}

// List returns the cached plugin catalog, filtered by category. An empty
// or "any" categoryFilter returns every entry. Listed entries may or may
// not correspond to currently constructed sources; List never constructs
// anything.
func (p *Provider) List(categoryFilter string) []sd.DiscovererMeta {
	p.catalogMu.RLock()
	defer p.catalogMu.RUnlock()

	if categoryFilter == "" || categoryFilter == "any" {
		out := make([]sd.DiscovererMeta, len(p.catalog))
		copy(out, p.catalog)
		return out
	}
	out := []sd.DiscovererMeta{}
	for _, m := range p.catalog {
		if m.Category == categoryFilter {
			out = append(out, m)
		}
	}
	return out
}

func (p *Provider) refreshCatalog(ctx context.Context) error {
	entries, err := p.factory.List(ctx)
	if err != nil {
		return err
	}
	p.catalogMu.Lock()
	p.catalog = entries
	p.catalogMu.Unlock()
	return nil
}

// releaseSource performs the refcount-decrement-and-registry-removal
// transition under the provider lock: the thread that drives the count
// to zero also removes the entry, so a concurrent GetMediaSource for the
// same name either observes the source still live or observes it absent
// and constructs a fresh instance. SD teardown and tree release happen
// outside the lock.
func (p *Provider) releaseSource(s *Source) {
	p.mu.Lock()
	if s.refcount.Add(-1) != 0 {
		p.mu.Unlock()
		return
	}
	delete(p.sources, s.name)
	p.mu.Unlock()

	metrics.ActiveSources.Dec()
	if s.disc != nil {
		s.disc.Close()
	}
	s.tree.Release()
}
