package mediasource

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/nmxmxh/master-ovasabi/internal/mediasource/sd"
	"github.com/nmxmxh/master-ovasabi/pkg/metrics"
)

// Source binds one service-discovery plugin instance to one Tree. It is
// the ItemCallbacks implementation the SD plugin drives: every ItemAdded
// and ItemRemoved call it receives comes from the SD, on whatever thread
// the SD chooses to call from, and is applied to the tree under the
// tree's own lock.
type Source struct {
	name        string
	description string

	tree *Tree
	disc sd.Discoverer

	refcount atomic.Int32
	log      *zap.Logger

	// provider coordinates the refcount-to-zero transition with registry
	// removal (see Provider.releaseSource). Nil for a source constructed
	// standalone, e.g. in package tests.
	provider *Provider
}

// newSource wraps an already-constructed Discoverer. name is the source's
// registry key and description its human-readable label; disc may be nil for a
// source with no live SD binding (e.g. constructed directly by a caller
// that wants to drive the tree itself).
func newSource(name, description string, disc sd.Discoverer, log *zap.Logger) *Source {
	s := &Source{
		name:        name,
		description: description,
		tree:        NewTree(),
		disc:        disc,
		log:         log,
	}
	s.tree.bindName(name)
	s.refcount.Store(1)
	if disc != nil {
		disc.SetCallbacks(s)
	}
	return s
}

// Name returns the source's registry key.
func (s *Source) Name() string { return s.name }

// Description returns the source's human-readable description, as
// reported by its SD plugin at construction.
func (s *Source) Description() string { return s.description }

// Tree returns the source's backing tree. Callers wanting to observe or
// walk the tree must still take the tree's own lock.
func (s *Source) Tree() *Tree { return s.tree }

// Hold increments the source's reference count.
func (s *Source) Hold() *Source {
	s.refcount.Add(1)
	return s
}

// Release decrements the source's reference count. On transition to zero
// it closes the SD plugin (which blocks until no further SD callbacks can
// arrive) and releases the tree. If this source is registered with a
// Provider, the decrement-to-zero transition and the registry removal
// happen atomically under the provider's lock, per the registry
// invariant: a concurrent GetMediaSource for this name must either find
// this source still live, or find it absent and construct a fresh one,
// never a half-torn-down instance.
func (s *Source) Release() {
	if s.provider != nil {
		s.provider.releaseSource(s)
		return
	}
	if s.refcount.Add(-1) != 0 {
		return
	}
	if s.disc != nil {
		s.disc.Close()
	}
	s.tree.Release()
}

// ItemAdded implements sd.ItemCallbacks. parent is nil to mean "attach
// under the tree root". If parent is non-nil but not found in the tree —
// a Discoverer bug — the item is appended to the root instead of being
// dropped. It is safe to call concurrently with other ItemAdded/
// ItemRemoved calls and with tree listener registration; all of it is
// serialized by the tree's lock.
func (s *Source) ItemAdded(parent *Item, item *Item) {
	s.tree.Lock()
	defer s.tree.Unlock()
	start := time.Now()
	defer func() {
		metrics.SdCallbackLatency.WithLabelValues(s.name, "item_added").Observe(time.Since(start).Seconds())
	}()

	attachPoint := s.tree.Root()
	if parent != nil {
		if n, _, found := s.tree.Find(parent); found {
			attachPoint = n
		} else if s.log != nil {
			s.log.Warn("SD item_added: parent not found, attaching to root",
				zap.String("source", s.name))
		}
	}
	if _, err := s.tree.Add(attachPoint, item); err != nil && s.log != nil {
		s.log.Warn("SD item_added rejected",
			zap.String("source", s.name), zap.Error(err))
	}
}

// ItemRemoved implements sd.ItemCallbacks.
func (s *Source) ItemRemoved(item *Item) {
	s.tree.Lock()
	defer s.tree.Unlock()
	start := time.Now()
	defer func() {
		metrics.SdCallbackLatency.WithLabelValues(s.name, "item_removed").Observe(time.Since(start).Seconds())
	}()

	if !s.tree.Remove(item) && s.log != nil {
		s.log.Warn("SD item_removed: item was never added",
			zap.String("source", s.name))
	}
}
