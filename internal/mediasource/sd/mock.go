package sd

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MockConfig configures MockDiscoverer. Tree is a comma/slash-separated
// path spec such as "music/rock,music/jazz,podcasts" describing the
// category folders to synthesize under the root before emitting one leaf
// item per path. An empty Tree emits FeedCount flat items directly under
// the root.
type MockConfig struct {
	Tree      string
	FeedCount int
	FeedEvery time.Duration
}

// MockFactory is a DiscovererFactory that only ever knows about one named
// plugin, "mock". It exists so demos and tests can exercise Provider
// without a real service-discovery backend.
type MockFactory struct {
	Config MockConfig
}

func (f *MockFactory) List(_ context.Context) ([]DiscovererMeta, error) {
	return []DiscovererMeta{{
		Name:        "mock",
		Description: "synthetic in-process source for tests and demos",
		Category:    "test",
	}}, nil
}

func (f *MockFactory) New(_ context.Context, name string) (Discoverer, error) {
	if name != "mock" {
		return nil, fmt.Errorf("mock: no such plugin %q", name)
	}
	cfg := f.Config
	if cfg.FeedCount == 0 {
		cfg.FeedCount = 3
	}
	return newMockDiscoverer(cfg), nil
}

// MockDiscoverer is a synthetic Discoverer. Like a real announcement
// listener, it reports items from a background goroutine started at
// construction; Close joins that goroutine before returning, so a caller
// can rely on "no further callbacks will fire" once Close returns.
type MockDiscoverer struct {
	cfg MockConfig

	mu sync.Mutex
	cb ItemCallbacks

	ready     chan struct{}
	readyOnce sync.Once

	stop chan struct{}
	done sync.WaitGroup
}

func newMockDiscoverer(cfg MockConfig) *MockDiscoverer {
	d := &MockDiscoverer{
		cfg:   cfg,
		ready: make(chan struct{}),
		stop:  make(chan struct{}),
	}
	d.done.Add(1)
	go d.feed()
	return d
}

// SetCallbacks records cb and releases the feed goroutine, which blocks
// until this is called at least once so no early item is emitted before
// there is anything to receive it.
func (d *MockDiscoverer) SetCallbacks(cb ItemCallbacks) {
	d.mu.Lock()
	d.cb = cb
	d.mu.Unlock()
	d.readyOnce.Do(func() { close(d.ready) })
}

func (d *MockDiscoverer) callbacks() ItemCallbacks {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cb
}

// Close signals the feed goroutine to stop and blocks until it has
// returned, matching the background-thread-join contract a real
// announcement-listening plugin uses to guarantee no callback fires after
// teardown begins.
func (d *MockDiscoverer) Close() {
	close(d.stop)
	d.done.Wait()
}

func (d *MockDiscoverer) feed() {
	defer d.done.Done()

	select {
	case <-d.ready:
	case <-d.stop:
		return
	}

	every := d.cfg.FeedEvery
	if every <= 0 {
		every = 0
	}

	if d.cfg.Tree != "" {
		d.feedTree()
		return
	}

	for i := 0; i < d.cfg.FeedCount; i++ {
		select {
		case <-d.stop:
			return
		default:
		}
		cb := d.callbacks()
		if cb != nil {
			item := NewItem(fmt.Sprintf("mock-item-%d", i), fmt.Sprintf("mock://item/%d", i))
			cb.ItemAdded(nil, item)
		}
		if every > 0 {
			select {
			case <-d.stop:
				return
			case <-time.After(every):
			}
		}
	}
}

// feedTree synthesizes category folders from cfg.Tree and emits one leaf
// item per path, creating intermediate category items on demand rather
// than discarding the path information. Segments are split on ',' between
// paths and '/' within a path.
func (d *MockDiscoverer) feedTree() {
	cb := d.callbacks()
	if cb == nil {
		return
	}
	categories := map[string]*Item{}

	for _, path := range strings.Split(d.cfg.Tree, ",") {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		segments := strings.Split(path, "/")
		var parent *Item
		for i, seg := range segments[:len(segments)-1] {
			key := strings.Join(segments[:i+1], "/")
			cat, ok := categories[key]
			if !ok {
				cat = NewItem(seg, "")
				cb.ItemAdded(parent, cat)
				categories[key] = cat
			}
			parent = cat
		}
		leaf := segments[len(segments)-1]
		item := NewItem(leaf, fmt.Sprintf("mock://item/%s", path))
		cb.ItemAdded(parent, item)
	}
}
