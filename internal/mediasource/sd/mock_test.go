package sd

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCallbacks struct {
	mu    sync.Mutex
	added []string
}

func (r *recordingCallbacks) ItemAdded(parent *Item, item *Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := item.Name()
	if parent != nil {
		name = parent.Name() + "/" + name
	}
	r.added = append(r.added, name)
}

func (r *recordingCallbacks) ItemRemoved(*Item) {}

func (r *recordingCallbacks) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.added))
	copy(out, r.added)
	return out
}

func TestMockFactoryListsOnlyMock(t *testing.T) {
	f := &MockFactory{}
	metas, err := f.List(context.Background())
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "mock", metas[0].Name)
}

func TestMockFactoryRejectsUnknownName(t *testing.T) {
	f := &MockFactory{}
	_, err := f.New(context.Background(), "nonexistent")
	assert.Error(t, err)
}

func TestMockDiscovererFlatFeed(t *testing.T) {
	f := &MockFactory{Config: MockConfig{FeedCount: 4}}
	disc, err := f.New(context.Background(), "mock")
	require.NoError(t, err)

	cb := &recordingCallbacks{}
	disc.SetCallbacks(cb)

	require.Eventually(t, func() bool {
		return len(cb.snapshot()) == 4
	}, time.Second, time.Millisecond)

	disc.Close()
	assert.Len(t, cb.snapshot(), 4)
}

func TestMockDiscovererTreeFeedSynthesizesCategories(t *testing.T) {
	f := &MockFactory{Config: MockConfig{Tree: "music/rock,music/jazz,podcasts"}}
	disc, err := f.New(context.Background(), "mock")
	require.NoError(t, err)

	cb := &recordingCallbacks{}
	disc.SetCallbacks(cb)

	require.Eventually(t, func() bool {
		return len(cb.snapshot()) == 4
	}, time.Second, time.Millisecond)
	disc.Close()

	got := cb.snapshot()
	assert.Contains(t, got, "music")
	assert.Contains(t, got, "music/rock")
	assert.Contains(t, got, "music/jazz")
	assert.Contains(t, got, "podcasts")
}

func TestMockDiscovererCloseBlocksUntilFeedStops(t *testing.T) {
	f := &MockFactory{Config: MockConfig{FeedCount: 2, FeedEvery: 50 * time.Millisecond}}
	disc, err := f.New(context.Background(), "mock")
	require.NoError(t, err)
	cb := &recordingCallbacks{}
	disc.SetCallbacks(cb)

	disc.Close()
	n := len(cb.snapshot())
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, cb.snapshot(), n, "no callback may fire after Close returns")
}
