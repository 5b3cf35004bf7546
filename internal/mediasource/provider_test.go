package mediasource

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nmxmxh/master-ovasabi/internal/mediasource/sd"
)

type stubFactory struct {
	meta        []sd.DiscovererMeta
	constructed atomic.Int32
	failNames   map[string]bool
}

func (f *stubFactory) List(_ context.Context) ([]sd.DiscovererMeta, error) {
	return f.meta, nil
}

func (f *stubFactory) New(_ context.Context, name string) (sd.Discoverer, error) {
	if f.failNames[name] {
		return nil, fmt.Errorf("stub: %s unavailable", name)
	}
	f.constructed.Add(1)
	return &fakeDiscoverer{}, nil
}

func TestGetMediaSourceConstructsOnFirstCall(t *testing.T) {
	factory := &stubFactory{meta: []sd.DiscovererMeta{{Name: "mock", Description: "d", Category: "test"}}}
	p := New(factory, zaptest.NewLogger(t), 0, BreakerConfig{})
	defer p.Close()

	s, err := p.GetMediaSource(context.Background(), "mock")
	require.NoError(t, err)
	defer s.Release()

	assert.Equal(t, int32(1), factory.constructed.Load())
}

func TestGetMediaSourceReturnsSameInstanceWhileLive(t *testing.T) {
	factory := &stubFactory{}
	p := New(factory, zaptest.NewLogger(t), 0, BreakerConfig{})
	defer p.Close()

	s1, err := p.GetMediaSource(context.Background(), "mock")
	require.NoError(t, err)
	defer s1.Release()

	s2, err := p.GetMediaSource(context.Background(), "mock")
	require.NoError(t, err)
	defer s2.Release()

	assert.Same(t, s1, s2)
	assert.Equal(t, int32(1), factory.constructed.Load())
}

func TestGetMediaSourceConcurrentCallsDeduplicate(t *testing.T) {
	factory := &stubFactory{}
	p := New(factory, zaptest.NewLogger(t), 0, BreakerConfig{})
	defer p.Close()

	const n = 20
	results := make([]*Source, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			s, err := p.GetMediaSource(context.Background(), "mock")
			require.NoError(t, err)
			results[i] = s
		}(i)
	}
	wg.Wait()

	for _, s := range results {
		assert.Same(t, results[0], s)
		defer s.Release()
	}
	assert.Equal(t, int32(1), factory.constructed.Load())
}

func TestGetMediaSourceNameReusableAfterFullRelease(t *testing.T) {
	factory := &stubFactory{}
	p := New(factory, zaptest.NewLogger(t), 0, BreakerConfig{})
	defer p.Close()

	s1, err := p.GetMediaSource(context.Background(), "mock")
	require.NoError(t, err)
	s1.Release()

	s2, err := p.GetMediaSource(context.Background(), "mock")
	require.NoError(t, err)
	defer s2.Release()

	assert.NotSame(t, s1, s2)
	assert.Equal(t, int32(2), factory.constructed.Load())
}

func TestGetMediaSourceConstructionFailurePropagates(t *testing.T) {
	factory := &stubFactory{failNames: map[string]bool{"broken": true}}
	p := New(factory, zaptest.NewLogger(t), 0, BreakerConfig{})
	defer p.Close()

	_, err := p.GetMediaSource(context.Background(), "broken")
	assert.Error(t, err)
}

func TestListFiltersByCategory(t *testing.T) {
	factory := &stubFactory{meta: []sd.DiscovererMeta{
		{Name: "a", Category: "audio"},
		{Name: "b", Category: "video"},
	}}
	p := New(factory, zaptest.NewLogger(t), 10*time.Millisecond, BreakerConfig{})
	defer p.Close()

	time.Sleep(20 * time.Millisecond)

	all := p.List("any")
	assert.Len(t, all, 2)

	audio := p.List("audio")
	require.Len(t, audio, 1)
	assert.Equal(t, "a", audio[0].Name)
}
