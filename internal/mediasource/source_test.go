package mediasource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nmxmxh/master-ovasabi/internal/mediasource/sd"
)

type fakeDiscoverer struct {
	cb     sd.ItemCallbacks
	closed bool
}

func (f *fakeDiscoverer) SetCallbacks(cb sd.ItemCallbacks) { f.cb = cb }
func (f *fakeDiscoverer) Close()                           { f.closed = true }

func TestSourceItemAddedAttachesToRoot(t *testing.T) {
	disc := &fakeDiscoverer{}
	s := newSource("mock", "a mock source", disc, zaptest.NewLogger(t))
	defer s.Release()

	item := NewItem("track", "")
	disc.cb.ItemAdded(nil, item)

	s.Tree().Lock()
	defer s.Tree().Unlock()
	assert.Len(t, s.Tree().Root().Children(), 1)
	assert.Same(t, item, s.Tree().Root().Children()[0].Item())
}

func TestSourceItemAddedUnderExistingParent(t *testing.T) {
	disc := &fakeDiscoverer{}
	s := newSource("mock", "", disc, zaptest.NewLogger(t))
	defer s.Release()

	parent := NewItem("folder", "")
	disc.cb.ItemAdded(nil, parent)
	child := NewItem("leaf", "")
	disc.cb.ItemAdded(parent, child)

	s.Tree().Lock()
	defer s.Tree().Unlock()
	folderNode, _, found := s.Tree().Find(parent)
	require.True(t, found)
	assert.Len(t, folderNode.Children(), 1)
	assert.Same(t, child, folderNode.Children()[0].Item())
}

func TestSourceItemAddedUnknownParentFallsBackToRoot(t *testing.T) {
	disc := &fakeDiscoverer{}
	s := newSource("mock", "", disc, zaptest.NewLogger(t))
	defer s.Release()

	unknownParent := NewItem("ghost", "")
	orphan := NewItem("orphan", "")
	disc.cb.ItemAdded(unknownParent, orphan)

	s.Tree().Lock()
	defer s.Tree().Unlock()
	assert.Len(t, s.Tree().Root().Children(), 1)
	assert.Same(t, orphan, s.Tree().Root().Children()[0].Item())
}

func TestSourceItemRemovedOfUnknownItemDoesNotPanic(t *testing.T) {
	disc := &fakeDiscoverer{}
	s := newSource("mock", "", disc, zaptest.NewLogger(t))
	defer s.Release()

	assert.NotPanics(t, func() {
		disc.cb.ItemRemoved(NewItem("never-added", ""))
	})
}

func TestSourceReleaseClosesDiscoverer(t *testing.T) {
	disc := &fakeDiscoverer{}
	s := newSource("mock", "", disc, zaptest.NewLogger(t))
	s.Release()
	assert.True(t, disc.closed)
}

func TestSourceHoldKeepsAlive(t *testing.T) {
	disc := &fakeDiscoverer{}
	s := newSource("mock", "", disc, zaptest.NewLogger(t))
	s.Hold()
	s.Release()
	assert.False(t, disc.closed, "one Release after Hold must not tear down the source")
	s.Release()
	assert.True(t, disc.closed)
}
