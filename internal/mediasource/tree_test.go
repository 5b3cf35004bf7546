package mediasource

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTreeIsEmpty(t *testing.T) {
	tr := NewTree()
	tr.Lock()
	defer tr.Unlock()

	assert.Nil(t, tr.Root().Item())
	assert.Empty(t, tr.Root().Children())
}

func TestAddAppendsUnderParent(t *testing.T) {
	tr := NewTree()
	tr.Lock()
	defer tr.Unlock()

	item := NewItem("track-1", "file:///a.mp3")
	n, err := tr.Add(tr.Root(), item)
	require.NoError(t, err)
	require.NotNil(t, n)

	assert.Equal(t, []*Node{n}, tr.Root().Children())
	assert.Same(t, item, n.Item())
}

func TestAddRejectsNilItem(t *testing.T) {
	tr := NewTree()
	tr.Lock()
	defer tr.Unlock()

	_, err := tr.Add(tr.Root(), nil)
	assert.ErrorContains(t, err, "must not be nil")
}

func TestAddRejectsForeignParent(t *testing.T) {
	tr := NewTree()
	other := NewTree()
	tr.Lock()
	defer tr.Unlock()

	_, err := tr.Add(other.Root(), NewItem("x", ""))
	assert.ErrorContains(t, err, "does not belong")
}

func TestFindByIdentity(t *testing.T) {
	tr := NewTree()
	tr.Lock()
	defer tr.Unlock()

	itemA := NewItem("a", "")
	itemB := NewItem("b", "")
	nodeA, _ := tr.Add(tr.Root(), itemA)
	_, _ = tr.Add(nodeA, itemB)

	node, parent, found := tr.Find(itemB)
	require.True(t, found)
	assert.Same(t, itemB, node.Item())
	assert.Same(t, nodeA, parent)

	_, _, found = tr.Find(NewItem("a", ""))
	assert.False(t, found, "distinct item with identical fields must not match")
}

func TestRemoveDetachesAndReportsResult(t *testing.T) {
	tr := NewTree()
	tr.Lock()
	defer tr.Unlock()

	item := NewItem("x", "")
	tr.Add(tr.Root(), item)

	assert.True(t, tr.Remove(item))
	assert.Empty(t, tr.Root().Children())
	assert.False(t, tr.Remove(item), "second remove of the same item must report false")
}

func TestAddThenRemoveRestoresPriorShape(t *testing.T) {
	tr := NewTree()
	tr.Lock()
	defer tr.Unlock()

	before := len(tr.Root().Children())
	item := NewItem("roundtrip", "")
	tr.Add(tr.Root(), item)
	tr.Remove(item)

	assert.Len(t, tr.Root().Children(), before)
}

func TestAddListenerEmitsInitialSnapshot(t *testing.T) {
	tr := NewTree()
	tr.Lock()
	item := NewItem("seed", "")
	tr.Add(tr.Root(), item)
	tr.Unlock()

	var resetNode *Node
	calls := 0
	tr.Lock()
	tr.AddListener(Callbacks{
		OnChildrenReset: func(_ interface{}, node *Node) {
			calls++
			resetNode = node
		},
	}, nil, true)
	tr.Unlock()

	assert.Equal(t, 1, calls)
	assert.Same(t, tr.Root(), resetNode)
	assert.Len(t, resetNode.Children(), 1)
}

func TestListenerReceivesAddedAndRemovedInOrder(t *testing.T) {
	tr := NewTree()
	var events []string

	tr.Lock()
	tr.AddListener(Callbacks{
		OnChildrenAdded: func(_ interface{}, _ *Node, _ []*Node) {
			events = append(events, "added")
		},
		OnChildrenRemoved: func(_ interface{}, _ *Node, _ []*Node) {
			events = append(events, "removed")
		},
	}, nil, false)

	item := NewItem("e", "")
	tr.Add(tr.Root(), item)
	tr.Remove(item)
	tr.Unlock()

	assert.Equal(t, []string{"added", "removed"}, events)
}

func TestRemoveListenerStopsFutureCallbacks(t *testing.T) {
	tr := NewTree()
	calls := 0

	tr.Lock()
	reg := tr.AddListener(Callbacks{
		OnChildrenAdded: func(_ interface{}, _ *Node, _ []*Node) { calls++ },
	}, nil, false)
	tr.RemoveListener(reg)
	tr.Add(tr.Root(), NewItem("after-removal", ""))
	tr.Unlock()

	assert.Zero(t, calls)
}

func TestReplaceChildrenItemsFiresResetOnce(t *testing.T) {
	tr := NewTree()
	tr.Lock()
	parent, _ := tr.Add(tr.Root(), NewItem("parent", ""))
	tr.Unlock()

	resets := 0
	tr.Lock()
	tr.AddListener(Callbacks{
		OnChildrenReset: func(_ interface{}, _ *Node) { resets++ },
	}, nil, false)

	err := tr.ReplaceChildrenItems(parent, []*Item{
		NewItem("c1", ""), NewItem("c2", ""),
	})
	tr.Unlock()

	require.NoError(t, err)
	assert.Equal(t, 1, resets)
	assert.Len(t, parent.Children(), 2)
}

func TestConcurrentMutationsAreSerializedByLock(t *testing.T) {
	tr := NewTree()
	const n = 50

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			tr.Lock()
			tr.Add(tr.Root(), NewItem("concurrent", ""))
			tr.Unlock()
		}(i)
	}
	wg.Wait()

	tr.Lock()
	defer tr.Unlock()
	assert.Len(t, tr.Root().Children(), n)
}

func TestHoldReleaseIsNoopUntilZero(t *testing.T) {
	tr := NewTree()
	tr.Hold()
	tr.Release()

	tr.Lock()
	assert.NotNil(t, tr.Root())
	tr.Unlock()

	tr.Release()
}
