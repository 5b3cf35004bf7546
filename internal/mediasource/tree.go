package mediasource

import (
	"sync"
	"sync/atomic"

	mserrors "github.com/nmxmxh/master-ovasabi/pkg/errors"
	"github.com/nmxmxh/master-ovasabi/pkg/metrics"
)

// Node is a position in a media tree. The root of a Tree is a sentinel
// Node with Item() == nil; every other node holds an Item. Children are
// kept in insertion order; duplicates are permitted at the model level
// (a well-behaved SD plugin just never produces them).
type Node struct {
	item     *Item
	children []*Node
}

// Item returns the node's item, or nil for the root sentinel.
func (n *Node) Item() *Item { return n.item }

// Children returns the node's children in insertion order. The returned
// slice is the node's own slice, not a copy: it must not be mutated, and it
// is only valid while the tree's lock is held.
func (n *Node) Children() []*Node {
	return n.children
}

func newNode(item *Item) *Node {
	return &Node{item: item}
}

// Tree is the mutable, lock-protected, refcounted tree of media items.
// All reads and writes below require the caller to hold the tree's lock
// (via Lock/Unlock); the zero value is not usable, use NewTree.
type Tree struct {
	mu       sync.Mutex
	root     *Node
	listener []*Registration

	refcount atomic.Int32

	// name labels this tree's metrics (its owning source's name, or ""
	// before a source has claimed it).
	name string
}

// NewTree creates an empty tree: a sentinel root with no item, no
// listeners, refcount 1. It never fails (allocation failure in Go
// surfaces as a runtime panic, not an error return, so there is no
// failure path to model here).
func NewTree() *Tree {
	t := &Tree{root: newNode(nil)}
	t.refcount.Store(1)
	return t
}

// Root returns the tree's sentinel root node.
func (t *Tree) Root() *Node { return t.root }

// Hold increments the tree's reference count and returns the tree.
func (t *Tree) Hold() *Tree {
	t.refcount.Add(1)
	return t
}

// Release decrements the tree's reference count. On transition to zero it
// destroys every node (releasing their items), drops any listeners still
// registered (an owner bug — AddListener/RemoveListener should always be
// paired — but cleaned up defensively), and frees the tree. The caller
// must not use the tree again after a Release that could have driven the
// count to zero.
func (t *Tree) Release() {
	if t.refcount.Add(-1) != 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	releaseSubtreeItems(t.root)
	t.root = nil
	t.listener = nil
	if t.name != "" {
		metrics.TreeNodes.DeleteLabelValues(t.name)
		metrics.TreeListeners.DeleteLabelValues(t.name)
	}
}

func releaseSubtreeItems(n *Node) {
	if n == nil {
		return
	}
	if n.item != nil {
		n.item.Release()
	}
	for _, c := range n.children {
		releaseSubtreeItems(c)
	}
}

// Lock acquires the tree's mutex. It is not reentrant: calling Lock again
// on the same goroutine before Unlock deadlocks. This is a documented,
// not runtime-detected, contract.
func (t *Tree) Lock() { t.mu.Lock() }

// Unlock releases the tree's mutex.
func (t *Tree) Unlock() { t.mu.Unlock() }

// nodeInTree reports whether n is reachable from t.root (by pointer
// identity), used to validate Add's parent precondition.
func (t *Tree) nodeInTree(n *Node) bool {
	if n == t.root {
		return true
	}
	var walk func(*Node) bool
	walk = func(cur *Node) bool {
		for _, c := range cur.children {
			if c == n {
				return true
			}
			if walk(c) {
				return true
			}
		}
		return false
	}
	return walk(t.root)
}

// Add appends a new node under parent holding item, and fires
// OnChildrenAdded to every listener before returning. parent must be a
// node currently in this tree; item must not be nil. The caller must
// hold the tree's lock.
func (t *Tree) Add(parent *Node, item *Item) (*Node, error) {
	if item == nil {
		return nil, mserrors.ErrItemRequired
	}
	if parent == nil || !t.nodeInTree(parent) {
		return nil, mserrors.ErrNodeNotInTree
	}
	n := newNode(item)
	parent.children = append(parent.children, n)
	t.notifyChildrenAdded(parent, []*Node{n})
	t.recordNodeCount()
	return n, nil
}

// Remove performs a depth-first search from the root matching by item
// identity (pointer equality, not content); if found, detaches the node
// from its parent, fires OnChildrenRemoved, then destroys the node and its
// subtree (releasing every item it held). Returns true iff a node was
// removed. The caller must hold the tree's lock.
func (t *Tree) Remove(item *Item) bool {
	node, parent, found := t.find(item)
	if !found {
		return false
	}
	removeChild(parent, node)
	t.notifyChildrenRemoved(parent, []*Node{node})
	releaseSubtreeItems(node)
	t.recordNodeCount()
	return true
}

func removeChild(parent, child *Node) {
	for i, c := range parent.children {
		if c == child {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			return
		}
	}
}

// Find performs a depth-first search from the root matching by item
// identity. It returns the node, its parent (nil iff node is the root),
// and whether it was found. The returned node/parent are borrowed
// references valid only while the caller holds the lock. The caller must
// hold the tree's lock.
func (t *Tree) Find(item *Item) (node *Node, parent *Node, found bool) {
	return t.find(item)
}

func (t *Tree) find(item *Item) (*Node, *Node, bool) {
	if item == nil {
		return nil, nil, false
	}
	var walk func(cur, parent *Node) (*Node, *Node, bool)
	walk = func(cur, parent *Node) (*Node, *Node, bool) {
		if cur.item == item {
			return cur, parent, true
		}
		for _, c := range cur.children {
			if n, p, ok := walk(c, cur); ok {
				return n, p, ok
			}
		}
		return nil, nil, false
	}
	return walk(t.root, nil)
}

// ReplaceChildren atomically clears node.children and rebuilds it from
// newSubtree by deep copy: every node in newSubtree gets a fresh *Node in
// this tree, holding newSubtree's item via Hold. Fires OnChildrenReset(node)
// once. Used by the preparse completion path. The caller must hold the
// tree's lock.
func (t *Tree) ReplaceChildren(node *Node, newSubtree *Node) error {
	if node == nil || !t.nodeInTree(node) {
		return mserrors.ErrNodeNotInTree
	}
	var children []*Node
	if newSubtree != nil {
		children = deepCopyChildren(newSubtree)
	}
	for _, c := range node.children {
		releaseSubtreeItems(c)
	}
	node.children = children
	t.notifyChildrenReset(node)
	t.recordNodeCount()
	return nil
}

// ReplaceChildrenItems is ReplaceChildren specialised for a flat list of
// items rather than an existing node tree: used by the preparse
// integration, whose engine reports a depth-1 expansion as items, not
// nodes. Each item is held once per resulting child. The caller must hold
// the tree's lock.
func (t *Tree) ReplaceChildrenItems(node *Node, items []*Item) error {
	if node == nil || !t.nodeInTree(node) {
		return mserrors.ErrNodeNotInTree
	}
	children := make([]*Node, 0, len(items))
	for _, it := range items {
		children = append(children, newNode(it.Hold()))
	}
	for _, c := range node.children {
		releaseSubtreeItems(c)
	}
	node.children = children
	t.notifyChildrenReset(node)
	t.recordNodeCount()
	return nil
}

func deepCopyChildren(src *Node) []*Node {
	out := make([]*Node, 0, len(src.children))
	for _, c := range src.children {
		copy := newNode(c.item.Hold())
		copy.children = deepCopyChildren(c)
		out = append(out, copy)
	}
	return out
}

// AddListener appends a registration. If emitInitial is true, it
// immediately invokes OnChildrenReset(root) on that single registration
// before returning, so a new listener synchronously sees the current
// state. The caller must hold the tree's lock.
func (t *Tree) AddListener(cb Callbacks, userdata interface{}, emitInitial bool) *Registration {
	reg := &Registration{callbacks: cb, userdata: userdata}
	t.listener = append(t.listener, reg)
	if t.name != "" {
		metrics.TreeListeners.WithLabelValues(t.name).Set(float64(len(t.listener)))
	}
	if emitInitial && reg.callbacks.OnChildrenReset != nil {
		reg.callbacks.OnChildrenReset(reg.userdata, t.root)
	}
	return reg
}

// RemoveListener detaches reg. After this call returns, its callbacks are
// guaranteed never to be invoked again for this tree. The caller must hold
// the tree's lock.
func (t *Tree) RemoveListener(reg *Registration) {
	for i, r := range t.listener {
		if r == reg {
			t.listener = append(t.listener[:i], t.listener[i+1:]...)
			break
		}
	}
	if t.name != "" {
		metrics.TreeListeners.WithLabelValues(t.name).Set(float64(len(t.listener)))
	}
}

// NotifyPreparseEnd fires OnPreparseEnd to every listener. Used only by
// the preparse integration; exported so that package preparse can drive
// it without the tree package depending on preparse. The caller must
// hold the tree's lock.
func (t *Tree) NotifyPreparseEnd(node *Node, status PreparseStatus) {
	for _, r := range t.listener {
		if r.callbacks.OnPreparseEnd != nil {
			r.callbacks.OnPreparseEnd(r.userdata, node, status)
		}
	}
}

func (t *Tree) notifyChildrenAdded(parent *Node, children []*Node) {
	for _, r := range t.listener {
		if r.callbacks.OnChildrenAdded != nil {
			r.callbacks.OnChildrenAdded(r.userdata, parent, children)
		}
	}
}

func (t *Tree) notifyChildrenRemoved(parent *Node, children []*Node) {
	for _, r := range t.listener {
		if r.callbacks.OnChildrenRemoved != nil {
			r.callbacks.OnChildrenRemoved(r.userdata, parent, children)
		}
	}
}

func (t *Tree) notifyChildrenReset(node *Node) {
	for _, r := range t.listener {
		if r.callbacks.OnChildrenReset != nil {
			r.callbacks.OnChildrenReset(r.userdata, node)
		}
	}
}

// countNodes returns the number of non-root nodes currently in the tree.
// Used only for the TreeNodes gauge; O(n), called on every mutation,
// which is acceptable at the scale Find/Remove already operate at.
func (t *Tree) countNodes() int {
	var count func(*Node) int
	count = func(n *Node) int {
		c := len(n.children)
		for _, child := range n.children {
			c += count(child)
		}
		return c
	}
	return count(t.root)
}

func (t *Tree) recordNodeCount() {
	if t.name == "" {
		return
	}
	metrics.TreeNodes.WithLabelValues(t.name).Set(float64(t.countNodes()))
}

// bindName labels this tree for the TreeNodes/TreeListeners gauges. Called
// once by Source at construction; not part of the public tree contract.
func (t *Tree) bindName(name string) {
	t.name = name
}
