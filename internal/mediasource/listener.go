package mediasource

// PreparseStatus reports the outcome of a preparse request for a subtree,
// delivered to listeners via OnPreparseEnd.
type PreparseStatus int

const (
	// PreparseOK means the preparse engine completed successfully.
	PreparseOK PreparseStatus = iota
	// PreparseFailed means the preparse engine reported a failure.
	PreparseFailed
	// PreparseCancelled means the request was cancelled before completion.
	PreparseCancelled
)

func (s PreparseStatus) String() string {
	switch s {
	case PreparseOK:
		return "ok"
	case PreparseFailed:
		return "failed"
	case PreparseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Callbacks is a listener's callback table. Each slot is optional: a nil
// func is simply not called. Every callback is invoked
// with the tree's lock held by the caller that drove the mutation — a
// callback must never call a mutator on the same tree (it would deadlock)
// and must treat its arguments as read-only borrows valid only for the
// duration of the call.
type Callbacks struct {
	// OnChildrenReset fires when the listener should treat node.Children()
	// as the authoritative new list (initial snapshot, or after ReplaceChildren).
	OnChildrenReset func(userdata interface{}, node *Node)
	// OnChildrenAdded fires with newly appended children, in order.
	OnChildrenAdded func(userdata interface{}, parent *Node, children []*Node)
	// OnChildrenRemoved fires with detached subtree roots, still valid
	// (readable) until the callback returns.
	OnChildrenRemoved func(userdata interface{}, parent *Node, children []*Node)
	// OnPreparseEnd fires when a preparse request for node's subtree
	// completes, fails, or is cancelled.
	OnPreparseEnd func(userdata interface{}, node *Node, status PreparseStatus)
}

// Registration is the handle returned by Tree.AddListener. Its lifetime
// runs from AddListener to RemoveListener; after RemoveListener returns,
// none of its callbacks will be invoked again for this tree.
type Registration struct {
	callbacks Callbacks
	userdata  interface{}
}
