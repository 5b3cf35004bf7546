// Package preparse binds an external preparse engine to a media tree: it
// requests a one-level expansion of an item and, when the engine reports
// back, splices the result into the tree and notifies listeners.
package preparse

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/nmxmxh/master-ovasabi/internal/mediasource"
	"github.com/nmxmxh/master-ovasabi/pkg/metrics"
	"github.com/nmxmxh/master-ovasabi/pkg/tracing"
)

// Token is the opaque cancellation handle returned by Engine.Submit.
type Token interface{}

// Engine is the external preparse collaborator: given an item, expand it
// to depth 1 and report back through the two callbacks, either of which
// may arrive on any goroutine. A real engine owns its own worker pool;
// the binder only ever calls Submit and Cancel.
type Engine interface {
	Submit(ctx context.Context, item *mediasource.Item, cb EngineCallbacks) (Token, error)
	Cancel(token Token)
}

// EngineCallbacks is what an Engine drives as a submitted request
// progresses.
type EngineCallbacks struct {
	// OnSubtreeAdded reports the depth-1 expansion of item as a flat list
	// of child items, in order. It may be called zero or one times before
	// OnPreparseEnded.
	OnSubtreeAdded func(item *mediasource.Item, children []*mediasource.Item)
	// OnPreparseEnded reports the terminal outcome of the request.
	OnPreparseEnded func(item *mediasource.Item, status mediasource.PreparseStatus)
}

// Binder ties one Engine to one Tree, translating Engine callbacks into
// tree mutations and listener notifications under the tree's lock.
type Binder struct {
	tree   *mediasource.Tree
	engine Engine
	log    *zap.Logger
}

// NewBinder constructs a Binder. log may be nil.
func NewBinder(tree *mediasource.Tree, engine Engine, log *zap.Logger) *Binder {
	return &Binder{tree: tree, engine: engine, log: log}
}

// Preparse requests that the engine expand item to depth 1 and returns the
// cancellation token the engine assigned, so the caller can later call
// Cancel. The tree lock is never held across this call; it is acquired
// only inside the callbacks the engine later invokes.
func (b *Binder) Preparse(ctx context.Context, item *mediasource.Item) (Token, error) {
	ctx, span := tracing.Tracer("mediasource/preparse").Start(ctx, "Preparse")
	defer span.End()
	span.SetAttributes(attribute.String("item.name", item.Name()))

	metrics.PreparseInFlight.Inc()
	token, err := b.engine.Submit(ctx, item, EngineCallbacks{
		OnSubtreeAdded:  b.onSubtreeAdded,
		OnPreparseEnded: func(it *mediasource.Item, status mediasource.PreparseStatus) {
			metrics.PreparseInFlight.Dec()
			b.onPreparseEnded(it, status)
		},
	})
	if err != nil {
		metrics.PreparseInFlight.Dec()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("preparse: submit %s: %w", item.Name(), err)
	}
	return token, nil
}

// Cancel asks the engine to cancel a pending request by its token.
func (b *Binder) Cancel(token Token) {
	b.engine.Cancel(token)
}

func (b *Binder) onSubtreeAdded(item *mediasource.Item, children []*mediasource.Item) {
	b.tree.Lock()
	defer b.tree.Unlock()

	node, _, found := b.tree.Find(item)
	if !found {
		if b.log != nil {
			b.log.Debug("preparse subtree for evicted item discarded", zap.String("item", item.Name()))
		}
		return
	}
	if err := b.tree.ReplaceChildrenItems(node, children); err != nil && b.log != nil {
		b.log.Warn("preparse replace_children failed", zap.Error(err))
	}
}

func (b *Binder) onPreparseEnded(item *mediasource.Item, status mediasource.PreparseStatus) {
	b.tree.Lock()
	defer b.tree.Unlock()

	node, _, found := b.tree.Find(item)
	if !found {
		return
	}
	b.tree.NotifyPreparseEnd(node, status)
}
