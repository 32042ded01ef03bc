package deferred

import (
	"context"
	"sync/atomic"
)

var barrierIDCounter atomic.Uint64

// Barrier is a synchronisation barrier (§4.4): the arena owning every node
// constructed while it is active on some goroutine, plus the Loop driving
// them. A Barrier's lifetime is exactly one Synchronise/SynchroniseContext
// call.
type Barrier struct {
	id   uint64
	loop *Loop
	root *Node

	arena []*Node
}

// ID is a process-unique identifier, useful for diagnostics.
func (b *Barrier) ID() uint64 { return b.id }

// Synchronise runs expr to completion: it calls expr once (which may
// construct and chain any number of deferreds, but must return exactly
// one — the root), drives the event loop until the root settles, tears
// down every node still alive in the barrier's arena, and returns the
// root's outcome.
//
// expr may only construct deferreds bound to this barrier (Constant, Delay,
// source adapters, and the combinators operating on them); using a deferred
// from another, unrelated barrier is a programmer error reported
// immediately via panic with a *Error{Kind: KindCrossBarrier}, per §7's
// non-recoverable class. Likewise, attaching a second consumer to a
// non-shared node panics with KindOwnership.
func Synchronise(expr func() *Node, opts ...Option) (Result, error) {
	return SynchroniseContext(context.Background(), expr, opts...)
}

// SynchroniseContext is Synchronise with an external cancellation signal:
// if ctx is cancelled before the root settles, the root (and everything
// it depends on) is cancelled with Kind KindInterrupted, and that is
// returned as the error.
func SynchroniseContext(ctx context.Context, expr func() *Node, opts ...Option) (Result, error) {
	cfg := resolveConfig(opts)
	b := &Barrier{id: barrierIDCounter.Add(1), loop: newLoop(cfg)}

	pushBarrier(b)
	defer popBarrier()

	root := expr()
	if root == nil {
		panic("deferred: synchronise expression must return a non-nil deferred")
	}
	if root.barrier != b {
		panic(&Error{Kind: KindCrossBarrier, Message: "synchronise: the returned deferred does not belong to this call"})
	}
	b.root = root
	markReachable(root)

	b.loop.runUntilDone(ctx, root)

	teardownReason := &Error{Kind: KindCancelled, Message: "barrier teardown: synchronise is returning"}
	for _, n := range b.arena {
		cancelNode(n, teardownReason)
	}
	b.loop.drainTeardown()

	switch root.State() {
	case Rejected:
		return nil, root.Err()
	case Cancelled:
		if e := root.Err(); e != nil {
			return nil, e
		}
		return nil, &Error{Kind: KindCancelled, Message: "synchronise: root cancelled"}
	default:
		return root.Result(), nil
	}
}
