package deferred

import (
	"sync"
	"sync/atomic"
)

// Result is the value a deferred settles with. It is deliberately `any`:
// the engine is generic over payloads the same way the teacher package's
// Promise/ChainedPromise is.
type Result = any

// State is a node's position in the state machine described by §4.1:
// pending -> running -> {fulfilled, rejected, cancelled}.
type State int32

const (
	Pending State = iota
	Running
	Fulfilled
	Rejected
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s State) terminal() bool {
	return s == Fulfilled || s == Rejected || s == Cancelled
}

// watcher is the callback pair a consumer registers on its parent. Every
// combinator (then, catch, finally, the joins, absorption) is built on top
// of this: a node may carry many watchers once Share has been called on
// it, and exactly one otherwise (enforced by adopt, not by this type).
type watcher struct {
	onFulfil func(Result)
	onReject func(*Error)
}

var nodeIDCounter atomic.Uint64

// Node is a single deferred value: a vertex in a barrier's DAG. Nodes are
// never copied and are always constructed bound to the barrier active on
// the calling goroutine (see currentBarrier / New / Constant / Delay).
type Node struct {
	id       uint64
	barrier  *Barrier
	producer Producer

	mu       sync.Mutex
	state    atomic.Int32
	result   Result
	err      *Error
	parents  []*Node
	child    *Node   // set once, for non-shared nodes: the single consumer
	children []*Node // only populated once shared is true
	shared   bool
	watchers []watcher

	reachable atomic.Bool
}

// ID is a process-unique identifier, useful for diagnostics and logging.
func (n *Node) ID() uint64 { return n.id }

// State returns the node's current position in the state machine.
func (n *Node) State() State { return State(n.state.Load()) }

func (n *Node) isTerminal() bool { return n.State().terminal() }

// Result returns the fulfilment value. It is only meaningful once
// State() == Fulfilled.
func (n *Node) Result() Result {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.result
}

// Err returns the rejection/cancellation error. It is only meaningful once
// State() is Rejected or Cancelled.
func (n *Node) Err() *Error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.err
}

func newNodeInBarrier(b *Barrier, producer Producer, parents []*Node) *Node {
	n := &Node{
		id:       nodeIDCounter.Add(1),
		barrier:  b,
		producer: producer,
		parents:  parents,
	}
	n.state.Store(int32(Pending))
	b.arena = append(b.arena, n)
	return n
}

// New constructs a deferred node driven by the given Producer, bound to the
// barrier currently active on the calling goroutine. This is the Go entry
// point for the Source Adapter Contract (§4.6): every out-of-core adapter
// (deferred/sources/...) calls this instead of touching barrier internals.
func New(producer Producer) *Node {
	return newNodeInBarrier(currentBarrier(), producer, nil)
}

func newChildNode(parent *Node) *Node {
	return newNodeInBarrier(parent.barrier, nil, []*Node{parent})
}

// adopt registers child as parent's consumer, enforcing the single-consumer
// invariant unless parent has been shared, and propagates reachability
// backwards if child is already reachable (the case for absorption, where
// child may already be an ancestor of some barrier's root by the time it
// adopts a freshly-returned node).
func adopt(parent, child *Node) {
	if parent.barrier != child.barrier {
		panic(&Error{Kind: KindCrossBarrier, Message: "deferred used outside the barrier that owns it"})
	}
	parent.mu.Lock()
	if parent.shared {
		parent.children = append(parent.children, child)
		parent.mu.Unlock()
	} else {
		if parent.child != nil {
			parent.mu.Unlock()
			panic(&Error{Kind: KindOwnership, Message: "deferred already has a consumer; call Share to allow more than one"})
		}
		parent.child = child
		parent.mu.Unlock()
	}
	if child.reachable.Load() {
		markReachable(parent)
	}
}

// markReachable walks parent edges, marking nodes reachable from a barrier's
// root and scheduling the start of any producer-backed node discovered for
// the first time. It is idempotent: a node is only ever walked past once,
// since CompareAndSwap(false, true) fails on every subsequent call, which is
// what keeps unreachable siblings of a reachable chain from ever starting
// (§3 invariant 3 / §8 property 2).
func markReachable(n *Node) {
	if n == nil {
		return
	}
	if !n.reachable.CompareAndSwap(false, true) {
		return
	}
	if n.producer != nil {
		n.barrier.loop.scheduleStart(n)
	}
	for _, p := range n.parents {
		markReachable(p)
	}
}

// addWatcher registers a consumer callback, running it immediately (via the
// loop's ready queue, never synchronously in-line) if the node has already
// settled. Cancelled nodes never invoke watchers: cancellation is not a
// data-carrying transition, it is terminal silence (§4.1).
func (n *Node) addWatcher(onFulfil func(Result), onReject func(*Error)) {
	n.mu.Lock()
	state := State(n.state.Load())
	if !state.terminal() {
		n.watchers = append(n.watchers, watcher{onFulfil, onReject})
		n.mu.Unlock()
		return
	}
	result, err := n.result, n.err
	n.mu.Unlock()

	loop := n.barrier.loop
	switch state {
	case Fulfilled:
		if onFulfil != nil {
			loop.scheduleReady(func() { onFulfil(result) })
		}
	case Rejected:
		if onReject != nil {
			loop.scheduleReady(func() { onReject(err) })
		}
	case Cancelled:
		// no callback: a cancelled node never reports to its consumer.
	}
}

// settle transitions the node to a terminal state exactly once and
// schedules every registered watcher onto the loop's ready queue in
// attachment order, preserving the ordering guarantee in §5.
func (n *Node) settle(state State, result Result, err *Error) {
	n.mu.Lock()
	if n.state.Load() != int32(Pending) && n.state.Load() != int32(Running) {
		n.mu.Unlock()
		return
	}
	n.state.Store(int32(state))
	n.result = result
	n.err = err
	watchers := n.watchers
	n.watchers = nil
	n.mu.Unlock()

	loop := n.barrier.loop
	for _, w := range watchers {
		w := w
		switch state {
		case Fulfilled:
			if w.onFulfil != nil {
				loop.scheduleReady(func() { w.onFulfil(result) })
			}
		case Rejected:
			if w.onReject != nil {
				loop.scheduleReady(func() { w.onReject(err) })
			}
		}
	}
}

// settleCancelled is cancelNode's primitive: it transitions a non-terminal
// node straight to Cancelled, dropping its watchers without invoking them,
// and reports whether the node was Running (so the caller knows whether to
// call producer.Abort).
func (n *Node) settleCancelled(reason *Error) (transitioned, wasRunning bool) {
	n.mu.Lock()
	s := State(n.state.Load())
	if s.terminal() {
		n.mu.Unlock()
		return false, false
	}
	wasRunning = s == Running
	n.state.Store(int32(Cancelled))
	n.err = reason
	n.watchers = nil
	n.mu.Unlock()
	return true, wasRunning
}

// start transitions Pending -> Running and invokes the producer. Called
// only from the loop's own goroutine, via runStarts.
func (n *Node) start() {
	if !n.state.CompareAndSwap(int32(Pending), int32(Running)) {
		return
	}
	if err := n.producer.Start(nodeSettle{n}); err != nil {
		n.doReject(toError(err))
	}
}

// doFulfil is the single entry point every fulfilment flows through,
// whether from a producer's Settle.Fulfil, a combinator's callback return
// value, or absorption of a nested node. If v is itself a *Node, this
// performs promise absorption: an iterative re-target (adopt v as an extra
// parent, watch it, return) rather than a recursive Then call, so chains of
// any length settle without growing the call stack.
func (n *Node) doFulfil(v Result) {
	if n.isTerminal() {
		return
	}
	if inner, ok := v.(*Node); ok {
		n.absorb(inner)
		return
	}
	n.settle(Fulfilled, v, nil)
}

// doReject is the single entry point every rejection flows through.
func (n *Node) doReject(e *Error) {
	if n.isTerminal() {
		return
	}
	n.settle(Rejected, nil, e)
}

// absorb implements promise absorption: n adopts inner as an additional
// parent and forwards inner's eventual outcome as its own.
func (n *Node) absorb(inner *Node) {
	if inner == n {
		n.settle(Rejected, nil, &Error{Kind: KindUser, Message: "a deferred cannot adopt itself"})
		return
	}
	if inner.barrier != n.barrier {
		panic(&Error{Kind: KindCrossBarrier, Message: "a callback returned a deferred from a different barrier"})
	}
	adopt(inner, n)
	n.mu.Lock()
	n.parents = append(n.parents, inner)
	n.mu.Unlock()
	inner.addWatcher(
		func(v Result) { n.doFulfil(v) },
		func(e *Error) { n.doReject(e) },
	)
}

// Share marks n so that any number of consumers may adopt it instead of at
// most one. A node already holding a single consumer keeps that consumer
// (promoted into the children list) when shared. Per §9 Open Question 1,
// shared nodes start the first time any child becomes reachable and are
// never auto-cancelled when a sibling settles — only barrier teardown
// cancels a still-pending shared node.
func (n *Node) Share() *Node {
	n.mu.Lock()
	if n.child != nil && !n.shared {
		n.children = append(n.children, n.child)
		n.child = nil
	}
	n.shared = true
	n.mu.Unlock()
	return n
}
