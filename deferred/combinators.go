package deferred

import "fmt"

// Then registers a fulfilment handler and returns a new deferred adopting
// parent as its single consumer. The rejection path passes through
// unchanged. If onFulfil returns a *Node, the child absorbs it (promise
// absorption, §4.2) instead of fulfilling with the node value itself.
func (parent *Node) Then(onFulfil func(Result) Result) *Node {
	return chain(parent, onFulfil, nil, nil)
}

// Catch registers a rejection handler, optionally filtered to a set of
// Kinds (an empty list matches every kind). Rejections whose Kind is not in
// the filter — and all fulfilments — pass through unchanged.
func (parent *Node) Catch(onReject func(*Error) Result, kinds ...Kind) *Node {
	return chain(parent, nil, onReject, kinds)
}

func kindIn(k Kind, kinds []Kind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, want := range kinds {
		if want == k {
			return true
		}
	}
	return false
}

func chain(parent *Node, onFulfil func(Result) Result, onReject func(*Error) Result, kinds []Kind) *Node {
	if parent.barrier != currentBarrier() {
		panic(&Error{Kind: KindCrossBarrier, Message: "then/catch: parent deferred does not belong to the active synchronise call"})
	}
	child := newChildNode(parent)
	adopt(parent, child)
	parent.addWatcher(
		func(v Result) {
			if onFulfil == nil {
				child.doFulfil(v)
				return
			}
			child.runUserCallback(func() Result { return onFulfil(v) })
		},
		func(e *Error) {
			if onReject == nil || !kindIn(e.Kind, kinds) {
				child.doReject(e)
				return
			}
			child.runUserCallback(func() Result { return onReject(e) })
		},
	)
	return child
}

// runUserCallback runs fn with panic recovery, fulfilling or rejecting n
// with the result: a panic becomes a KindUser rejection (mirroring the
// teacher's PanicError wrapping), and a returned *Node is absorbed via
// doFulfil exactly like any other fulfilment value.
func (n *Node) runUserCallback(fn func() Result) {
	defer func() {
		if r := recover(); r != nil {
			n.doReject(&Error{Kind: KindUser, Message: fmt.Sprintf("%v", r), Cause: asError(r)})
		}
	}()
	n.doFulfil(fn())
}

// Finally registers a cleanup callback that runs regardless of outcome.
// Its return value is ignored unless it is a *Node: if that node rejects,
// that rejection replaces the original outcome (§9 Open Question 2);
// otherwise — including when onFinal returns nil or a node that fulfils —
// the parent's original outcome passes through unchanged.
func (parent *Node) Finally(onFinal func() *Node) *Node {
	if parent.barrier != currentBarrier() {
		panic(&Error{Kind: KindCrossBarrier, Message: "finally: parent deferred does not belong to the active synchronise call"})
	}
	child := newChildNode(parent)
	adopt(parent, child)
	parent.addWatcher(
		func(v Result) {
			runFinally(child, onFinal, func() { child.doFulfil(v) })
		},
		func(e *Error) {
			runFinally(child, onFinal, func() { child.doReject(e) })
		},
	)
	return child
}

func runFinally(child *Node, onFinal func() *Node, propagate func()) {
	defer func() {
		if r := recover(); r != nil {
			child.doReject(&Error{Kind: KindUser, Message: fmt.Sprintf("%v", r), Cause: asError(r)})
		}
	}()
	var cleanup *Node
	if onFinal != nil {
		cleanup = onFinal()
	}
	if cleanup == nil {
		propagate()
		return
	}
	if cleanup.barrier != child.barrier {
		panic(&Error{Kind: KindCrossBarrier, Message: "finally: cleanup deferred belongs to a different barrier"})
	}
	adopt(cleanup, child)
	child.mu.Lock()
	child.parents = append(child.parents, cleanup)
	child.mu.Unlock()
	cleanup.addWatcher(
		func(Result) { propagate() },
		func(e *Error) { child.doReject(e) },
	)
}
