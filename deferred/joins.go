package deferred

import "fmt"

// newJoinNode builds a combinator node whose parents are the given list,
// verifying every one belongs to the barrier active on the calling
// goroutine (a join spanning barriers, or reaching into an already-finished
// one, is a programmer error surfaced immediately per §7's non-recoverable
// class rather than as a scheduled rejection).
func newJoinNode(parents []*Node) *Node {
	b := currentBarrier()
	for _, p := range parents {
		if p.barrier != b {
			panic(&Error{Kind: KindCrossBarrier, Message: "a join's parent does not belong to the active synchronise call"})
		}
	}
	return newNodeInBarrier(b, nil, append([]*Node(nil), parents...))
}

func addOwnedWatcher(parent, child *Node, onFulfil func(Result), onReject func(*Error)) {
	adopt(parent, child)
	parent.addWatcher(onFulfil, onReject)
}

// WhenAll fulfils with the ordered results of every parent once all have
// fulfilled, or rejects with the first rejection observed — cancelling
// every other still-pending parent at that point, since their results are
// no longer needed.
func WhenAll(parents ...*Node) *Node {
	child := newJoinNode(parents)
	if len(parents) == 0 {
		child.settle(Fulfilled, []Result{}, nil)
		return child
	}
	results := make([]Result, len(parents))
	remaining := len(parents)
	settled := false
	for i, p := range parents {
		idx := i
		addOwnedWatcher(p, child,
			func(v Result) {
				if settled {
					return
				}
				results[idx] = v
				remaining--
				if remaining == 0 {
					settled = true
					child.settle(Fulfilled, append([]Result(nil), results...), nil)
				}
			},
			func(e *Error) {
				if settled {
					return
				}
				settled = true
				child.settle(Rejected, nil, e)
				cancelSiblings(parents, &Error{Kind: KindCancelled, Message: "when_all: a sibling rejected"})
			},
		)
	}
	return child
}

// WhenAny fulfils with the first parent result observed, cancelling every
// other still-pending parent at that point. It only rejects if every
// parent rejects, with an aggregate KindAllFailed error carrying every
// branch's cause in index order.
func WhenAny(parents ...*Node) *Node {
	child := newJoinNode(parents)
	if len(parents) == 0 {
		child.settle(Rejected, nil, &Error{Kind: KindAllFailed, Message: "when_any: no parents given"})
		return child
	}
	causes := make([]error, len(parents))
	remaining := len(parents)
	settled := false
	for i, p := range parents {
		idx := i
		addOwnedWatcher(p, child,
			func(v Result) {
				if settled {
					return
				}
				settled = true
				child.settle(Fulfilled, v, nil)
				cancelSiblings(parents, &Error{Kind: KindCancelled, Message: "when_any: another branch already won"})
			},
			func(e *Error) {
				if settled {
					return
				}
				causes[idx] = e
				remaining--
				if remaining == 0 {
					settled = true
					child.settle(Rejected, nil, &Error{Kind: KindAllFailed, Message: "when_any: every branch rejected", Causes: causes})
				}
			},
		)
	}
	return child
}

// WhenSome fulfils with the first n fulfilled results, in settlement order,
// once at least n parents have fulfilled, cancelling whatever is left
// pending at that point. It rejects with KindInsufficient as soon as fewer
// than n successes remain reachable, i.e. as soon as
// len(parents) - rejectedCount < n.
func WhenSome(n int, parents ...*Node) *Node {
	child := newJoinNode(parents)
	total := len(parents)
	if n <= 0 {
		child.settle(Fulfilled, []Result{}, nil)
		return child
	}
	if n > total {
		child.settle(Rejected, nil, &Error{Kind: KindInsufficient, Message: fmt.Sprintf("when_some: need %d successes, only %d parents given", n, total)})
		return child
	}
	var results []Result
	causes := make([]error, total)
	rejectedCount := 0
	settled := false
	for i, p := range parents {
		idx := i
		addOwnedWatcher(p, child,
			func(v Result) {
				if settled {
					return
				}
				results = append(results, v)
				if len(results) == n {
					settled = true
					child.settle(Fulfilled, append([]Result(nil), results...), nil)
					cancelSiblings(parents, &Error{Kind: KindCancelled, Message: "when_some: required successes already reached"})
				}
			},
			func(e *Error) {
				if settled {
					return
				}
				causes[idx] = e
				rejectedCount++
				if total-rejectedCount < n {
					settled = true
					child.settle(Rejected, nil, &Error{Kind: KindInsufficient, Message: "when_some: can no longer reach the required success count", Cause: e, Causes: causes})
					cancelSiblings(parents, &Error{Kind: KindCancelled, Message: "when_some: already insufficient"})
				}
			},
		)
	}
	return child
}
