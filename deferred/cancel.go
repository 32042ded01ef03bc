package deferred

// cancelNode implements the Cancellation Engine (§4.5): starting from a
// single no-longer-needed node, walk parents transitively. A node already
// in a terminal state is left untouched (cancellation never overwrites a
// settled outcome). A node that was Running has its producer aborted. A
// shared node is never added to an ancestor's queue from this walk — shared
// nodes are only reclaimed at barrier teardown (§9 Open Question 1) since
// another, still-relevant child might depend on it.
func cancelNode(n *Node, reason *Error) {
	queue := []*Node{n}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		transitioned, wasRunning := cur.settleCancelled(reason)
		if !transitioned {
			continue
		}
		if wasRunning && cur.producer != nil {
			cur.producer.Abort()
		}
		for _, p := range cur.parents {
			if p.shared {
				continue
			}
			queue = append(queue, p)
		}
	}
}

// cancelSiblings cancels every non-shared node in parents; terminal nodes
// (including the one that just won a race) are no-ops via cancelNode's own
// terminal check, and shared parents are skipped, being reclaimed only at
// barrier teardown. Used by WhenAll/WhenAny/WhenSome once the join has
// enough information to settle and the remaining branches are no longer
// needed.
func cancelSiblings(parents []*Node, reason *Error) {
	if reason == nil {
		reason = &Error{Kind: KindCancelled, Message: "no longer needed"}
	}
	for _, p := range parents {
		if p.shared {
			continue
		}
		cancelNode(p, reason)
	}
}
