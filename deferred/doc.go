// Package deferred implements a single-threaded, cooperative deferred-value
// engine: a Promise/A+-flavoured node graph (constant, delay, then, catch,
// finally, share, when_all, when_any, when_some) driven by an event loop that
// lazily starts only the producers reachable from a synchronisation
// barrier's root.
//
// A deferred value is represented by a *Node. Nodes form a DAG: a node's
// "parents" are the deferreds it was built from, and — unless explicitly
// shared via (*Node).Share — a node may have at most one consumer. Building
// the DAG never runs anything; a node's Producer (if any) only starts once
// the node becomes reachable from the root of an active Synchronise call,
// and reachability only exists while that call's Loop is ticking.
//
// Use Synchronise to run an expression to completion:
//
//	result, err := deferred.Synchronise(func() *deferred.Node {
//		return deferred.Delay(10 * time.Millisecond).Then(func(v deferred.Result) deferred.Result {
//			return "done"
//		})
//	})
//
// Cancellation is never requested directly by callers; it is a side effect
// of the joins discarding branches they no longer need (when_any/when_some
// losers, when_all siblings after a rejection), of a SynchroniseContext
// context being cancelled, and of barrier teardown reclaiming whatever is
// left pending when the root settles. Errors are a
// closed, typed hierarchy (see Error and Kind) so callers can branch on
// Kind without string matching.
//
// External sources (timers aside — Delay is a core primitive) plug in via
// the Producer/Settle contract in adapter.go; see the deferred/sources/...
// packages for concrete examples (HTTP, subprocess, worker pool).
package deferred
