package deferred

// Settle is how a Producer reports its outcome back to the engine. Both
// methods are safe to call from any goroutine (exactly one call, fulfil or
// reject, is honoured — the engine discards anything after the first and
// anything after the node has been cancelled). This is the Go shape of
// §4.6's "settle" callback.
type Settle interface {
	Fulfil(v Result)
	Reject(err error)
}

// Producer is the Source Adapter Contract (§4.6): the engine knows nothing
// about what a producer does, only that Start is called at most once, when
// the node becomes reachable, and that Abort is idempotent and safe to call
// even if Start was never called or the producer already settled.
type Producer interface {
	// Start begins the asynchronous operation. It must not block; async
	// work happens on a goroutine or is registered with the Loop (timers,
	// waits). A non-nil error return is treated as an immediate rejection.
	Start(settle Settle) error
	// Abort requests cancellation of in-flight work. It is called at most
	// once per node, only if Start was called and the node had not yet
	// settled, and must not itself block or panic.
	Abort()
}

// nodeSettle is the concrete Settle handed to a Producer.Start call. Both
// methods marshal onto the owning Loop's goroutine via Loop.Wakeup — the
// engine's only cross-thread entry point (§5).
type nodeSettle struct{ n *Node }

func (s nodeSettle) Fulfil(v Result) {
	s.n.barrier.loop.Wakeup(func() { s.n.doFulfil(v) })
}

func (s nodeSettle) Reject(err error) {
	s.n.barrier.loop.Wakeup(func() { s.n.doReject(toError(err)) })
}
