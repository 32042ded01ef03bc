package deferred

import "time"

// Constant returns a deferred already fulfilled with v. It carries no
// producer, so it never participates in start bookkeeping — it is terminal
// from the moment it's constructed, matching the teacher's
// WithResolvers-style immediate-settlement helpers generalised to a
// synchronous constructor.
func Constant(v Result) *Node {
	n := newNodeInBarrier(currentBarrier(), nil, nil)
	n.settle(Fulfilled, v, nil)
	return n
}

// RejectedNode returns a deferred already rejected with err. It is mostly
// useful for injecting a rejection from inside a then/finally callback via
// absorption (return deferred.RejectedNode(...) to reject the chain).
func RejectedNode(err error) *Node {
	n := newNodeInBarrier(currentBarrier(), nil, nil)
	n.settle(Rejected, nil, toError(err))
	return n
}

// timerProducer is Delay's Producer: it registers with the owning Loop's
// timer heap and fulfils with nil once the deadline passes, or is dropped
// from the heap on Abort.
type timerProducer struct {
	loop  *Loop
	d     time.Duration
	token uint64
}

func (p *timerProducer) Start(settle Settle) error {
	p.token = p.loop.RegisterTimer(time.Now().Add(p.d), func() {
		settle.Fulfil(nil)
	})
	return nil
}

func (p *timerProducer) Abort() {
	p.loop.CancelTimer(p.token)
}

// Delay returns a deferred that fulfils with nil after d elapses. It is the
// `delay(seconds)` constructor named in §6 — a core primitive, not an
// out-of-scope source adapter, because the engine's own timer heap drives
// it directly.
func Delay(d time.Duration) *Node {
	b := currentBarrier()
	return newNodeInBarrier(b, &timerProducer{loop: b.loop, d: d}, nil)
}
