package deferred

import (
	"container/heap"
	"context"
	"fmt"
	"time"
)

// timerEntry is one pending timer registration.
type timerEntry struct {
	when      time.Time
	fn        func()
	token     uint64
	cancelled bool
	index     int
}

// timerHeap is a container/heap of pending timers ordered by deadline,
// grounded on the teacher's own timerHeap (go-eventloop's loop.go).
type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].when.Before(h[j].when) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x any) {
	t := x.(*timerEntry)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// Loop is a single-threaded, cooperative event loop (§4.3): a FIFO ready
// queue, a timer heap, and one buffered channel (external) that is the only
// cross-goroutine entry point into an otherwise single-threaded engine.
// Every field below is only ever touched from the goroutine that is
// currently running the loop (see Wakeup / isLoopThread) — unlike the
// teacher's Loop, nothing here needs a mutex, because this engine has no
// throughput budget and no dedicated loop goroutine of its own: Synchronise
// runs the loop inline, blocking the calling goroutine.
type Loop struct {
	ready  []func()
	starts []*Node

	timers     timerHeap
	timerIndex map[uint64]*timerEntry
	timerSeq   uint64

	external chan func()

	goroutineID uint64
	logger      Logger
}

func newLoop(cfg *config) *Loop {
	return &Loop{
		external:   make(chan func(), cfg.externalBuffer),
		timerIndex: make(map[uint64]*timerEntry),
		logger:     cfg.logger,
	}
}

// isLoopThread reports whether the calling goroutine is the one currently
// driving this loop (set at the top of runUntilDone).
func (l *Loop) isLoopThread() bool {
	return l.goroutineID != 0 && getGoroutineID() == l.goroutineID
}

// Wakeup is the engine's one cross-thread entry point (§5): if called from
// the loop's own goroutine it runs fn immediately (the common case —
// constant/combinator settlement, and any producer whose Start settles
// synchronously); otherwise it hands fn to the loop via the buffered
// external channel, to be run the next time the loop is idle or polling.
func (l *Loop) Wakeup(fn func()) {
	if fn == nil {
		return
	}
	if l.isLoopThread() {
		fn()
		return
	}
	l.external <- fn
}

func (l *Loop) scheduleReady(fn func()) { l.ready = append(l.ready, fn) }
func (l *Loop) scheduleStart(n *Node)   { l.starts = append(l.starts, n) }

func (l *Loop) safeExec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Log(LevelError, "loop", fmt.Sprintf("callback panicked: %v", r), nil)
		}
	}()
	fn()
}

// drainReady runs every callback currently queued, including any it causes
// to be scheduled in turn (a watcher firing may itself schedule more ready
// work), until the queue is empty.
func (l *Loop) drainReady() {
	for len(l.ready) > 0 {
		fn := l.ready[0]
		l.ready = l.ready[1:]
		l.safeExec(fn)
	}
}

// runStarts invokes Producer.Start for every node discovered reachable
// since the last pass (§4.3 step 2).
func (l *Loop) runStarts() {
	for len(l.starts) > 0 {
		n := l.starts[0]
		l.starts = l.starts[1:]
		l.safeExec(n.start)
	}
}

// RegisterTimer schedules fn to run once deadline passes, returning a token
// usable with CancelTimer. Part of the adapter registration surface (§6).
func (l *Loop) RegisterTimer(deadline time.Time, fn func()) uint64 {
	l.timerSeq++
	t := &timerEntry{when: deadline, fn: fn, token: l.timerSeq}
	heap.Push(&l.timers, t)
	l.timerIndex[t.token] = t
	return t.token
}

// CancelTimer cancels a pending timer registered with RegisterTimer. It is
// a no-op if the timer already fired or was already cancelled.
func (l *Loop) CancelTimer(token uint64) {
	if t, ok := l.timerIndex[token]; ok {
		t.cancelled = true
		delete(l.timerIndex, token)
	}
}

// RegisterWait runs wait on a new goroutine and marshals its result back
// onto the loop thread via Wakeup once it returns. This is the engine's
// answer to §6's register_wait for sources with no native Go readiness
// channel (subprocess exit, worker-pool batch completion): everything
// crosses back through the one cross-thread entry point regardless of how
// many goroutines an adapter spawns internally.
func (l *Loop) RegisterWait(wait func() (Result, error), onDone func(Result, error)) {
	go func() {
		v, err := wait()
		l.Wakeup(func() { onDone(v, err) })
	}()
}

// RegisterIO waits for ready to fire (or close) and then runs onReady on
// the loop thread. Adapters that already have a channel-based readiness
// signal (rather than a blocking call suited to RegisterWait) use this.
func (l *Loop) RegisterIO(ready <-chan struct{}, onReady func()) {
	go func() {
		<-ready
		l.Wakeup(onReady)
	}()
}

func (l *Loop) nextTimerDelay() (time.Duration, bool) {
	if len(l.timers) == 0 {
		return 0, false
	}
	d := time.Until(l.timers[0].when)
	if d < 0 {
		d = 0
	}
	return d, true
}

// fireDueTimers pops and runs every timer whose deadline has passed.
func (l *Loop) fireDueTimers() {
	now := time.Now()
	for len(l.timers) > 0 && !l.timers[0].when.After(now) {
		t := heap.Pop(&l.timers).(*timerEntry)
		delete(l.timerIndex, t.token)
		if t.cancelled {
			continue
		}
		l.safeExec(t.fn)
	}
}

// blockOnce waits for exactly one of: the next timer deadline, a delivery
// on the external channel, or ctx being cancelled — then handles it. This
// is steps 4-5 of §4.3's single-tick procedure: block until a source fires,
// then invoke its settlement and return to step 1.
func (l *Loop) blockOnce(ctx context.Context, root *Node) {
	var timerC <-chan time.Time
	if d, ok := l.nextTimerDelay(); ok {
		timer := time.NewTimer(d)
		defer timer.Stop()
		timerC = timer.C
	}
	select {
	case <-ctx.Done():
		cancelNode(root, &Error{Kind: KindInterrupted, Message: "synchronise: context cancelled", Cause: ctx.Err()})
	case <-timerC:
		l.fireDueTimers()
	case fn := <-l.external:
		l.safeExec(fn)
	}
}

// runUntilDone is the single-tick procedure (§4.3) repeated until the root
// settles: drain the ready queue, start newly-reachable producers, and if
// the ready queue is still empty and the root isn't terminal, block for the
// next external event.
func (l *Loop) runUntilDone(ctx context.Context, root *Node) {
	l.goroutineID = getGoroutineID()
	for {
		l.drainReady()
		l.runStarts()
		if len(l.ready) > 0 {
			continue
		}
		if root.isTerminal() {
			return
		}
		l.blockOnce(ctx, root)
	}
}

// drainTeardown gives already-in-flight settlements (producer aborts that
// raced a final Fulfil/Reject call, or watcher callbacks scheduled just
// before teardown cancelled their node) a bounded number of passes to
// flush out, without blocking on anything new — teardown must not hang
// waiting on a slow adapter that will never call back.
func (l *Loop) drainTeardown() {
	for i := 0; i < 4; i++ {
		l.drainReady()
		l.runStarts()
	drainExternal:
		for {
			select {
			case fn := <-l.external:
				l.safeExec(fn)
			default:
				break drainExternal
			}
		}
		if len(l.ready) == 0 && len(l.starts) == 0 {
			return
		}
	}
}
