package deferred

import "sync"

// barrierStacks tracks, per goroutine, the stack of barriers currently
// being driven by a Synchronise/SynchroniseContext call on that goroutine.
// Nested synchronise calls (a then callback that itself calls Synchronise)
// push a second frame; it is popped before control returns to the outer
// callback. Go has no goroutine-local storage, so this is keyed by the
// parsed goroutine id, same as the teacher's thread-affinity checks.
var barrierStacks = struct {
	mu sync.Mutex
	m  map[uint64][]*Barrier
}{m: make(map[uint64][]*Barrier)}

func pushBarrier(b *Barrier) {
	gid := getGoroutineID()
	barrierStacks.mu.Lock()
	barrierStacks.m[gid] = append(barrierStacks.m[gid], b)
	barrierStacks.mu.Unlock()
}

func popBarrier() {
	gid := getGoroutineID()
	barrierStacks.mu.Lock()
	defer barrierStacks.mu.Unlock()
	stack := barrierStacks.m[gid]
	if len(stack) == 0 {
		return
	}
	stack = stack[:len(stack)-1]
	if len(stack) == 0 {
		delete(barrierStacks.m, gid)
	} else {
		barrierStacks.m[gid] = stack
	}
}

// currentBarrier returns the innermost barrier active on the calling
// goroutine, panicking if none is — constructors like Constant, Delay and
// every deferred/sources adapter may only be called from inside a
// Synchronise expression.
func currentBarrier() *Barrier {
	gid := getGoroutineID()
	barrierStacks.mu.Lock()
	defer barrierStacks.mu.Unlock()
	stack := barrierStacks.m[gid]
	if len(stack) == 0 {
		panic("deferred: must be called from within a synchronise expression")
	}
	return stack[len(stack)-1]
}

// CurrentLoop returns the Loop owning the barrier active on the calling
// goroutine. Source adapters use it to reach Loop.RegisterTimer,
// Loop.RegisterWait etc. without threading a *Loop through every
// constructor call.
func CurrentLoop() *Loop { return currentBarrier().loop }
