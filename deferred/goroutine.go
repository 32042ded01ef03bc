package deferred

import "runtime"

// getGoroutineID parses the calling goroutine's id out of a runtime.Stack
// dump. Go deliberately has no public API for this; the teacher package
// (go-eventloop's loop.go isLoopThread/getGoroutineID) reaches for the same
// trick to check thread affinity without a third-party dependency, and this
// engine borrows it verbatim for the same purpose: keying the per-goroutine
// synchronise barrier stack (see barrierstack.go) and detecting whether a
// Settle call arrived on the loop's own goroutine or a background one.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	const prefix = "goroutine "
	b := buf[:n]
	if len(b) <= len(prefix) {
		return 0
	}
	b = b[len(prefix):]
	var id uint64
	for _, c := range b {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}
