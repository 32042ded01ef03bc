// Package timersrc builds timer-derived combinators on top of the core
// engine's Delay primitive. It deliberately does not reimplement timers —
// spec.md §5 is explicit that a timeout is expressed as
// when_any(op, delay(T)) with rejection rewriting, with no dedicated
// primitive needed in the core — so this package is just that pattern,
// packaged for reuse.
package timersrc

import (
	"time"

	"github.com/tinwire/deferred/deferred"
)

// timeoutSentinel marks the guard branch winning the race in Timeout. It
// never escapes this package: when_any only rejects once every branch has
// rejected, so a guard that itself rejected on expiry would never win
// against a merely-slow (not failed) op. Fulfilling with this sentinel and
// filtering it back out below is what lets a plain delay stand in for a
// dedicated timeout primitive.
type timeoutSentinel struct{}

// Timeout returns a deferred that settles like op, unless op has not
// settled within d, in which case it rejects with
// *deferred.Error{Kind: deferred.KindTimeout} and op is cancelled — the
// ordinary when_any losing-branch path. Implemented as when_any(op, guard)
// where guard is a delayed fulfilment, per §5's note that a timeout needs
// no dedicated primitive, only composition of when_any and delay.
func Timeout(op *deferred.Node, d time.Duration) *deferred.Node {
	guard := deferred.Delay(d).Then(func(deferred.Result) deferred.Result {
		return timeoutSentinel{}
	})
	return deferred.WhenAny(op, guard).Then(func(v deferred.Result) deferred.Result {
		if _, timedOut := v.(timeoutSentinel); timedOut {
			return deferred.RejectedNode(&deferred.Error{Kind: deferred.KindTimeout, Message: "operation timed out"})
		}
		return v
	})
}

// After returns a deferred fulfilling with v once d elapses — a thin,
// value-carrying wrapper over Delay for callers who want a timer that
// produces something other than nil.
func After(d time.Duration, v deferred.Result) *deferred.Node {
	return deferred.Delay(d).Then(func(deferred.Result) deferred.Result { return v })
}
