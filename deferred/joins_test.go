package deferred

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWhenAllPreservesOrder(t *testing.T) {
	result, err := Synchronise(func() *Node {
		a := Delay(15 * time.Millisecond).Then(func(Result) Result { return "a" })
		b := Delay(5 * time.Millisecond).Then(func(Result) Result { return "b" })
		c := Delay(10 * time.Millisecond).Then(func(Result) Result { return "c" })
		return WhenAll(a, b, c)
	})
	require.NoError(t, err)
	require.Equal(t, []Result{"a", "b", "c"}, result)
}

func TestWhenAllEmptyFulfilsImmediately(t *testing.T) {
	result, err := Synchronise(func() *Node {
		return WhenAll()
	})
	require.NoError(t, err)
	require.Equal(t, []Result{}, result)
}

func TestWhenAllRejectsOnFirstFailureAndCancelsSiblings(t *testing.T) {
	var slow *Node
	_, err := Synchronise(func() *Node {
		fast := RejectedNode(&Error{Kind: KindUser, Message: "fail fast"})
		slow = New(&trackingProducer2{})
		return WhenAll(fast, slow)
	})
	require.Error(t, err)
	require.Equal(t, Cancelled, slow.State())
}

func TestWhenAnyFulfilsWithFirstAndCancelsLoser(t *testing.T) {
	var loserAborted bool
	result, err := Synchronise(func() *Node {
		fast := Delay(2 * time.Millisecond).Then(func(Result) Result { return "fast" })
		slow := New(&trackingProducer2{onAbort: func() { loserAborted = true }})
		return WhenAny(fast, slow)
	})
	require.NoError(t, err)
	require.Equal(t, "fast", result)
	require.True(t, loserAborted)
}

func TestWhenAnyRejectsOnlyWhenAllFail(t *testing.T) {
	_, err := Synchronise(func() *Node {
		a := RejectedNode(&Error{Kind: KindUser, Message: "a"})
		b := RejectedNode(&Error{Kind: KindUser, Message: "b"})
		return WhenAny(a, b)
	})
	require.Error(t, err)
	var de *Error
	require.ErrorAs(t, err, &de)
	require.Equal(t, KindAllFailed, de.Kind)
	require.Len(t, de.Causes, 2)
}

func TestWhenAnyNoParentsRejectsImmediately(t *testing.T) {
	_, err := Synchronise(func() *Node {
		return WhenAny()
	})
	require.Error(t, err)
	var de *Error
	require.ErrorAs(t, err, &de)
	require.Equal(t, KindAllFailed, de.Kind)
}

func TestWhenSomeFulfilsWithFirstN(t *testing.T) {
	result, err := Synchronise(func() *Node {
		a := Delay(5 * time.Millisecond).Then(func(Result) Result { return "a" })
		b := Delay(15 * time.Millisecond).Then(func(Result) Result { return "b" })
		c := Delay(10 * time.Millisecond).Then(func(Result) Result { return "c" })
		return WhenSome(2, a, b, c)
	})
	require.NoError(t, err)
	require.Equal(t, []Result{"a", "c"}, result)
}

func TestWhenSomeRejectsWhenInsufficientReachable(t *testing.T) {
	_, err := Synchronise(func() *Node {
		a := RejectedNode(&Error{Kind: KindUser, Message: "a"})
		b := RejectedNode(&Error{Kind: KindUser, Message: "b"})
		c := Constant("c")
		return WhenSome(2, a, b, c)
	})
	require.Error(t, err)
	var de *Error
	require.ErrorAs(t, err, &de)
	require.Equal(t, KindInsufficient, de.Kind)
}

func TestWhenSomeZeroFulfilsEmptyImmediately(t *testing.T) {
	result, err := Synchronise(func() *Node {
		return WhenSome(0, Constant("a"), Constant("b"))
	})
	require.NoError(t, err)
	require.Equal(t, []Result{}, result)
}

func TestWhenSomeMoreThanAvailableRejectsImmediately(t *testing.T) {
	_, err := Synchronise(func() *Node {
		return WhenSome(3, Constant("a"), Constant("b"))
	})
	require.Error(t, err)
	var de *Error
	require.ErrorAs(t, err, &de)
	require.Equal(t, KindInsufficient, de.Kind)
}

func TestJoinAcrossBarriersPanics(t *testing.T) {
	var leaked *Node
	_, err := Synchronise(func() *Node {
		leaked = Constant("leaked")
		return leaked
	})
	require.NoError(t, err)

	require.Panics(t, func() {
		_, _ = Synchronise(func() *Node {
			return WhenAll(leaked, Constant("fresh"))
		})
	})
}

type trackingProducer2 struct {
	onStart func()
	onAbort func()
}

func (p *trackingProducer2) Start(Settle) error {
	if p.onStart != nil {
		p.onStart()
	}
	return nil // never settles on its own; only Abort matters to these tests
}

func (p *trackingProducer2) Abort() {
	if p.onAbort != nil {
		p.onAbort()
	}
}
