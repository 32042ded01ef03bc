package deferred

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConstantFulfilsImmediately(t *testing.T) {
	result, err := Synchronise(func() *Node {
		return Constant(42)
	})
	require.NoError(t, err)
	require.Equal(t, 42, result)
}

func TestRejectedNodeRejects(t *testing.T) {
	_, err := Synchronise(func() *Node {
		return RejectedNode(&Error{Kind: KindUser, Message: "boom"})
	})
	require.Error(t, err)
	var de *Error
	require.ErrorAs(t, err, &de)
	require.Equal(t, KindUser, de.Kind)
}

func TestDelayFulfilsAfterDuration(t *testing.T) {
	start := time.Now()
	result, err := Synchronise(func() *Node {
		return Delay(10 * time.Millisecond).Then(func(Result) Result { return "done" })
	})
	require.NoError(t, err)
	require.Equal(t, "done", result)
	require.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestUnreachableNodeNeverStarts(t *testing.T) {
	var started bool
	_, err := Synchronise(func() *Node {
		p := &trackingProducer{onStart: func() { started = true }}
		_ = New(p) // constructed, but never adopted by anything reachable from root
		return Constant("root")
	})
	require.NoError(t, err)
	require.False(t, started, "a node unreachable from the barrier's root must never start")
}

func TestShareAllowsMultipleConsumers(t *testing.T) {
	result, err := Synchronise(func() *Node {
		shared := Constant(10).Share()
		a := shared.Then(func(v Result) Result { return v.(int) + 1 })
		b := shared.Then(func(v Result) Result { return v.(int) + 2 })
		return WhenAll(a, b)
	})
	require.NoError(t, err)
	require.Equal(t, []Result{11, 12}, result)
}

func TestSecondConsumerWithoutSharePanics(t *testing.T) {
	require.Panics(t, func() {
		_, _ = Synchronise(func() *Node {
			d := Constant(1)
			d.Then(func(Result) Result { return nil })
			return d.Then(func(Result) Result { return nil })
		})
	})
}

type trackingProducer struct {
	onStart func()
}

func (p *trackingProducer) Start(settle Settle) error {
	if p.onStart != nil {
		p.onStart()
	}
	settle.Fulfil(nil)
	return nil
}

func (p *trackingProducer) Abort() {}
