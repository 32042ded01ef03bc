package deferred

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestCancellationPropagatesThroughNonSharedAncestors verifies that
// cancelling a losing when_any branch cancels its whole non-shared ancestry,
// not just the branch node itself.
func TestCancellationPropagatesThroughNonSharedAncestors(t *testing.T) {
	var grandparent *Node
	result, err := Synchronise(func() *Node {
		fast := Delay(2 * time.Millisecond).Then(func(Result) Result { return "fast" })
		grandparent = Delay(time.Second)
		slow := grandparent.Then(func(Result) Result { return "slow" })
		return WhenAny(fast, slow)
	})
	require.NoError(t, err)
	require.Equal(t, "fast", result)
	require.Equal(t, Cancelled, grandparent.State())
}

// TestSharedAncestorSurvivesSiblingCancellation verifies that a shared node
// is not cancelled by the live cancellation walk, only at barrier teardown,
// because another still-relevant consumer may depend on it.
func TestSharedAncestorSurvivesSiblingCancellation(t *testing.T) {
	result, err := Synchronise(func() *Node {
		shared := Delay(20 * time.Millisecond).Share()
		fast := Delay(2 * time.Millisecond).Then(func(Result) Result { return "fast" })
		slowBranch := shared.Then(func(Result) Result { return "slow" })
		other := shared.Then(func(Result) Result { return "other" })
		return WhenAny(fast, slowBranch).Then(func(v Result) Result {
			return other.Then(func(Result) Result { return v })
		})
	})
	require.NoError(t, err)
	require.Equal(t, "fast", result)
}

// TestCancelNodeLeavesTerminalOutcomeAlone verifies that cancellation never
// overwrites a node that has already settled.
func TestCancelNodeLeavesTerminalOutcomeAlone(t *testing.T) {
	n := &Node{}
	n.state.Store(int32(Fulfilled))
	n.result = "already done"
	transitioned, wasRunning := n.settleCancelled(&Error{Kind: KindCancelled})
	require.False(t, transitioned)
	require.False(t, wasRunning)
	require.Equal(t, Fulfilled, n.State())
}

func TestBarrierTeardownCancelsUnreachedNodes(t *testing.T) {
	var orphan *Node
	result, err := Synchronise(func() *Node {
		orphan = New(&trackingProducer2{})
		return Constant("done")
	})
	require.NoError(t, err)
	require.Equal(t, "done", result)
	require.Equal(t, Cancelled, orphan.State())
}
