package deferred

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCrossBarrierThenPanics(t *testing.T) {
	var leaked *Node
	_, err := Synchronise(func() *Node {
		leaked = Constant("leaked")
		return leaked
	})
	require.NoError(t, err)

	require.Panics(t, func() {
		_, _ = Synchronise(func() *Node {
			return leaked.Then(func(Result) Result { return nil })
		})
	})
}

func TestNestedSynchroniseRunsToCompletionBeforeOuterContinues(t *testing.T) {
	result, err := Synchronise(func() *Node {
		return Delay(5 * time.Millisecond).Then(func(Result) Result {
			innerResult, innerErr := Synchronise(func() *Node {
				return Constant("inner")
			})
			require.NoError(t, innerErr)
			return innerResult
		})
	})
	require.NoError(t, err)
	require.Equal(t, "inner", result)
}

func TestSynchroniseContextAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := SynchroniseContext(ctx, func() *Node {
		return Delay(time.Second)
	})
	require.Error(t, err)
	var de *Error
	require.ErrorAs(t, err, &de)
	require.Equal(t, KindInterrupted, de.Kind)
}

func TestSynchroniseContextCancelledMidFlight(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := SynchroniseContext(ctx, func() *Node {
		return Delay(time.Hour)
	})
	require.Error(t, err)
	var de *Error
	require.ErrorAs(t, err, &de)
	require.Equal(t, KindInterrupted, de.Kind)
}

func TestSynchroniseRequiresNonNilRoot(t *testing.T) {
	require.Panics(t, func() {
		_, _ = Synchronise(func() *Node { return nil })
	})
}

func TestSynchroniseRejectsAlienRoot(t *testing.T) {
	var alien *Node
	_, err := Synchronise(func() *Node {
		alien = Constant("from a prior barrier")
		return alien
	})
	require.NoError(t, err)

	require.Panics(t, func() {
		_, _ = Synchronise(func() *Node {
			Constant("unused")
			return alien
		})
	})
}

func TestBarrierIDsAreUnique(t *testing.T) {
	var ids []uint64
	for i := 0; i < 3; i++ {
		_, err := Synchronise(func() *Node {
			ids = append(ids, currentBarrier().ID())
			return Constant(i)
		})
		require.NoError(t, err)
	}
	require.Len(t, ids, 3)
	require.NotEqual(t, ids[0], ids[1])
	require.NotEqual(t, ids[1], ids[2])
}
