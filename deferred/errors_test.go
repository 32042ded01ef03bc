package deferred

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesByKind(t *testing.T) {
	e := &Error{Kind: KindTimeout, Message: "too slow"}
	require.True(t, errors.Is(e, &Error{Kind: KindTimeout}))
	require.False(t, errors.Is(e, &Error{Kind: KindUser}))
}

func TestErrorUnwrapReachesCause(t *testing.T) {
	cause := errors.New("boom")
	e := &Error{Kind: KindUser, Cause: cause}
	require.ErrorIs(t, e, cause)
}

func TestErrorUnwrapAllReachesCauses(t *testing.T) {
	a := errors.New("a")
	b := errors.New("b")
	e := &Error{Kind: KindAllFailed, Causes: []error{a, b}}
	require.ElementsMatch(t, []error{a, b}, e.UnwrapAll())
}

func TestToErrorWrapsPlainError(t *testing.T) {
	plain := errors.New("plain")
	wrapped := toError(plain)
	require.Equal(t, KindUser, wrapped.Kind)
	require.ErrorIs(t, wrapped, plain)
}

func TestToErrorPassesThroughDeferredError(t *testing.T) {
	original := &Error{Kind: KindTimeout, Message: "x"}
	require.Same(t, original, toError(original))
}

func TestErrorMessageIncludesKindAndMessage(t *testing.T) {
	e := &Error{Kind: KindTimeout, Message: "deadline exceeded"}
	require.Contains(t, e.Error(), string(KindTimeout))
	require.Contains(t, e.Error(), "deadline exceeded")
}
