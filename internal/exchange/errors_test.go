package exchange

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestErrorClassifiers covers the kind predicates used by the retry
// and propagation policy.
func TestErrorClassifiers(t *testing.T) {
	assert.True(t, IsRetryable(NewError(KindNetwork, "op", "timeout")))
	assert.False(t, IsRetryable(NewError(KindAuth, "op", "bad key")))
	assert.False(t, IsRetryable(NewError(KindBusiness, "op", "rejected")))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))

	assert.True(t, IsAuthError(NewError(KindAuth, "op", "bad key")))
	assert.False(t, IsAuthError(NewError(KindNetwork, "op", "timeout")))

	assert.True(t, IsBusinessError(NewError(KindBusiness, "op", "rejected")))
	assert.False(t, IsBusinessError(errors.New("plain")))
}

// TestError_Wrapping verifies categorized errors survive fmt.Errorf
// wrapping.
func TestError_Wrapping(t *testing.T) {
	inner := NewError(KindNetwork, "place_order", "timeout").WithCode(10006)
	wrapped := fmt.Errorf("execute BTCUSDT: %w", inner)

	ee, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindNetwork, ee.Kind)
	assert.Equal(t, 10006, ee.Code)
	assert.True(t, IsRetryable(wrapped))
}

// TestError_AlreadyClosed verifies the already-closed flag is carried
// through wrapping.
func TestError_AlreadyClosed(t *testing.T) {
	err := NewError(KindBusiness, "cancel_order", "order not found")
	err.AlreadyClosed = true

	assert.True(t, IsAlreadyClosed(err))
	assert.True(t, IsAlreadyClosed(fmt.Errorf("close: %w", err)))
	assert.False(t, IsAlreadyClosed(NewError(KindBusiness, "cancel_order", "other")))
}

// TestWrapError_NilPassthrough verifies wrapping nil stays nil.
func TestWrapError_NilPassthrough(t *testing.T) {
	assert.Nil(t, WrapError(KindNetwork, "op", nil))
}

// TestError_Message verifies the operator-facing rendering.
func TestError_Message(t *testing.T) {
	err := NewError(KindBusiness, "place_order", "insufficient balance").WithCode(110007)
	assert.Contains(t, err.Error(), "place_order")
	assert.Contains(t, err.Error(), "BUSINESS")
	assert.Contains(t, err.Error(), "110007")
}
