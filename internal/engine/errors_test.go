package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Predicates(t *testing.T) {
	addr := NewAddressError(112, 112)
	assert.True(t, IsAddressError(addr))
	assert.False(t, IsBuildError(addr))
	assert.Equal(t, "INVALID_ADDRESS: address 112 out of range 0..111", addr.Error())
	assert.Equal(t, "112", addr.Details["address"])

	wrapped := fmt.Errorf("set channel: %w", addr)
	assert.True(t, IsAddressError(wrapped), "predicates see through wrapping")

	assert.False(t, IsAddressError(errors.New("plain")))
	assert.False(t, IsQueueClosed(nil))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("table locked")
	err := NewBuildError(3, cause)

	assert.True(t, IsBuildError(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "BUILD_FAILED: rebuild after generation 3: table locked", err.Error())
}
