package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	err := New("TEST_001", "something broke")
	assert.Equal(t, "[TEST_001] something broke", err.Error())
}

func TestAppError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := New("TEST_002", "upstream unavailable", cause)
	assert.Equal(t, "[TEST_002] upstream unavailable: connection refused", err.Error())
	assert.Equal(t, cause, stderrors.Unwrap(err))
}

func TestAppError_IsMatchesByCode(t *testing.T) {
	wrapped := Wrap(fmt.Errorf("deadline exceeded"), ErrTokenTimeout.Code, "token budget")
	assert.True(t, stderrors.Is(wrapped, ErrTokenTimeout))
	assert.False(t, stderrors.Is(wrapped, ErrRequestTimeout))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, "DISPATCH_003", GetCode(ErrConfigMismatch))
	assert.Equal(t, "UNKNOWN", GetCode(fmt.Errorf("plain error")))
}

func TestIsAppError(t *testing.T) {
	assert.True(t, IsAppError(ErrStrategyNotFound))
	assert.False(t, IsAppError(fmt.Errorf("plain error")))
}
