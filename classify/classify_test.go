package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_PassesThroughTypedError(t *testing.T) {
	err := New(Permission, "sandbox", "eval", "path escapes workspace", nil)
	assert.Equal(t, Permission, Classify(err))
}

func TestClassify_ContextDeadline(t *testing.T) {
	assert.Equal(t, Timeout, Classify(context.DeadlineExceeded))
}

func TestClassify_UnknownDefaultsToRuntime(t *testing.T) {
	assert.Equal(t, Runtime, Classify(errors.New("boom")))
}

func TestKind_Retryable(t *testing.T) {
	assert.True(t, Network.Retryable())
	assert.True(t, Timeout.Retryable())
	assert.True(t, Runtime.Retryable())
	assert.False(t, Validation.Retryable())
	assert.False(t, Permission.Retryable())
	assert.False(t, NotFound.Retryable())
	assert.False(t, ToolRejected.Retryable())
}

func TestError_Formatting(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := New(Network, "invoker", "Invoke", "transport call failed", cause)
	assert.Equal(t, "[invoker:Invoke] transport call failed: dial tcp: refused", err.Error())
	assert.ErrorIs(t, err, cause)
}
