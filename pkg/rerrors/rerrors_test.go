package rerrors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ransomeye/core/pkg/rerrors"
)

func TestErrorMessageIncludesOpKindDetail(t *testing.T) {
	err := rerrors.New(rerrors.CryptoFailure, "signing.Verify", "key-1", nil)
	assert.Contains(t, err.Error(), "signing.Verify")
	assert.Contains(t, err.Error(), string(rerrors.CryptoFailure))
	assert.Contains(t, err.Error(), "key-1")
}

func TestErrorMessageIncludesWrappedCause(t *testing.T) {
	cause := errors.New("boom")
	err := rerrors.New(rerrors.IOFailure, "store.Append", "/tmp/x", cause)
	assert.Contains(t, err.Error(), "boom")
}

func TestUnwrapReturnsCause(t *testing.T) {
	cause := errors.New("boom")
	err := rerrors.New(rerrors.IOFailure, "store.Append", "/tmp/x", cause)
	require.Equal(t, cause, errors.Unwrap(err))
}

func TestIsMatchesSentinelByKindOnly(t *testing.T) {
	err := rerrors.New(rerrors.PolicyRejection, "policy.Route", "rule-9", errors.New("no match"))
	assert.True(t, errors.Is(err, rerrors.Sentinel(rerrors.PolicyRejection)))
	assert.False(t, errors.Is(err, rerrors.Sentinel(rerrors.CryptoFailure)))
}

func TestIsDoesNotMatchUnrelatedErrorTypes(t *testing.T) {
	err := rerrors.New(rerrors.InputRejected, "records.NewAlert", "", nil)
	assert.False(t, errors.Is(err, errors.New("input_rejected")))
}
