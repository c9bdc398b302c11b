package provides

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetailedError(t *testing.T) {
	plain := errors.New("plain failure")
	assert.Equal(t, "plain failure", DetailedError(plain))

	rich := detailed(plain, "the failing provider is Factory.NewWidget")
	msg := DetailedError(rich)
	assert.Contains(t, msg, "plain failure")
	assert.Contains(t, msg, "the failing provider is Factory.NewWidget")
}

func TestDetailedErrorSeesThroughWrapping(t *testing.T) {
	rich := detailed(errors.New("inner"), "extra context")
	wrapped := fmt.Errorf("outer: %w", rich)
	assert.Contains(t, DetailedError(wrapped), "extra context")
}

func TestMultiErrorDropsNils(t *testing.T) {
	assert.NoError(t, multiError())
	assert.NoError(t, multiError(nil, nil))

	one := errors.New("one")
	err := multiError(nil, one, nil)
	require.Error(t, err)
	assert.Equal(t, "one", err.Error())
}

func TestMultiErrorJoinsMessages(t *testing.T) {
	err := multiError(errors.New("first"), errors.New("second"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first")
	assert.Contains(t, err.Error(), "second")
}

func TestMultiErrorUnwrapsToAllCauses(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")
	err := multiError(fmt.Errorf("wrapped: %w", first), second)

	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)

	var me *MultiError
	require.ErrorAs(t, err, &me)
	assert.Len(t, me.Causes, 2)
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrCacheNotSet,
		ErrDestroyMethodNotFound,
		ErrNotInstantiable,
		ErrDescriptorRequired,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j {
				assert.NotErrorIs(t, a, b)
			}
		}
	}
}
