package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageErrorKinds(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := fmt.Errorf("run: %w", WrapError(KindGeneration, "generation service failed", cause))

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindGeneration, kind)
	assert.True(t, IsKind(err, KindGeneration))
	assert.False(t, IsKind(err, KindEmail))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "run: generation: generation service failed: dial tcp: timeout", err.Error())
}

func TestWrapErrorNil(t *testing.T) {
	assert.NoError(t, WrapError(KindEmail, "x", nil))
}

func TestNewErrorMessage(t *testing.T) {
	assert.EqualError(t, NewError(KindInput, "query is empty"), "input: query is empty")
	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
}
