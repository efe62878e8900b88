package testutil

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResource(t *testing.T) {
	res := NewResource(7)
	assert.Equal(t, 7, res.ID)
	assert.Equal(t, 1, res.Refs())
	assert.False(t, res.Destroyed())

	res.AddRef()
	assert.Equal(t, 2, res.Refs())
	assert.Equal(t, 1, res.Adds())

	res.Release()
	assert.Equal(t, 1, res.Refs())
	assert.False(t, res.Destroyed())

	res.Release()
	assert.Equal(t, 0, res.Refs())
	assert.Equal(t, 2, res.Releases())
	assert.True(t, res.Destroyed())
}

func TestFailingAllocator(t *testing.T) {
	errBoom := errors.New("boom")

	f := &FailingAllocator{AllocErr: errBoom, Successes: 2}

	// The first two allocations succeed.
	buf, err := f.Allocate(16)
	require.NoError(t, err)
	assert.Len(t, buf, 16)

	_, err = f.Allocate(16)
	require.NoError(t, err)

	// The third fails.
	_, err = f.Allocate(16)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 3, f.AllocCalls())

	// Non-positive sizes never count as calls.
	buf, err = f.Allocate(0)
	require.NoError(t, err)
	assert.Nil(t, buf)
	assert.Equal(t, 3, f.AllocCalls())
}

func TestRNG_Deterministic(t *testing.T) {
	a := NewRNG(4711)
	b := NewRNG(4711)

	assert.Equal(t, a.Sizes(16, 1024), b.Sizes(16, 1024))

	a.Reset()
	c := NewRNG(a.Seed())
	assert.Equal(t, a.Intn(100), c.Intn(100))
}
