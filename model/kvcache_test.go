package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVCacheAppendIsMonotone(t *testing.T) {
	c := &KVCache{capacity: 8, heads: 2, headDim: 4}

	require.NoError(t, c.Append(3))
	assert.Equal(t, 3, c.Length())
	require.NoError(t, c.Append(5))
	assert.Equal(t, 8, c.Length())
}

func TestKVCacheAppendRejectsOverflow(t *testing.T) {
	c := &KVCache{capacity: 4}
	require.NoError(t, c.Append(4))
	assert.Error(t, c.Append(1))
	assert.Equal(t, 4, c.Length(), "a rejected append must not advance length")
}

func TestKVCacheResetRestoresZero(t *testing.T) {
	c := &KVCache{capacity: 16}
	require.NoError(t, c.Append(7))
	c.Reset()
	assert.Equal(t, 0, c.Length())
	assert.Equal(t, 16, c.Capacity())
}

func TestKVCacheByteOffset(t *testing.T) {
	c := &KVCache{capacity: 16, heads: 2, headDim: 4}
	assert.Equal(t, 0, c.ByteOffset(0))
	assert.Equal(t, 3*2*4*2, c.ByteOffset(3))
}
