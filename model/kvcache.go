package model

import (
	"fmt"

	"github.com/vlmcl/moondream/gpu"
)

// KVCache is a single-sequence, monotone-append key/value store: one
// [max_context, heads, head_dim] half-float buffer pair per transformer
// layer, all sharing a single length. There is no multi-sequence or
// sliding-window complexity: one generation request owns the cache for
// its lifetime and calls Reset between requests.
type KVCache struct {
	K, V     []*gpu.Buffer // indexed by layer
	length   int
	capacity int
	heads    int
	headDim  int
}

// NewKVCache allocates a K/V buffer pair per layer, each holding
// cfg.MaxContext positions.
func NewKVCache(d *gpu.Device, cfg Config) (*KVCache, error) {
	bytesPerPosition := cfg.Heads * cfg.HeadDim * 2
	size := cfg.MaxContext * bytesPerPosition

	c := &KVCache{
		K:        make([]*gpu.Buffer, cfg.Layers),
		V:        make([]*gpu.Buffer, cfg.Layers),
		capacity: cfg.MaxContext,
		heads:    cfg.Heads,
		headDim:  cfg.HeadDim,
	}
	for i := 0; i < cfg.Layers; i++ {
		k, err := d.CreateBuffer(size, gpu.ReadWrite, nil)
		if err != nil {
			c.Release()
			return nil, fmt.Errorf("model: allocate layer %d K cache: %w", i, err)
		}
		c.K[i] = k
		v, err := d.CreateBuffer(size, gpu.ReadWrite, nil)
		if err != nil {
			c.Release()
			return nil, fmt.Errorf("model: allocate layer %d V cache: %w", i, err)
		}
		c.V[i] = v
	}
	return c, nil
}

// Length returns the number of positions currently filled.
func (c *KVCache) Length() int { return c.length }

// Capacity returns the maximum number of positions the cache can hold.
func (c *KVCache) Capacity() int { return c.capacity }

// ByteOffset returns the byte offset of position p within either cache
// buffer, used by the forward pass to target the append write.
func (c *KVCache) ByteOffset(p int) int {
	return p * c.heads * c.headDim * 2
}

// Append records that S new positions were written starting at the
// current length; it does not itself copy data (the forward pass writes
// directly into K/V at ByteOffset(length) before calling Append).
func (c *KVCache) Append(s int) error {
	if c.length+s > c.capacity {
		return fmt.Errorf("model: kv-cache overflow: %d + %d > %d", c.length, s, c.capacity)
	}
	c.length += s
	return nil
}

// Reset restores length to 0 without touching the underlying storage.
// Legal only between requests (Model state `idle`).
func (c *KVCache) Reset() {
	c.length = 0
}

// Release frees the underlying device buffers.
func (c *KVCache) Release() {
	if c == nil {
		return
	}
	for _, b := range c.K {
		b.Release()
	}
	for _, b := range c.V {
		b.Release()
	}
}
