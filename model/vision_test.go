package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindVisionGlobalHuggingFaceName(t *testing.T) {
	c := openTestContainer(t, []string{"vision_model.embeddings.patch_embedding.weight"})
	assert.NotNil(t, findVisionGlobal(c, "embeddings.patch_embedding.weight"))
}

func TestFindVisionGlobalGGUFName(t *testing.T) {
	c := openTestContainer(t, []string{"v.patch_embd.weight"})
	assert.NotNil(t, findVisionGlobal(c, "patch_embd.weight"))
}

func TestFindVisionLayerResolvesAcrossTemplates(t *testing.T) {
	c := openTestContainer(t, []string{"v.blk.2.attn_q.weight"})
	info := findVisionLayer(c, 2, "q_proj")
	require.NotNil(t, info)
	assert.Equal(t, "v.blk.2.attn_q.weight", info.Name)
}

func TestFindVisionLayerMissingReturnsNil(t *testing.T) {
	c := openTestContainer(t, []string{"v.blk.0.attn_q.weight"})
	assert.Nil(t, findVisionLayer(c, 0, "fc1"))
}

func TestLoadVisionWeightsAbsentIsNotAnError(t *testing.T) {
	c := openTestContainer(t, []string{"blk.0.attn_q.weight"})
	cfg := DefaultConfig()

	// LoadVisionWeights needs a *gpu.Device to upload bound tensors, but
	// when neither the patch-embed nor the projector tensor resolves it
	// must return (nil, nil) before ever touching the device, so passing
	// nil here is safe and exercises exactly that early-exit path.
	w, err := LoadVisionWeights(nil, c, cfg)
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestVisionWeightsReleaseNilSafe(t *testing.T) {
	var w *VisionWeights
	assert.NotPanics(t, w.Release)
}
