package model

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vlmcl/moondream/container"
)

// buildTensorOnlyContainer writes a minimal container with a tensor table
// but no metadata entries, one F16 tensor per name in tensorNames, each
// shaped 4x4 (so it fits the 32-byte-aligned, zero-filled data section
// this helper appends).
func buildTensorOnlyContainer(t *testing.T, tensorNames []string) string {
	t.Helper()

	var buf []byte
	var header [24]byte
	binary.LittleEndian.PutUint32(header[0:], container.Magic)
	binary.LittleEndian.PutUint32(header[4:], 3)
	binary.LittleEndian.PutUint64(header[8:], uint64(len(tensorNames)))
	binary.LittleEndian.PutUint64(header[16:], 0)
	buf = append(buf, header[:]...)

	const rows, cols = 4, 4
	elemSize := uint64(2) // F16
	byteSize := rows * cols * elemSize

	for i, name := range tensorNames {
		var l [8]byte
		binary.LittleEndian.PutUint64(l[:], uint64(len(name)))
		buf = append(buf, l[:]...)
		buf = append(buf, []byte(name)...)

		var nDims [4]byte
		binary.LittleEndian.PutUint32(nDims[:], 2)
		buf = append(buf, nDims[:]...)

		var d0, d1 [8]byte
		binary.LittleEndian.PutUint64(d0[:], rows)
		binary.LittleEndian.PutUint64(d1[:], cols)
		buf = append(buf, d0[:]...)
		buf = append(buf, d1[:]...)

		var et [4]byte
		binary.LittleEndian.PutUint32(et[:], uint32(container.F16))
		buf = append(buf, et[:]...)

		var off [8]byte
		binary.LittleEndian.PutUint64(off[:], uint64(i)*byteSize)
		buf = append(buf, off[:]...)
	}

	for len(buf)%container.DataAlignment != 0 {
		buf = append(buf, 0)
	}
	buf = append(buf, make([]byte, byteSize*uint64(len(tensorNames)))...)

	path := filepath.Join(t.TempDir(), "weights.bin")
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}

func openTestContainer(t *testing.T, names []string) *container.Container {
	t.Helper()
	path := buildTensorOnlyContainer(t, names)
	c, err := container.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestResolveGlobalTriesEveryPrefixAndAlternative(t *testing.T) {
	c := openTestContainer(t, []string{"model.norm.weight"})
	info := resolveGlobal(c, "final_norm")
	require.NotNil(t, info)
	assert.Equal(t, "model.norm.weight", info.Name)
}

func TestResolveGlobalMissing(t *testing.T) {
	c := openTestContainer(t, []string{"something.else.weight"})
	assert.Nil(t, resolveGlobal(c, "embedding"))
}

func TestResolveLayerGGUFStyleNaming(t *testing.T) {
	c := openTestContainer(t, []string{"blk.3.attn_q.weight"})
	info := resolveLayer(c, 3, "q_proj")
	require.NotNil(t, info)
	assert.Equal(t, "blk.3.attn_q.weight", info.Name)
}

func TestResolveLayerHFStyleNaming(t *testing.T) {
	c := openTestContainer(t, []string{"model.layers.0.self_attn.o_proj.weight"})
	assert.NotNil(t, resolveLayer(c, 0, "o_proj"))
}

func TestResolveLayerMissingSlotReturnsNil(t *testing.T) {
	c := openTestContainer(t, []string{"blk.0.attn_q.weight"})
	assert.Nil(t, resolveLayer(c, 0, "gate_proj"))
}

func TestLayerWeightsCompleteRequiresAllNineSlots(t *testing.T) {
	var lw LayerWeights
	assert.False(t, lw.Complete())
}
