package tokenizer

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vlmcl/moondream/container"
)

// buildEmptyContainer writes a container with no metadata and no tensors,
// standing in for a weight file that carries no tokenizer.ggml.* entries.
func buildEmptyContainer(t *testing.T) string {
	t.Helper()
	var header [24]byte
	binary.LittleEndian.PutUint32(header[0:], container.Magic)
	binary.LittleEndian.PutUint32(header[4:], 3)
	binary.LittleEndian.PutUint64(header[8:], 0)
	binary.LittleEndian.PutUint64(header[16:], 0)
	buf := append([]byte{}, header[:]...)
	for len(buf)%container.DataAlignment != 0 {
		buf = append(buf, 0)
	}
	path := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}

func TestLoadPrefersContainerMetadataOverFile(t *testing.T) {
	containerPath := buildContainerWithVocab(t, []string{"<unk>", "from-container"}, 9)
	c, err := container.Open(containerPath)
	require.NoError(t, err)
	defer c.Close()

	filePath := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("from-file\n"), 0o644))

	v, err := Load(c, filePath)
	require.NoError(t, err)
	require.Equal(t, 2, v.Size())
	assert.Equal(t, "from-container", v.String(1))
}

func TestLoadFallsBackToFileWhenContainerHasNoVocab(t *testing.T) {
	path := buildEmptyContainer(t)
	c, err := container.Open(path)
	require.NoError(t, err)
	defer c.Close()

	filePath := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("fallback-token\n"), 0o644))

	v, err := Load(c, filePath)
	require.NoError(t, err)
	require.Equal(t, 1, v.Size())
	assert.Equal(t, "fallback-token", v.String(0))
}

func TestLoadReturnsErrorWhenNeitherSourceAvailable(t *testing.T) {
	path := buildEmptyContainer(t)
	c, err := container.Open(path)
	require.NoError(t, err)
	defer c.Close()

	_, err = Load(c, "")
	assert.Error(t, err)
}
