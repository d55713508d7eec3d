package tokenizer

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/vlmcl/moondream/container"
)

func appendKeyTag(buf []byte, key string, tag container.MetaType) []byte {
	var keyLen [8]byte
	binary.LittleEndian.PutUint64(keyLen[:], uint64(len(key)))
	buf = append(buf, keyLen[:]...)
	buf = append(buf, []byte(key)...)
	var t [4]byte
	binary.LittleEndian.PutUint32(t[:], uint32(tag))
	return append(buf, t[:]...)
}

func buildContainerWithVocab(t *testing.T, tokens []string, bos uint32) string {
	t.Helper()

	var buf []byte
	var header [24]byte
	binary.LittleEndian.PutUint32(header[0:], container.Magic)
	binary.LittleEndian.PutUint32(header[4:], 3)
	binary.LittleEndian.PutUint64(header[8:], 0)
	binary.LittleEndian.PutUint64(header[16:], 2)
	buf = append(buf, header[:]...)

	buf = appendKeyTag(buf, "tokenizer.ggml.tokens", container.MetaArray)
	var elemTag [4]byte
	binary.LittleEndian.PutUint32(elemTag[:], uint32(container.MetaString))
	buf = append(buf, elemTag[:]...)
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(tokens)))
	buf = append(buf, n[:]...)
	for _, tok := range tokens {
		var l [8]byte
		binary.LittleEndian.PutUint64(l[:], uint64(len(tok)))
		buf = append(buf, l[:]...)
		buf = append(buf, []byte(tok)...)
	}

	buf = appendKeyTag(buf, "tokenizer.ggml.bos_token_id", container.MetaU32)
	var v [4]byte
	binary.LittleEndian.PutUint32(v[:], bos)
	buf = append(buf, v[:]...)

	for len(buf)%container.DataAlignment != 0 {
		buf = append(buf, 0)
	}
	buf = append(buf, make([]byte, 32)...)

	path := filepath.Join(t.TempDir(), "vocab.bin")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFromContainer(t *testing.T) {
	path := buildContainerWithVocab(t, []string{"<unk>", "a", "b"}, 7)

	c, err := container.Open(path)
	if err != nil {
		t.Fatalf("container.Open: %v", err)
	}
	defer c.Close()

	v, err := LoadFromContainer(c)
	if err != nil {
		t.Fatalf("LoadFromContainer: %v", err)
	}
	if v.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", v.Size())
	}
	if v.BOS != 7 {
		t.Errorf("BOS = %d, want 7", v.BOS)
	}
	if v.EOS != DefaultEOS {
		t.Errorf("EOS = %d, want default %d", v.EOS, DefaultEOS)
	}
	// scores were absent: must fall back to a monotonically decreasing sequence.
	if v.Score(0) <= v.Score(1) || v.Score(1) <= v.Score(2) {
		t.Errorf("fallback scores not monotonically decreasing: %v %v %v", v.Score(0), v.Score(1), v.Score(2))
	}
}
