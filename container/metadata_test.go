package container

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func appendMetaString(buf []byte, key, value string) []byte {
	var keyLen [8]byte
	binary.LittleEndian.PutUint64(keyLen[:], uint64(len(key)))
	buf = append(buf, keyLen[:]...)
	buf = append(buf, []byte(key)...)

	var tag [4]byte
	binary.LittleEndian.PutUint32(tag[:], uint32(MetaString))
	buf = append(buf, tag[:]...)

	var valLen [8]byte
	binary.LittleEndian.PutUint64(valLen[:], uint64(len(value)))
	buf = append(buf, valLen[:]...)
	buf = append(buf, []byte(value)...)
	return buf
}

func appendMetaU32(buf []byte, key string, value uint32) []byte {
	var keyLen [8]byte
	binary.LittleEndian.PutUint64(keyLen[:], uint64(len(key)))
	buf = append(buf, keyLen[:]...)
	buf = append(buf, []byte(key)...)

	var tag [4]byte
	binary.LittleEndian.PutUint32(tag[:], uint32(MetaU32))
	buf = append(buf, tag[:]...)

	var v [4]byte
	binary.LittleEndian.PutUint32(v[:], value)
	buf = append(buf, v[:]...)
	return buf
}

func appendMetaStringArray(buf []byte, key string, values []string) []byte {
	var keyLen [8]byte
	binary.LittleEndian.PutUint64(keyLen[:], uint64(len(key)))
	buf = append(buf, keyLen[:]...)
	buf = append(buf, []byte(key)...)

	var tag [4]byte
	binary.LittleEndian.PutUint32(tag[:], uint32(MetaArray))
	buf = append(buf, tag[:]...)

	var elemTag [4]byte
	binary.LittleEndian.PutUint32(elemTag[:], uint32(MetaString))
	buf = append(buf, elemTag[:]...)

	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(values)))
	buf = append(buf, n[:]...)

	for _, v := range values {
		var l [8]byte
		binary.LittleEndian.PutUint64(l[:], uint64(len(v)))
		buf = append(buf, l[:]...)
		buf = append(buf, []byte(v)...)
	}
	return buf
}

func TestMetadataRoundTrip(t *testing.T) {
	buf := writeHeader(nil, Magic, 3, 0, 3)
	buf = appendMetaStringArray(buf, "tokenizer.ggml.tokens", []string{"<unk>", "a", "b"})
	buf = appendMetaU32(buf, "tokenizer.ggml.bos_token_id", 1)
	buf = appendMetaString(buf, "general.name", "moondream")

	for len(buf)%DataAlignment != 0 {
		buf = append(buf, 0)
	}
	buf = append(buf, make([]byte, 32)...)

	path := filepath.Join(t.TempDir(), "meta.bin")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	tokens, ok := c.GetStringArray("tokenizer.ggml.tokens")
	if !ok {
		t.Fatal("GetStringArray: tokens not found")
	}
	want := []string{"<unk>", "a", "b"}
	if len(tokens) != len(want) {
		t.Fatalf("tokens = %v, want %v", tokens, want)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("tokens[%d] = %q, want %q", i, tokens[i], want[i])
		}
	}

	bos, ok := c.GetUint32("tokenizer.ggml.bos_token_id")
	if !ok || bos != 1 {
		t.Errorf("GetUint32(bos) = %d, %v; want 1, true", bos, ok)
	}

	name, ok := c.GetString("general.name")
	if !ok || name != "moondream" {
		t.Errorf("GetString(general.name) = %q, %v; want moondream, true", name, ok)
	}

	if _, ok := c.GetString("nonexistent"); ok {
		t.Error("GetString: expected false for missing key")
	}
}
