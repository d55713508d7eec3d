package container

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestByteSizeTable(t *testing.T) {
	cases := []struct {
		typ              ElementType
		bytesPerBlock    int
		elementsPerBlock int
	}{
		{F32, 4, 1},
		{F16, 2, 1},
		{I8, 1, 1},
		{I16, 2, 1},
		{I32, 4, 1},
		{Q4_0, 18, 32},
		{Q4_1, 20, 32},
		{Q5_0, 22, 32},
		{Q5_1, 24, 32},
		{Q8_0, 34, 32},
		{Q8_1, 40, 32},
		{Q2_K, 84, 256},
		{Q3_K, 110, 256},
		{Q4_K, 144, 256},
		{Q5_K, 176, 256},
		{Q6_K, 210, 256},
	}
	for _, c := range cases {
		bpb, ok := BytesPerBlock(c.typ)
		if !ok || bpb != c.bytesPerBlock {
			t.Errorf("BytesPerBlock(%d) = %d, %v; want %d", c.typ, bpb, ok, c.bytesPerBlock)
		}
		epb, ok := ElementsPerBlock(c.typ)
		if !ok || epb != c.elementsPerBlock {
			t.Errorf("ElementsPerBlock(%d) = %d, %v; want %d", c.typ, epb, ok, c.elementsPerBlock)
		}
	}
}

func TestByteSizeRounding(t *testing.T) {
	// 33 elements at block size 32 must round up to two blocks.
	size, err := ByteSize(Q4_0, 33)
	if err != nil {
		t.Fatal(err)
	}
	if size != 2*18 {
		t.Errorf("ByteSize(Q4_0, 33) = %d, want %d", size, 2*18)
	}
}

// writeHeader appends a minimal well-formed header to buf.
func writeHeader(buf []byte, magic, version uint32, tensorCount, metadataCount uint64) []byte {
	var h [24]byte
	binary.LittleEndian.PutUint32(h[0:], magic)
	binary.LittleEndian.PutUint32(h[4:], version)
	binary.LittleEndian.PutUint64(h[8:], tensorCount)
	binary.LittleEndian.PutUint64(h[16:], metadataCount)
	return append(buf, h[:]...)
}

func TestOpenMinimalContainer(t *testing.T) {
	buf := writeHeader(nil, Magic, 3, 0, 0)
	// pad to the next 32-byte boundary, then a minimal data section.
	for len(buf)%DataAlignment != 0 {
		buf = append(buf, 0)
	}
	buf = append(buf, make([]byte, 32)...)

	path := filepath.Join(t.TempDir(), "minimal.bin")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if c.TensorCount() != 0 {
		t.Errorf("TensorCount() = %d, want 0", c.TensorCount())
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestOpenRejectsBadMagic(t *testing.T) {
	buf := writeHeader(nil, 0x00000000, 3, 0, 0)
	buf = append(buf, make([]byte, 64)...)

	path := filepath.Join(t.TempDir(), "badmagic.bin")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Open(path)
	if err == nil {
		t.Fatal("Open: expected error for bad magic, got nil")
	}
}

func TestOpenRejectsUnsupportedVersion(t *testing.T) {
	buf := writeHeader(nil, Magic, 99, 0, 0)
	buf = append(buf, make([]byte, 64)...)

	path := filepath.Join(t.TempDir(), "badversion.bin")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Open(path)
	if err == nil {
		t.Fatal("Open: expected error for unsupported version, got nil")
	}
}

func TestFindTensorAndData(t *testing.T) {
	buf := writeHeader(nil, Magic, 3, 1, 0)

	name := "weight.0"
	var nameLen [8]byte
	binary.LittleEndian.PutUint64(nameLen[:], uint64(len(name)))
	buf = append(buf, nameLen[:]...)
	buf = append(buf, []byte(name)...)

	var nDims [4]byte
	binary.LittleEndian.PutUint32(nDims[:], 1)
	buf = append(buf, nDims[:]...)

	var dim [8]byte
	binary.LittleEndian.PutUint64(dim[:], 4)
	buf = append(buf, dim[:]...)

	var elemType [4]byte
	binary.LittleEndian.PutUint32(elemType[:], uint32(F32))
	buf = append(buf, elemType[:]...)

	var offset [8]byte
	binary.LittleEndian.PutUint64(offset[:], 0)
	buf = append(buf, offset[:]...)

	for len(buf)%DataAlignment != 0 {
		buf = append(buf, 0)
	}
	payload := []byte{1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0, 4, 0, 0, 0}
	buf = append(buf, payload...)

	path := filepath.Join(t.TempDir(), "onetensor.bin")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	info := c.FindTensor("weight.0")
	if info == nil {
		t.Fatal("FindTensor: not found")
	}
	if info.ByteSize != 16 {
		t.Errorf("ByteSize = %d, want 16", info.ByteSize)
	}
	data := c.TensorData(info)
	if len(data) != 16 {
		t.Fatalf("TensorData length = %d, want 16", len(data))
	}
	if c.FindTensor("nonexistent") != nil {
		t.Error("FindTensor: expected nil for missing tensor")
	}
}
