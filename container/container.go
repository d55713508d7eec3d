package container

import (
	"errors"
	"fmt"
)

// Parse-failure sentinels: bad magic, unsupported version, truncated
// file, unknown metadata tag, rank > 4. All are fatal to Open.
var (
	ErrBadMagic           = errors.New("container: bad magic")
	ErrUnsupportedVersion = errors.New("container: unsupported version")
	ErrUnknownMetaTag     = errors.New("container: unknown metadata type tag")
	ErrRankTooHigh        = errors.New("container: tensor rank exceeds 4")
)

const maxRank = 4

// Header is the fixed 24-byte file header.
type Header struct {
	Magic         uint32
	Version       uint32
	TensorCount   uint64
	MetadataCount uint64
}

// TensorInfo is one row of the tensor table: name, shape, element type, and
// the computed byte range within the data section.
type TensorInfo struct {
	Name        string
	NDims       uint32
	Dims        [maxRank]uint64
	ElementType ElementType
	Offset      uint64
	ByteSize    uint64
}

// NumElements returns the product of the tensor's dimensions.
func (t TensorInfo) NumElements() uint64 {
	n := uint64(1)
	for i := 0; i < int(t.NDims) && i < maxRank; i++ {
		n *= t.Dims[i]
	}
	return n
}

// Container is an opened, memory-mapped weight file. Metadata pairs are not
// materialized at Open time; get_meta_* accessors re-scan the metadata
// region on every call. The tensor-info table is parsed eagerly.
type Container struct {
	path string
	m    *mapping

	header  Header
	tensors []TensorInfo

	metaStart int
	metaEnd   int

	dataSection int // absolute offset of the start of the tensor-data section
}

// Open memory-maps path and parses the header and tensor-info table. On any
// parse error the mapping is released before returning.
func Open(path string) (*Container, error) {
	m, err := mapFile(path)
	if err != nil {
		return nil, err
	}

	c := &Container{path: path, m: m}
	if err := c.parse(); err != nil {
		m.close()
		return nil, err
	}
	return c, nil
}

func (c *Container) parse() error {
	cur := &cursor{data: c.m.data}

	magic, err := cur.u32()
	if err != nil {
		return fmt.Errorf("container: read magic: %w", err)
	}
	if magic != Magic {
		return fmt.Errorf("%w: got %#08x, want %#08x", ErrBadMagic, magic, Magic)
	}

	version, err := cur.u32()
	if err != nil {
		return fmt.Errorf("container: read version: %w", err)
	}
	if !SupportedVersions[version] {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	tensorCount, err := cur.u64()
	if err != nil {
		return fmt.Errorf("container: read tensor_count: %w", err)
	}
	metadataCount, err := cur.u64()
	if err != nil {
		return fmt.Errorf("container: read metadata_count: %w", err)
	}

	c.header = Header{Magic: magic, Version: version, TensorCount: tensorCount, MetadataCount: metadataCount}

	c.metaStart = cur.pos
	for i := uint64(0); i < metadataCount; i++ {
		if _, err := cur.str(); err != nil {
			return fmt.Errorf("container: metadata[%d] key: %w", i, err)
		}
		tag, err := cur.u32()
		if err != nil {
			return fmt.Errorf("container: metadata[%d] tag: %w", i, err)
		}
		if err := skipMetaValue(cur, MetaType(tag)); err != nil {
			return fmt.Errorf("container: metadata[%d] value: %w", i, err)
		}
	}
	c.metaEnd = cur.pos

	c.tensors = make([]TensorInfo, 0, tensorCount)
	for i := uint64(0); i < tensorCount; i++ {
		info, err := parseTensorInfo(cur)
		if err != nil {
			return fmt.Errorf("container: tensor[%d]: %w", i, err)
		}
		c.tensors = append(c.tensors, info)
	}

	pos := cur.pos
	pad := (DataAlignment - pos%DataAlignment) % DataAlignment
	c.dataSection = pos + pad

	for i := range c.tensors {
		size, err := ByteSize(c.tensors[i].ElementType, c.tensors[i].NumElements())
		if err != nil {
			return fmt.Errorf("container: tensor %q: %w", c.tensors[i].Name, err)
		}
		c.tensors[i].ByteSize = size
		end := c.dataSection + int(c.tensors[i].Offset) + int(size)
		if end > len(c.m.data) {
			return fmt.Errorf("%w: tensor %q extends past end of file", ErrTruncated, c.tensors[i].Name)
		}
	}

	return nil
}

func parseTensorInfo(cur *cursor) (TensorInfo, error) {
	name, err := cur.str()
	if err != nil {
		return TensorInfo{}, fmt.Errorf("name: %w", err)
	}
	nDims, err := cur.u32()
	if err != nil {
		return TensorInfo{}, fmt.Errorf("n_dims: %w", err)
	}
	if nDims > maxRank {
		return TensorInfo{}, fmt.Errorf("%w: %d", ErrRankTooHigh, nDims)
	}

	info := TensorInfo{Name: name, NDims: nDims}
	for i := range info.Dims {
		info.Dims[i] = 1
	}
	for i := uint32(0); i < nDims; i++ {
		dim, err := cur.u64()
		if err != nil {
			return TensorInfo{}, fmt.Errorf("dim[%d]: %w", i, err)
		}
		info.Dims[i] = dim
	}

	elemType, err := cur.u32()
	if err != nil {
		return TensorInfo{}, fmt.Errorf("element_type: %w", err)
	}
	info.ElementType = ElementType(elemType)

	offset, err := cur.u64()
	if err != nil {
		return TensorInfo{}, fmt.Errorf("offset: %w", err)
	}
	info.Offset = offset

	return info, nil
}

// TensorCount reports the number of tensors in the table.
func (c *Container) TensorCount() int { return len(c.tensors) }

// Tensors returns the parsed tensor-info table. The slice is owned by the
// container; callers must not mutate it.
func (c *Container) Tensors() []TensorInfo { return c.tensors }

// FindTensor performs a linear, case-sensitive scan for name, returning
// nil if absent.
func (c *Container) FindTensor(name string) *TensorInfo {
	for i := range c.tensors {
		if c.tensors[i].Name == name {
			return &c.tensors[i]
		}
	}
	return nil
}

// TensorData returns a byte slice view into the mapped region for info,
// valid for the container's lifetime. info must have come from this
// container's tensor table.
func (c *Container) TensorData(info *TensorInfo) []byte {
	start := c.dataSection + int(info.Offset)
	return c.m.data[start : start+int(info.ByteSize)]
}

// Close unmaps the file. Subsequent accessor calls are invalid.
func (c *Container) Close() error {
	return c.m.close()
}
