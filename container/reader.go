package container

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ErrTruncated is returned by any cursor read that would run past the end
// of the mapped region.
var ErrTruncated = fmt.Errorf("container: truncated read")

// cursor is a bounds-checked little-endian reader over a byte slice. Every
// read method advances pos only on success, so a failed read leaves the
// cursor at the offset of the failure for error messages.
type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) remaining() int { return len(c.data) - c.pos }

func (c *cursor) need(n int) error {
	if n < 0 || c.remaining() < n {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, c.pos, c.remaining())
	}
	return nil
}

func (c *cursor) u8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.data[c.pos]
	c.pos++
	return v, nil
}

func (c *cursor) u16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(c.data[c.pos:])
	c.pos += 2
	return v, nil
}

func (c *cursor) u32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(c.data[c.pos:])
	c.pos += 4
	return v, nil
}

func (c *cursor) u64() (uint64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(c.data[c.pos:])
	c.pos += 8
	return v, nil
}

func (c *cursor) i8() (int8, error)   { v, err := c.u8(); return int8(v), err }
func (c *cursor) i16() (int16, error) { v, err := c.u16(); return int16(v), err }
func (c *cursor) i32() (int32, error) { v, err := c.u32(); return int32(v), err }
func (c *cursor) i64() (int64, error) { v, err := c.u64(); return int64(v), err }

func (c *cursor) f32() (float32, error) {
	v, err := c.u32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (c *cursor) f64() (float64, error) {
	v, err := c.u64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func (c *cursor) boolean() (bool, error) {
	v, err := c.u8()
	if err != nil {
		return false, err
	}
	if v != 0 && v != 1 {
		return false, fmt.Errorf("container: invalid bool byte %#x at offset %d", v, c.pos-1)
	}
	return v == 1, nil
}

func (c *cursor) bytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	v := c.data[c.pos : c.pos+n]
	c.pos += n
	return v, nil
}

// str reads a u64-length-prefixed UTF-8 string.
func (c *cursor) str() (string, error) {
	n, err := c.u64()
	if err != nil {
		return "", fmt.Errorf("container: string length: %w", err)
	}
	if n > uint64(math.MaxInt32) {
		return "", fmt.Errorf("%w: implausible string length %d at offset %d", ErrTruncated, n, c.pos)
	}
	b, err := c.bytes(int(n))
	if err != nil {
		return "", fmt.Errorf("container: string body: %w", err)
	}
	return string(b), nil
}
