package container

import "fmt"

// metaValue is the decoded form of one metadata value. Scalars are stored
// in their natural Go type; arrays as a slice of metaValue.
type metaValue interface{}

func readMetaValue(cur *cursor, tag MetaType) (metaValue, error) {
	switch tag {
	case MetaU8:
		return cur.u8()
	case MetaI8:
		return cur.i8()
	case MetaU16:
		return cur.u16()
	case MetaI16:
		return cur.i16()
	case MetaU32:
		return cur.u32()
	case MetaI32:
		return cur.i32()
	case MetaF32:
		return cur.f32()
	case MetaBool:
		return cur.boolean()
	case MetaString:
		return cur.str()
	case MetaU64:
		return cur.u64()
	case MetaI64:
		return cur.i64()
	case MetaF64:
		return cur.f64()
	case MetaArray:
		elemTag, err := cur.u32()
		if err != nil {
			return nil, fmt.Errorf("array element type: %w", err)
		}
		n, err := cur.u64()
		if err != nil {
			return nil, fmt.Errorf("array length: %w", err)
		}
		out := make([]metaValue, 0, n)
		for i := uint64(0); i < n; i++ {
			v, err := readMetaValue(cur, MetaType(elemTag))
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			out = append(out, v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMetaTag, tag)
	}
}

func skipMetaValue(cur *cursor, tag MetaType) error {
	_, err := readMetaValue(cur, tag)
	return err
}

// findMeta re-scans the metadata region from the start looking for key,
// returning its decoded value or ok=false if absent.
func (c *Container) findMeta(key string) (metaValue, bool) {
	cur := &cursor{data: c.m.data, pos: c.metaStart}
	for i := uint64(0); i < c.header.MetadataCount; i++ {
		k, err := cur.str()
		if err != nil {
			return nil, false
		}
		tag, err := cur.u32()
		if err != nil {
			return nil, false
		}
		if k != key {
			if err := skipMetaValue(cur, MetaType(tag)); err != nil {
				return nil, false
			}
			continue
		}
		v, err := readMetaValue(cur, MetaType(tag))
		if err != nil {
			return nil, false
		}
		return v, true
	}
	return nil, false
}

func asInt64(v metaValue) (int64, bool) {
	switch n := v.(type) {
	case uint8:
		return int64(n), true
	case int8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case int16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

// GetUint32 returns a scalar integer metadata value widened to uint32. Used
// for the tokenizer special-token ids, which are tagged u32 in a
// well-formed file but accepted from any integer tag for robustness.
func (c *Container) GetUint32(key string) (uint32, bool) {
	v, ok := c.findMeta(key)
	if !ok {
		return 0, false
	}
	n, ok := asInt64(v)
	if !ok {
		return 0, false
	}
	return uint32(n), true
}

// GetString returns a scalar string metadata value.
func (c *Container) GetString(key string) (string, bool) {
	v, ok := c.findMeta(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetStringArray returns an array-of-string metadata value.
func (c *Container) GetStringArray(key string) ([]string, bool) {
	v, ok := c.findMeta(key)
	if !ok {
		return nil, false
	}
	arr, ok := v.([]metaValue)
	if !ok {
		return nil, false
	}
	out := make([]string, len(arr))
	for i, e := range arr {
		s, ok := e.(string)
		if !ok {
			return nil, false
		}
		out[i] = s
	}
	return out, true
}

// GetFloatArray returns an array-of-f32 metadata value.
func (c *Container) GetFloatArray(key string) ([]float32, bool) {
	v, ok := c.findMeta(key)
	if !ok {
		return nil, false
	}
	arr, ok := v.([]metaValue)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(arr))
	for i, e := range arr {
		f, ok := e.(float32)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}
