// Package container implements the quantized-weight container reader: a
// memory-mapped binary format with a typed metadata table and a tensor-info
// table describing a data section that follows a 32-byte alignment pad.
package container

import "fmt"

// Magic is the required four-byte little-endian header magic.
const Magic uint32 = 0x46475547

// SupportedVersions lists the header versions this reader accepts.
var SupportedVersions = map[uint32]bool{2: true, 3: true}

// DataAlignment is the padding boundary between the end of the tensor-info
// table and the start of the tensor-data section.
const DataAlignment = 32

// MetaType is the metadata value-type tag (closed set).
type MetaType uint32

const (
	MetaU8 MetaType = iota
	MetaI8
	MetaU16
	MetaI16
	MetaU32
	MetaI32
	MetaF32
	MetaBool
	MetaString
	MetaArray
	MetaU64
	MetaI64
	MetaF64
)

func (t MetaType) String() string {
	switch t {
	case MetaU8:
		return "u8"
	case MetaI8:
		return "i8"
	case MetaU16:
		return "u16"
	case MetaI16:
		return "i16"
	case MetaU32:
		return "u32"
	case MetaI32:
		return "i32"
	case MetaF32:
		return "f32"
	case MetaBool:
		return "bool"
	case MetaString:
		return "string"
	case MetaArray:
		return "array"
	case MetaU64:
		return "u64"
	case MetaI64:
		return "i64"
	case MetaF64:
		return "f64"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(t))
	}
}

// ElementType is the tensor element-type tag (closed set).
type ElementType uint32

const (
	F32  ElementType = 0
	F16  ElementType = 1
	Q4_0 ElementType = 2
	Q4_1 ElementType = 3
	Q5_0 ElementType = 6
	Q5_1 ElementType = 7
	Q8_0 ElementType = 8
	Q8_1 ElementType = 9
	Q2_K ElementType = 10
	Q3_K ElementType = 11
	Q4_K ElementType = 12
	Q5_K ElementType = 13
	Q6_K ElementType = 14
	I8   ElementType = 24
	I16  ElementType = 25
	I32  ElementType = 26
)

// blockInfo is the (bytesPerBlock, elementsPerBlock) pair for an element type.
type blockInfo struct {
	bytesPerBlock    int
	elementsPerBlock int
}

var blockTable = map[ElementType]blockInfo{
	F32:  {4, 1},
	F16:  {2, 1},
	I8:   {1, 1},
	I16:  {2, 1},
	I32:  {4, 1},
	Q4_0: {18, 32},
	Q4_1: {20, 32},
	Q5_0: {22, 32},
	Q5_1: {24, 32},
	Q8_0: {34, 32},
	Q8_1: {40, 32},
	Q2_K: {84, 256},
	Q3_K: {110, 256},
	Q4_K: {144, 256},
	Q5_K: {176, 256},
	Q6_K: {210, 256},
}

// BytesPerBlock returns the element type's quantization block size in
// bytes, or 0 and false if the type is not in the closed set.
func BytesPerBlock(t ElementType) (int, bool) {
	info, ok := blockTable[t]
	if !ok {
		return 0, false
	}
	return info.bytesPerBlock, true
}

// ElementsPerBlock returns the number of elements packed per quantization
// block (1 for plain types, 32 for the row-quantized Q*_0/Q*_1 types, 256
// for the K-quantized types).
func ElementsPerBlock(t ElementType) (int, bool) {
	info, ok := blockTable[t]
	if !ok {
		return 0, false
	}
	return info.elementsPerBlock, true
}

// ByteSize computes ceil(numElements/elementsPerBlock) * bytesPerBlock for
// the given element type, failing if the type is unknown.
func ByteSize(t ElementType, numElements uint64) (uint64, error) {
	info, ok := blockTable[t]
	if !ok {
		return 0, fmt.Errorf("container: unknown element type %d", t)
	}
	blocks := (numElements + uint64(info.elementsPerBlock) - 1) / uint64(info.elementsPerBlock)
	return blocks * uint64(info.bytesPerBlock), nil
}
