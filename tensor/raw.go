// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/dataset/internal/tensor"
)

// RawTensor is the array representation moved between loader stages.
//
// RawTensor provides:
//   - Shape and type information via Shape(), DType(), Strides()
//   - Typed data access via AsFloat32(), AsInt64(), etc.
//   - Deep copies via Copy() and byte-wise comparison via Equal()
//
// Example:
//
//	raw, _ := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32)
//	data := raw.AsFloat32() // shares memory with raw
type RawTensor = tensor.RawTensor

// Shape represents the dimensions of an array.
type Shape = tensor.Shape

// DataType represents runtime type information for arrays.
type DataType = tensor.DataType

// DType is a constraint for element types that can back an array.
type DType = tensor.DType

// Supported data types.
const (
	Byte    = tensor.Byte
	Int8    = tensor.Int8
	Int16   = tensor.Int16
	Int32   = tensor.Int32
	Int64   = tensor.Int64
	Uint8   = tensor.Uint8
	Uint16  = tensor.Uint16
	Uint32  = tensor.Uint32
	Uint64  = tensor.Uint64
	Float32 = tensor.Float32
	Float64 = tensor.Float64
	Bool    = tensor.Bool
)

// NewRaw creates a zero-filled array with the given shape and type.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype)
}

// FromSlice creates an array holding a copy of data.
func FromSlice[T DType](data []T, shape Shape) (*RawTensor, error) {
	return tensor.FromSlice(data, shape)
}

// FromBytes creates an array that takes ownership of buf.
func FromBytes(buf []byte, shape Shape, dtype DataType) (*RawTensor, error) {
	return tensor.FromBytes(buf, shape, dtype)
}

// As reinterprets the buffer of r as a []T sharing memory with r.
// Panics if T does not match the array's dtype.
func As[T DType](r *RawTensor) []T {
	return tensor.As[T](r)
}

// ParseDataType parses a data type name such as "float32".
func ParseDataType(s string) (DataType, error) {
	return tensor.ParseDataType(s)
}

// CopyBlock copies the block of shape block at block coordinate coord out of
// src into a new array. Ranks 1 to 4 are supported.
func CopyBlock(src *RawTensor, block Shape, coord []int) (*RawTensor, error) {
	return tensor.CopyBlock(src, block, coord)
}

// BlockCounts returns how many blocks of shape block tile each dimension of dims.
func BlockCounts(dims, block Shape) ([]int, error) {
	return tensor.BlockCounts(dims, block)
}

// UnravelOrdinal splits a block ordinal into per-dimension block coordinates.
func UnravelOrdinal(ordinal int, counts []int) []int {
	return tensor.UnravelOrdinal(ordinal, counts)
}
