// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the array type that flows through dataset loader
// pipelines.
//
// # Overview
//
// A RawTensor is an owning, row-major, N-dimensional array with a runtime
// element type. Loader stages produce fresh arrays and never keep a handle
// to an array they hand out, except cache and from_data stages which return
// the arrays they hold; callers treat every loaded array as read-only.
//
// # Basic Usage
//
//	raw, _ := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
//	fmt.Println(raw.Shape(), raw.DType()) // [2 3] float32
//
//	// Copy the second 1x3 row out as its own array.
//	row, _ := tensor.CopyBlock(raw, tensor.Shape{1, 3}, []int{1, 0})
//	fmt.Println(row.AsFloat32()) // [4 5 6]
//
// # Supported Data Types
//
//   - int8, int16, int32, int64
//   - uint8, uint16, uint32, uint64
//   - float32, float64
//   - bool
//   - Byte, an untyped byte stream produced by reads without a template
//
// # Blocks
//
// CopyBlock copies one aligned block of ranks 1 to 4. BlockCounts tiles a
// shape into blocks and UnravelOrdinal maps a block ordinal to its block
// coordinate, with dimension 0 as the least significant digit.
package tensor
