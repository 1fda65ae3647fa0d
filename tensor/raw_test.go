// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/born-ml/dataset/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicBlockCopy(t *testing.T) {
	raw, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	require.NoError(t, err)
	assert.Equal(t, tensor.Float32, raw.DType())

	row, err := tensor.CopyBlock(raw, tensor.Shape{1, 3}, []int{1, 0})
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 5, 6}, tensor.As[float32](row))

	counts, err := tensor.BlockCounts(tensor.Shape{2, 3}, tensor.Shape{1, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, counts)
	assert.Equal(t, []int{1, 0}, tensor.UnravelOrdinal(1, counts))

	dt, err := tensor.ParseDataType("uint16")
	require.NoError(t, err)
	assert.Equal(t, tensor.Uint16, dt)
}
