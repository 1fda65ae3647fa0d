package tensor

import (
	"testing"

	"github.com/born-ml/dataset/internal/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// iota32 returns an array whose element i holds the value i.
func iota32(t *testing.T, shape Shape) *RawTensor {
	t.Helper()
	data := make([]float32, shape.NumElements())
	for i := range data {
		data[i] = float32(i)
	}
	raw, err := FromSlice(data, shape)
	require.NoError(t, err)
	return raw
}

// naiveBlock extracts a block element by element using full coordinates.
func naiveBlock(src *RawTensor, block Shape, coord []int) []float32 {
	in := src.AsFloat32()
	srcStrides := src.Strides()
	out := make([]float32, block.NumElements())
	idx := make([]int, len(block))
	for i := range out {
		tmp := i
		for k := len(block) - 1; k >= 0; k-- {
			idx[k] = tmp % block[k]
			tmp /= block[k]
		}
		flat := 0
		for k := range block {
			flat += (coord[k]*block[k] + idx[k]) * srcStrides[k]
		}
		out[i] = in[flat]
	}
	return out
}

func TestCopyBlockMatchesNaive(t *testing.T) {
	tests := []struct {
		name  string
		dims  Shape
		block Shape
		coord []int
	}{
		{"rank1", Shape{12}, Shape{4}, []int{2}},
		{"rank2", Shape{6, 8}, Shape{3, 2}, []int{1, 3}},
		{"rank3", Shape{4, 6, 6}, Shape{2, 3, 2}, []int{1, 0, 2}},
		{"rank4", Shape{2, 4, 6, 4}, Shape{1, 2, 3, 2}, []int{1, 1, 1, 1}},
		{"whole", Shape{3, 3}, Shape{3, 3}, []int{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := iota32(t, tt.dims)
			got, err := CopyBlock(src, tt.block, tt.coord)
			require.NoError(t, err)

			assert.True(t, got.Shape().Equal(tt.block))
			if diff := cmp.Diff(naiveBlock(src, tt.block, tt.coord), got.AsFloat32()); diff != "" {
				t.Errorf("block mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCopyBlockPreservesDType(t *testing.T) {
	src, _ := FromSlice([]int16{0, 1, 2, 3, 4, 5, 6, 7}, Shape{2, 4})
	got, err := CopyBlock(src, Shape{2, 2}, []int{0, 1})
	require.NoError(t, err)

	assert.Equal(t, Int16, got.DType())
	assert.Equal(t, []int16{2, 3, 6, 7}, As[int16](got))
}

func TestCopyBlockErrors(t *testing.T) {
	src := iota32(t, Shape{4, 4})

	_, err := CopyBlock(src, Shape{2}, []int{0})
	assert.True(t, errors.Is(err, errors.ErrShapeMismatch), "rank mismatch: %v", err)

	_, err = CopyBlock(src, Shape{2, 2}, []int{2, 0})
	assert.True(t, errors.Is(err, errors.ErrShapeMismatch), "out of bounds: %v", err)

	_, err = CopyBlock(src, Shape{}, nil)
	assert.True(t, errors.Is(err, errors.ErrUnsupportedRank), "rank 0: %v", err)

	five := iota32(t, Shape{2, 2, 2, 2, 2})
	_, err = CopyBlock(five, Shape{1, 1, 1, 1, 1}, []int{0, 0, 0, 0, 0})
	assert.True(t, errors.Is(err, errors.ErrUnsupportedRank), "rank 5: %v", err)
}

func TestBlockCounts(t *testing.T) {
	counts, err := BlockCounts(Shape{500, 500}, Shape{100, 100})
	require.NoError(t, err)
	assert.Equal(t, []int{5, 5}, counts)

	_, err = BlockCounts(Shape{500, 500}, Shape{300, 100})
	assert.Error(t, err)

	_, err = BlockCounts(Shape{500}, Shape{100, 100})
	assert.Error(t, err)
}

func TestUnravelOrdinal(t *testing.T) {
	counts := []int{2, 3, 4}
	assert.Equal(t, []int{1, 2, 6}, RadixStrides(counts))

	// Dimension 0 is the least significant digit.
	assert.Equal(t, []int{1, 0, 0}, UnravelOrdinal(1, counts))
	assert.Equal(t, []int{0, 1, 0}, UnravelOrdinal(2, counts))
	assert.Equal(t, []int{1, 2, 3}, UnravelOrdinal(23, counts))

	seen := make(map[[3]int]bool)
	for n := 0; n < 24; n++ {
		c := UnravelOrdinal(n, counts)
		assert.Equal(t, n, RavelCoord(c, counts))
		seen[[3]int{c[0], c[1], c[2]}] = true
	}
	assert.Len(t, seen, 24)
}

// Reassembling every block at its recovered coordinate must reproduce the
// source array.
func TestBlockTilingRoundTrip(t *testing.T) {
	dims, block := Shape{6, 4, 6}, Shape{3, 2, 2}
	src := iota32(t, dims)

	counts, err := BlockCounts(dims, block)
	require.NoError(t, err)
	n := Shape(counts).NumElements()

	out, _ := NewRaw(dims, Float32)
	outData := out.AsFloat32()
	strides := dims.ComputeStrides()
	for ord := 0; ord < n; ord++ {
		coord := UnravelOrdinal(ord, counts)
		blk, err := CopyBlock(src, block, coord)
		require.NoError(t, err)

		vals := blk.AsFloat32()
		for i := range vals {
			rem, flat := i, 0
			for k := len(block) - 1; k >= 0; k-- {
				flat += (coord[k]*block[k] + rem%block[k]) * strides[k]
				rem /= block[k]
			}
			outData[flat] = vals[i]
		}
	}

	assert.True(t, src.Equal(out))
}
