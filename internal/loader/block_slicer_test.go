package loader

import (
	"testing"

	"github.com/born-ml/dataset/internal/errors"
	"github.com/born-ml/dataset/internal/options"
	"github.com/born-ml/dataset/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockSlicerCount(t *testing.T) {
	reg := newTestRegistry(t, nil)
	a := iota(t, tensor.Shape{6, 4}, 0)
	b := iota(t, tensor.Shape{6, 4}, 100)

	l := build(t, reg, BlockSlicerID, merge(
		fromDataOptions("block_slicer:loader", a, b),
		map[string]interface{}{"block_slicer:block_size": []int{3, 2}},
	))

	n, err := l.Count()
	require.NoError(t, err)
	assert.Equal(t, 2*2*2, n)
}

// Reassembling every block at its recovered coordinate reproduces each inner
// array.
func TestBlockSlicerRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		dims  tensor.Shape
		block tensor.Shape
	}{
		{"rank1", tensor.Shape{12}, tensor.Shape{3}},
		{"rank2", tensor.Shape{6, 4}, tensor.Shape{3, 2}},
		{"rank3", tensor.Shape{4, 6, 2}, tensor.Shape{2, 3, 1}},
		{"rank4", tensor.Shape{2, 2, 4, 6}, tensor.Shape{1, 2, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newTestRegistry(t, nil)
			inputs := []*tensor.RawTensor{iota(t, tt.dims, 0), iota(t, tt.dims, 1000)}
			l := build(t, reg, BlockSlicerID, merge(
				fromDataOptions("block_slicer:loader", inputs...),
				map[string]interface{}{"block_slicer:block_size": tt.block.Ints()},
			))

			grid, err := tensor.BlockCounts(tt.dims, tt.block)
			require.NoError(t, err)
			per := tensor.Shape(grid).NumElements()

			count, err := l.Count()
			require.NoError(t, err)
			require.Equal(t, per*len(inputs), count)

			strides := tt.dims.ComputeStrides()
			for s, want := range inputs {
				out, _ := tensor.NewRaw(tt.dims, tensor.Float32)
				outData := out.AsFloat32()
				for ord := 0; ord < per; ord++ {
					blk, err := l.LoadData(s*per + ord)
					require.NoError(t, err)
					require.True(t, blk.Shape().Equal(tt.block))

					coord := tensor.UnravelOrdinal(ord, grid)
					for i, v := range blk.AsFloat32() {
						rem, flat := i, 0
						for k := len(tt.block) - 1; k >= 0; k-- {
							flat += (coord[k]*tt.block[k] + rem%tt.block[k]) * strides[k]
							rem /= tt.block[k]
						}
						outData[flat] = v
					}
				}
				assert.True(t, want.Equal(out), "sample %d was not reassembled", s)
			}
		})
	}
}

func TestBlockSlicerMetadata(t *testing.T) {
	reg := newTestRegistry(t, nil)
	l := build(t, reg, BlockSlicerID, merge(
		fromDataOptions("block_slicer:loader", iota(t, tensor.Shape{6, 4}, 0)),
		map[string]interface{}{"block_slicer:block_size": []int{3, 2}},
	))

	md, err := l.LoadMetadata(3)
	require.NoError(t, err)

	var dims tensor.Shape
	var dtype tensor.DataType
	_, err = md.GetShape("", KeyDims, &dims)
	require.NoError(t, err)
	_, err = md.GetDataType("", KeyDType, &dtype)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 2}, dims)
	assert.Equal(t, tensor.Float32, dtype)
}

func TestBlockSlicerErrors(t *testing.T) {
	reg := newTestRegistry(t, nil)

	l := build(t, reg, BlockSlicerID, merge(
		fromDataOptions("block_slicer:loader", iota(t, tensor.Shape{5, 4}, 0)),
		map[string]interface{}{"block_slicer:block_size": []int{2, 2}},
	))
	_, err := l.Count()
	assert.True(t, errors.Is(err, errors.ErrShapeMismatch), "indivisible: %v", err)

	l = build(t, reg, BlockSlicerID, merge(
		fromDataOptions("block_slicer:loader", iota(t, tensor.Shape{4, 4}, 0)),
		map[string]interface{}{"block_slicer:block_size": []int{2}},
	))
	_, err = l.Count()
	assert.True(t, errors.Is(err, errors.ErrShapeMismatch), "rank: %v", err)

	l = build(t, reg, BlockSlicerID, merge(
		fromDataOptions("block_slicer:loader", iota(t, tensor.Shape{2, 2, 2, 2, 2}, 0)),
		map[string]interface{}{"block_slicer:block_size": []int{1, 1, 1, 1, 1}},
	))
	_, err = l.LoadData(0)
	assert.True(t, errors.Is(err, errors.ErrUnsupportedRank), "rank 5: %v", err)

	l = build(t, reg, BlockSlicerID, merge(
		fromDataOptions("block_slicer:loader", iota(t, tensor.Shape{4, 4}, 0)),
		map[string]interface{}{"block_slicer:block_size": []int{2, 2}},
	))
	_, err = l.LoadData(4)
	assert.True(t, errors.Is(err, errors.ErrIndexOutOfRange), "%v", err)
	_, err = l.LoadMetadata(-1)
	assert.True(t, errors.Is(err, errors.ErrIndexOutOfRange), "%v", err)

	// A later sample that does not tile like sample 0 is rejected.
	l = build(t, reg, BlockSlicerID, merge(
		fromDataOptions("block_slicer:loader", iota(t, tensor.Shape{4, 4}, 0), iota(t, tensor.Shape{8, 4}, 0)),
		map[string]interface{}{"block_slicer:block_size": []int{2, 2}},
	))
	_, err = l.LoadData(4)
	assert.True(t, errors.Is(err, errors.ErrShapeMismatch), "%v", err)

	l = build(t, reg, BlockSlicerID, fromDataOptions("block_slicer:loader", iota(t, tensor.Shape{4}, 0)))
	_, err = l.Count()
	assert.True(t, errors.Is(err, errors.ErrInvalidOption), "no block size: %v", err)
}

func TestBlockSlicerEmptyInner(t *testing.T) {
	reg := newTestRegistry(t, nil)
	l := build(t, reg, BlockSlicerID, map[string]interface{}{
		"block_slicer:loader":     FromDataID,
		"block_slicer:block_size": []int{2},
	})
	n, err := l.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestBlockSlicerGridResetOnSetOptions(t *testing.T) {
	reg := newTestRegistry(t, nil)
	l := build(t, reg, BlockSlicerID, merge(
		fromDataOptions("block_slicer:loader", iota(t, tensor.Shape{8, 8}, 0)),
		map[string]interface{}{"block_slicer:block_size": []int{4, 4}},
	))
	n, err := l.Count()
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	require.NoError(t, l.SetOptions(options.FromMap(map[string]interface{}{"block_slicer:block_size": []int{2, 2}})))
	n, err = l.Count()
	require.NoError(t, err)
	assert.Equal(t, 16, n)
}
