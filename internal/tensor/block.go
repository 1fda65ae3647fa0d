package tensor

import (
	"github.com/born-ml/dataset/internal/errors"
)

// MaxBlockRank is the highest rank CopyBlock accepts.
const MaxBlockRank = 4

// CopyBlock copies the block of shape block whose block coordinate is coord
// out of src into a freshly allocated array. The block starts at element
// coord[k]*block[k] in every dimension k.
//
// Elements are visited in row-major order of the block, so the result is
// laid out exactly like a standalone array of shape block. The innermost
// dimension is contiguous in both arrays and is copied one row at a time.
func CopyBlock(src *RawTensor, block Shape, coord []int) (*RawTensor, error) {
	rank := len(block)
	if rank == 0 || rank > MaxBlockRank {
		return nil, errors.Newf(errors.ErrUnsupportedRank, "block rank %d is not supported (1..%d)", rank, MaxBlockRank)
	}
	if src.Rank() != rank {
		return nil, errors.Newf(errors.ErrShapeMismatch, "expected block rank %d to match data rank %d", rank, src.Rank())
	}
	if len(coord) != rank {
		return nil, errors.Newf(errors.ErrShapeMismatch, "block coordinate %v does not have rank %d", coord, rank)
	}

	dims := src.Shape()
	start := make([]int, rank)
	for k := 0; k < rank; k++ {
		if block[k] <= 0 {
			return nil, errors.Newf(errors.ErrShapeMismatch, "invalid block dimension at index %d: %d", k, block[k])
		}
		start[k] = coord[k] * block[k]
		if coord[k] < 0 || start[k]+block[k] > dims[k] {
			return nil, errors.Newf(errors.ErrShapeMismatch,
				"block %v at coordinate %v exceeds data shape %v in dimension %d", []int(block), coord, []int(dims), k)
		}
	}

	dst, err := NewRaw(block, src.DType())
	if err != nil {
		return nil, errors.WithCode(err, errors.ErrShapeMismatch)
	}

	width := src.DType().Size()
	srcStrides := src.Strides()
	rowBytes := block[rank-1] * width
	rows := block.NumElements() / block[rank-1]

	srcData, dstData := src.Data(), dst.Data()
	idx := make([]int, rank-1)
	for row := 0; row < rows; row++ {
		// Unravel the row number into the outer block indices.
		tmp := row
		for k := rank - 2; k >= 0; k-- {
			idx[k] = tmp % block[k]
			tmp /= block[k]
		}

		srcFlat := start[rank-1]
		for k := 0; k < rank-1; k++ {
			srcFlat += (start[k] + idx[k]) * srcStrides[k]
		}

		srcOff := srcFlat * width
		copy(dstData[row*rowBytes:(row+1)*rowBytes], srcData[srcOff:srcOff+rowBytes])
	}

	return dst, nil
}
