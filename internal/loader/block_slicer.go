package loader

import (
	"github.com/born-ml/dataset/internal/errors"
	"github.com/born-ml/dataset/internal/lazy"
	"github.com/born-ml/dataset/internal/options"
	"github.com/born-ml/dataset/internal/tensor"
)

// BlockSlicer tiles every inner sample into non-overlapping blocks of
// block_slicer:block_size and serves each block as its own sample.
//
// Every dimension of the inner samples must be a multiple of the matching
// block dimension. With C[k] = D[k]/B[k] blocks along dimension k, each inner
// sample fans out into N = C[0]*...*C[r-1] blocks; index i maps to block i%N
// of inner sample i/N. Block ordinals are mixed-radix numbers over C with
// dimension 0 as the least significant digit.
//
// The block grid is computed from the metadata of inner sample 0 on first
// use and kept until the next SetOptions.
type BlockSlicer struct {
	stage
	inner inner
	block tensor.Shape
	grid  lazy.Cell[[]int]
}

var _ Loader = (*BlockSlicer)(nil)

func NewBlockSlicer(reg *Registry) *BlockSlicer {
	l := &BlockSlicer{stage: newStage(reg, BlockSlicerID)}
	l.inner = l.newInner(BlockSlicerID+":loader", DefaultInner)
	return l
}

// blockGrid returns the number of blocks along each dimension.
func (l *BlockSlicer) blockGrid() ([]int, error) {
	return l.grid.Get(func() ([]int, error) {
		if len(l.block) == 0 {
			return nil, errors.Newf(errors.ErrInvalidOption, "%s is not set", options.Key(l.name, "block_slicer:block_size"))
		}
		md, err := l.inner.loader.LoadMetadata(0)
		if err != nil {
			return nil, err
		}
		dims, _, err := shapeOf(md, l.inner.loader.Name())
		if err != nil {
			return nil, err
		}
		counts, err := tensor.BlockCounts(dims, l.block)
		if err != nil {
			return nil, errors.WithCode(err, errors.ErrShapeMismatch)
		}
		l.log.Debugf("%v blocks of %v per sample of %v", counts, []int(l.block), []int(dims))
		return counts, nil
	})
}

// fanOut returns the number of blocks per inner sample and the block grid.
func (l *BlockSlicer) fanOut() (int, []int, error) {
	grid, err := l.blockGrid()
	if err != nil {
		return 0, nil, err
	}
	return tensor.Shape(grid).NumElements(), grid, nil
}

func (l *BlockSlicer) Count() (int, error) {
	n, err := l.inner.loader.Count()
	if err != nil || n == 0 {
		return 0, err
	}
	per, _, err := l.fanOut()
	if err != nil {
		return 0, err
	}
	return per * n, nil
}

func (l *BlockSlicer) LoadData(n int) (*tensor.RawTensor, error) {
	count, err := l.Count()
	if err != nil {
		return nil, err
	}
	if err := l.checkIndex(n, count); err != nil {
		return nil, err
	}
	per, grid, err := l.fanOut()
	if err != nil {
		return nil, err
	}

	data, err := l.inner.loader.LoadData(n / per)
	if err != nil {
		return nil, err
	}
	// Later samples must tile into the same grid as sample 0.
	counts, err := tensor.BlockCounts(data.Shape(), l.block)
	if err != nil {
		return nil, errors.WithCode(err, errors.ErrShapeMismatch)
	}
	if !tensor.Shape(counts).Equal(grid) {
		return nil, errors.Newf(errors.ErrShapeMismatch,
			"inner sample %d has shape %v, which does not tile into the %v block grid of sample 0", n/per, []int(data.Shape()), grid)
	}

	block, err := tensor.CopyBlock(data, l.block, tensor.UnravelOrdinal(n%per, grid))
	if err != nil {
		return nil, err
	}
	l.metrics().BlockExtracted(l.prefix)
	return block, nil
}

func (l *BlockSlicer) LoadMetadata(n int) (*options.Options, error) {
	count, err := l.Count()
	if err != nil {
		return nil, err
	}
	if err := l.checkIndex(n, count); err != nil {
		return nil, err
	}
	per, _, err := l.fanOut()
	if err != nil {
		return nil, err
	}

	md, err := l.inner.loader.LoadMetadata(n / per)
	if err != nil {
		return nil, err
	}
	_, dtype, err := shapeOf(md, l.inner.loader.Name())
	if err != nil {
		return nil, err
	}
	l.describe(md, l.block, dtype)
	return md, nil
}

func (l *BlockSlicer) SetOptions(opts *options.Options) error {
	l.grid.Reset()
	if _, err := l.configureInner(&l.inner, opts); err != nil {
		return err
	}
	_, err := opts.GetShape(l.name, "block_slicer:block_size", &l.block)
	return err
}

func (l *BlockSlicer) Options() *options.Options {
	o := options.New()
	l.innerOptions(&l.inner, o)
	o.SetNamed(l.name, "block_slicer:block_size", l.block.Ints())
	return o
}

func (l *BlockSlicer) Documentation() *options.Options {
	o := options.New()
	l.innerDocumentation(&l.inner, o, "loader to slice")
	o.SetNamed(l.name, "block_slicer:block_size", "shape of the blocks; must evenly divide every sample")
	return o
}

func (l *BlockSlicer) Clone() Loader {
	c := *l
	c.inner = l.inner.clone()
	return &c
}

func (l *BlockSlicer) SetName(name string) {
	l.name = name
	l.renameInner(&l.inner)
}
