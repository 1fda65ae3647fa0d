package loader

import (
	"math/rand"

	"github.com/born-ml/dataset/internal/errors"
	"github.com/born-ml/dataset/internal/options"
	"github.com/born-ml/dataset/internal/tensor"
)

// BlockSampler draws block_sampler:n pseudo-random blocks of
// block_sampler:block_size out of every inner sample. Index i reads inner
// sample i/n and picks its block with a generator seeded by seed+i, so a
// given index always yields the same bytes.
//
// Along each dimension the block coordinate is uniform over
// [0, floor(D[k]/B[k]) - 1]: every drawn block lies fully inside the sample.
type BlockSampler struct {
	stage
	inner inner
	block tensor.Shape
	n     int
	seed  uint64
}

var _ Loader = (*BlockSampler)(nil)

func NewBlockSampler(reg *Registry) *BlockSampler {
	l := &BlockSampler{
		stage: newStage(reg, BlockSamplerID),
		n:     1,
	}
	l.inner = l.newInner(BlockSamplerID+":loader", DefaultInner)
	return l
}

func (l *BlockSampler) Count() (int, error) {
	n, err := l.inner.loader.Count()
	if err != nil {
		return 0, err
	}
	return l.n * n, nil
}

// check reports whether a block fits a sample of shape dims. Nil dims, from
// an inner stage that does not know its shape yet, only check the block.
func (l *BlockSampler) check(dims tensor.Shape) error {
	if len(l.block) == 0 {
		return errors.Newf(errors.ErrInvalidOption, "%s is not set", options.Key(l.name, "block_sampler:block_size"))
	}
	if len(l.block) > tensor.MaxBlockRank {
		return errors.Newf(errors.ErrUnsupportedRank, "block rank %d is not supported (1..%d)", len(l.block), tensor.MaxBlockRank)
	}
	if dims == nil {
		return nil
	}
	if len(dims) != len(l.block) {
		return errors.Newf(errors.ErrShapeMismatch, "block rank %d does not match data rank %d", len(l.block), len(dims))
	}
	for k := range dims {
		if l.block[k] > dims[k] {
			return errors.Newf(errors.ErrShapeMismatch,
				"block %v is larger than data %v in dimension %d", []int(l.block), []int(dims), k)
		}
	}
	return nil
}

// draw picks the block coordinate of index i within a sample of shape dims.
func (l *BlockSampler) draw(dims tensor.Shape, i int) ([]int, error) {
	if err := l.check(dims); err != nil {
		return nil, err
	}

	//nolint:gosec // math/rand is appropriate for reproducible seeded sampling
	rng := rand.New(rand.NewSource(int64(l.seed + uint64(i))))
	coord := make([]int, len(dims))
	for k := range dims {
		coord[k] = rng.Intn(dims[k] / l.block[k])
	}
	return coord, nil
}

func (l *BlockSampler) LoadData(n int) (*tensor.RawTensor, error) {
	count, err := l.Count()
	if err != nil {
		return nil, err
	}
	if err := l.checkIndex(n, count); err != nil {
		return nil, err
	}

	data, err := l.inner.loader.LoadData(n / l.n)
	if err != nil {
		return nil, err
	}
	coord, err := l.draw(data.Shape(), n)
	if err != nil {
		return nil, err
	}
	block, err := tensor.CopyBlock(data, l.block, coord)
	if err != nil {
		return nil, err
	}
	l.metrics().BlockExtracted(l.prefix)
	return block, nil
}

func (l *BlockSampler) LoadMetadata(n int) (*options.Options, error) {
	count, err := l.Count()
	if err != nil {
		return nil, err
	}
	if err := l.checkIndex(n, count); err != nil {
		return nil, err
	}

	md, err := l.inner.loader.LoadMetadata(n / l.n)
	if err != nil {
		return nil, err
	}
	dims, dtype, err := shapeOf(md, l.inner.loader.Name())
	if err != nil {
		return nil, err
	}
	if err := l.check(dims); err != nil {
		return nil, err
	}
	l.describe(md, l.block, dtype)
	return md, nil
}

func (l *BlockSampler) SetOptions(opts *options.Options) error {
	if _, err := l.configureInner(&l.inner, opts); err != nil {
		return err
	}
	if _, err := opts.GetShape(l.name, "block_sampler:block_size", &l.block); err != nil {
		return err
	}
	n := l.n
	if _, err := opts.GetInt(l.name, "block_sampler:n", &n); err != nil {
		return err
	}
	if n < 1 {
		return errors.Newf(errors.ErrInvalidOption, "%s must be at least 1, got %d", options.Key(l.name, "block_sampler:n"), n)
	}
	l.n = n
	_, err := opts.GetUint64(l.name, "block_sampler:seed", &l.seed)
	return err
}

func (l *BlockSampler) Options() *options.Options {
	o := options.New()
	l.innerOptions(&l.inner, o)
	o.SetNamed(l.name, "block_sampler:block_size", l.block.Ints())
	o.SetNamed(l.name, "block_sampler:n", l.n)
	o.SetNamed(l.name, "block_sampler:seed", l.seed)
	return o
}

func (l *BlockSampler) Documentation() *options.Options {
	o := options.New()
	l.innerDocumentation(&l.inner, o, "loader to sample from")
	o.SetNamed(l.name, "block_sampler:block_size", "block size to sample")
	o.SetNamed(l.name, "block_sampler:n", "number of samples to take from each data source")
	o.SetNamed(l.name, "block_sampler:seed", "seed; index i is sampled with seed+i")
	return o
}

func (l *BlockSampler) Clone() Loader {
	c := *l
	c.inner = l.inner.clone()
	return &c
}

func (l *BlockSampler) SetName(name string) {
	l.name = name
	l.renameInner(&l.inner)
}
