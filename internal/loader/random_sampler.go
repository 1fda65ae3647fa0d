package loader

import (
	"math/rand"

	"github.com/born-ml/dataset/internal/errors"
	"github.com/born-ml/dataset/internal/lazy"
	"github.com/born-ml/dataset/internal/options"
	"github.com/born-ml/dataset/internal/tensor"
)

// RandomSampler serves random_sampler:n inner samples picked uniformly, with
// replacement, from [0, inner count). The picks are drawn once with a
// generator seeded by random_sampler:seed and stay fixed until n, the seed,
// the inner stage or the inner count changes.
type RandomSampler struct {
	stage
	inner  inner
	n      int
	seed   uint64
	sample lazy.Cell[[]int]
	// drawnFrom is the inner count the current sample was drawn from.
	drawnFrom int
}

var _ Loader = (*RandomSampler)(nil)

func NewRandomSampler(reg *Registry) *RandomSampler {
	l := &RandomSampler{
		stage: newStage(reg, RandomSamplerID),
		n:     1,
	}
	l.inner = l.newInner(RandomSamplerID+":loader", DefaultInner)
	return l
}

func (l *RandomSampler) draw() ([]int, error) {
	count, err := l.inner.loader.Count()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, errors.Newf(errors.ErrIndexOutOfRange, "%s: cannot sample from an empty loader", l.prefix)
	}

	//nolint:gosec // math/rand is appropriate for reproducible seeded sampling
	rng := rand.New(rand.NewSource(int64(l.seed)))
	sample := make([]int, l.n)
	for i := range sample {
		sample[i] = rng.Intn(count)
	}
	l.drawnFrom = count
	l.log.Debugf("drew %d of %d samples with seed %d", l.n, count, l.seed)
	return sample, nil
}

// Sample returns the inner indices served, drawing them on first use.
func (l *RandomSampler) Sample() ([]int, error) {
	sample, err := l.sample.Get(l.draw)
	if err != nil {
		return nil, err
	}
	return append([]int(nil), sample...), nil
}

func (l *RandomSampler) Count() (int, error) {
	return l.n, nil
}

func (l *RandomSampler) innerIndex(n int) (int, error) {
	if err := l.checkIndex(n, l.n); err != nil {
		return 0, err
	}
	sample, err := l.sample.Get(l.draw)
	if err != nil {
		return 0, err
	}
	return sample[n], nil
}

func (l *RandomSampler) LoadData(n int) (*tensor.RawTensor, error) {
	i, err := l.innerIndex(n)
	if err != nil {
		return nil, err
	}
	return l.inner.loader.LoadData(i)
}

func (l *RandomSampler) LoadMetadata(n int) (*options.Options, error) {
	i, err := l.innerIndex(n)
	if err != nil {
		return nil, err
	}
	md, err := l.inner.loader.LoadMetadata(i)
	if err != nil {
		return nil, err
	}
	dims, dtype, err := shapeOf(md, l.inner.loader.Name())
	if err != nil {
		return nil, err
	}
	l.describe(md, dims, dtype)
	return md, nil
}

func (l *RandomSampler) SetOptions(opts *options.Options) error {
	swapped, err := l.configureInner(&l.inner, opts)
	if swapped {
		l.sample.Reset()
	}
	if err != nil {
		return err
	}
	if l.sample.Valid() {
		if count, err := l.inner.loader.Count(); err != nil || count != l.drawnFrom {
			l.sample.Reset()
		}
	}

	n, seed := l.n, l.seed
	if _, err := opts.GetInt(l.name, "random_sampler:n", &n); err != nil {
		return err
	}
	if _, err := opts.GetUint64(l.name, "random_sampler:seed", &seed); err != nil {
		return err
	}
	if n != l.n || seed != l.seed {
		l.n, l.seed = n, seed
		l.sample.Reset()
	}
	return nil
}

func (l *RandomSampler) Options() *options.Options {
	o := options.New()
	l.innerOptions(&l.inner, o)
	o.SetNamed(l.name, "random_sampler:n", l.n)
	o.SetNamed(l.name, "random_sampler:seed", l.seed)
	return o
}

func (l *RandomSampler) Documentation() *options.Options {
	o := options.New()
	l.innerDocumentation(&l.inner, o, "loader to sample from")
	o.SetNamed(l.name, "random_sampler:n", "number of samples to take from the data source")
	o.SetNamed(l.name, "random_sampler:seed", "seed")
	return o
}

func (l *RandomSampler) Clone() Loader {
	c := *l
	c.inner = l.inner.clone()
	return &c
}

func (l *RandomSampler) SetName(name string) {
	l.name = name
	l.renameInner(&l.inner)
}
