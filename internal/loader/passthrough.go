package loader

import (
	"github.com/born-ml/dataset/internal/options"
	"github.com/born-ml/dataset/internal/tensor"
)

// Passthrough forwards every call to its inner stage. It exists so a
// sub-pipeline can be addressed under another name when the same stage type
// appears more than once in a pipeline. Metadata dims and dtype are
// re-exposed under the passthrough's own name.
type Passthrough struct {
	stage
	inner inner
}

var _ Loader = (*Passthrough)(nil)

func NewPassthrough(reg *Registry) *Passthrough {
	l := &Passthrough{stage: newStage(reg, PassthroughID)}
	l.inner = l.newInner(PassthroughID+":loader", DefaultInner)
	return l
}

func (l *Passthrough) Count() (int, error) {
	return l.inner.loader.Count()
}

func (l *Passthrough) LoadData(n int) (*tensor.RawTensor, error) {
	return l.inner.loader.LoadData(n)
}

func (l *Passthrough) LoadMetadata(n int) (*options.Options, error) {
	md, err := l.inner.loader.LoadMetadata(n)
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

func (l *Passthrough) SetOptions(opts *options.Options) error {
	_, err := l.configureInner(&l.inner, opts)
	return err
}

func (l *Passthrough) Options() *options.Options {
	o := options.New()
	l.innerOptions(&l.inner, o)
	return o
}

func (l *Passthrough) Documentation() *options.Options {
	o := options.New()
	l.innerDocumentation(&l.inner, o, "loader to forward to")
	return o
}

func (l *Passthrough) Clone() Loader {
	c := *l
	c.inner = l.inner.clone()
	return &c
}

func (l *Passthrough) SetName(name string) {
	l.name = name
	l.renameInner(&l.inner)
}
