package loader

import (
	"github.com/born-ml/dataset/internal/lazy"
	"github.com/born-ml/dataset/internal/options"
	"github.com/born-ml/dataset/internal/tensor"
)

// Cache memoizes the count, data and metadata of its inner stage. A hit never
// calls the inner stage. The cache is cleared by cache:flush and when
// cache:loader selects a different inner stage; reconfiguring the current
// inner stage through nested options does not clear it.
//
// Cached arrays are returned as stored, so callers must not modify them.
type Cache struct {
	stage
	inner    inner
	count    lazy.Cell[int]
	data     map[int]*tensor.RawTensor
	metadata map[int]*options.Options
}

var _ Loader = (*Cache)(nil)

func NewCache(reg *Registry) *Cache {
	l := &Cache{
		stage:    newStage(reg, CacheID),
		data:     make(map[int]*tensor.RawTensor),
		metadata: make(map[int]*options.Options),
	}
	l.inner = l.newInner(CacheID+":loader", DefaultInner)
	return l
}

// Flush drops every cached value.
func (l *Cache) Flush() {
	l.count.Reset()
	l.data = make(map[int]*tensor.RawTensor)
	l.metadata = make(map[int]*options.Options)
	l.log.Debugf("flushed")
}

func (l *Cache) Count() (int, error) {
	l.metrics().CacheLookup("count", l.count.Valid())
	return l.count.Get(l.inner.loader.Count)
}

func (l *Cache) LoadData(n int) (*tensor.RawTensor, error) {
	if raw, ok := l.data[n]; ok {
		l.metrics().CacheLookup("data", true)
		return raw, nil
	}
	l.metrics().CacheLookup("data", false)

	count, err := l.Count()
	if err != nil {
		return nil, err
	}
	if err := l.checkIndex(n, count); err != nil {
		return nil, err
	}
	raw, err := l.inner.loader.LoadData(n)
	if err != nil {
		return nil, err
	}
	l.data[n] = raw
	return raw, nil
}

func (l *Cache) LoadMetadata(n int) (*options.Options, error) {
	if md, ok := l.metadata[n]; ok {
		l.metrics().CacheLookup("metadata", true)
		return md.Copy(), nil
	}
	l.metrics().CacheLookup("metadata", false)

	count, err := l.Count()
	if err != nil {
		return nil, err
	}
	if err := l.checkIndex(n, count); err != nil {
		return nil, err
	}
	md, err := l.inner.loader.LoadMetadata(n)
	if err != nil {
		return nil, err
	}
	dims, dtype, err := shapeOf(md, l.inner.loader.Name())
	if err != nil {
		return nil, err
	}
	l.describe(md, dims, dtype)
	l.metadata[n] = md
	return md.Copy(), nil
}

func (l *Cache) SetOptions(opts *options.Options) error {
	swapped, err := l.configureInner(&l.inner, opts)
	if swapped || opts.Has(l.name, "cache:flush") {
		l.Flush()
	}
	return err
}

func (l *Cache) Options() *options.Options {
	o := options.New()
	l.innerOptions(&l.inner, o)
	return o
}

func (l *Cache) Documentation() *options.Options {
	o := options.New()
	l.innerDocumentation(&l.inner, o, "loader whose results are cached")
	o.SetNamed(l.name, "cache:flush", "flush the cache when present")
	return o
}

func (l *Cache) Clone() Loader {
	c := *l
	c.inner = l.inner.clone()
	c.data = make(map[int]*tensor.RawTensor, len(l.data))
	for k, v := range l.data {
		c.data[k] = v
	}
	c.metadata = make(map[int]*options.Options, len(l.metadata))
	for k, v := range l.metadata {
		c.metadata[k] = v.Copy()
	}
	return &c
}

// SetName renames the cache and its inner stage. Cached metadata is dropped
// because its keys are scoped by the old names.
func (l *Cache) SetName(name string) {
	l.name = name
	l.renameInner(&l.inner)
	l.metadata = make(map[int]*options.Options)
}
