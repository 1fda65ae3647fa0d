package loader

import (
	"testing"

	"github.com/born-ml/dataset/internal/errors"
	"github.com/born-ml/dataset/internal/logger"
	"github.com/born-ml/dataset/internal/options"
	"github.com/born-ml/dataset/internal/tensor"
	"github.com/stretchr/testify/require"
)

const countingID = "counting"

// countingLoader serves fixed arrays and counts how often it is asked.
type countingLoader struct {
	name       string
	arrays     []*tensor.RawTensor
	countCalls int
	dataCalls  int
	metaCalls  int
}

func (c *countingLoader) Count() (int, error) {
	c.countCalls++
	return len(c.arrays), nil
}

func (c *countingLoader) LoadData(n int) (*tensor.RawTensor, error) {
	c.dataCalls++
	if n < 0 || n >= len(c.arrays) {
		return nil, errors.Newf(errors.ErrIndexOutOfRange, "counting: index %d", n)
	}
	return c.arrays[n], nil
}

func (c *countingLoader) LoadMetadata(n int) (*options.Options, error) {
	c.metaCalls++
	if n < 0 || n >= len(c.arrays) {
		return nil, errors.Newf(errors.ErrIndexOutOfRange, "counting: index %d", n)
	}
	md := options.New()
	md.SetNamed(c.name, KeyDims, c.arrays[n].Shape().Ints())
	md.SetNamed(c.name, KeyDType, c.arrays[n].DType())
	return md, nil
}

func (c *countingLoader) SetOptions(*options.Options) error { return nil }
func (c *countingLoader) Options() *options.Options         { return options.New() }
func (c *countingLoader) Documentation() *options.Options   { return options.New() }
func (c *countingLoader) Name() string                      { return c.name }
func (c *countingLoader) SetName(name string)               { c.name = name }
func (c *countingLoader) Prefix() string                    { return countingID }

func (c *countingLoader) Clone() Loader {
	cp := *c
	return &cp
}

// newTestRegistry returns a registry logging to t that also builds stub as
// "counting".
func newTestRegistry(t *testing.T, stub *countingLoader) *Registry {
	t.Helper()
	reg := NewRegistry(OptRegistryLogger(logger.NewLogfLogger(t)))
	if stub != nil {
		reg.Register(countingID, func(*Registry) Loader { return stub })
	}
	return reg
}

// iota returns a float32 array of shape whose element i holds i+offset.
func iota(t *testing.T, shape tensor.Shape, offset float32) *tensor.RawTensor {
	t.Helper()
	data := make([]float32, shape.NumElements())
	for i := range data {
		data[i] = float32(i) + offset
	}
	raw, err := tensor.FromSlice(data, shape)
	require.NoError(t, err)
	return raw
}

// build builds id from reg and applies opts.
func build(t *testing.T, reg *Registry, id string, opts map[string]interface{}) Loader {
	t.Helper()
	l, err := reg.Build(id)
	require.NoError(t, err)
	require.NoError(t, l.SetOptions(options.FromMap(opts)))
	return l
}

// fromDataOptions returns options that make a composite stage wrap a
// from_data stage holding arrays.
func fromDataOptions(key string, arrays ...*tensor.RawTensor) map[string]interface{} {
	opts := map[string]interface{}{
		key:           FromDataID,
		"from_data:n": len(arrays),
	}
	for i, raw := range arrays {
		opts[dataKey(i)] = raw
	}
	return opts
}

func merge(maps ...map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
