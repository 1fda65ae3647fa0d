package loader

import (
	"fmt"

	"github.com/born-ml/dataset/internal/errors"
	"github.com/born-ml/dataset/internal/options"
	"github.com/born-ml/dataset/internal/tensor"
)

// FromData serves arrays held in memory. LoadData returns the stored arrays
// themselves, which callers must treat as read-only.
type FromData struct {
	stage
	data []*tensor.RawTensor
}

var _ Loader = (*FromData)(nil)

// NewFromData returns a FromData serving arrays. reg may be nil.
func NewFromData(reg *Registry, arrays ...*tensor.RawTensor) *FromData {
	return &FromData{
		stage: newStage(reg, FromDataID),
		data:  append([]*tensor.RawTensor(nil), arrays...),
	}
}

func dataKey(i int) string {
	return fmt.Sprintf("from_data:data-%d", i)
}

func (l *FromData) Count() (int, error) {
	return len(l.data), nil
}

func (l *FromData) at(n int) (*tensor.RawTensor, error) {
	if err := l.checkIndex(n, len(l.data)); err != nil {
		return nil, err
	}
	if l.data[n] == nil {
		return nil, errors.Newf(errors.ErrInvalidOption, "%s is not set", options.Key(l.name, dataKey(n)))
	}
	return l.data[n], nil
}

func (l *FromData) LoadData(n int) (*tensor.RawTensor, error) {
	return l.at(n)
}

func (l *FromData) LoadMetadata(n int) (*options.Options, error) {
	raw, err := l.at(n)
	if err != nil {
		return nil, err
	}
	md := options.New()
	l.describe(md, raw.Shape(), raw.DType())
	return md, nil
}

// SetOptions resizes the list to from_data:n, then replaces element i with
// from_data:data-<i> where present.
func (l *FromData) SetOptions(opts *options.Options) error {
	n := len(l.data)
	if ok, err := opts.GetInt(l.name, "from_data:n", &n); err != nil {
		return err
	} else if ok {
		resized := make([]*tensor.RawTensor, n)
		copy(resized, l.data)
		l.data = resized
	}
	for i := range l.data {
		if _, err := opts.GetArray(l.name, dataKey(i), &l.data[i]); err != nil {
			return err
		}
	}
	return nil
}

func (l *FromData) Options() *options.Options {
	o := options.New()
	o.SetNamed(l.name, "from_data:n", len(l.data))
	for i, raw := range l.data {
		if raw != nil {
			o.SetNamed(l.name, dataKey(i), raw)
		}
	}
	return o
}

func (l *FromData) Documentation() *options.Options {
	o := options.New()
	o.SetNamed(l.name, "from_data:n", "number of data to provide")
	for i := range l.data {
		o.SetNamed(l.name, dataKey(i), fmt.Sprintf("data element %d", i))
	}
	return o
}

func (l *FromData) Clone() Loader {
	c := *l
	c.data = append([]*tensor.RawTensor(nil), l.data...)
	return &c
}

func (l *FromData) SetName(name string) {
	l.name = name
}
