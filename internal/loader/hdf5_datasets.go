package loader

import (
	"github.com/born-ml/dataset/internal/errors"
	"github.com/born-ml/dataset/internal/lazy"
	"github.com/born-ml/dataset/internal/options"
	"github.com/born-ml/dataset/internal/source"
	"github.com/born-ml/dataset/internal/tensor"
	"github.com/dlclark/regexp2"
)

// Metadata keys written by HDF5Datasets.
const (
	KeyHDF5Dataset     = "hdf5_datasets:dataset"
	KeyHDF5GroupPrefix = "hdf5_datasets:group:"
)

// HDF5Datasets serves one sample per dataset of the HDF5 file at io:path
// whose name, relative to the root group, fully matches hdf5_datasets:regex.
//
// Datasets are decoded as float64 and come back one dimensional unless
// hdf5_datasets:dims is set, in which case every dataset is reshaped to dims
// and converted to hdf5_datasets:dtype. The dataset list is read on first use
// and again after io:path or the regex change or hdf5_datasets:rescan is
// given.
type HDF5Datasets struct {
	stage
	path    string
	pattern string
	re      *regexp2.Regexp
	groups  []string
	dims    tensor.Shape
	dtype   tensor.DataType
	names   lazy.Cell[[]string]
}

var _ Loader = (*HDF5Datasets)(nil)

func NewHDF5Datasets(reg *Registry) *HDF5Datasets {
	l := &HDF5Datasets{
		stage: newStage(reg, HDF5DatasetsID),
		dtype: tensor.Float64,
	}
	if err := l.compile(".+"); err != nil {
		panic(err)
	}
	return l
}

func (l *HDF5Datasets) compile(pattern string) error {
	re, err := compileFullMatch(l.name, "hdf5_datasets:regex", pattern)
	if err != nil {
		return err
	}
	l.pattern, l.re = pattern, re
	return nil
}

func (l *HDF5Datasets) scan() ([]string, error) {
	if l.path == "" {
		return nil, errors.Newf(errors.ErrInvalidOption, "%s is not set", options.Key(l.name, KeyPath))
	}
	all, err := source.HDF5DatasetNames(l.path)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, name := range all {
		ok, err := l.re.MatchString(name)
		if err != nil {
			return nil, errors.WithCode(err, errors.ErrInvalidOption)
		}
		if ok {
			names = append(names, name)
		}
	}
	l.log.Infof("found %d of %d datasets in %s", len(names), len(all), l.path)
	return names, nil
}

// Datasets returns the matched dataset names, scanning on first use.
func (l *HDF5Datasets) Datasets() ([]string, error) {
	names, err := l.names.Get(l.scan)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), names...), nil
}

func (l *HDF5Datasets) Count() (int, error) {
	names, err := l.names.Get(l.scan)
	return len(names), err
}

func (l *HDF5Datasets) dataset(n int) (string, error) {
	names, err := l.names.Get(l.scan)
	if err != nil {
		return "", err
	}
	if err := l.checkIndex(n, len(names)); err != nil {
		return "", err
	}
	return names[n], nil
}

func (l *HDF5Datasets) read(name string) (*tensor.RawTensor, error) {
	var template *tensor.RawTensor
	if len(l.dims) > 0 {
		var err error
		if template, err = tensor.NewRaw(l.dims, l.dtype); err != nil {
			return nil, errors.WithCode(err, errors.ErrInvalidOption)
		}
	}
	raw, err := source.HDF5{Dataset: name}.Read(l.path, template)
	if err != nil {
		return nil, err
	}
	l.metrics().SourceRead(source.HDF5ID, raw.ByteSize())
	return raw, nil
}

func (l *HDF5Datasets) LoadData(n int) (*tensor.RawTensor, error) {
	name, err := l.dataset(n)
	if err != nil {
		return nil, err
	}
	return l.read(name)
}

func (l *HDF5Datasets) LoadMetadata(n int) (*options.Options, error) {
	name, err := l.dataset(n)
	if err != nil {
		return nil, err
	}

	md := options.New()
	if len(l.dims) > 0 {
		l.describe(md, l.dims, l.dtype)
	} else {
		raw, err := l.read(name)
		if err != nil {
			return nil, err
		}
		l.describe(md, raw.Shape(), raw.DType())
	}
	md.SetNamed(l.name, KeyPath, l.path)
	md.SetNamed(l.name, KeyHDF5Dataset, name)
	if err := setGroups(md, l.name, KeyHDF5GroupPrefix, l.re, name, l.groups); err != nil {
		return nil, err
	}
	return md, nil
}

func (l *HDF5Datasets) SetOptions(opts *options.Options) error {
	path := l.path
	if _, err := opts.GetString(l.name, KeyPath, &path); err != nil {
		return err
	}
	if path != l.path {
		l.path = path
		l.names.Reset()
	}

	pattern := l.pattern
	if _, err := opts.GetString(l.name, "hdf5_datasets:regex", &pattern); err != nil {
		return err
	}
	if pattern != l.pattern {
		if err := l.compile(pattern); err != nil {
			return err
		}
		l.names.Reset()
	}

	if _, err := opts.GetStrings(l.name, "hdf5_datasets:groups", &l.groups); err != nil {
		return err
	}
	if _, err := opts.GetShape(l.name, "hdf5_datasets:dims", &l.dims); err != nil {
		return err
	}
	if _, err := opts.GetDataType(l.name, "hdf5_datasets:dtype", &l.dtype); err != nil {
		return err
	}

	if opts.Has(l.name, "hdf5_datasets:rescan") {
		l.names.Reset()
	}
	return nil
}

func (l *HDF5Datasets) Options() *options.Options {
	o := options.New()
	o.SetNamed(l.name, KeyPath, l.path)
	o.SetNamed(l.name, "hdf5_datasets:regex", l.pattern)
	o.SetNamed(l.name, "hdf5_datasets:groups", append([]string(nil), l.groups...))
	if l.dims != nil {
		o.SetNamed(l.name, "hdf5_datasets:dims", l.dims.Ints())
	}
	o.SetNamed(l.name, "hdf5_datasets:dtype", l.dtype)
	return o
}

func (l *HDF5Datasets) Documentation() *options.Options {
	o := options.New()
	o.SetNamed(l.name, KeyPath, "path to load data from")
	o.SetNamed(l.name, "hdf5_datasets:regex", "if this regex matches, load this dataset")
	o.SetNamed(l.name, "hdf5_datasets:groups", "names for the capture groups of the regex, exposed as hdf5_datasets:group:<name>")
	o.SetNamed(l.name, "hdf5_datasets:dims", "dimensions every dataset is reshaped to")
	o.SetNamed(l.name, "hdf5_datasets:dtype", "element type datasets are converted to when dims is set")
	o.SetNamed(l.name, "hdf5_datasets:rescan", "force a rescan if set")
	return o
}

func (l *HDF5Datasets) Clone() Loader {
	c := *l
	c.groups = append([]string(nil), l.groups...)
	return &c
}

func (l *HDF5Datasets) SetName(name string) {
	l.name = name
}
