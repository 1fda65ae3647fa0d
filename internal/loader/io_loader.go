package loader

import (
	"github.com/born-ml/dataset/internal/errors"
	"github.com/born-ml/dataset/internal/options"
	"github.com/born-ml/dataset/internal/source"
	"github.com/born-ml/dataset/internal/tensor"
)

// KeyPath is the option, and metadata key, holding the file an IOLoader reads.
const KeyPath = "io:path"

// IOLoader serves exactly one sample: the array stored in the file at
// io:path, read by the configured source reader.
//
// With io_loader:use_template the array has the configured dims and dtype and
// the file must hold exactly that many bytes. Without it the reader decides
// the shape.
type IOLoader struct {
	stage
	plugin      string
	tensorName  string
	ggufTensor  string
	hdf5Dataset string
	path        string
	useTemplate bool
	dims        tensor.Shape
	dtype       tensor.DataType
}

var _ Loader = (*IOLoader)(nil)

// NewIOLoader returns an IOLoader reading raw files with the posix reader.
func NewIOLoader(reg *Registry) *IOLoader {
	return &IOLoader{
		stage:  newStage(reg, IOLoaderID),
		plugin: source.PosixID,
		dtype:  tensor.Byte,
	}
}

func (l *IOLoader) reader() source.Reader {
	switch l.plugin {
	case source.SafeTensorsID:
		return source.SafeTensors{Tensor: l.tensorName}
	case source.GGUFID:
		return source.GGUF{Tensor: l.ggufTensor}
	case source.HDF5ID:
		return source.HDF5{Dataset: l.hdf5Dataset}
	default:
		return source.Posix{}
	}
}

func (l *IOLoader) Count() (int, error) {
	return 1, nil
}

func (l *IOLoader) read() (*tensor.RawTensor, error) {
	if l.path == "" {
		return nil, errors.Newf(errors.ErrInvalidOption, "%s is not set", options.Key(l.name, KeyPath))
	}

	var template *tensor.RawTensor
	if l.useTemplate {
		if len(l.dims) == 0 {
			return nil, errors.Newf(errors.ErrInvalidOption, "%s is required with io_loader:use_template", options.Key(l.name, "io_loader:dims"))
		}
		var err error
		if template, err = tensor.NewRaw(l.dims, l.dtype); err != nil {
			return nil, errors.WithCode(err, errors.ErrInvalidOption)
		}
	}

	raw, err := l.reader().Read(l.path, template)
	if err != nil {
		return nil, err
	}
	l.metrics().SourceRead(l.plugin, raw.ByteSize())
	l.log.Debugf("read %s from %s", raw, l.path)
	return raw, nil
}

func (l *IOLoader) LoadData(n int) (*tensor.RawTensor, error) {
	if err := l.checkIndex(n, 1); err != nil {
		return nil, err
	}
	return l.read()
}

func (l *IOLoader) LoadMetadata(n int) (*options.Options, error) {
	if err := l.checkIndex(n, 1); err != nil {
		return nil, err
	}

	md := options.New()
	if l.useTemplate {
		l.describe(md, l.dims, l.dtype)
	} else {
		raw, err := l.read()
		if err != nil {
			return nil, err
		}
		l.describe(md, raw.Shape(), raw.DType())
	}
	md.SetNamed(l.name, KeyPath, l.path)
	return md, nil
}

func (l *IOLoader) SetOptions(opts *options.Options) error {
	var plugin string
	if ok, err := opts.GetString(l.name, "io_loader:plugin", &plugin); err != nil {
		return err
	} else if ok {
		switch plugin {
		case source.PosixID, source.SafeTensorsID, source.GGUFID, source.HDF5ID:
			l.plugin = plugin
		default:
			return errors.Newf(errors.ErrMissingSubLoader, "unable to find io plugin %q", plugin)
		}
	}
	if _, err := opts.GetShape(l.name, "io_loader:dims", &l.dims); err != nil {
		return err
	}
	if _, err := opts.GetDataType(l.name, "io_loader:dtype", &l.dtype); err != nil {
		return err
	}
	if _, err := opts.GetBool(l.name, "io_loader:use_template", &l.useTemplate); err != nil {
		return err
	}
	if _, err := opts.GetString(l.name, KeyPath, &l.path); err != nil {
		return err
	}
	if _, err := opts.GetString(l.name, "safetensors:tensor", &l.tensorName); err != nil {
		return err
	}
	if _, err := opts.GetString(l.name, "gguf:tensor", &l.ggufTensor); err != nil {
		return err
	}
	if _, err := opts.GetString(l.name, "hdf5:dataset", &l.hdf5Dataset); err != nil {
		return err
	}
	return nil
}

func (l *IOLoader) Options() *options.Options {
	o := options.New()
	o.SetNamed(l.name, "io_loader:plugin", l.plugin)
	o.SetNamed(l.name, "io_loader:use_template", l.useTemplate)
	o.SetNamed(l.name, "io_loader:dtype", l.dtype)
	if l.dims != nil {
		o.SetNamed(l.name, "io_loader:dims", l.dims.Ints())
	}
	o.SetNamed(l.name, KeyPath, l.path)
	switch l.plugin {
	case source.SafeTensorsID:
		o.SetNamed(l.name, "safetensors:tensor", l.tensorName)
	case source.GGUFID:
		o.SetNamed(l.name, "gguf:tensor", l.ggufTensor)
	case source.HDF5ID:
		o.SetNamed(l.name, "hdf5:dataset", l.hdf5Dataset)
	}
	return o
}

func (l *IOLoader) Documentation() *options.Options {
	o := options.New()
	o.SetNamed(l.name, "io_loader:plugin", "io plugin to load the data: posix, safetensors, gguf or hdf5")
	o.SetNamed(l.name, "io_loader:use_template", "read into an array of io_loader:dims and io_loader:dtype")
	o.SetNamed(l.name, "io_loader:dims", "dimensions of the array when using a template")
	o.SetNamed(l.name, "io_loader:dtype", "element type of the array when using a template")
	o.SetNamed(l.name, KeyPath, "file to read")
	o.SetNamed(l.name, "safetensors:tensor", "tensor to read from a safetensors file; optional for single tensor files")
	o.SetNamed(l.name, "gguf:tensor", "tensor to read from a gguf file; optional for single tensor files")
	o.SetNamed(l.name, "hdf5:dataset", "dataset to read from an hdf5 file; optional for single dataset files")
	return o
}

func (l *IOLoader) Clone() Loader {
	c := *l
	return &c
}

func (l *IOLoader) SetName(name string) {
	l.name = name
}
