package source

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/dataset/internal/errors"
	"github.com/born-ml/dataset/internal/tensor"
	"github.com/scigolib/hdf5"
)

// HDF5DatasetNames lists the datasets of the HDF5 file at path in walk
// order. Names are relative to the root group, e.g. "grid/temperature".
func HDF5DatasetNames(path string) ([]string, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		return nil, errors.WithCode(errors.Wrapf(err, "opening %s", path), errors.ErrSourceReadFailed)
	}
	defer func() {
		_ = f.Close() // Best effort close, read only
	}()

	var names []string
	f.Walk(func(p string, obj hdf5.Object) {
		if _, ok := obj.(*hdf5.Dataset); ok {
			names = append(names, hdf5Name(p))
		}
	})
	return names, nil
}

func hdf5Name(p string) string {
	return strings.TrimPrefix(p, "/")
}

// HDF5 reads one dataset out of an HDF5 file. An empty Dataset selects the
// only dataset of single-dataset files.
//
// Numeric datasets are decoded as float64. Without a template the result is
// a one dimensional Float64 array; a template reshapes it and converts the
// elements to the template's type.
type HDF5 struct {
	Dataset string
}

// Read implements Reader.
func (s HDF5) Read(path string, template *tensor.RawTensor) (*tensor.RawTensor, error) {
	raw, err := s.read(path, template)
	if err != nil {
		return nil, errors.WithCode(err, errors.ErrSourceReadFailed)
	}
	return raw, nil
}

func (s HDF5) read(path string, template *tensor.RawTensor) (*tensor.RawTensor, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() {
		_ = f.Close() // Best effort close, read only
	}()

	want := hdf5Name(s.Dataset)
	var (
		found []*hdf5.Dataset
		names []string
	)
	f.Walk(func(p string, obj hdf5.Object) {
		ds, ok := obj.(*hdf5.Dataset)
		if !ok {
			return
		}
		if want == "" || hdf5Name(p) == want {
			found = append(found, ds)
			names = append(names, hdf5Name(p))
		}
	})
	switch {
	case len(found) == 0 && want != "":
		return nil, fmt.Errorf("%s: dataset %s not found", path, want)
	case len(found) != 1:
		return nil, fmt.Errorf("%s: file holds %d datasets, a dataset name is required", path, len(found))
	}

	values, err := found[0].Read()
	if err != nil {
		return nil, fmt.Errorf("%s: reading dataset %s: %w", path, names[0], err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s: dataset %s is empty", path, names[0])
	}

	dst := template
	if dst == nil {
		if dst, err = tensor.NewRaw(tensor.Shape{len(values)}, tensor.Float64); err != nil {
			return nil, err
		}
	} else if dst.NumElements() != len(values) {
		return nil, fmt.Errorf("%s: dataset %s has %d elements, expected %d for %s",
			path, names[0], len(values), dst.NumElements(), dst)
	}
	if err := fillFloat64(dst, values); err != nil {
		return nil, fmt.Errorf("%s: dataset %s: %w", path, names[0], err)
	}
	return dst, nil
}

// WriteHDF5 writes arrays as float64 datasets of an HDF5 file created at
// path, in alphabetical order by name. Each dataset keeps its array's
// dimensions.
func WriteHDF5(path string, arrays map[string]*tensor.RawTensor) error {
	names := make([]string, 0, len(arrays))
	for name := range arrays {
		names = append(names, name)
	}
	sort.Strings(names)

	fw, err := hdf5.CreateForWrite(path, hdf5.CreateTruncate)
	if err != nil {
		return errors.WithCode(errors.Wrapf(err, "creating %s", path), errors.ErrSinkWriteFailed)
	}
	for _, name := range names {
		raw := arrays[name]
		values, err := toFloat64(raw)
		if err != nil {
			_ = fw.Close()
			return errors.WithCode(errors.Wrapf(err, "dataset %s", name), errors.ErrSinkWriteFailed)
		}
		dims := make([]uint64, raw.Rank())
		for i, d := range raw.Shape() {
			dims[i] = uint64(d)
		}
		ds, err := fw.CreateDataset("/"+hdf5Name(name), hdf5.Float64, dims)
		if err == nil {
			err = ds.Write(values)
		}
		if err != nil {
			_ = fw.Close()
			return errors.WithCode(errors.Wrapf(err, "writing dataset %s", name), errors.ErrSinkWriteFailed)
		}
	}
	if err := fw.Close(); err != nil {
		return errors.WithCode(errors.Wrapf(err, "closing %s", path), errors.ErrSinkWriteFailed)
	}
	return nil
}

// toFloat64 returns the elements of raw widened to float64.
func toFloat64(raw *tensor.RawTensor) ([]float64, error) {
	switch raw.DType() {
	case tensor.Float64:
		return append([]float64(nil), raw.AsFloat64()...), nil
	case tensor.Float32:
		return widen(raw.AsFloat32()), nil
	case tensor.Int8:
		return widen(tensor.As[int8](raw)), nil
	case tensor.Int16:
		return widen(tensor.As[int16](raw)), nil
	case tensor.Int32:
		return widen(raw.AsInt32()), nil
	case tensor.Int64:
		return widen(raw.AsInt64()), nil
	case tensor.Byte, tensor.Uint8:
		return widen(raw.AsUint8()), nil
	case tensor.Uint16:
		return widen(tensor.As[uint16](raw)), nil
	case tensor.Uint32:
		return widen(tensor.As[uint32](raw)), nil
	case tensor.Uint64:
		return widen(tensor.As[uint64](raw)), nil
	}
	return nil, fmt.Errorf("cannot store %s elements as float64", raw.DType())
}

func widen[T number](src []T) []float64 {
	out := make([]float64, len(src))
	for i, v := range src {
		out[i] = float64(v)
	}
	return out
}

// fillFloat64 converts values into the elements of dst.
func fillFloat64(dst *tensor.RawTensor, values []float64) error {
	switch dst.DType() {
	case tensor.Float64:
		copy(dst.AsFloat64(), values)
	case tensor.Float32:
		convert(dst.AsFloat32(), values)
	case tensor.Int8:
		convert(tensor.As[int8](dst), values)
	case tensor.Int16:
		convert(tensor.As[int16](dst), values)
	case tensor.Int32:
		convert(dst.AsInt32(), values)
	case tensor.Int64:
		convert(dst.AsInt64(), values)
	case tensor.Byte, tensor.Uint8:
		convert(dst.AsUint8(), values)
	case tensor.Uint16:
		convert(tensor.As[uint16](dst), values)
	case tensor.Uint32:
		convert(tensor.As[uint32](dst), values)
	case tensor.Uint64:
		convert(tensor.As[uint64](dst), values)
	default:
		return fmt.Errorf("cannot convert float64 elements to %s", dst.DType())
	}
	return nil
}

type number interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32
}

func convert[T number](dst []T, src []float64) {
	for i, v := range src {
		dst[i] = T(v)
	}
}
