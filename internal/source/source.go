// Package source reads whole arrays out of files. Loader stages use it as
// their only byte-level I/O collaborator.
package source

import (
	"io"
	"os"

	"github.com/born-ml/dataset/internal/errors"
	"github.com/born-ml/dataset/internal/tensor"
)

// Reader ids accepted by io_loader:plugin.
const (
	PosixID       = "posix"
	SafeTensorsID = "safetensors"
	GGUFID        = "gguf"
	HDF5ID        = "hdf5"
)

// Reader reads one array from path.
//
// When template is non-nil it fixes the shape and element type of the result.
// Readers fill the template's buffer and return it. Without a template the
// reader decides the shape itself. Every failure carries
// errors.ErrSourceReadFailed and keeps the underlying message.
type Reader interface {
	Read(path string, template *tensor.RawTensor) (*tensor.RawTensor, error)
}

// Posix reads raw, headerless array dumps.
//
// Without a template the file is returned as a one dimensional Byte array.
type Posix struct{}

// Read implements Reader.
func (Posix) Read(path string, template *tensor.RawTensor) (*tensor.RawTensor, error) {
	//nolint:gosec // G304: reading user supplied dataset paths is the point
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithCode(err, errors.ErrSourceReadFailed)
	}
	defer func() {
		_ = f.Close() // Best effort close, read only
	}()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.WithCode(err, errors.ErrSourceReadFailed)
	}
	size := int(info.Size())

	if template == nil {
		if size == 0 {
			return nil, errors.Newf(errors.ErrSourceReadFailed, "%s: empty file", path)
		}
		buf := make([]byte, size)
		if _, err := io.ReadFull(f, buf); err != nil {
			return nil, errors.WithCode(err, errors.ErrSourceReadFailed)
		}
		raw, err := tensor.FromBytes(buf, tensor.Shape{size}, tensor.Byte)
		if err != nil {
			return nil, errors.WithCode(err, errors.ErrSourceReadFailed)
		}
		return raw, nil
	}

	if size != template.ByteSize() {
		return nil, errors.Newf(errors.ErrSourceReadFailed,
			"%s: file has %d bytes, expected %d for %s", path, size, template.ByteSize(), template)
	}
	if _, err := io.ReadFull(f, template.Data()); err != nil {
		return nil, errors.WithCode(err, errors.ErrSourceReadFailed)
	}
	return template, nil
}
