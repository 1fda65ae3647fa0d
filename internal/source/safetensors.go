package source

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/born-ml/dataset/internal/errors"
	"github.com/born-ml/dataset/internal/tensor"
)

// SafeTensors format:
// [8 bytes: header_size (uint64 LE)]
// [header_size bytes: JSON header]
// [tensor data: raw bytes]

const (
	metadataKey   = "__metadata__"
	maxHeaderSize = 100 * 1024 * 1024
)

var safeTensorsDTypes = map[string]tensor.DataType{
	"BOOL": tensor.Bool,
	"U8":   tensor.Uint8,
	"I8":   tensor.Int8,
	"I16":  tensor.Int16,
	"U16":  tensor.Uint16,
	"I32":  tensor.Int32,
	"U32":  tensor.Uint32,
	"I64":  tensor.Int64,
	"U64":  tensor.Uint64,
	"F32":  tensor.Float32,
	"F64":  tensor.Float64,
}

// TensorInfo describes one entry of a SafeTensors header.
type TensorInfo struct {
	DType       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"` // [start, end]
}

// Header is the parsed JSON header of a SafeTensors file.
type Header struct {
	Metadata map[string]string
	Tensors  map[string]TensorInfo
}

// UnmarshalJSON splits __metadata__ from the tensor entries.
func (h *Header) UnmarshalJSON(data []byte) error {
	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawMap); err != nil {
		return err
	}

	if metadataRaw, ok := rawMap[metadataKey]; ok {
		if err := json.Unmarshal(metadataRaw, &h.Metadata); err != nil {
			return fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	h.Tensors = make(map[string]TensorInfo, len(rawMap))
	for key, value := range rawMap {
		if key == metadataKey {
			continue
		}
		var info TensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return fmt.Errorf("failed to unmarshal tensor %s: %w", key, err)
		}
		h.Tensors[key] = info
	}
	return nil
}

// ReadHeader reads the header of a SafeTensors stream and returns it together
// with the offset at which tensor data starts.
func ReadHeader(r io.Reader) (*Header, int64, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, 0, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > maxHeaderSize {
		return nil, 0, fmt.Errorf("invalid header size: %d (too large)", headerSize)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, 0, fmt.Errorf("failed to read header: %w", err)
	}

	var header Header
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, 0, fmt.Errorf("failed to parse header JSON: %w", err)
	}
	return &header, int64(8 + headerSize), nil //nolint:gosec // G115: bounded by maxHeaderSize
}

// SafeTensors reads one named tensor out of a SafeTensors file. An empty
// Tensor selects the only tensor of single-tensor files.
type SafeTensors struct {
	Tensor string
}

// Read implements Reader. With a template the stored tensor must have the
// template's element type and element count; its bytes are copied into the
// template, which takes the template's shape.
func (s SafeTensors) Read(path string, template *tensor.RawTensor) (*tensor.RawTensor, error) {
	raw, err := s.read(path, template)
	if err != nil {
		return nil, errors.WithCode(err, errors.ErrSourceReadFailed)
	}
	return raw, nil
}

func (s SafeTensors) read(path string, template *tensor.RawTensor) (*tensor.RawTensor, error) {
	//nolint:gosec // G304: reading user supplied dataset paths is the point
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close() // Best effort close, read only
	}()

	header, dataOffset, err := ReadHeader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	name, info, err := s.pick(header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	dtype, ok := safeTensorsDTypes[info.DType]
	if !ok {
		return nil, fmt.Errorf("%s: tensor %s has unsupported dtype %s", path, name, info.DType)
	}
	shape := tensor.Shape(info.Shape)
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid shape for tensor %s: %w", path, name, err)
	}

	size := info.DataOffsets[1] - info.DataOffsets[0]
	if info.DataOffsets[0] < 0 || size != int64(shape.NumElements()*dtype.Size()) {
		return nil, fmt.Errorf("%s: invalid data offsets for tensor %s: [%d, %d]",
			path, name, info.DataOffsets[0], info.DataOffsets[1])
	}

	dst := template
	if dst == nil {
		if dst, err = tensor.NewRaw(shape, dtype); err != nil {
			return nil, err
		}
	} else if dst.DType() != dtype || dst.NumElements() != shape.NumElements() {
		return nil, fmt.Errorf("%s: tensor %s is %s%v, expected %s", path, name, dtype, info.Shape, dst)
	}

	if _, err := f.Seek(dataOffset+info.DataOffsets[0], io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to tensor data: %w", err)
	}
	if _, err := io.ReadFull(f, dst.Data()); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	return dst, nil
}

func (s SafeTensors) pick(header *Header) (string, TensorInfo, error) {
	if s.Tensor != "" {
		info, ok := header.Tensors[s.Tensor]
		if !ok {
			return "", TensorInfo{}, fmt.Errorf("tensor %s not found", s.Tensor)
		}
		return s.Tensor, info, nil
	}
	if len(header.Tensors) != 1 {
		return "", TensorInfo{}, fmt.Errorf("file holds %d tensors, a tensor name is required", len(header.Tensors))
	}
	for name, info := range header.Tensors {
		return name, info, nil
	}
	panic("unreachable")
}

// WriteSafeTensors writes arrays to w in SafeTensors format, in alphabetical
// order by name.
func WriteSafeTensors(w io.Writer, arrays map[string]*tensor.RawTensor, metadata map[string]string) error {
	names := make([]string, 0, len(arrays))
	for name := range arrays {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]interface{}, len(arrays)+1)
	if len(metadata) > 0 {
		header[metadataKey] = metadata
	}

	var offset int64
	for _, name := range names {
		raw := arrays[name]
		code, err := safeTensorsDType(raw.DType())
		if err != nil {
			return fmt.Errorf("tensor %s: %w", name, err)
		}
		size := int64(raw.ByteSize())
		header[name] = TensorInfo{
			DType:       code,
			Shape:       raw.Shape().Ints(),
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, name := range names {
		if _, err := w.Write(arrays[name].Data()); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", name, err)
		}
	}
	return nil
}

func safeTensorsDType(dt tensor.DataType) (string, error) {
	if dt == tensor.Byte {
		return "U8", nil
	}
	for code, d := range safeTensorsDTypes {
		if d == dt {
			return code, nil
		}
	}
	return "", fmt.Errorf("data type %s has no SafeTensors encoding", dt)
}
