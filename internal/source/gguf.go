package source

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/born-ml/dataset/internal/errors"
	"github.com/born-ml/dataset/internal/tensor"
)

// GGUF format (v3):
// [4 bytes: "GGUF" magic]
// [4 bytes: version (3)]
// [8 bytes: tensor_count]
// [8 bytes: metadata_kv_count]
// [metadata key-value pairs]
// [tensor infos]
// [alignment padding]
// [tensor data (general.alignment aligned, 32 by default)]

const (
	ggufMagic            = 0x46554747 // "GGUF" in little-endian
	ggufVersion3         = 3
	ggufDefaultAlignment = 32
	ggufAlignmentKey     = "general.alignment"
	ggufMaxString        = 1024 * 1024
)

// ggufValueType is the type tag of a metadata value.
type ggufValueType uint32

const (
	ggufUint8 ggufValueType = iota
	ggufInt8
	ggufUint16
	ggufInt16
	ggufUint32
	ggufInt32
	ggufFloat32
	ggufBool
	ggufString
	ggufArray
	ggufUint64
	ggufInt64
	ggufFloat64
)

// GGMLType is the element type of a stored GGUF tensor.
type GGMLType uint32

// Element types with a direct array representation. F16 is widened to
// float32 on read; block-quantized types are not supported.
const (
	GGMLTypeF32 GGMLType = 0
	GGMLTypeF16 GGMLType = 1
	GGMLTypeI8  GGMLType = 24
	GGMLTypeI16 GGMLType = 25
	GGMLTypeI32 GGMLType = 26
	GGMLTypeI64 GGMLType = 27
	GGMLTypeF64 GGMLType = 28
)

var ggmlDTypes = map[GGMLType]tensor.DataType{
	GGMLTypeF32: tensor.Float32,
	GGMLTypeF16: tensor.Float32,
	GGMLTypeI8:  tensor.Int8,
	GGMLTypeI16: tensor.Int16,
	GGMLTypeI32: tensor.Int32,
	GGMLTypeI64: tensor.Int64,
	GGMLTypeF64: tensor.Float64,
}

// GGUFTensorInfo describes a tensor of a GGUF file. Shape is in row-major
// order, the reverse of the order GGUF stores dimensions in.
type GGUFTensorInfo struct {
	Name   string
	Shape  []int
	Type   GGMLType
	Offset uint64 // Offset in data section
}

// GGUFFile is the parsed header of a GGUF file.
type GGUFFile struct {
	Metadata   map[string]interface{}
	Tensors    map[string]GGUFTensorInfo
	DataOffset int64
}

// TensorNames returns the tensor names in sorted order.
func (g *GGUFFile) TensorNames() []string {
	names := make([]string, 0, len(g.Tensors))
	for name := range g.Tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReadGGUFHeader parses the header of the GGUF file f.
func ReadGGUFHeader(f io.ReadSeeker) (*GGUFFile, error) {
	var head struct {
		Magic         uint32
		Version       uint32
		TensorCount   uint64
		MetadataCount uint64
	}
	if err := binary.Read(f, binary.LittleEndian, &head); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if head.Magic != ggufMagic {
		return nil, fmt.Errorf("invalid GGUF magic: 0x%X (expected 0x%X)", head.Magic, ggufMagic)
	}
	if head.Version != ggufVersion3 {
		return nil, fmt.Errorf("unsupported GGUF version: %d (only v3 supported)", head.Version)
	}

	g := &GGUFFile{
		Metadata: make(map[string]interface{}),
		Tensors:  make(map[string]GGUFTensorInfo),
	}
	for i := uint64(0); i < head.MetadataCount; i++ {
		key, err := readGGUFString(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read metadata[%d] key: %w", i, err)
		}
		var vt ggufValueType
		if err := binary.Read(f, binary.LittleEndian, &vt); err != nil {
			return nil, fmt.Errorf("failed to read metadata %s type: %w", key, err)
		}
		value, err := readGGUFValue(f, vt)
		if err != nil {
			return nil, fmt.Errorf("failed to read metadata %s: %w", key, err)
		}
		g.Metadata[key] = value
	}

	for i := uint64(0); i < head.TensorCount; i++ {
		info, err := readGGUFTensorInfo(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read tensor info[%d]: %w", i, err)
		}
		g.Tensors[info.Name] = info
	}

	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("failed to get current position: %w", err)
	}
	alignment := int64(ggufDefaultAlignment)
	if a, ok := g.Metadata[ggufAlignmentKey].(uint32); ok && a > 0 {
		alignment = int64(a)
	}
	g.DataOffset = alignOffset(pos, alignment)
	return g, nil
}

func readGGUFString(r io.Reader) (string, error) {
	var length uint64
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	if length > ggufMaxString {
		return "", fmt.Errorf("string length too large: %d", length)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readScalar[T any](r io.Reader) (interface{}, error) {
	var v T
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readGGUFValue(r io.Reader, vt ggufValueType) (interface{}, error) {
	switch vt {
	case ggufUint8:
		return readScalar[uint8](r)
	case ggufInt8:
		return readScalar[int8](r)
	case ggufUint16:
		return readScalar[uint16](r)
	case ggufInt16:
		return readScalar[int16](r)
	case ggufUint32:
		return readScalar[uint32](r)
	case ggufInt32:
		return readScalar[int32](r)
	case ggufFloat32:
		return readScalar[float32](r)
	case ggufBool:
		return readScalar[bool](r)
	case ggufUint64:
		return readScalar[uint64](r)
	case ggufInt64:
		return readScalar[int64](r)
	case ggufFloat64:
		return readScalar[float64](r)
	case ggufString:
		return readGGUFString(r)
	case ggufArray:
		return readGGUFArray(r)
	default:
		return nil, fmt.Errorf("unknown value type: %d", vt)
	}
}

func readGGUFArray(r io.Reader) ([]interface{}, error) {
	var head struct {
		Type  ggufValueType
		Count uint64
	}
	if err := binary.Read(r, binary.LittleEndian, &head); err != nil {
		return nil, err
	}
	if head.Count > math.MaxInt32 {
		return nil, fmt.Errorf("array length too large: %d", head.Count)
	}
	out := make([]interface{}, 0, head.Count)
	for i := uint64(0); i < head.Count; i++ {
		v, err := readGGUFValue(r, head.Type)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func readGGUFTensorInfo(r io.Reader) (GGUFTensorInfo, error) {
	var info GGUFTensorInfo

	name, err := readGGUFString(r)
	if err != nil {
		return info, fmt.Errorf("failed to read tensor name: %w", err)
	}
	info.Name = name

	var nDims uint32
	if err := binary.Read(r, binary.LittleEndian, &nDims); err != nil {
		return info, fmt.Errorf("failed to read n_dims: %w", err)
	}
	if nDims == 0 || nDims > 8 {
		return info, fmt.Errorf("tensor %s has invalid rank %d", name, nDims)
	}
	dims := make([]uint64, nDims)
	if err := binary.Read(r, binary.LittleEndian, dims); err != nil {
		return info, fmt.Errorf("failed to read dims of %s: %w", name, err)
	}
	info.Shape = make([]int, nDims)
	for i, d := range dims {
		if d == 0 || d > math.MaxInt32 {
			return info, fmt.Errorf("tensor %s has invalid dimension %d", name, d)
		}
		info.Shape[len(dims)-1-i] = int(d)
	}

	if err := binary.Read(r, binary.LittleEndian, &info.Type); err != nil {
		return info, fmt.Errorf("failed to read type of %s: %w", name, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &info.Offset); err != nil {
		return info, fmt.Errorf("failed to read offset of %s: %w", name, err)
	}
	return info, nil
}

// alignOffset aligns an offset to the specified alignment.
func alignOffset(offset, alignment int64) int64 {
	if offset%alignment == 0 {
		return offset
	}
	return offset + (alignment - offset%alignment)
}

// GGUF reads one named tensor out of a GGUF file. An empty Tensor selects
// the only tensor of single-tensor files.
type GGUF struct {
	Tensor string
}

// Read implements Reader. With a template the stored tensor must have the
// template's element type (float32 for F16) and element count.
func (s GGUF) Read(path string, template *tensor.RawTensor) (*tensor.RawTensor, error) {
	raw, err := s.read(path, template)
	if err != nil {
		return nil, errors.WithCode(err, errors.ErrSourceReadFailed)
	}
	return raw, nil
}

func (s GGUF) read(path string, template *tensor.RawTensor) (*tensor.RawTensor, error) {
	//nolint:gosec // G304: reading user supplied dataset paths is the point
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close() // Best effort close, read only
	}()

	g, err := ReadGGUFHeader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	info, err := s.pick(g)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	dtype, ok := ggmlDTypes[info.Type]
	if !ok {
		return nil, fmt.Errorf("%s: tensor %s has unsupported type %d", path, info.Name, info.Type)
	}

	shape := tensor.Shape(info.Shape)
	dst := template
	if dst == nil {
		if dst, err = tensor.NewRaw(shape, dtype); err != nil {
			return nil, err
		}
	} else if dst.DType() != dtype || dst.NumElements() != shape.NumElements() {
		return nil, fmt.Errorf("%s: tensor %s is %s%v, expected %s", path, info.Name, dtype, info.Shape, dst)
	}

	if info.Offset > math.MaxInt64-uint64(g.DataOffset) {
		return nil, fmt.Errorf("%s: tensor %s has invalid offset %d", path, info.Name, info.Offset)
	}
	if _, err := f.Seek(g.DataOffset+int64(info.Offset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to tensor data: %w", err)
	}

	if info.Type != GGMLTypeF16 {
		if _, err := io.ReadFull(f, dst.Data()); err != nil {
			return nil, fmt.Errorf("failed to read tensor data: %w", err)
		}
		return dst, nil
	}

	half := make([]byte, 2*shape.NumElements())
	if _, err := io.ReadFull(f, half); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	out := dst.AsFloat32()
	for i := range out {
		out[i] = Float16ToFloat32(binary.LittleEndian.Uint16(half[2*i:]))
	}
	return dst, nil
}

func (s GGUF) pick(g *GGUFFile) (GGUFTensorInfo, error) {
	if s.Tensor != "" {
		info, ok := g.Tensors[s.Tensor]
		if !ok {
			return GGUFTensorInfo{}, fmt.Errorf("tensor %s not found", s.Tensor)
		}
		return info, nil
	}
	if len(g.Tensors) != 1 {
		return GGUFTensorInfo{}, fmt.Errorf("file holds %d tensors, a tensor name is required", len(g.Tensors))
	}
	for _, info := range g.Tensors {
		return info, nil
	}
	panic("unreachable")
}

// Float16ToFloat32 converts an IEEE 754 half precision value to float32.
func Float16ToFloat32(h uint16) float32 {
	sign := uint32(h>>15) & 0x1
	exp := int32(h>>10) & 0x1F
	mant := uint32(h) & 0x3FF

	var bits uint32
	switch exp {
	case 0:
		if mant == 0 {
			bits = sign << 31
			break
		}
		// Subnormal: normalize.
		exp = 1
		for mant&0x400 == 0 {
			mant <<= 1
			exp--
		}
		mant &= 0x3FF
		bits = sign<<31 | uint32(exp+127-15)<<23 | mant<<13
	case 0x1F:
		bits = sign<<31 | 0x7F800000 | mant<<13
	default:
		bits = sign<<31 | uint32(exp+127-15)<<23 | mant<<13
	}
	return math.Float32frombits(bits)
}
