package serialization

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/d4l3k/go-bfloat16"
	"github.com/goccy/go-json"
	"github.com/x448/float16"

	"github.com/born-ml/dorefa/internal/tensor"
)

// File is a decoded SafeTensors file.
type File struct {
	Tensors  map[string]*tensor.RawTensor
	Headers  map[string]TensorHeader
	Metadata map[string]string
}

// Names returns the tensor names in sorted order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Tensors))
	for name := range f.Tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReadSafeTensors reads and validates a SafeTensors file.
func ReadSafeTensors(path string) (*File, error) {
	//nolint:gosec // G304: reading a user supplied path is the point
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return DecodeSafeTensors(bufio.NewReader(f))
}

// DecodeSafeTensors reads a SafeTensors stream. F16 and BF16 tensors are widened to
// float32, F64 tensors stay float64. The data checksum is verified when the
// metadata carries one.
func DecodeSafeTensors(r io.Reader) (*File, error) {
	var headerLen uint64
	if err := binary.Read(r, binary.LittleEndian, &headerLen); err != nil {
		return nil, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerLen > MaxHeaderSize {
		return nil, &ValidationError{Err: ErrHeaderTooLarge, Details: fmt.Sprintf("%d bytes", headerLen)}
	}
	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var rawHeader map[string]json.RawMessage
	if err := json.Unmarshal(headerBytes, &rawHeader); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	file := &File{
		Tensors:  make(map[string]*tensor.RawTensor, len(rawHeader)),
		Headers:  make(map[string]TensorHeader, len(rawHeader)),
		Metadata: map[string]string{},
	}
	if msg, ok := rawHeader[MetadataKey]; ok {
		if err := json.Unmarshal(msg, &file.Metadata); err != nil {
			return nil, fmt.Errorf("failed to parse metadata: %w", err)
		}
		delete(rawHeader, MetadataKey)
	}
	for name, msg := range rawHeader {
		var th TensorHeader
		if err := json.Unmarshal(msg, &th); err != nil {
			return nil, fmt.Errorf("parse tensor %s: %w", name, err)
		}
		file.Headers[name] = th
	}

	// Only the span the header claims is read; anything after it is ignored.
	var end int64
	for _, th := range file.Headers {
		end = max(end, th.DataOffsets[1])
	}
	if end > MaxDataSize {
		return nil, &ValidationError{Err: ErrOutOfBounds,
			Details: fmt.Sprintf("data section of %d bytes exceeds max %d", end, int64(MaxDataSize))}
	}
	data, err := io.ReadAll(io.LimitReader(r, end))
	if err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	if err := ValidateTensors(file.Headers, int64(len(data))); err != nil {
		return nil, err
	}
	if err := ValidateChecksum(data, file.Metadata[MetaChecksum]); err != nil {
		return nil, err
	}

	for name, th := range file.Headers {
		raw, err := decodeTensor(data[th.DataOffsets[0]:th.DataOffsets[1]], th)
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", name, err)
		}
		file.Tensors[name] = raw
	}
	return file, nil
}

func decodeTensor(buf []byte, th TensorHeader) (*tensor.RawTensor, error) {
	shape := make(tensor.Shape, len(th.Shape))
	for i, d := range th.Shape {
		shape[i] = int(d)
	}

	switch th.DType {
	case DTypeF16:
		raw, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
		if err != nil {
			return nil, err
		}
		dst := raw.AsFloat32()
		for i := range dst {
			dst[i] = float16.Frombits(binary.LittleEndian.Uint16(buf[i*2:])).Float32()
		}
		return raw, nil
	case DTypeBF16:
		raw, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
		if err != nil {
			return nil, err
		}
		copy(raw.AsFloat32(), bfloat16.DecodeFloat32(buf))
		return raw, nil
	case DTypeF32:
		raw, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
		if err != nil {
			return nil, err
		}
		return raw, raw.SetBytes(buf)
	case DTypeF64:
		raw, err := tensor.NewRaw(shape, tensor.Float64, tensor.CPU)
		if err != nil {
			return nil, err
		}
		dst := raw.AsFloat64()
		for i := range dst {
			dst[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDType, th.DType)
	}
}
