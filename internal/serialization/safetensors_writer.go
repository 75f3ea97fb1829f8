package serialization

import (
	"bufio"
	"bytes"
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

// WriteOptions controls how tensors are stored.
type WriteOptions struct {
	// DType is the storage dtype for float32 tensors: DTypeF32 (default),
	// DTypeF16, DTypeBF16 or DTypeF64. Float64 tensors are always F64.
	DType string
	// Metadata is copied into the __metadata__ header entry.
	Metadata map[string]string
}

// WriteSafeTensors writes tensors to path in SafeTensors format.
//
// Format:
//
//	[8 bytes: header size, uint64 LE]
//	[header: JSON, space padded to a multiple of 8]
//	[tensor data, in name order]
func WriteSafeTensors(path string, tensors map[string]*tensor.RawTensor, opts WriteOptions) (err error) {
	//nolint:gosec // G304: writing to a user supplied path is the point
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	bw := bufio.NewWriter(f)
	if err := EncodeSafeTensors(bw, tensors, opts); err != nil {
		return err
	}
	return bw.Flush()
}

// EncodeSafeTensors writes tensors to w in SafeTensors format. A SHA-256
// of the data section and the storage dtype are added to the metadata.
func EncodeSafeTensors(w io.Writer, tensors map[string]*tensor.RawTensor, opts WriteOptions) error {
	switch opts.DType {
	case "", DTypeF32, DTypeF16, DTypeBF16, DTypeF64:
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedDType, opts.DType)
	}

	names := make([]string, 0, len(tensors))
	for name := range tensors {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]any, len(names)+1)
	var data bytes.Buffer
	for _, name := range names {
		raw := tensors[name]
		dtype := storageDType(raw, opts.DType)
		start := int64(data.Len())
		encodeTensor(&data, raw, dtype)

		shape := make([]int64, len(raw.Shape()))
		for i, d := range raw.Shape() {
			shape[i] = int64(d)
		}
		header[name] = TensorHeader{
			DType:       dtype,
			Shape:       shape,
			DataOffsets: [2]int64{start, int64(data.Len())},
		}
	}

	metadata := make(map[string]string, len(opts.Metadata)+2)
	for k, v := range opts.Metadata {
		metadata[k] = v
	}
	metadata[MetaChecksum] = ComputeChecksum(data.Bytes())
	if opts.DType != "" {
		metadata[MetaStorageDType] = opts.DType
	}
	header[MetadataKey] = metadata

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if pad := len(headerJSON) % 8; pad != 0 {
		headerJSON = append(headerJSON, bytes.Repeat([]byte(" "), 8-pad)...)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := w.Write(data.Bytes()); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}

func encodeTensor(buf *bytes.Buffer, raw *tensor.RawTensor, dtype string) {
	switch dtype {
	case DTypeF16:
		var b [2]byte
		for _, v := range raw.Float64s() {
			binary.LittleEndian.PutUint16(b[:], float16.Fromfloat32(float32(v)).Bits())
			buf.Write(b[:])
		}
	case DTypeBF16:
		vals := raw.Float64s()
		f32 := make([]float32, len(vals))
		for i, v := range vals {
			f32[i] = float32(v)
		}
		buf.Write(bfloat16.EncodeFloat32(f32))
	case DTypeF64:
		var b [8]byte
		for _, v := range raw.Float64s() {
			binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
			buf.Write(b[:])
		}
	default:
		if raw.DType() == tensor.Float32 {
			buf.Write(raw.Bytes())
			return
		}
		var b [4]byte
		for _, v := range raw.Float64s() {
			binary.LittleEndian.PutUint32(b[:], math.Float32bits(float32(v)))
			buf.Write(b[:])
		}
	}
}
