package serialization

import (
	"fmt"

	"github.com/born-ml/dorefa/internal/tensor"
)

// SafeTensors dtype names.
const (
	DTypeF16  = "F16"
	DTypeBF16 = "BF16"
	DTypeF32  = "F32"
	DTypeF64  = "F64"
)

// MetadataKey is the reserved header entry holding string metadata.
const MetadataKey = "__metadata__"

// Metadata keys written by this package.
const (
	MetaFormat       = "format"
	MetaChecksum     = "sha256"
	MetaStorageDType = "storage_dtype"
	MetaCheckpointID = "checkpoint_id"
	MetaCreatedAt    = "created_at"
	MetaName         = "name"
	MetaBitW         = "bit_w"
	MetaBitA         = "bit_a"
	MetaUnits        = "units"
	MetaInFeatures   = "in_features"
	MetaActivation   = "activation"
	MetaBias         = "bias"
	MetaStep         = "step"
	MetaLoss         = "loss"
)

// FormatDorefaDense tags checkpoints holding a single DorefaDense layer.
const FormatDorefaDense = "dorefa_dense/v1"

// TensorHeader is one tensor entry of a SafeTensors header.
type TensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// dtypeSize returns the element size of a SafeTensors dtype.
func dtypeSize(dtype string) (int, error) {
	switch dtype {
	case DTypeF16, DTypeBF16:
		return 2, nil
	case DTypeF32:
		return 4, nil
	case DTypeF64:
		return 8, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedDType, dtype)
	}
}

// storageDType picks the on-disk dtype for raw given the requested storage.
// The request only applies to float32 tensors. Float64 tensors hold
// bookkeeping such as step counters and are always stored as F64.
func storageDType(raw *tensor.RawTensor, requested string) string {
	switch {
	case raw.DType() == tensor.Float64:
		return DTypeF64
	case requested == "":
		return DTypeF32
	default:
		return requested
	}
}
