package serialization

import (
	"time"

	"github.com/textnet-ml/textnet/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "TXNT"
	FormatVersion   = 1
	HeaderAlignment = 64 // Tensor data starts on a 64-byte boundary
	fixedHeaderSize = 4 + 4 + 4 + 8
)

// Flags for the .txnt format.
const (
	FlagFloat16 uint32 = 1 << 0 // bit 0: float32 tensors stored as float16
)

// Stored data type names.
const (
	DTypeFloat32 = "float32"
	DTypeFloat16 = "float16"
	DTypeInt32   = "int32"
)

// Header is the JSON header of a .txnt file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	CreatedAt     time.Time         `json:"created_at"`
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata"`
	SHA256        string            `json:"sha256"` // hex digest of the data section
}

// TensorMeta describes one stored tensor.
type TensorMeta struct {
	Name   string `json:"name"`  // e.g. "match.0"
	DType  string `json:"dtype"` // stored type
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`   // stored bytes
}

// storedDType returns the on-disk type of a tensor of type dt.
func storedDType(dt tensor.DataType, half bool) string {
	switch dt {
	case tensor.Float32:
		if half {
			return DTypeFloat16
		}
		return DTypeFloat32
	case tensor.Int32:
		return DTypeInt32
	default:
		return "unknown"
	}
}

// loadedDType maps a stored type name to the in-memory type and the stored
// element size.
func loadedDType(s string) (dt tensor.DataType, elemSize int, ok bool) {
	switch s {
	case DTypeFloat32:
		return tensor.Float32, 4, true
	case DTypeFloat16:
		return tensor.Float32, 2, true
	case DTypeInt32:
		return tensor.Int32, 4, true
	default:
		return 0, 0, false
	}
}

func padding(pos int64) int64 {
	return (HeaderAlignment - pos%HeaderAlignment) % HeaderAlignment
}
