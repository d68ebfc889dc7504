// Package tensor provides the host tensor types and the backend capability
// interface shared by every textnet layer.
package tensor

// DType constrains the element types a Tensor may hold: float32 for node
// values and gradients, int32 for sequence lengths.
type DType interface {
	~float32 | ~int32
}

// DataType is the runtime tag of a tensor's element type.
type DataType int

// Element types.
const (
	Float32 DataType = iota
	Int32
)

var dataTypeNames = [...]string{Float32: "float32", Int32: "int32"}

// Size returns the element size in bytes. Both supported types are 4 bytes.
func (dt DataType) Size() int {
	if !dt.valid() {
		panic("tensor: unknown data type " + dt.String())
	}
	return 4
}

// String returns "float32" or "int32".
func (dt DataType) String() string {
	if !dt.valid() {
		return "unknown"
	}
	return dataTypeNames[dt]
}

func (dt DataType) valid() bool { return dt >= 0 && int(dt) < len(dataTypeNames) }

// dataTypeOf returns the tag of T.
func dataTypeOf[T DType]() DataType {
	var zero T
	if _, ok := any(zero).(int32); ok {
		return Int32
	}
	if _, ok := any(zero).(float32); ok {
		return Float32
	}
	panic("tensor: unsupported element type")
}
