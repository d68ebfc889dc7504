package tensor

import (
	"fmt"

	"github.com/pkg/errors"
)

// Tensor is a typed view over a RawTensor bound to the backend whose kernels
// operate on it. T is float32 for node values and gradients and int32 for
// length vectors.
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](Shape{2, 1, 8, 16}, backend)
//	x.Set(1.5, 0, 0, 3, 7)
type Tensor[T DType, B Backend] struct {
	raw     *RawTensor
	backend B
}

// New wraps raw. The raw data type must match T.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	if want := dataTypeOf[T](); raw.DType() != want {
		panic(fmt.Sprintf("tensor: wrapping %s data as %s", raw.DType(), want))
	}
	return &Tensor[T, B]{raw: raw, backend: b}
}

// FromSlice copies data into a new tensor of the given shape.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	if n := shape.NumElements(); n != len(data) {
		return nil, errors.Errorf("shape %v holds %d elements, got %d values", shape, n, len(data))
	}
	raw, err := NewRaw(shape, dataTypeOf[T](), b.Device())
	if err != nil {
		return nil, err
	}
	t := New[T, B](raw, b)
	copy(t.Data(), data)
	return t, nil
}

func (t *Tensor[T, B]) Shape() Shape          { return t.raw.Shape() }
func (t *Tensor[T, B]) Dim(i int) int         { return t.raw.Shape()[i] }
func (t *Tensor[T, B]) DType() DataType       { return t.raw.DType() }
func (t *Tensor[T, B]) NumElements() int      { return t.raw.NumElements() }
func (t *Tensor[T, B]) Raw() *RawTensor       { return t.raw }
func (t *Tensor[T, B]) Backend() B            { return t.backend }
func (t *Tensor[T, B]) Zero()                 { t.raw.Zero() }
func (t *Tensor[T, B]) At(index ...int) T     { return t.Data()[t.Offset(index...)] }
func (t *Tensor[T, B]) Set(v T, index ...int) { t.Data()[t.Offset(index...)] = v }

// Data returns the elements in row-major order. The slice aliases the
// tensor's memory.
func (t *Tensor[T, B]) Data() []T {
	if t.raw.DType() == Int32 {
		return any(t.raw.AsInt32()).([]T)
	}
	return any(t.raw.AsFloat32()).([]T)
}

// Offset returns the flat position of an element. It panics on a wrong
// index count or an index out of range.
func (t *Tensor[T, B]) Offset(index ...int) int {
	shape, strides := t.raw.Shape(), t.raw.Strides()
	if len(index) != len(shape) {
		panic(fmt.Sprintf("tensor: %d indices for shape %v", len(index), shape))
	}
	var off int
	for d, i := range index {
		if i < 0 || i >= shape[d] {
			panic(fmt.Sprintf("tensor: index %d out of range for axis %d of shape %v", i, d, shape))
		}
		off += i * strides[d]
	}
	return off
}

func (t *Tensor[T, B]) String() string {
	return fmt.Sprintf("%s%v@%s", t.raw.DType(), t.raw.Shape(), t.raw.Device())
}

// Clone returns a deep copy on the same backend.
func (t *Tensor[T, B]) Clone() *Tensor[T, B] {
	return &Tensor[T, B]{raw: t.raw.Clone(), backend: t.backend}
}
