package tensor

import (
	"fmt"
	"slices"
	"strings"
	"unsafe"

	"github.com/pkg/errors"
)

// Device represents the compute device a backend runs its kernels on.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// ParseDevice maps the command-line device token ("cpu" or "gpu") to a Device.
func ParseDevice(s string) (Device, error) {
	switch strings.ToLower(s) {
	case "cpu":
		return CPU, nil
	case "gpu", "webgpu":
		return WebGPU, nil
	default:
		return CPU, errors.Errorf("unknown device %q (want cpu or gpu)", s)
	}
}

// RawTensor is the low-level tensor representation: a flat host buffer with
// shape, strides and runtime dtype. Every backend reads and writes host
// memory; device backends stage buffers in and out around each kernel.
type RawTensor struct {
	data   []byte
	shape  Shape
	stride []int
	dtype  DataType
	device Device
}

// NewRaw allocates a zeroed host buffer for shape.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return &RawTensor{
		data:   make([]byte, shape.NumElements()*dtype.Size()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
	}, nil
}

func (r *RawTensor) Shape() Shape     { return r.shape }
func (r *RawTensor) Strides() []int   { return r.stride }
func (r *RawTensor) DType() DataType  { return r.dtype }
func (r *RawTensor) NumElements() int { return r.shape.NumElements() }
func (r *RawTensor) ByteSize() int    { return len(r.data) }

// Device returns the device of the backend that allocated the tensor. The
// bytes always live in host memory.
func (r *RawTensor) Device() Device { return r.device }

// Data returns the little-endian element bytes. Checkpoint code writes
// them as is.
func (r *RawTensor) Data() []byte { return r.data }

// AsFloat32 views the buffer as float32 values without copying.
func (r *RawTensor) AsFloat32() []float32 {
	r.mustBe(Float32)
	//nolint:gosec // G103: data holds exactly NumElements 4-byte values.
	return unsafe.Slice((*float32)(unsafe.Pointer(unsafe.SliceData(r.data))), r.NumElements())
}

// AsInt32 views the buffer as int32 values without copying.
func (r *RawTensor) AsInt32() []int32 {
	r.mustBe(Int32)
	//nolint:gosec // G103: data holds exactly NumElements 4-byte values.
	return unsafe.Slice((*int32)(unsafe.Pointer(unsafe.SliceData(r.data))), r.NumElements())
}

func (r *RawTensor) mustBe(dt DataType) {
	if r.dtype != dt {
		panic(fmt.Sprintf("tensor: %v buffer is %s, not %s", r.shape, r.dtype, dt))
	}
}

// Clone returns a deep copy.
func (r *RawTensor) Clone() *RawTensor {
	c := *r
	c.data = slices.Clone(r.data)
	c.shape = r.shape.Clone()
	c.stride = slices.Clone(r.stride)
	return &c
}

// CopyFrom overwrites r with src, which must have the same dtype and element
// count. Shapes may differ.
func (r *RawTensor) CopyFrom(src *RawTensor) error {
	switch {
	case r.dtype != src.dtype:
		return errors.Errorf("copy %s into %s tensor", src.dtype, r.dtype)
	case r.NumElements() != src.NumElements():
		return errors.Errorf("copy %v into %v: element counts differ", src.shape, r.shape)
	}
	copy(r.data, src.data)
	return nil
}

// Zero clears the buffer.
func (r *RawTensor) Zero() { clear(r.data) }
