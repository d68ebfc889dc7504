package layer

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/textnet-ml/textnet/internal/tensor"
)

// Node is the rank-4 tensor pair flowing between layers: data, a gradient
// (diff) of identical shape and an optional per-batch-row length vector.
//
// Dimensions are conventionally [batch, channel, row, col].
type Node[B tensor.Backend] struct {
	name    string
	backend B
	data    *tensor.Tensor[float32, B]
	diff    *tensor.Tensor[float32, B]
	length  *tensor.Tensor[int32, B]
}

// NewNode creates an empty node. Its tensors are allocated by the first Resize.
func NewNode[B tensor.Backend](name string, backend B) *Node[B] {
	return &Node[B]{name: name, backend: backend}
}

// Name returns the node name.
func (n *Node[B]) Name() string { return n.name }

// Data returns the data tensor, nil before the first Resize.
func (n *Node[B]) Data() *tensor.Tensor[float32, B] { return n.data }

// Diff returns the gradient tensor, nil before the first Resize.
func (n *Node[B]) Diff() *tensor.Tensor[float32, B] { return n.diff }

// Shape returns the node shape, nil before the first Resize.
func (n *Node[B]) Shape() tensor.Shape {
	if n.data == nil {
		return nil
	}
	return n.data.Shape()
}

// Resize sets the node shape. Data and diff are reallocated (and so zeroed)
// only when the shape changes. A length vector whose batch size no longer
// matches, or holding a value past the new row extent, is dropped.
func (n *Node[B]) Resize(shape tensor.Shape) error {
	if len(shape) != 4 {
		return errors.Wrapf(ErrShapeMismatch, "node %q: shape %v is not rank 4", n.name, shape)
	}
	if err := shape.Validate(); err != nil {
		return errors.Wrapf(ErrShapeMismatch, "node %q: %v", n.name, err)
	}
	if n.data != nil && n.data.Shape().Equal(shape) {
		return nil
	}
	n.data = tensor.Zeros[float32](shape.Clone(), n.backend)
	n.diff = tensor.Zeros[float32](shape.Clone(), n.backend)
	if n.length != nil && !lengthFits(n.length.Data(), shape) {
		n.length = nil
	}
	return nil
}

func lengthFits(lengths []int32, shape tensor.Shape) bool {
	if len(lengths) != shape[0] {
		return false
	}
	for _, l := range lengths {
		if int(l) > shape[2] {
			return false
		}
	}
	return true
}

// HasLength reports whether the node carries a length vector.
func (n *Node[B]) HasLength() bool { return n.length != nil }

// Length returns the [batch] length vector, nil when absent.
func (n *Node[B]) Length() *tensor.Tensor[int32, B] { return n.length }

// SetLength sets the per-row valid extent of the node. Each value must lie in
// [0, row extent].
func (n *Node[B]) SetLength(lengths []int32) error {
	if n.data == nil {
		return errors.Errorf("node %q: SetLength before Resize", n.name)
	}
	shape := n.data.Shape()
	if len(lengths) != shape[0] {
		return errors.Wrapf(ErrShapeMismatch, "node %q: %d lengths for batch %d", n.name, len(lengths), shape[0])
	}
	for b, l := range lengths {
		if l < 0 || int(l) > shape[2] {
			return errors.Wrapf(ErrShapeMismatch, "node %q: length[%d] = %d outside [0, %d]", n.name, b, l, shape[2])
		}
	}
	if n.length == nil {
		n.length = tensor.Zeros[int32](tensor.Shape{shape[0]}, n.backend)
	}
	copy(n.length.Data(), lengths)
	return nil
}

// CopyLength copies the length vector of src, or clears n's when src has none.
func (n *Node[B]) CopyLength(src *Node[B]) error {
	if src.length == nil {
		n.length = nil
		return nil
	}
	return n.SetLength(src.length.Data())
}

// LengthAt returns the valid row extent of batch row b: the length value when
// present, otherwise the full row extent.
func (n *Node[B]) LengthAt(b int) int {
	if n.length == nil {
		return n.data.Dim(2)
	}
	return int(n.length.Data()[b])
}

// ZeroDiff clears the gradient.
func (n *Node[B]) ZeroDiff() {
	if n.diff != nil {
		n.backend.Fill(n.diff.Raw(), 0)
	}
}

// PrintShape logs the node shape, prefixed by label.
func (n *Node[B]) PrintShape(label string) {
	if n.length != nil {
		klog.Infof("%s %s: %v, length %v", label, n.name, n.Shape(), n.length.Data())
		return
	}
	klog.Infof("%s %s: %v", label, n.name, n.Shape())
}
