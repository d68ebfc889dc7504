package layer

import "github.com/pkg/errors"

var (
	// ErrNodeCount is returned when a layer receives the wrong number of
	// bottom or top nodes, or the wrong number of propagate-gradient flags.
	ErrNodeCount = errors.New("wrong node count")

	// ErrShapeMismatch is returned when bottom node shapes are inconsistent
	// with each other or with the layer's parameters.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrUnknownType is returned by Registry.New for unregistered layer types.
	ErrUnknownType = errors.New("unknown layer type")

	// ErrNoLength is returned when a variable-length layer reads a bottom
	// node that carries no length vector.
	ErrNoLength = errors.New("node has no length vector")
)
