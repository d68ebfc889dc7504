package layer

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/textnet-ml/textnet/internal/tensor"
)

// Constructor creates an unconfigured layer.
type Constructor[B tensor.Backend] func(backend B) Layer[B]

// Registry maps layer type names to constructors.
// It is an explicit value: nets are built from the registry they are given.
type Registry[B tensor.Backend] struct {
	ctors map[string]Constructor[B]
}

// NewRegistry returns a registry holding every built-in layer type.
func NewRegistry[B tensor.Backend]() *Registry[B] {
	r := &Registry[B]{ctors: make(map[string]Constructor[B])}
	for _, fn := range tensor.Activations() {
		r.ctors[fn.String()] = activationConstructor[B](fn)
	}
	r.ctors[TypeMatchWeightedDot] = func(b B) Layer[B] { return NewMatchWeightedDot(b) }
	r.ctors[TypeEmbedding] = func(b B) Layer[B] { return NewEmbedding(b) }
	r.ctors[TypeMaxPooling] = func(b B) Layer[B] { return NewMaxPooling(b) }
	r.ctors[TypeFC] = func(b B) Layer[B] { return NewFC(b) }
	r.ctors[TypeEuclidLoss] = func(b B) Layer[B] { return NewEuclidLoss(b) }
	r.ctors[TypeTextPairData] = func(b B) Layer[B] { return NewTextPairData(b) }
	return r
}

// Register adds a layer type. Names must be unique.
func (r *Registry[B]) Register(name string, ctor Constructor[B]) error {
	if _, exists := r.ctors[name]; exists {
		return errors.Errorf("layer type %q already registered", name)
	}
	r.ctors[name] = ctor
	return nil
}

// New creates a layer of the named type.
func (r *Registry[B]) New(name string, backend B) (Layer[B], error) {
	ctor, ok := r.ctors[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownType, "%q", name)
	}
	return ctor(backend), nil
}

// Types returns the registered type names, sorted.
func (r *Registry[B]) Types() []string {
	names := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
