package layer

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/textnet-ml/textnet/internal/setting"
	"github.com/textnet-ml/textnet/internal/tensor"
)

// Layer is the contract shared by every layer type.
//
// The net calls Setup once, then per step Reshape, Forward and (when
// training) Backprop. Setup and Reshape validate and return errors; Forward
// and Backprop run on validated shapes and panic on contract violations.
type Layer[B tensor.Backend] interface {
	// Type returns the registry name of the layer type.
	Type() string

	// BottomNodeNum, TopNodeNum and ParamNodeNum are fixed per layer type.
	BottomNodeNum() int
	TopNodeNum() int
	ParamNodeNum() int

	// Setup validates the node counts and settings, and allocates and
	// initializes parameters using rng.
	Setup(settings setting.Map, bottom, top []*Node[B], rng *rand.Rand) error

	// Reshape resizes the top nodes from the current bottom shapes.
	// It is idempotent.
	Reshape(bottom, top []*Node[B]) error

	// Forward computes top data from bottom data and parameter values.
	Forward(bottom, top []*Node[B])

	// Backprop accumulates into bottom gradients (flag permitting) and
	// parameter gradients from the top gradients.
	Backprop(bottom, top []*Node[B])

	// Params returns the layer's parameters, in a stable order.
	Params() []*Parameter[B]

	// SetPropagateGradient sets one flag per bottom node.
	SetPropagateGradient(flags []bool) error

	// PropagateGradient returns the per-bottom flags.
	PropagateGradient() []bool

	// SetShowInfo enables shape tracing from Reshape.
	SetShowInfo(show bool)
}

// base carries the state and bookkeeping shared by all layer types.
type base[B tensor.Backend] struct {
	backend   B
	typ       string
	nBottom   int
	nTop      int
	nParam    int
	propagate []bool
	params    []*Parameter[B]
	showInfo  bool
}

func newBase[B tensor.Backend](backend B, typ string, nBottom, nTop, nParam int) base[B] {
	propagate := make([]bool, nBottom)
	for i := range propagate {
		propagate[i] = true
	}
	return base[B]{
		backend:   backend,
		typ:       typ,
		nBottom:   nBottom,
		nTop:      nTop,
		nParam:    nParam,
		propagate: propagate,
	}
}

func (l *base[B]) Type() string               { return l.typ }
func (l *base[B]) BottomNodeNum() int         { return l.nBottom }
func (l *base[B]) TopNodeNum() int            { return l.nTop }
func (l *base[B]) ParamNodeNum() int          { return l.nParam }
func (l *base[B]) Params() []*Parameter[B]    { return l.params }
func (l *base[B]) SetShowInfo(show bool)      { l.showInfo = show }
func (l *base[B]) PropagateGradient() []bool  { return append([]bool(nil), l.propagate...) }
func (l *base[B]) propagates(bottom int) bool { return l.propagate[bottom] }

func (l *base[B]) SetPropagateGradient(flags []bool) error {
	if len(flags) != l.nBottom {
		return errors.Wrapf(ErrNodeCount, "%s: %d propagate flags for %d bottom nodes", l.typ, len(flags), l.nBottom)
	}
	copy(l.propagate, flags)
	return nil
}

// checkNodes validates the bottom and top node counts.
func (l *base[B]) checkNodes(bottom, top []*Node[B]) error {
	if len(bottom) != l.nBottom {
		return errors.Wrapf(ErrNodeCount, "%s: got %d bottom nodes, want %d", l.typ, len(bottom), l.nBottom)
	}
	if len(top) != l.nTop {
		return errors.Wrapf(ErrNodeCount, "%s: got %d top nodes, want %d", l.typ, len(top), l.nTop)
	}
	for i, n := range bottom {
		if n.Data() == nil {
			return errors.Errorf("%s: bottom node %d (%q) has no shape", l.typ, i, n.Name())
		}
	}
	return nil
}

// resolve validates settings against the schema of the layer type.
func (l *base[B]) resolve(schema setting.Schema, settings setting.Map) (setting.Map, error) {
	r, err := schema.Resolve(settings)
	if err != nil {
		return nil, errors.Wrapf(err, "%s settings", l.typ)
	}
	return r, nil
}

// trace logs the top node shapes when shape tracing is on.
func (l *base[B]) trace(top []*Node[B]) {
	if !l.showInfo {
		return
	}
	for _, n := range top {
		n.PrintShape(l.typ)
	}
}

func noLength[B tensor.Backend](typ string, n *Node[B]) error {
	return errors.Wrapf(ErrNoLength, "%s: bottom %q with is_var_len", typ, n.Name())
}
