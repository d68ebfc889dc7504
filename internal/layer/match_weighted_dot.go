package layer

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/textnet-ml/textnet/internal/setting"
	"github.com/textnet-ml/textnet/internal/tensor"
)

// TypeMatchWeightedDot is the registry name of MatchWeightedDot.
const TypeMatchWeightedDot = "match_weighted_dot"

var matchWeightedDotSchema = setting.Schema{
	setting.Required("d_hidden", setting.Int),
	setting.Required("w_filler", setting.Nested),
	setting.Required("w_updater", setting.Nested),
	setting.Optional("is_var_len", setting.BoolValue(true)),
	setting.Optional("interval", setting.IntValue(1)),
}

// MatchWeightedDotConfig is the typed configuration of MatchWeightedDot.
type MatchWeightedDotConfig struct {
	DHidden  int
	IsVarLen bool
	Interval int
}

// MatchWeightedDot scores every position pair of two sequences with d_hidden
// learned bilinear forms:
//
//	top[b,h,i,j] = Σ_f bottom0[b,0,i,f] * bottom1[b,0,j,f] * weight[h,f]
//
// Only i < len0[b] and j < len1[b] (when is_var_len) that are multiples of
// interval are computed; every other top element is zero.
//
// Bottoms are [batch,1,doc_len,feat], the top is [batch,d_hidden,doc_len,doc_len]
// and the weight is [d_hidden,feat,1,1].
type MatchWeightedDot[B tensor.Backend] struct {
	base[B]
	cfg    MatchWeightedDotConfig
	weight *Parameter[B]
	feat   int
}

// NewMatchWeightedDot creates an unconfigured match layer.
func NewMatchWeightedDot[B tensor.Backend](backend B) *MatchWeightedDot[B] {
	return &MatchWeightedDot[B]{base: newBase(backend, TypeMatchWeightedDot, 2, 1, 1)}
}

// Config returns the resolved configuration.
func (l *MatchWeightedDot[B]) Config() MatchWeightedDotConfig { return l.cfg }

// Setup reads the settings and creates the weight.
func (l *MatchWeightedDot[B]) Setup(settings setting.Map, bottom, top []*Node[B], rng *rand.Rand) error {
	if err := l.checkNodes(bottom, top); err != nil {
		return err
	}
	s, err := l.resolve(matchWeightedDotSchema, settings)
	if err != nil {
		return err
	}
	l.cfg = MatchWeightedDotConfig{
		DHidden:  s.Int("d_hidden"),
		IsVarLen: s.Bool("is_var_len"),
		Interval: s.Int("interval"),
	}
	if l.cfg.DHidden < 1 {
		return errors.Errorf("%s: d_hidden must be >= 1, got %d", l.typ, l.cfg.DHidden)
	}
	if l.cfg.Interval < 1 {
		return errors.Errorf("%s: interval must be >= 1, got %d", l.typ, l.cfg.Interval)
	}

	shape := bottom[0].Shape()
	if err := l.checkBottoms(bottom); err != nil {
		return err
	}
	l.feat = shape[3]
	l.weight, err = newParameter(l.backend, l.typ+".weight", tensor.Shape{l.cfg.DHidden, l.feat, 1, 1},
		s.Sub("w_filler"), s.Sub("w_updater"), rng)
	if err != nil {
		return err
	}
	l.params = []*Parameter[B]{l.weight}
	return nil
}

func (l *MatchWeightedDot[B]) checkBottoms(bottom []*Node[B]) error {
	s0, s1 := bottom[0].Shape(), bottom[1].Shape()
	if s0[1] != 1 {
		return errors.Wrapf(ErrShapeMismatch, "%s: bottom 0 must be [batch,1,len,feat], got %v", l.typ, s0)
	}
	if !s0.Equal(s1) {
		return errors.Wrapf(ErrShapeMismatch, "%s: bottom shapes differ: %v vs %v", l.typ, s0, s1)
	}
	if l.feat != 0 && s0[3] != l.feat {
		return errors.Wrapf(ErrShapeMismatch, "%s: feature size %d, weight expects %d", l.typ, s0[3], l.feat)
	}
	if l.cfg.IsVarLen {
		for _, n := range bottom {
			if !n.HasLength() {
				return noLength(l.typ, n)
			}
			for b := 0; b < s0[0]; b++ {
				if n.LengthAt(b) > s0[2] {
					return errors.Wrapf(ErrShapeMismatch, "%s: %s length[%d] = %d exceeds doc_len %d",
						l.typ, n.Name(), b, n.LengthAt(b), s0[2])
				}
			}
		}
	}
	return nil
}

// Reshape sizes the top as [batch, d_hidden, doc_len, doc_len].
func (l *MatchWeightedDot[B]) Reshape(bottom, top []*Node[B]) error {
	if err := l.checkBottoms(bottom); err != nil {
		return err
	}
	s := bottom[0].Shape()
	if err := top[0].Resize(tensor.Shape{s[0], l.cfg.DHidden, s[2], s[2]}); err != nil {
		return err
	}
	l.trace(top)
	return nil
}

// window returns the index set visited by both Forward and Backprop.
func (l *MatchWeightedDot[B]) window(bottom []*Node[B]) tensor.MatchWindow {
	s := bottom[0].Shape()
	batch, docLen := s[0], s[2]
	win := tensor.MatchWindow{
		Interval: l.cfg.Interval,
		Len0:     make([]int, batch),
		Len1:     make([]int, batch),
	}
	for b := 0; b < batch; b++ {
		if l.cfg.IsVarLen {
			win.Len0[b] = bottom[0].LengthAt(b)
			win.Len1[b] = bottom[1].LengthAt(b)
		} else {
			win.Len0[b], win.Len1[b] = docLen, docLen
		}
	}
	return win
}

// Forward zero-fills the top and computes the scores inside the window.
func (l *MatchWeightedDot[B]) Forward(bottom, top []*Node[B]) {
	l.backend.MatchWeightedDotForward(
		bottom[0].Data().Raw(), bottom[1].Data().Raw(), l.weight.Value().Raw(),
		l.window(bottom), top[0].Data().Raw())
}

// Backprop accumulates into both bottoms (flag permitting) and always into
// the weight gradient, over the same window as Forward.
func (l *MatchWeightedDot[B]) Backprop(bottom, top []*Node[B]) {
	var da, db *tensor.RawTensor
	if l.propagates(0) {
		da = bottom[0].Diff().Raw()
	}
	if l.propagates(1) {
		db = bottom[1].Diff().Raw()
	}
	l.backend.MatchWeightedDotBackward(
		bottom[0].Data().Raw(), bottom[1].Data().Raw(), l.weight.Value().Raw(), top[0].Diff().Raw(),
		l.window(bottom), da, db, l.weight.Grad().Raw())
}
