package layer

import (
	"math/rand"

	"github.com/textnet-ml/textnet/internal/parallel"
	"github.com/textnet-ml/textnet/internal/setting"
	"github.com/textnet-ml/textnet/internal/tensor"
)

// TypeMaxPooling is the registry name of MaxPooling.
const TypeMaxPooling = "max_pooling"

var maxPoolingSchema = setting.Schema{
	setting.Optional("is_var_len", setting.BoolValue(false)),
}

// MaxPooling takes the global maximum over (row, col) of every
// (batch, channel) plane: [batch, ch, rows, cols] -> [batch, ch, 1, 1].
//
// With is_var_len the bottom length bounds both rows and cols of each batch
// row; a row of length zero pools to 0 and passes no gradient.
type MaxPooling[B tensor.Backend] struct {
	base[B]
	isVarLen bool
	argmax   []int // flat bottom offset per (b, c), -1 for empty planes
}

// NewMaxPooling creates an unconfigured max pooling layer.
func NewMaxPooling[B tensor.Backend](backend B) *MaxPooling[B] {
	return &MaxPooling[B]{base: newBase(backend, TypeMaxPooling, 1, 1, 0)}
}

// Setup reads is_var_len.
func (l *MaxPooling[B]) Setup(settings setting.Map, bottom, top []*Node[B], _ *rand.Rand) error {
	if err := l.checkNodes(bottom, top); err != nil {
		return err
	}
	s, err := l.resolve(maxPoolingSchema, settings)
	if err != nil {
		return err
	}
	l.isVarLen = s.Bool("is_var_len")
	return nil
}

// Reshape sizes the top as [batch, ch, 1, 1].
func (l *MaxPooling[B]) Reshape(bottom, top []*Node[B]) error {
	if l.isVarLen && !bottom[0].HasLength() {
		return noLength(l.typ, bottom[0])
	}
	s := bottom[0].Shape()
	if err := top[0].Resize(tensor.Shape{s[0], s[1], 1, 1}); err != nil {
		return err
	}
	if cap(l.argmax) < s[0]*s[1] {
		l.argmax = make([]int, s[0]*s[1])
	}
	l.argmax = l.argmax[:s[0]*s[1]]
	l.trace(top)
	return nil
}

func (l *MaxPooling[B]) extent(bottom *Node[B], b int) (rows, cols int) {
	s := bottom.Shape()
	rows, cols = s[2], s[3]
	if l.isVarLen {
		n := bottom.LengthAt(b)
		rows, cols = min(rows, n), min(cols, n)
	}
	return rows, cols
}

// Forward records the position of each plane maximum.
func (l *MaxPooling[B]) Forward(bottom, top []*Node[B]) {
	s := bottom[0].Shape()
	channels, rowsAll, colsAll := s[1], s[2], s[3]
	in := bottom[0].Data().Data()
	out := top[0].Data().Data()

	parallel.ForGrid(s[0], channels, func(b, c int) {
		plane := (b*channels + c) * rowsAll * colsAll
		rows, cols := l.extent(bottom[0], b)
		best := -1
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				p := plane + i*colsAll + j
				if best < 0 || in[p] > in[best] {
					best = p
				}
			}
		}
		l.argmax[b*channels+c] = best
		if best < 0 {
			out[b*channels+c] = 0
		} else {
			out[b*channels+c] = in[best]
		}
	}, parallel.DefaultConfig())
}

// Backprop routes each top gradient to its recorded maximum.
func (l *MaxPooling[B]) Backprop(bottom, top []*Node[B]) {
	if !l.propagates(0) {
		return
	}
	g := top[0].Diff().Data()
	dx := bottom[0].Diff().Data()
	for k, p := range l.argmax {
		if p >= 0 {
			dx[p] += g[k]
		}
	}
}
