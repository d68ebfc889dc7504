package layer

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/textnet-ml/textnet/internal/parallel"
	"github.com/textnet-ml/textnet/internal/setting"
	"github.com/textnet-ml/textnet/internal/tensor"
)

// TypeEmbedding is the registry name of Embedding.
const TypeEmbedding = "embedding"

var embeddingSchema = setting.Schema{
	setting.Required("word_count", setting.Int),
	setting.Required("feat_size", setting.Int),
	setting.Required("w_filler", setting.Nested),
	setting.Required("w_updater", setting.Nested),
}

// Embedding is a lookup table that maps word ids to dense vectors.
//
// Architecture:
//   - Weight: [word_count, feat_size, 1, 1] learnable parameter
//   - Forward: ids [batch, 1, len, 1] -> vectors [batch, 1, len, feat_size]
//   - Backward: top gradients scatter-add into weight rows
//
// Ids arrive as float data (they are produced by data layers like any other
// node) and never receive a gradient. The bottom length is copied to the top.
type Embedding[B tensor.Backend] struct {
	base[B]
	wordCount int
	featSize  int
	weight    *Parameter[B]
}

// NewEmbedding creates an unconfigured embedding layer.
func NewEmbedding[B tensor.Backend](backend B) *Embedding[B] {
	return &Embedding[B]{base: newBase(backend, TypeEmbedding, 1, 1, 1)}
}

// Setup reads the settings and creates the table.
func (l *Embedding[B]) Setup(settings setting.Map, bottom, top []*Node[B], rng *rand.Rand) error {
	if err := l.checkNodes(bottom, top); err != nil {
		return err
	}
	s, err := l.resolve(embeddingSchema, settings)
	if err != nil {
		return err
	}
	l.wordCount, l.featSize = s.Int("word_count"), s.Int("feat_size")
	if l.wordCount < 1 || l.featSize < 1 {
		return errors.Errorf("%s: word_count and feat_size must be >= 1, got %d and %d", l.typ, l.wordCount, l.featSize)
	}
	l.weight, err = newParameter(l.backend, l.typ+".weight", tensor.Shape{l.wordCount, l.featSize, 1, 1},
		s.Sub("w_filler"), s.Sub("w_updater"), rng)
	if err != nil {
		return err
	}
	l.params = []*Parameter[B]{l.weight}
	return nil
}

// Reshape sizes the top as [batch, 1, len, feat_size].
func (l *Embedding[B]) Reshape(bottom, top []*Node[B]) error {
	s := bottom[0].Shape()
	if s[1] != 1 || s[3] != 1 {
		return errors.Wrapf(ErrShapeMismatch, "%s: ids must be [batch,1,len,1], got %v", l.typ, s)
	}
	if err := top[0].Resize(tensor.Shape{s[0], 1, s[2], l.featSize}); err != nil {
		return err
	}
	if err := top[0].CopyLength(bottom[0]); err != nil {
		return err
	}
	l.trace(top)
	return nil
}

func (l *Embedding[B]) id(v float32) int {
	id := int(v)
	if id < 0 || id >= l.wordCount || float32(id) != v {
		panic(fmt.Sprintf("%s: word id %v outside [0, %d)", l.typ, v, l.wordCount))
	}
	return id
}

// Forward copies one table row per position. Ids are checked up front so an
// out-of-range id panics on the calling goroutine.
func (l *Embedding[B]) Forward(bottom, top []*Node[B]) {
	if err := top[0].CopyLength(bottom[0]); err != nil {
		panic(err)
	}
	ids := bottom[0].Data().Data()
	out := top[0].Data().Data()
	table := l.weight.Value().Data()
	f := l.featSize

	for _, v := range ids {
		l.id(v)
	}
	parallel.For(len(ids), func(p int) {
		id := int(ids[p])
		copy(out[p*f:(p+1)*f], table[id*f:(id+1)*f])
	}, parallel.DefaultConfig())
}

// Backprop scatter-adds the top gradient into the rows that were read.
// Rows may repeat, so the accumulation is sequential.
func (l *Embedding[B]) Backprop(bottom, top []*Node[B]) {
	ids := bottom[0].Data().Data()
	g := top[0].Diff().Data()
	dw := l.weight.Grad().Data()
	f := l.featSize

	for p, v := range ids {
		id := l.id(v)
		row, src := dw[id*f:(id+1)*f], g[p*f:(p+1)*f]
		for k := range row {
			row[k] += src[k]
		}
	}
}
