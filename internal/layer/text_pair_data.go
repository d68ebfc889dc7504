package layer

import (
	"bufio"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/textnet-ml/textnet/internal/setting"
	"github.com/textnet-ml/textnet/internal/tensor"
	"github.com/textnet-ml/textnet/internal/tokenizer"
)

// TypeTextPairData is the registry name of TextPairData.
const TypeTextPairData = "text_pair_data"

var textPairDataSchema = setting.Schema{
	setting.Required("data_file", setting.String),
	setting.Required("batch_size", setting.Int),
	setting.Required("max_doc_len", setting.Int),
	setting.Optional("tokenizer", setting.StringValue("whitespace")),
	setting.Optional("vocab_size", setting.IntValue(10000)),
	setting.Optional("shuffle", setting.BoolValue(false)),
}

// TextPair is one labelled pair of tokenized texts.
type TextPair struct {
	Label float32
	Text0 []int32
	Text1 []int32
}

// TextPairData feeds labelled text pairs from a tab-separated file with one
// "label<TAB>text0<TAB>text1" example per line. It has no bottoms and three
// tops:
//
//	top 0: text0 ids [batch, 1, max_doc_len, 1], with length
//	top 1: text1 ids [batch, 1, max_doc_len, 1], with length
//	top 2: labels    [batch, 1, 1, 1]
//
// Texts are truncated to max_doc_len and padded with id 0. The layer cycles
// through the file; with shuffle the order is redrawn every pass.
type TextPairData[B tensor.Backend] struct {
	base[B]
	batch    int
	maxLen   int
	shuffle  bool
	examples []TextPair
	order    []int
	cursor   int
	rng      *rand.Rand
}

// NewTextPairData creates an unconfigured data layer.
func NewTextPairData[B tensor.Backend](backend B) *TextPairData[B] {
	return &TextPairData[B]{base: newBase(backend, TypeTextPairData, 0, 3, 0)}
}

// Setup reads and tokenizes the data file.
func (l *TextPairData[B]) Setup(settings setting.Map, bottom, top []*Node[B], rng *rand.Rand) error {
	if err := l.checkNodes(bottom, top); err != nil {
		return err
	}
	s, err := l.resolve(textPairDataSchema, settings)
	if err != nil {
		return err
	}
	l.batch, l.maxLen = s.Int("batch_size"), s.Int("max_doc_len")
	if l.batch < 1 || l.maxLen < 1 {
		return errors.Errorf("%s: batch_size and max_doc_len must be >= 1, got %d and %d", l.typ, l.batch, l.maxLen)
	}
	l.shuffle = s.Bool("shuffle")

	tok, err := tokenizer.New(s.Str("tokenizer"), s.Int("vocab_size"))
	if err != nil {
		return errors.Wrapf(err, "%s", l.typ)
	}
	path := s.Str("data_file")
	l.examples, err = ReadTextPairs(path, tok, l.maxLen)
	if err != nil {
		return errors.Wrapf(err, "%s", l.typ)
	}
	if len(l.examples) == 0 {
		return errors.Errorf("%s: no examples in %s", l.typ, path)
	}
	klog.V(1).Infof("%s: %s examples from %s (%s tokenizer)",
		l.typ, humanize.Comma(int64(len(l.examples))), path, tok.Name())

	l.rng = rand.New(rand.NewSource(rng.Int63()))
	l.order = make([]int, len(l.examples))
	for i := range l.order {
		l.order[i] = i
	}
	l.reorder()
	return nil
}

// Examples returns the loaded examples in file order.
func (l *TextPairData[B]) Examples() []TextPair { return l.examples }

func (l *TextPairData[B]) reorder() {
	if l.shuffle {
		l.rng.Shuffle(len(l.order), func(i, j int) { l.order[i], l.order[j] = l.order[j], l.order[i] })
	}
}

// Reshape sizes the tops; lengths start at zero until the first Forward.
func (l *TextPairData[B]) Reshape(_, top []*Node[B]) error {
	ids := tensor.Shape{l.batch, 1, l.maxLen, 1}
	for _, n := range top[:2] {
		if err := n.Resize(ids); err != nil {
			return err
		}
		if !n.HasLength() {
			if err := n.SetLength(make([]int32, l.batch)); err != nil {
				return err
			}
		}
	}
	if err := top[2].Resize(tensor.Shape{l.batch, 1, 1, 1}); err != nil {
		return err
	}
	l.trace(top)
	return nil
}

// Forward emits the next batch.
func (l *TextPairData[B]) Forward(_, top []*Node[B]) {
	ids0, ids1 := top[0].Data().Data(), top[1].Data().Data()
	labels := top[2].Data().Data()
	len0, len1 := make([]int32, l.batch), make([]int32, l.batch)
	clear(ids0)
	clear(ids1)

	for b := 0; b < l.batch; b++ {
		ex := l.examples[l.order[l.cursor]]
		l.cursor++
		if l.cursor == len(l.order) {
			l.cursor = 0
			l.reorder()
		}
		for i, id := range ex.Text0 {
			ids0[b*l.maxLen+i] = float32(id)
		}
		for i, id := range ex.Text1 {
			ids1[b*l.maxLen+i] = float32(id)
		}
		len0[b], len1[b] = int32(len(ex.Text0)), int32(len(ex.Text1)) //nolint:gosec // G115: bounded by max_doc_len.
		labels[b] = ex.Label
	}
	if err := top[0].SetLength(len0); err != nil {
		panic(err)
	}
	if err := top[1].SetLength(len1); err != nil {
		panic(err)
	}
}

// Backprop does nothing: data layers have no bottoms.
func (l *TextPairData[B]) Backprop(_, _ []*Node[B]) {}

// ReadTextPairs parses a "label<TAB>text0<TAB>text1" file. Blank lines are
// skipped and texts longer than maxLen tokens are truncated.
func ReadTextPairs(path string, tok tokenizer.Tokenizer, maxLen int) ([]TextPair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open data file")
	}
	defer func() { _ = f.Close() }()

	var pairs []TextPair
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			return nil, errors.Errorf("%s:%d: want 3 tab-separated fields, got %d", path, lineNo, len(fields))
		}
		label, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 32)
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d: label", path, lineNo)
		}
		pair := TextPair{Label: float32(label)}
		if pair.Text0, err = encode(tok, fields[1], maxLen); err != nil {
			return nil, errors.Wrapf(err, "%s:%d: text 0", path, lineNo)
		}
		if pair.Text1, err = encode(tok, fields[2], maxLen); err != nil {
			return nil, errors.Wrapf(err, "%s:%d: text 1", path, lineNo)
		}
		pairs = append(pairs, pair)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read data file")
	}
	return pairs, nil
}

func encode(tok tokenizer.Tokenizer, text string, maxLen int) ([]int32, error) {
	ids, err := tok.Encode(text)
	if err != nil {
		return nil, err
	}
	if len(ids) > maxLen {
		ids = ids[:maxLen]
	}
	return ids, nil
}
