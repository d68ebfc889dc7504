package tokenizer

import (
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Whitespace splits lower-cased text on whitespace and hashes every word into
// a fixed-size vocabulary. Id 0 is reserved for padding and never produced.
type Whitespace struct {
	size int
}

// NewWhitespace creates a hashing word tokenizer with vocabSize ids.
func NewWhitespace(vocabSize int) (*Whitespace, error) {
	if vocabSize < 2 {
		return nil, errors.Errorf("whitespace tokenizer needs vocab_size >= 2, got %d", vocabSize)
	}
	return &Whitespace{size: vocabSize}, nil
}

// Encode converts text to token IDs.
func (w *Whitespace) Encode(text string) ([]int32, error) {
	words := strings.Fields(strings.ToLower(text))
	ids := make([]int32, len(words))
	for i, word := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		//nolint:gosec // G115: result is below vocab size.
		ids[i] = int32(1 + h.Sum32()%uint32(w.size-1))
	}
	return ids, nil
}

// VocabSize returns the total vocabulary size.
func (w *Whitespace) VocabSize() int { return w.size }

// Name returns the tokenizer name.
func (w *Whitespace) Name() string { return "whitespace" }

// IDs reads text that is already tokenized: whitespace-separated integers.
type IDs struct {
	size int
}

// NewIDs creates a pass-through tokenizer accepting ids below vocabSize.
func NewIDs(vocabSize int) (*IDs, error) {
	if vocabSize < 1 {
		return nil, errors.Errorf("ids tokenizer needs vocab_size >= 1, got %d", vocabSize)
	}
	return &IDs{size: vocabSize}, nil
}

// Encode parses the ids in text.
func (t *IDs) Encode(text string) ([]int32, error) {
	fields := strings.Fields(text)
	ids := make([]int32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseInt(f, 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "token %d", i)
		}
		if v < 0 || int(v) >= t.size {
			return nil, errors.Errorf("token %d: id %d outside [0, %d)", i, v, t.size)
		}
		ids[i] = int32(v)
	}
	return ids, nil
}

// VocabSize returns the total vocabulary size.
func (t *IDs) VocabSize() int { return t.size }

// Name returns the tokenizer name.
func (t *IDs) Name() string { return "ids" }
