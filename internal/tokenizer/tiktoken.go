package tokenizer

import (
	"github.com/pkg/errors"
	"github.com/pkoukk/tiktoken-go"
)

// tiktokenVocab holds the id space of the encodings tiktoken-go ships,
// special tokens included.
var tiktokenVocab = map[string]int{
	tiktoken.MODEL_O200K_BASE:  200019,
	tiktoken.MODEL_CL100K_BASE: 100277,
	tiktoken.MODEL_P50K_BASE:   50281,
	tiktoken.MODEL_P50K_EDIT:   50284,
	tiktoken.MODEL_R50K_BASE:   50257,
}

// TikToken is a BPE tokenizer backed by a tiktoken encoding. Its ids span the
// full encoding; wrap it with Fold to feed an embedding of a smaller table.
type TikToken struct {
	bpe   *tiktoken.Tiktoken
	name  string
	vocab int
}

// NewTikToken loads the named encoding (e.g. "cl100k_base"). The BPE ranks
// are fetched and cached by tiktoken-go on first use.
func NewTikToken(encodingName string) (*TikToken, error) {
	vocab, known := tiktokenVocab[encodingName]
	if !known {
		return nil, errors.Errorf("unknown tiktoken encoding %q", encodingName)
	}
	bpe, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, errors.Wrapf(err, "load tiktoken encoding %q", encodingName)
	}
	return &TikToken{bpe: bpe, name: encodingName, vocab: vocab}, nil
}

// Encode splits text into BPE ids. Special token markers in the text are
// treated as ordinary text.
func (t *TikToken) Encode(text string) ([]int32, error) {
	raw := t.bpe.EncodeOrdinary(text)
	ids := make([]int32, len(raw))
	for i, id := range raw {
		if id < 0 || id >= t.vocab {
			return nil, errors.Errorf("tiktoken %s produced id %d outside [0, %d)", t.name, id, t.vocab)
		}
		ids[i] = int32(id) //nolint:gosec // G115: checked against vocab above.
	}
	return ids, nil
}

// Decode maps ids back to text.
func (t *TikToken) Decode(ids []int32) string {
	raw := make([]int, len(ids))
	for i, id := range ids {
		raw[i] = int(id)
	}
	return t.bpe.Decode(raw)
}

// VocabSize returns the size of the encoding's id space.
func (t *TikToken) VocabSize() int { return t.vocab }

// Name returns the encoding name.
func (t *TikToken) Name() string { return t.name }
