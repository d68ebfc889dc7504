package tokenizer

import (
	"strings"

	"github.com/pkg/errors"
)

// Tokenizer is the core interface for text tokenization.
type Tokenizer interface {
	// Encode converts text to token IDs in [0, VocabSize()).
	Encode(text string) ([]int32, error)

	// VocabSize returns the total vocabulary size.
	VocabSize() int

	// Name returns the tokenizer name.
	Name() string
}

// New builds a tokenizer from its name:
//
//	"whitespace"                  hashed words, vocabSize ids
//	"ids"                         pre-tokenized integer ids below vocabSize
//	"tiktoken:<encoding>"         a tiktoken encoding, e.g. "tiktoken:cl100k_base"
//
// For tiktoken, vocabSize > 0 folds the encoding's ids into [1, vocabSize).
func New(name string, vocabSize int) (Tokenizer, error) {
	switch {
	case name == "whitespace":
		return NewWhitespace(vocabSize)
	case name == "ids":
		return NewIDs(vocabSize)
	case strings.HasPrefix(name, "tiktoken:"):
		tok, err := NewTikToken(strings.TrimPrefix(name, "tiktoken:"))
		if err != nil {
			return nil, err
		}
		switch {
		case vocabSize <= 0:
			return tok, nil
		case vocabSize < 2:
			return nil, errors.Errorf("folded tokenizer needs vocab_size >= 2, got %d", vocabSize)
		}
		return Fold(tok, vocabSize), nil
	default:
		return nil, errors.Errorf("unknown tokenizer %q", name)
	}
}

// folded maps the ids of an inner tokenizer into a smaller vocabulary.
type folded struct {
	inner Tokenizer
	size  int
}

// Fold wraps tok so that every id lands in [1, size). Like Whitespace it
// leaves id 0 free for padding. size must be at least 2.
func Fold(tok Tokenizer, size int) Tokenizer {
	return &folded{inner: tok, size: size}
}

func (f *folded) Encode(text string) ([]int32, error) {
	ids, err := f.inner.Encode(text)
	if err != nil {
		return nil, err
	}
	for i, id := range ids {
		ids[i] = 1 + id%int32(f.size-1) //nolint:gosec // G115: size is a vocabulary size < 2^31.
	}
	return ids, nil
}

func (f *folded) VocabSize() int { return f.size }

func (f *folded) Name() string { return f.inner.Name() }
