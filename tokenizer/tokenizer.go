// Copyright 2025 The textnet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tokenizer maps raw text to the token ids consumed by embedding
// layers.
//
// Supported tokenizers:
//   - "whitespace": hashes whitespace separated words into the vocabulary
//   - "ids": parses space separated integer ids
//   - "tiktoken:<encoding>", e.g. "tiktoken:cl100k_base", folded into the
//     vocabulary
//
// Example:
//
//	tok, err := tokenizer.New("tiktoken:cl100k_base", 10000)
//	ids, err := tok.Encode("a cat sat")
package tokenizer

import (
	"github.com/textnet-ml/textnet/internal/tokenizer"
)

// Tokenizer converts text to token ids in [0, VocabSize()).
type Tokenizer = tokenizer.Tokenizer

// TikToken wraps a tiktoken BPE encoding.
type TikToken = tokenizer.TikToken

// New returns the tokenizer registered under name with ids folded into
// vocabSize.
func New(name string, vocabSize int) (Tokenizer, error) {
	return tokenizer.New(name, vocabSize)
}

// NewTikToken loads a tiktoken encoding by name.
func NewTikToken(encodingName string) (*TikToken, error) {
	return tokenizer.NewTikToken(encodingName)
}
