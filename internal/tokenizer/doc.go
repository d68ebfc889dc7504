// Package tokenizer turns raw text into the integer word ids consumed by the
// embedding layer.
//
// Three strategies are available:
//   - tiktoken: BPE encodings used by GPT-3/GPT-4 (cl100k_base, p50k_base, r50k_base)
//   - whitespace: lower-cased whitespace-separated words, hashed into a fixed vocabulary
//   - ids: text that is already a whitespace-separated list of integer ids
//
// Example usage:
//
//	tok, err := tokenizer.New("whitespace", 10000)
//	if err != nil {
//	    return err
//	}
//	ids, err := tok.Encode("the quick brown fox")
package tokenizer
