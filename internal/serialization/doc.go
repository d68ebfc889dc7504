// Package serialization stores parameter snapshots in the .txnt checkpoint
// format.
//
//	Format Structure:
//	  [4 bytes: Magic "TXNT"]
//	  [4 bytes: Version (uint32 LE)]
//	  [4 bytes: Flags (uint32 LE)]
//	  [8 bytes: Header Size (uint64 LE)]
//	  [Header: JSON metadata, including the SHA-256 of the data section]
//	  [Zero padding to a 64-byte boundary]
//	  [Tensor data: raw little-endian bytes]
//
// The format supports:
//   - float32 and int32 tensors of arbitrary shape
//   - Optional float16 storage of float32 tensors (FlagFloat16)
//   - String metadata (a net stores its configuration there)
//
// Example usage:
//
//	// Save
//	w, err := serialization.NewWriter("model.txnt", serialization.WriteOptions{})
//	err = w.WriteStateDict(params, map[string]string{"net_name": "match"})
//	w.Close()
//
//	// Load
//	r, err := serialization.NewReader("model.txnt")
//	params, err := r.ReadStateDict()
//	r.Close()
package serialization
