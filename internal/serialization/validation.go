package serialization

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Decoding limits.
const (
	MaxHeaderSize    = 100 * 1024 * 1024
	MaxTensorCount   = 100_000
	MaxTensorNameLen = 4096
)

// ValidateTensorOffsets checks that every tensor lies inside a data section of
// dataSize bytes and that no two tensors share bytes.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return invalid(ErrTooManyTensors, fmt.Sprintf("%d > %d", len(tensors), MaxTensorCount))
	}
	byOffset := slices.Clone(tensors)
	slices.SortFunc(byOffset, func(a, b TensorMeta) int { return cmp.Compare(a.Offset, b.Offset) })

	var prev *TensorMeta
	for i := range byOffset {
		t := &byOffset[i]
		end := t.Offset + t.Size
		if t.Offset < 0 || t.Size < 0 || end > dataSize {
			return invalid(ErrOutOfBounds, fmt.Sprintf("bytes [%d, %d) of %d", t.Offset, end, dataSize), t.Name)
		}
		if prev != nil && prev.Offset+prev.Size > t.Offset {
			return invalid(ErrOffsetOverlap, fmt.Sprintf("%d > %d", prev.Offset+prev.Size, t.Offset), prev.Name, t.Name)
		}
		prev = t
	}
	return nil
}

// ValidateTensorName rejects empty, oversized and path-like names.
func ValidateTensorName(name string) error {
	switch {
	case name == "":
		return invalid(ErrInvalidTensorName, "empty")
	case len(name) > MaxTensorNameLen:
		return invalid(ErrInvalidTensorName, fmt.Sprintf("%d bytes > %d", len(name), MaxTensorNameLen), name[:32]+"...")
	case strings.Contains(name, ".."), strings.ContainsAny(name, "/\\\x00"):
		return invalid(ErrInvalidTensorName, "path element or NUL byte", name)
	}
	return nil
}

// ValidateHeader checks the tensor table of h against a data section of
// dataSize bytes: names, dtypes, sizes implied by shapes, then offsets.
func ValidateHeader(h *Header, dataSize int64) error {
	if len(h.Tensors) > MaxTensorCount {
		return invalid(ErrTooManyTensors, fmt.Sprintf("%d > %d", len(h.Tensors), MaxTensorCount))
	}
	seen := make(map[string]struct{}, len(h.Tensors))
	for _, t := range h.Tensors {
		if err := ValidateTensorName(t.Name); err != nil {
			return err
		}
		if _, dup := seen[t.Name]; dup {
			return invalid(ErrInvalidTensorName, "duplicate", t.Name)
		}
		seen[t.Name] = struct{}{}

		_, elemSize, ok := loadedDType(t.DType)
		if !ok {
			return invalid(ErrOutOfBounds, fmt.Sprintf("dtype %q", t.DType), t.Name)
		}
		n := int64(elemSize)
		for _, d := range t.Shape {
			if d <= 0 {
				return invalid(ErrOutOfBounds, fmt.Sprintf("shape %v", t.Shape), t.Name)
			}
			n *= int64(d)
		}
		if n != t.Size {
			return invalid(ErrOutOfBounds, fmt.Sprintf("%s%v is %d bytes, table says %d", t.DType, t.Shape, n, t.Size), t.Name)
		}
	}
	return ValidateTensorOffsets(h.Tensors, dataSize)
}
