package serialization

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Sentinel kinds. Every error returned while decoding a checkpoint wraps
// one of them.
var (
	ErrInvalidMagic       = errors.New("not a textnet checkpoint")
	ErrUnsupportedVersion = errors.New("unsupported checkpoint version")
	ErrHeaderTooLarge     = errors.New("checkpoint header too large")
	ErrChecksumMismatch   = errors.New("checkpoint data checksum mismatch")
	ErrTooManyTensors     = errors.New("too many tensors")
	ErrInvalidTensorName  = errors.New("bad tensor name")
	ErrOutOfBounds        = errors.New("tensor outside the data section")
	ErrOffsetOverlap      = errors.New("tensors overlap")
	ErrTensorNotFound     = errors.New("no such tensor")
)

// ValidationError reports a bad entry of the tensor table.
type ValidationError struct {
	Err     error    // sentinel kind
	Tensors []string // entries involved, if any
	Details string
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Err.Error())
	for i, name := range e.Tensors {
		if i == 0 {
			sb.WriteString(": ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Quote(name))
	}
	if e.Details != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Details)
	}
	return sb.String()
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(kind error, details string, tensors ...string) *ValidationError {
	return &ValidationError{Err: kind, Tensors: tensors, Details: details}
}
