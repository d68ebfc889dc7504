package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/x448/float16"

	"github.com/textnet-ml/textnet/internal/tensor"
)

// WriteOptions configures how tensors are stored.
type WriteOptions struct {
	// Float16 stores float32 tensors as IEEE half precision. Int32 tensors
	// are always stored exactly.
	Float16 bool
}

// Writer writes a state dictionary to a .txnt file.
type Writer struct {
	file   *os.File
	opts   WriteOptions
	closed bool
}

// NewWriter creates (or truncates) the file at path.
func NewWriter(path string, opts WriteOptions) (*Writer, error) {
	//nolint:gosec // G304: checkpoint paths come from the command line.
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "create checkpoint")
	}
	return &Writer{file: file, opts: opts}, nil
}

// WriteStateDict writes every tensor of stateDict, ordered by name, together
// with metadata.
func (w *Writer) WriteStateDict(stateDict map[string]*tensor.RawTensor, metadata map[string]string) error {
	if w.closed {
		return errors.New("writer is closed")
	}
	return WriteTo(w.file, stateDict, metadata, w.opts)
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		return errors.Wrap(err, "sync checkpoint")
	}
	return w.file.Close()
}

// WriteTo encodes stateDict and metadata onto out.
func WriteTo(out io.Writer, stateDict map[string]*tensor.RawTensor, metadata map[string]string, opts WriteOptions) error {
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header := Header{
		FormatVersion: FormatVersion,
		CreatedAt:     time.Now().UTC(),
		Tensors:       make([]TensorMeta, 0, len(names)),
		Metadata:      metadata,
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	var data bytes.Buffer
	for _, name := range names {
		raw := stateDict[name]
		half := opts.Float16 && raw.DType() == tensor.Float32
		offset := int64(data.Len())
		if half {
			var buf [2]byte
			for _, v := range raw.AsFloat32() {
				binary.LittleEndian.PutUint16(buf[:], float16.Fromfloat32(v).Bits())
				data.Write(buf[:])
			}
		} else {
			data.Write(raw.Data())
		}
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  storedDType(raw.DType(), half),
			Shape:  []int(raw.Shape().Clone()),
			Offset: offset,
			Size:   int64(data.Len()) - offset,
		})
	}
	header.SHA256 = ComputeChecksum(data.Bytes())

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "marshal header")
	}

	var flags uint32
	if opts.Float16 {
		flags |= FlagFloat16
	}
	var fixed [fixedHeaderSize]byte
	copy(fixed[:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[12:20], uint64(len(headerJSON)))

	pad := padding(int64(fixedHeaderSize + len(headerJSON)))
	for _, chunk := range [][]byte{fixed[:], headerJSON, make([]byte, pad), data.Bytes()} {
		if _, err := out.Write(chunk); err != nil {
			return errors.Wrap(err, "write checkpoint")
		}
	}
	return nil
}
