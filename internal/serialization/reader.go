package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/x448/float16"

	"github.com/textnet-ml/textnet/internal/tensor"
)

// Reader reads tensors from a .txnt file. The header and the data checksum
// are validated when the reader is opened.
type Reader struct {
	file *os.File
	*decoder
	closed bool
}

// NewReader opens and validates the file at path.
func NewReader(path string) (*Reader, error) {
	//nolint:gosec // G304: checkpoint paths come from the command line.
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open checkpoint")
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrap(err, "stat checkpoint")
	}
	d, err := decode(file, info.Size())
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrapf(err, "checkpoint %s", path)
	}
	return &Reader{file: file, decoder: d}, nil
}

// Close closes the file.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

// ReadFrom decodes a whole .txnt stream.
func ReadFrom(in io.Reader) (map[string]*tensor.RawTensor, Header, error) {
	buf, err := io.ReadAll(in)
	if err != nil {
		return nil, Header{}, errors.Wrap(err, "read checkpoint")
	}
	d, err := decode(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, Header{}, err
	}
	stateDict, err := d.ReadStateDict()
	if err != nil {
		return nil, Header{}, err
	}
	return stateDict, d.header, nil
}

type decoder struct {
	src        io.ReaderAt
	header     Header
	flags      uint32
	dataOffset int64
	dataSize   int64
}

func decode(src io.ReaderAt, size int64) (*decoder, error) {
	var fixed [fixedHeaderSize]byte
	if _, err := src.ReadAt(fixed[:], 0); err != nil {
		return nil, errors.Wrap(ErrInvalidMagic, "file too short")
	}
	if string(fixed[:4]) != MagicBytes {
		return nil, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint32(fixed[4:8]); v != FormatVersion {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "got %d, want %d", v, FormatVersion)
	}
	d := &decoder{src: src, flags: binary.LittleEndian.Uint32(fixed[8:12])}

	headerSize := binary.LittleEndian.Uint64(fixed[12:20])
	if headerSize > MaxHeaderSize || headerSize > uint64(size-fixedHeaderSize) {
		return nil, errors.Wrapf(ErrHeaderTooLarge, "%d bytes", headerSize)
	}
	headerJSON := make([]byte, headerSize)
	if _, err := src.ReadAt(headerJSON, fixedHeaderSize); err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	if err := json.Unmarshal(headerJSON, &d.header); err != nil {
		return nil, errors.Wrap(err, "parse header")
	}

	pos := fixedHeaderSize + int64(headerSize) //nolint:gosec // G115: bounded by MaxHeaderSize.
	d.dataOffset = pos + padding(pos)
	if d.dataOffset > size {
		return nil, errors.Wrap(ErrOutOfBounds, "data section starts past end of file")
	}
	d.dataSize = size - d.dataOffset
	if err := ValidateHeader(&d.header, d.dataSize); err != nil {
		return nil, err
	}

	sum, err := ComputeChecksumReader(io.NewSectionReader(src, d.dataOffset, d.dataSize))
	if err != nil {
		return nil, errors.Wrap(err, "read data section")
	}
	if err := ValidateChecksum(sum, d.header.SHA256); err != nil {
		return nil, err
	}
	return d, nil
}

// Header returns the parsed JSON header.
func (d *decoder) Header() Header { return d.header }

// Metadata returns the header metadata.
func (d *decoder) Metadata() map[string]string { return d.header.Metadata }

// Flags returns the format flags.
func (d *decoder) Flags() uint32 { return d.flags }

// TensorNames returns the stored tensor names in file order.
func (d *decoder) TensorNames() []string {
	names := make([]string, len(d.header.Tensors))
	for i, t := range d.header.Tensors {
		names[i] = t.Name
	}
	return names
}

// TensorInfo returns the table entry of the named tensor.
func (d *decoder) TensorInfo(name string) (*TensorMeta, error) {
	for i := range d.header.Tensors {
		if d.header.Tensors[i].Name == name {
			return &d.header.Tensors[i], nil
		}
	}
	return nil, errors.Wrapf(ErrTensorNotFound, "%q", name)
}

// ReadTensorData returns the stored bytes of the named tensor.
func (d *decoder) ReadTensorData(name string) ([]byte, error) {
	meta, err := d.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, meta.Size)
	if _, err := d.src.ReadAt(buf, d.dataOffset+meta.Offset); err != nil {
		return nil, errors.Wrapf(err, "read tensor %q", name)
	}
	return buf, nil
}

// LoadTensor decodes the named tensor into host memory. float16 data is
// widened to float32.
func (d *decoder) LoadTensor(name string) (*tensor.RawTensor, error) {
	meta, err := d.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	stored, err := d.ReadTensorData(name)
	if err != nil {
		return nil, err
	}
	dt, _, _ := loadedDType(meta.DType)
	raw, err := tensor.NewRaw(tensor.Shape(meta.Shape), dt, tensor.CPU)
	if err != nil {
		return nil, errors.Wrapf(err, "tensor %q", name)
	}
	if meta.DType != DTypeFloat16 {
		copy(raw.Data(), stored)
		return raw, nil
	}
	values := raw.AsFloat32()
	for i := range values {
		values[i] = float16.Frombits(binary.LittleEndian.Uint16(stored[2*i:])).Float32()
	}
	return raw, nil
}

// ReadStateDict loads every tensor.
func (d *decoder) ReadStateDict() (map[string]*tensor.RawTensor, error) {
	stateDict := make(map[string]*tensor.RawTensor, len(d.header.Tensors))
	for _, t := range d.header.Tensors {
		raw, err := d.LoadTensor(t.Name)
		if err != nil {
			return nil, err
		}
		stateDict[t.Name] = raw
	}
	return stateDict, nil
}
