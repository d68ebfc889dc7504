package serialization

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textnet-ml/textnet/internal/tensor"
)

func floatRaw(t *testing.T, shape tensor.Shape, values ...float32) *tensor.RawTensor {
	t.Helper()
	r := must.M1(tensor.NewRaw(shape, tensor.Float32, tensor.CPU))
	copy(r.AsFloat32(), values)
	return r
}

func sampleState(t *testing.T) map[string]*tensor.RawTensor {
	t.Helper()
	steps := must.M1(tensor.NewRaw(tensor.Shape{2}, tensor.Int32, tensor.CPU))
	copy(steps.AsInt32(), []int32{7, -3})
	return map[string]*tensor.RawTensor{
		"match.0": floatRaw(t, tensor.Shape{2, 3, 1, 1}, 0.1, -0.25, 3.5, 1e-3, -7, 1234.5),
		"fc.0":    floatRaw(t, tensor.Shape{1, 2, 1, 1}, 1, 2),
		"fc.1":    floatRaw(t, tensor.Shape{1, 1, 1, 1}, -0.5),
		"steps":   steps,
	}
}

func encode(t *testing.T, state map[string]*tensor.RawTensor, opts WriteOptions) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteTo(&buf, state, map[string]string{"net_name": "demo"}, opts))
	return buf.Bytes()
}

func TestRoundTrip_Float32IsExact(t *testing.T) {
	state := sampleState(t)
	data := encode(t, state, WriteOptions{})

	loaded, header, err := ReadFrom(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, header.FormatVersion)
	assert.Equal(t, "demo", header.Metadata["net_name"])
	assert.Equal(t, []string{"fc.0", "fc.1", "match.0", "steps"},
		[]string{header.Tensors[0].Name, header.Tensors[1].Name, header.Tensors[2].Name, header.Tensors[3].Name})

	require.Len(t, loaded, len(state))
	for name, want := range state {
		got := loaded[name]
		require.NotNil(t, got, name)
		assert.Equal(t, want.Shape(), got.Shape(), name)
		assert.Equal(t, want.DType(), got.DType(), name)
		assert.Equal(t, want.Data(), got.Data(), name)
	}
}

func TestRoundTrip_Float16(t *testing.T) {
	state := sampleState(t)
	full := encode(t, state, WriteOptions{})
	half := encode(t, state, WriteOptions{Float16: true})
	assert.Less(t, len(half), len(full))

	loaded, header, err := ReadFrom(bytes.NewReader(half))
	require.NoError(t, err)
	for _, meta := range header.Tensors {
		if meta.Name == "steps" {
			assert.Equal(t, DTypeInt32, meta.DType)
		} else {
			assert.Equal(t, DTypeFloat16, meta.DType)
		}
	}

	assert.Equal(t, []int32{7, -3}, loaded["steps"].AsInt32())
	for name, want := range state {
		if want.DType() != tensor.Float32 {
			continue
		}
		got := loaded[name].AsFloat32()
		for i, v := range want.AsFloat32() {
			rel := math.Abs(float64(got[i]-v)) / math.Max(1e-3, math.Abs(float64(v)))
			assert.LessOrEqualf(t, rel, 1e-3, "%s[%d]: %v vs %v", name, i, got[i], v)
		}
	}
}

func TestAlignment(t *testing.T) {
	data := encode(t, sampleState(t), WriteOptions{})
	headerSize := int64(binary.LittleEndian.Uint64(data[12:20]))
	pos := fixedHeaderSize + headerSize
	dataOffset := pos + padding(pos)
	assert.Zero(t, dataOffset%HeaderAlignment)
	assert.Equal(t, make([]byte, dataOffset-pos), data[pos:dataOffset])
}

func TestCorruption(t *testing.T) {
	good := encode(t, sampleState(t), WriteOptions{})
	mutate := func(f func(b []byte)) []byte {
		b := append([]byte(nil), good...)
		f(b)
		return b
	}

	testCases := []struct {
		name string
		data []byte
		want error
	}{
		{"flipped data byte", mutate(func(b []byte) { b[len(b)-1] ^= 0xff }), ErrChecksumMismatch},
		{"bad magic", mutate(func(b []byte) { copy(b, "GGUF") }), ErrInvalidMagic},
		{"future version", mutate(func(b []byte) { binary.LittleEndian.PutUint32(b[4:8], 9) }), ErrUnsupportedVersion},
		{"huge header", mutate(func(b []byte) { binary.LittleEndian.PutUint64(b[12:20], 1<<40) }), ErrHeaderTooLarge},
		{"truncated", good[:len(good)-8], ErrOutOfBounds},
		{"too short", good[:10], ErrInvalidMagic},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ReadFrom(bytes.NewReader(tc.data))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestWriterReader_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.txnt")
	w := must.M1(NewWriter(path, WriteOptions{}))
	require.NoError(t, w.WriteStateDict(sampleState(t), nil))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.Error(t, w.WriteStateDict(sampleState(t), nil))

	r := must.M1(NewReader(path))
	defer func() { _ = r.Close() }()
	assert.Zero(t, r.Flags()&FlagFloat16)
	assert.Empty(t, r.Metadata())
	assert.Equal(t, []string{"fc.0", "fc.1", "match.0", "steps"}, r.TensorNames())

	info := must.M1(r.TensorInfo("match.0"))
	assert.Equal(t, []int{2, 3, 1, 1}, info.Shape)
	assert.Equal(t, int64(24), info.Size)

	raw := must.M1(r.LoadTensor("fc.0"))
	assert.Equal(t, []float32{1, 2}, raw.AsFloat32())

	_, err := r.LoadTensor("missing")
	assert.ErrorIs(t, err, ErrTensorNotFound)

	require.NoError(t, os.WriteFile(path, []byte("not a checkpoint at all"), 0o600))
	_, err = NewReader(path)
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestWriteTo_RejectsBadNames(t *testing.T) {
	var buf bytes.Buffer
	err := WriteTo(&buf, map[string]*tensor.RawTensor{"../x": floatRaw(t, tensor.Shape{1}, 1)}, nil, WriteOptions{})
	assert.ErrorIs(t, err, ErrInvalidTensorName)
}

func TestValidateTensorOffsets(t *testing.T) {
	testCases := []struct {
		name    string
		tensors []TensorMeta
		want    error
	}{
		{"ok", []TensorMeta{{Name: "a", Offset: 0, Size: 8}, {Name: "b", Offset: 8, Size: 8}}, nil},
		{"overlap", []TensorMeta{{Name: "a", Offset: 0, Size: 12}, {Name: "b", Offset: 8, Size: 8}}, ErrOffsetOverlap},
		{"past end", []TensorMeta{{Name: "a", Offset: 8, Size: 16}}, ErrOutOfBounds},
		{"negative", []TensorMeta{{Name: "a", Offset: -4, Size: 4}}, ErrOutOfBounds},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateTensorOffsets(tc.tensors, 16)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestValidateHeader_SizeMustMatchShape(t *testing.T) {
	h := &Header{Tensors: []TensorMeta{{Name: "w", DType: DTypeFloat32, Shape: []int{2, 2}, Size: 12}}}
	assert.ErrorIs(t, ValidateHeader(h, 64), ErrOutOfBounds)

	h.Tensors[0].Size = 16
	assert.NoError(t, ValidateHeader(h, 64))

	h.Tensors = append(h.Tensors, h.Tensors[0])
	assert.ErrorIs(t, ValidateHeader(h, 64), ErrInvalidTensorName)
}

func TestChecksum(t *testing.T) {
	sum := ComputeChecksum([]byte("test data"))
	assert.Len(t, sum, 64)
	assert.NotEqual(t, sum, ComputeChecksum([]byte("different data")))

	fromReader, err := ComputeChecksumReader(bytes.NewReader([]byte("test data")))
	require.NoError(t, err)
	assert.Equal(t, sum, fromReader)

	assert.NoError(t, ValidateChecksum(sum, sum))
	assert.ErrorIs(t, ValidateChecksum(sum, fromReader[:10]), ErrChecksumMismatch)
}
