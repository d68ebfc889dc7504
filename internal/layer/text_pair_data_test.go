package layer_test

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textnet-ml/textnet/internal/backend/cpu"
	"github.com/textnet-ml/textnet/internal/layer"
	"github.com/textnet-ml/textnet/internal/setting"
)

func writeData(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pairs.tsv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func dataSettings(path string, batch, maxLen int) setting.Map {
	return setting.Map{
		"data_file":   setting.StringValue(path),
		"batch_size":  setting.IntValue(batch),
		"max_doc_len": setting.IntValue(maxLen),
		"tokenizer":   setting.StringValue("ids"),
		"vocab_size":  setting.IntValue(100),
	}
}

func TestTextPairData_Batches(t *testing.T) {
	backend := cpu.New()
	path := writeData(t, "1\t5 6 7\t8\n\n0\t9\t10 11 12 13\n0.5\t\t1 2\n")
	top := nodes(layer.NewNode("t0", backend), layer.NewNode("t1", backend), layer.NewNode("y", backend))
	l := layer.NewTextPairData(backend)
	setup(t, l, dataSettings(path, 2, 3), nil, top)

	require.Len(t, l.Examples(), 3)
	assert.Equal(t, []int32{10, 11, 12}, l.Examples()[1].Text1)
	assert.Equal(t, []int32{0, 0}, top[0].Length().Data())

	l.Forward(nil, top)
	assert.Equal(t, []float32{5, 6, 7, 9, 0, 0}, top[0].Data().Data())
	assert.Equal(t, []float32{8, 0, 0, 10, 11, 12}, top[1].Data().Data())
	assert.Equal(t, []int32{3, 1}, top[0].Length().Data())
	assert.Equal(t, []int32{1, 3}, top[1].Length().Data())
	assert.Equal(t, []float32{1, 0}, top[2].Data().Data())

	// The third example, then back to the first.
	l.Forward(nil, top)
	assert.Equal(t, []float32{0, 0, 0, 5, 6, 7}, top[0].Data().Data())
	assert.Equal(t, []int32{0, 3}, top[0].Length().Data())
	assert.Equal(t, []float32{0.5, 1}, top[2].Data().Data())
}

func TestTextPairData_ShuffleIsSeeded(t *testing.T) {
	backend := cpu.New()
	path := writeData(t, "1\t1\t1\n2\t2\t2\n3\t3\t3\n4\t4\t4\n5\t5\t5\n6\t6\t6\n")
	s := dataSettings(path, 6, 1)
	s["shuffle"] = setting.BoolValue(true)

	labels := func(seed int64) []float32 {
		top := nodes(layer.NewNode("t0", backend), layer.NewNode("t1", backend), layer.NewNode("y", backend))
		l := layer.NewTextPairData(backend)
		require.NoError(t, l.Setup(s, nil, top, rand.New(rand.NewSource(seed))))
		require.NoError(t, l.Reshape(nil, top))
		l.Forward(nil, top)
		return snapshot(top[2].Data().Data())
	}
	first := labels(3)
	assert.Equal(t, first, labels(3))
	assert.ElementsMatch(t, []float32{1, 2, 3, 4, 5, 6}, first)
}

func TestTextPairData_Errors(t *testing.T) {
	backend := cpu.New()
	top := nodes(layer.NewNode("t0", backend), layer.NewNode("t1", backend), layer.NewNode("y", backend))
	rng := rand.New(rand.NewSource(1))

	err := layer.NewTextPairData(backend).Setup(dataSettings(writeData(t, "1\tonly two\n"), 1, 4), nil, top, rng)
	assert.ErrorContains(t, err, "3 tab-separated fields")

	err = layer.NewTextPairData(backend).Setup(dataSettings(writeData(t, "x\t1\t2\n"), 1, 4), nil, top, rng)
	assert.ErrorContains(t, err, "label")

	err = layer.NewTextPairData(backend).Setup(dataSettings(writeData(t, "\n"), 1, 4), nil, top, rng)
	assert.ErrorContains(t, err, "no examples")

	err = layer.NewTextPairData(backend).Setup(dataSettings(filepath.Join(t.TempDir(), "none"), 1, 4), nil, top, rng)
	assert.Error(t, err)

	s := dataSettings("unused", 1, 4)
	delete(s, "batch_size")
	err = layer.NewTextPairData(backend).Setup(s, nil, top, rng)
	assert.ErrorIs(t, err, setting.ErrMissingRequired)
}
