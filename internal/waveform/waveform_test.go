package waveform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/pulsekit/internal/errors"
	"github.com/hpungsan/pulsekit/internal/waveform/npztest"
)

func TestReadNPZ(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.npz")
	npztest.WriteChannels(t, path,
		[]float64{0, 1, 2, 3},
		[]float64{10, 11, 12, 13},
		[]float64{-1, -2, -3, -4},
	)

	ch, err := ReadNPZ(path)
	require.NoError(t, err)
	require.NoError(t, ch.Validate())
	assert.Equal(t, 4, ch.Len())
	assert.Equal(t, []float64{0, 1, 2, 3}, ch.Time)
	assert.Equal(t, []float64{10, 11, 12, 13}, ch.Voltage)
	assert.Equal(t, []float64{-1, -2, -3, -4}, ch.Current)
}

func TestReadNPZ_MissingFile(t *testing.T) {
	_, err := ReadNPZ(filepath.Join(t.TempDir(), "nope.npz"))
	assert.True(t, errors.Is(err, errors.ErrNotFound), "got %v", err)
}

func TestReadNPZ_MissingDataKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.npz")
	npztest.WriteArray(t, path, "signal.npy", []int{3, 2}, []float64{1, 2, 3, 4, 5, 6})

	_, err := ReadNPZ(path)
	assert.True(t, errors.Is(err, errors.ErrFormat), "got %v", err)
}

func TestReadNPZ_WrongShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flat.npz")
	npztest.WriteArray(t, path, "data.npy", []int{6}, []float64{1, 2, 3, 4, 5, 6})

	_, err := ReadNPZ(path)
	assert.True(t, errors.Is(err, errors.ErrFormat), "got %v", err)
}

func TestReadNPZ_NotAnArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.npz")
	require.NoError(t, os.WriteFile(path, []byte("definitely not zip"), 0o644))

	_, err := ReadNPZ(path)
	assert.True(t, errors.Is(err, errors.ErrFormat), "got %v", err)
}

func TestSplitRows_FortranOrder(t *testing.T) {
	// (3, 2) array [[1 2] [3 4] [5 6]] stored column-major.
	rows := splitRows([]float64{1, 3, 5, 2, 4, 6}, 2, true)
	assert.Equal(t, []float64{1, 2}, rows[0])
	assert.Equal(t, []float64{3, 4}, rows[1])
	assert.Equal(t, []float64{5, 6}, rows[2])
}

func TestChannelsValidate(t *testing.T) {
	ch := Channels{Time: []float64{0, 1}, Voltage: []float64{0}, Current: []float64{0, 1}}
	assert.True(t, errors.Is(ch.Validate(), errors.ErrValidation))
}
