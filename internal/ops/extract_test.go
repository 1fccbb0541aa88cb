package ops

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/pulsekit/internal/db"
	"github.com/hpungsan/pulsekit/internal/errors"
	"github.com/hpungsan/pulsekit/internal/selection"
	"github.com/hpungsan/pulsekit/internal/waveform/npztest"
)

func TestExtract_MultiFile(t *testing.T) {
	cfg := newProject(t)
	database := newLedger(t)

	npztest.WriteChannels(t, filepath.Join(cfg.RawDataDir, "a.npz"),
		[]float64{0, 1, 2, 3, 4, 5},
		[]float64{10, 11, 12, 13, 14, 15},
		[]float64{20, 21, 22, 23, 24, 25},
	)
	npztest.WriteArray(t, filepath.Join(cfg.RawDataDir, "bad.npz"), "data", []int{2, 2}, []float64{1, 2, 3, 4})

	writeFile(t, filepath.Join(cfg.SelectionsDir, selection.FileName), `[
		{"file_name": "a.npz", "batch_size": 0, "overlap_size": 0,
		 "selections": [{"start_index": 0, "end_index": 2}, {"start_index": 3, "end_index": 10}]},
		{"file_name": "missing.npz", "batch_size": 0, "overlap_size": 0,
		 "selections": [{"start_index": 0, "end_index": 1}]},
		{"file_name": "bad.npz", "batch_size": 0, "overlap_size": 0,
		 "selections": [{"start_index": 0, "end_index": 1}]},
		{"file_name": "a.npz", "batch_size": 0, "overlap_size": 0,
		 "selections": [{"start_index": 5, "end_index": 4}]}
	]`)

	out, err := Extract(context.Background(), database, cfg, ExtractInput{})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cfg.ProcessedDir, cfg.OutputFile), out.OutputPath)
	assert.Equal(t, 2, out.Pulses)
	assert.Equal(t, 1, out.Skipped)
	require.Len(t, out.Files, 4)

	a := out.Files[0]
	assert.Equal(t, db.StatusOK, a.Status)
	assert.Equal(t, 1, a.Pulses)
	require.Len(t, a.Skipped, 1)
	assert.Equal(t, 1, a.Skipped[0].Window)
	assert.Equal(t, 11, a.Skipped[0].End)

	assert.Equal(t, db.StatusSkipped, out.Files[1].Status)
	require.NotNil(t, out.Files[1].Error)
	assert.Equal(t, string(errors.ErrNotFound), out.Files[1].Error.Code)

	assert.Equal(t, db.StatusFailed, out.Files[2].Status)
	assert.Equal(t, string(errors.ErrFormat), out.Files[2].Error.Code)

	// Selections order is kept; the swapped window (4, 5) gives two samples.
	pulses, err := ReadPulses(out.OutputPath)
	require.NoError(t, err)
	require.Len(t, pulses, 2)
	assert.Equal(t, []float64{0, 1, 2}, pulses[0].Time())
	assert.Equal(t, []float64{20, 21, 22}, pulses[0].Current())
	assert.Equal(t, []float64{10, 11, 12}, pulses[0].Voltage())
	assert.Equal(t, []float64{4, 5}, pulses[1].Time())

	require.NotEmpty(t, out.RunID)
	run, err := db.GetRun(database, out.RunID)
	require.NoError(t, err)
	assert.Equal(t, db.KindExtract, run.Kind)
	assert.Equal(t, 2, run.Pulses)
	require.Len(t, run.Files, 4)
	assert.Equal(t, db.StatusSkipped, run.Files[1].Status)
}

func TestExtract_NoLedger(t *testing.T) {
	cfg := newProject(t)
	npztest.WriteChannels(t, filepath.Join(cfg.RawDataDir, "a.npz"), []float64{0, 1}, []float64{0, 0}, []float64{1, 1})
	writeFile(t, filepath.Join(cfg.SelectionsDir, "custom.json"),
		`{"file_name": "a.npz", "batch_size": 1, "overlap_size": 0, "selections": [{"start_index": 0, "end_index": 1}]}`)

	out, err := Extract(context.Background(), nil, cfg, ExtractInput{
		SelectionsPath: filepath.Join(cfg.SelectionsDir, "custom.json"),
		OutputPath:     filepath.Join(cfg.ProcessedDir, "custom.txt"),
	})
	require.NoError(t, err)
	assert.Empty(t, out.RunID)
	assert.Equal(t, 1, out.Pulses)
}

func TestExtract_Errors(t *testing.T) {
	cfg := newProject(t)

	_, err := Extract(context.Background(), nil, cfg, ExtractInput{})
	assert.True(t, errors.Is(err, errors.ErrNotFound), "got %v", err)

	writeFile(t, filepath.Join(cfg.SelectionsDir, selection.FileName), `{"file_name": "a.npz"}`)
	_, err = Extract(context.Background(), nil, cfg, ExtractInput{})
	assert.True(t, errors.Is(err, errors.ErrValidation), "got %v", err)

	_, err = Extract(context.Background(), nil, cfg, ExtractInput{OutputPath: filepath.Join(cfg.ProcessedDir, "out.csv")})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
}

func TestExtract_TraversalRejected(t *testing.T) {
	cfg := newProject(t)
	writeFile(t, filepath.Join(cfg.SelectionsDir, selection.FileName),
		`[{"file_name": "../secret.npz", "batch_size": 0, "overlap_size": 0, "selections": [{"start_index": 0, "end_index": 1}]}]`)

	out, err := Extract(context.Background(), nil, cfg, ExtractInput{})
	require.NoError(t, err)
	require.Len(t, out.Files, 1)
	assert.Equal(t, db.StatusFailed, out.Files[0].Status)
	assert.Equal(t, 0, out.Pulses)
}

func TestExtract_Cancelled(t *testing.T) {
	cfg := newProject(t)
	writeFile(t, filepath.Join(cfg.SelectionsDir, selection.FileName),
		`[{"file_name": "a.npz", "batch_size": 0, "overlap_size": 0, "selections": [{"start_index": 0, "end_index": 1}]}]`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Extract(ctx, nil, cfg, ExtractInput{})
	assert.True(t, errors.Is(err, errors.ErrCancelled), "got %v", err)
}
