package ops

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/pulsekit/internal/config"
	"github.com/hpungsan/pulsekit/internal/db"
	"github.com/hpungsan/pulsekit/internal/errors"
)

func TestAnalyze_ApprovedOnly(t *testing.T) {
	cfg := newProject(t)
	database := newLedger(t)
	fixClock(t, time.Date(2024, 1, 31, 15, 45, 2, 0, time.UTC))

	// Unit-step pulses of 3 samples: charge = 2 * current.
	path := writePulsesFile(t, cfg, "pulses.txt", 1, 5, 2)
	writeFile(t, DefaultSelectionsPath(cfg, path), `[true, false, true]`)

	out, err := Analyze(database, cfg, AnalyzeInput{Histogram: HistogramOptions{Bins: 4, UnitScale: 1}})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cfg.AnalysisDir(), "charge_stats_20240131_154502.json"), out.OutputPath)
	r := out.Report
	assert.Equal(t, 2, r.TotalPulses)
	assert.InDeltaSlice(t, []float64{2, 4}, r.Charges, 1e-12)
	assert.InDelta(t, 3.0, r.Statistics.Mean, 1e-12)
	assert.InDelta(t, 1.0, r.Statistics.Std, 1e-12)
	assert.Equal(t, cfg.UnitLabel, r.UnitLabel)
	assert.Len(t, r.Histogram.Counts, 4)

	data, err := os.ReadFile(out.OutputPath)
	require.NoError(t, err)
	var onDisk ChargeReport
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, 2, onDisk.TotalPulses)

	analyses, err := db.ListAnalyses(database, out.RunID)
	require.NoError(t, err)
	require.Len(t, analyses, 1)
	assert.InDelta(t, 3.0, analyses[0].Mean, 1e-12)
}

func TestAnalyze_NoApprovedPulses(t *testing.T) {
	cfg := newProject(t)
	path := writePulsesFile(t, cfg, "a.txt", 1)
	writeFile(t, DefaultSelectionsPath(cfg, path), `[false]`)

	_, err := Analyze(nil, cfg, AnalyzeInput{PulsesPath: path})
	assert.True(t, errors.Is(err, errors.ErrValidation), "got %v", err)
}

func TestAnalyze_MissingInput(t *testing.T) {
	cfg := newProject(t)

	_, err := Analyze(nil, cfg, AnalyzeInput{})
	assert.True(t, errors.Is(err, errors.ErrNotFound), "got %v", err)
}

func TestBatchAnalyze_IsolatesFailures(t *testing.T) {
	cfg := newProject(t)
	database := newLedger(t)

	writePulsesFile(t, cfg, "a.txt", 1, 2)
	rejected := writePulsesFile(t, cfg, "b.txt", 3)
	writeFile(t, DefaultSelectionsPath(cfg, rejected), `[false]`)
	writeFile(t, filepath.Join(cfg.ProcessedDir, "c.txt"), "time\tcurrent\tvoltage\nstart\t\t\n1\tx\t2\n")

	out, err := BatchAnalyze(context.Background(), database, cfg, BatchAnalyzeInput{})
	require.NoError(t, err)

	require.Len(t, out.Results, 1)
	a, ok := out.Results["a.txt"]
	require.True(t, ok)
	assert.Equal(t, 2, a.TotalPulses)
	assert.Equal(t, filepath.Join(cfg.AnalysisDir(), "a", "charge_stats.json"), a.ReportPath)
	assert.FileExists(t, a.ReportPath)

	require.Len(t, out.Failures, 2)
	assert.Equal(t, string(errors.ErrValidation), out.Failures[0].Code)
	assert.Equal(t, string(errors.ErrFormat), out.Failures[1].Code)
	assert.Contains(t, out.Failures[1].Message, ":3:")

	assert.Equal(t, filepath.Join(cfg.AnalysisDir(), BatchSummaryFile), out.SummaryPath)
	data, err := os.ReadFile(out.SummaryPath)
	require.NoError(t, err)
	var summary map[string]BatchFileSummary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Contains(t, summary, "a.txt")

	run, err := db.GetRun(database, out.RunID)
	require.NoError(t, err)
	assert.Equal(t, db.KindBatch, run.Kind)
	assert.Equal(t, 2, run.Skipped)
	assert.Len(t, run.Files, 3)
}

func TestBatchAnalyze_NonFiniteChargeIsolated(t *testing.T) {
	cfg := newProject(t)

	writePulsesFile(t, cfg, "good.txt", 1)
	writeFile(t, filepath.Join(cfg.ProcessedDir, "bad.txt"), "time\tcurrent\tvoltage\nstart\t\t\n0\tnan\t0\n1\t1\t0\n")

	out, err := BatchAnalyze(context.Background(), nil, cfg, BatchAnalyzeInput{})
	require.NoError(t, err)

	assert.Contains(t, out.Results, "good.txt")
	require.Len(t, out.Failures, 1)
	assert.Equal(t, string(errors.ErrValidation), out.Failures[0].Code)
	assert.Contains(t, out.Failures[0].Message, "bad.txt")
}

func TestBatchAnalyze_NothingAnalyzed(t *testing.T) {
	cfg := newProject(t)

	out, err := BatchAnalyze(context.Background(), nil, cfg, BatchAnalyzeInput{})
	require.NoError(t, err)
	assert.Empty(t, out.SummaryPath)
	assert.NoFileExists(t, filepath.Join(cfg.AnalysisDir(), BatchSummaryFile))
}

func TestListAndReadReports(t *testing.T) {
	cfg := newProject(t)

	reports, err := ListReports(cfg)
	require.NoError(t, err)
	assert.Empty(t, reports)

	writePulsesFile(t, cfg, "b run.txt", 1, 2)
	writePulsesFile(t, cfg, "a.txt", 3)
	_, err = BatchAnalyze(context.Background(), nil, cfg, BatchAnalyzeInput{})
	require.NoError(t, err)
	// Stray entries are not reports.
	writeFile(t, filepath.Join(cfg.AnalysisDir(), "empty", "notes.txt"), "x")

	reports, err = ListReports(cfg)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "a", reports[0].Name)
	assert.Equal(t, "b run", reports[1].Name)

	report, err := ReadReport(cfg, "b run")
	require.NoError(t, err)
	assert.Equal(t, "b run.txt", report.FileName)
	assert.Equal(t, 2, report.TotalPulses)
	assert.InDelta(t, 3.0, report.Statistics.Mean, 1e-12)

	_, err = ReadReport(cfg, "missing")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	_, err = ReadReport(cfg, "../a")
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
	_, err = ReadReport(cfg, "a/b")
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	writeFile(t, filepath.Join(cfg.AnalysisDir(), "broken", ReportFile), "{")
	_, err = ReadReport(cfg, "broken")
	assert.True(t, errors.Is(err, errors.ErrFormat))
}

func TestListReports_NoAnalysisFolder(t *testing.T) {
	cfg := config.DefaultConfig().Resolve(t.TempDir())
	reports, err := ListReports(cfg)
	require.NoError(t, err)
	assert.Empty(t, reports)
}
