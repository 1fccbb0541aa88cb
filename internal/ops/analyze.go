package ops

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hpungsan/pulsekit/internal/charge"
	"github.com/hpungsan/pulsekit/internal/config"
	"github.com/hpungsan/pulsekit/internal/db"
	"github.com/hpungsan/pulsekit/internal/errors"
)

// Analysis file names.
const (
	BatchSummaryFile = "batch_analysis_summary.json" // in the analysis folder
	ReportFile       = "charge_stats.json"           // in <analysis>/<stem>/
)

// HistogramOptions control charge binning. Zero values fall back to config.
type HistogramOptions struct {
	Bins      int
	UnitScale float64
	UnitLabel string
}

func (o HistogramOptions) withDefaults(cfg *config.Config) HistogramOptions {
	if o.Bins == 0 {
		o.Bins = cfg.HistogramBins
	}
	if o.UnitScale == 0 {
		o.UnitScale = cfg.UnitScale
	}
	if o.UnitLabel == "" {
		o.UnitLabel = cfg.UnitLabel
	}
	return o
}

// ChargeReport is the charge analysis of the approved pulses of one file.
type ChargeReport struct {
	FileName       string           `json:"file_name"`
	FilePath       string           `json:"file_path"`
	SelectionsPath string           `json:"selections_path,omitempty"`
	TotalPulses    int              `json:"total_pulses"`
	Charges        []float64        `json:"charges"`
	Statistics     charge.Stats     `json:"charge_statistics"`
	Histogram      charge.Histogram `json:"histogram"`
	UnitLabel      string           `json:"unit_label"`
}

// analyzeFile loads a pulses file with its selections and computes the
// charge report of its approved pulses.
func analyzeFile(cfg *config.Config, pulsesPath, selectionsPath string, opts HistogramOptions) (*ChargeReport, error) {
	g, err := LoadGroup(cfg, LoadGroupInput{PulsesPath: pulsesPath, SelectionsPath: selectionsPath})
	if err != nil {
		return nil, err
	}

	pulses := g.Group.Approved()
	if len(pulses) == 0 {
		return nil, errors.NewValidation(fmt.Sprintf("%s: no approved pulses", g.FileName))
	}

	charges, err := charge.ComputeAll(pulses)
	if err != nil {
		return nil, err
	}
	for k, q := range charges {
		if math.IsNaN(q) || math.IsInf(q, 0) {
			return nil, errors.NewValidation(fmt.Sprintf("%s: approved pulse %d has non-finite charge %v", g.FileName, k, q))
		}
	}
	stats, err := charge.Summarize(charges)
	if err != nil {
		return nil, err
	}
	hist, err := charge.NewHistogram(charges, opts.Bins, opts.UnitScale)
	if err != nil {
		return nil, err
	}

	return &ChargeReport{
		FileName:       g.FileName,
		FilePath:       pulsesPath,
		SelectionsPath: g.SelectionsPath,
		TotalPulses:    len(pulses),
		Charges:        charges,
		Statistics:     stats,
		Histogram:      hist,
		UnitLabel:      opts.UnitLabel,
	}, nil
}

func (r *ChargeReport) analysisRow() db.Analysis {
	s := r.Statistics
	return db.Analysis{
		FileName: r.FileName,
		Pulses:   r.TotalPulses,
		Mean:     s.Mean,
		Std:      s.Std,
		Min:      s.Min,
		Max:      s.Max,
		Median:   s.Median,
	}
}

// AnalyzeInput contains parameters for the Analyze operation.
type AnalyzeInput struct {
	PulsesPath     string // optional, default: <processed_dir>/<output_file>
	SelectionsPath string // optional, default: conventional selections file when it exists
	OutputPath     string // optional, default: <outputs>/<analysis>/charge_stats_<timestamp>.json
	Histogram      HistogramOptions
}

// AnalyzeOutput contains the result of the Analyze operation.
type AnalyzeOutput struct {
	RunID      string        `json:"run_id,omitempty"`
	OutputPath string        `json:"output_path"`
	Report     *ChargeReport `json:"report"`
}

// Analyze computes the charge of every approved pulse of one pulses file and
// writes the statistics and histogram as JSON.
func Analyze(database *sql.DB, cfg *config.Config, input AnalyzeInput) (*AnalyzeOutput, error) {
	pulsesPath := input.PulsesPath
	if pulsesPath == "" {
		pulsesPath = filepath.Join(cfg.ProcessedDir, cfg.OutputFile)
	}
	outPath := input.OutputPath
	if outPath == "" {
		outPath = filepath.Join(cfg.AnalysisDir(), fmt.Sprintf("charge_stats_%s%s", now().Format(timestampLayout), ExtJSON))
	}
	if err := ValidatePath(outPath, PathCheckWrite, ExtJSON); err != nil {
		return nil, err
	}

	report, err := analyzeFile(cfg, pulsesPath, input.SelectionsPath, input.Histogram.withDefaults(cfg))
	if err != nil {
		return nil, err
	}
	if err := writeJSONAtomic(outPath, report); err != nil {
		return nil, err
	}

	s := report.Statistics
	slog.Info("analyzed charges", "file", report.FileName, "pulses", report.TotalPulses, "mean", s.Mean, "std", s.Std)

	runID := recordRun(database, &db.Run{
		Kind:       db.KindAnalyze,
		InputPath:  pulsesPath,
		OutputPath: outPath,
		Pulses:     report.TotalPulses,
		Files:      []db.RunFile{{FileName: report.FileName, Status: db.StatusOK, Pulses: report.TotalPulses}},
	}, report.analysisRow())

	return &AnalyzeOutput{RunID: runID, OutputPath: outPath, Report: report}, nil
}

// BatchAnalyzeInput contains parameters for the BatchAnalyze operation.
type BatchAnalyzeInput struct {
	Dir       string // optional, default: processed_dir
	Histogram HistogramOptions
}

// BatchFileSummary is one entry of the batch summary.
type BatchFileSummary struct {
	FilePath    string       `json:"file_path"`
	ReportPath  string       `json:"report_path"`
	TotalPulses int          `json:"total_pulses"`
	Statistics  charge.Stats `json:"charge_statistics"`
}

// BatchAnalyzeOutput contains the result of the BatchAnalyze operation.
type BatchAnalyzeOutput struct {
	RunID       string                      `json:"run_id,omitempty"`
	SummaryPath string                      `json:"summary_path,omitempty"`
	Results     map[string]BatchFileSummary `json:"results"`
	Failures    []FileFailure               `json:"failures"`
}

// BatchAnalyze analyzes every pulses file in the processed folder. Each file
// gets its own report folder under the analysis folder; a file that cannot be
// analyzed is reported in Failures. The summary is written only when at least
// one file was analyzed.
func BatchAnalyze(ctx context.Context, database *sql.DB, cfg *config.Config, input BatchAnalyzeInput) (*BatchAnalyzeOutput, error) {
	dir := input.Dir
	if dir == "" {
		dir = cfg.ProcessedDir
	}
	files, err := listFiles(dir, ExtPulses)
	if err != nil {
		return nil, err
	}
	opts := input.Histogram.withDefaults(cfg)

	out := &BatchAnalyzeOutput{Results: map[string]BatchFileSummary{}, Failures: []FileFailure{}}
	run := &db.Run{Kind: db.KindBatch, InputPath: dir}
	var rows []db.Analysis

	for _, path := range files {
		select {
		case <-ctx.Done():
			return nil, errors.NewCancelled("batch analysis")
		default:
		}

		report, reportPath, err := analyzeInto(cfg, path, opts)
		if err != nil {
			slog.WarnContext(ctx, "skipping analysis", "file", path, "error", err)
			out.Failures = append(out.Failures, newFileFailure(path, err))
			run.Files = append(run.Files, db.RunFile{FileName: filepath.Base(path), Status: db.StatusFailed, Message: err.Error()})
			continue
		}
		slog.InfoContext(ctx, "analyzed", "file", report.FileName, "pulses", report.TotalPulses, "mean", report.Statistics.Mean)

		out.Results[report.FileName] = BatchFileSummary{
			FilePath:    path,
			ReportPath:  reportPath,
			TotalPulses: report.TotalPulses,
			Statistics:  report.Statistics,
		}
		run.Pulses += report.TotalPulses
		run.Files = append(run.Files, db.RunFile{FileName: report.FileName, Status: db.StatusOK, Pulses: report.TotalPulses})
		rows = append(rows, report.analysisRow())
	}

	if len(out.Results) > 0 {
		out.SummaryPath = filepath.Join(cfg.AnalysisDir(), BatchSummaryFile)
		if err := writeJSONAtomic(out.SummaryPath, out.Results); err != nil {
			return nil, err
		}
		run.OutputPath = out.SummaryPath
		slog.InfoContext(ctx, "wrote batch summary", "path", out.SummaryPath, "files", len(out.Results))
	} else {
		slog.WarnContext(ctx, "no file could be analyzed", "dir", dir)
	}
	run.Skipped = len(out.Failures)
	out.RunID = recordRun(database, run, rows...)

	return out, nil
}

// analyzeInto writes the report of one file to <analysis>/<stem>/charge_stats.json.
func analyzeInto(cfg *config.Config, path string, opts HistogramOptions) (*ChargeReport, string, error) {
	report, err := analyzeFile(cfg, path, "", opts)
	if err != nil {
		return nil, "", err
	}
	reportPath := filepath.Join(cfg.AnalysisDir(), SanitizeForFilename(stem(path)), ReportFile)
	if err := writeJSONAtomic(reportPath, report); err != nil {
		return nil, "", err
	}
	return report, reportPath, nil
}

// ReportInfo names one per-file report of the analysis folder.
type ReportInfo struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// ListReports returns the per-file reports written by BatchAnalyze, sorted by
// name. A missing analysis folder yields an empty list.
func ListReports(cfg *config.Config) ([]ReportInfo, error) {
	entries, err := os.ReadDir(cfg.AnalysisDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []ReportInfo{}, nil
		}
		return nil, errors.NewInternal(err)
	}

	reports := []ReportInfo{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(cfg.AnalysisDir(), e.Name(), ReportFile)
		if info, err := os.Lstat(path); err == nil && info.Mode().IsRegular() {
			reports = append(reports, ReportInfo{Name: e.Name(), Path: path})
		}
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].Name < reports[j].Name })
	return reports, nil
}

// ReadReport reads the per-file report stored under <analysis>/<name>/.
func ReadReport(cfg *config.Config, name string) (*ChargeReport, error) {
	if err := ValidateFileName(name); err != nil {
		return nil, err
	}
	if strings.ContainsAny(name, `/\`) {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("report name must be a single path component: %s", name))
	}
	path := filepath.Join(cfg.AnalysisDir(), name, ReportFile)
	if err := ValidatePath(path, PathCheckRead, ExtJSON); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	var report ChargeReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, errors.NewFormat(path, err.Error())
	}
	return &report, nil
}
