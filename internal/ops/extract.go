package ops

import (
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"

	"github.com/hpungsan/pulsekit/internal/config"
	"github.com/hpungsan/pulsekit/internal/db"
	"github.com/hpungsan/pulsekit/internal/errors"
	"github.com/hpungsan/pulsekit/internal/extract"
	"github.com/hpungsan/pulsekit/internal/pulse"
	"github.com/hpungsan/pulsekit/internal/selection"
	"github.com/hpungsan/pulsekit/internal/waveform"
)

// ExtractInput contains parameters for the Extract operation.
type ExtractInput struct {
	SelectionsPath string // optional, default: <selections_dir>/selections.json
	OutputPath     string // optional, default: <processed_dir>/<output_file>
}

// ExtractOutput contains the result of the Extract operation.
type ExtractOutput struct {
	RunID      string              `json:"run_id,omitempty"`
	OutputPath string              `json:"output_path"`
	Pulses     int                 `json:"pulses"`
	Skipped    int                 `json:"skipped_windows"`
	Files      []ExtractFileResult `json:"files"`
}

// ExtractFileResult reports the outcome for one selection record.
type ExtractFileResult struct {
	FileName string         `json:"file_name"`
	Status   string         `json:"status"`
	Pulses   int            `json:"pulses"`
	Skipped  []extract.Skip `json:"skipped,omitempty"`
	Error    *FileFailure   `json:"error,omitempty"`
}

// Extract runs every selection of the extraction selections file against its
// raw file, in order, and writes all accepted pulses to one pulses file.
// A missing raw file is skipped and a raw file that fails to read is marked
// failed; neither stops the run.
func Extract(ctx context.Context, database *sql.DB, cfg *config.Config, input ExtractInput) (*ExtractOutput, error) {
	selPath := input.SelectionsPath
	if selPath == "" {
		selPath = filepath.Join(cfg.SelectionsDir, selection.FileName)
	}
	outPath := input.OutputPath
	if outPath == "" {
		outPath = filepath.Join(cfg.ProcessedDir, cfg.OutputFile)
	}
	// Fail before any raw file is read.
	if err := ValidatePath(outPath, PathCheckWrite, ExtPulses); err != nil {
		return nil, err
	}

	sels, err := selection.LoadSelections(selPath)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "extracting pulses", "selections", selPath, "records", len(sels), "raw_dir", cfg.RawDataDir)

	out := &ExtractOutput{OutputPath: outPath, Files: make([]ExtractFileResult, 0, len(sels))}
	var all []pulse.Pulse
	for _, sel := range sels {
		select {
		case <-ctx.Done():
			return nil, errors.NewCancelled("extract")
		default:
		}

		res := extractOne(ctx, cfg, sel)
		out.Files = append(out.Files, res.ExtractFileResult)
		out.Skipped += len(res.Skipped)
		all = append(all, res.pulses...)
	}
	out.Pulses = len(all)

	if err := WritePulses(outPath, all); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "wrote pulses", "path", outPath, "pulses", out.Pulses, "skipped_windows", out.Skipped)

	run := &db.Run{
		Kind:       db.KindExtract,
		InputPath:  selPath,
		OutputPath: outPath,
		Pulses:     out.Pulses,
		Skipped:    out.Skipped,
	}
	for _, f := range out.Files {
		rf := db.RunFile{FileName: f.FileName, Status: f.Status, Pulses: f.Pulses, Skipped: len(f.Skipped)}
		if f.Error != nil {
			rf.Message = f.Error.Message
		}
		run.Files = append(run.Files, rf)
	}
	out.RunID = recordRun(database, run)

	return out, nil
}

type fileExtraction struct {
	ExtractFileResult
	pulses []pulse.Pulse
}

func extractOne(ctx context.Context, cfg *config.Config, sel pulse.Selection) fileExtraction {
	res := fileExtraction{ExtractFileResult: ExtractFileResult{FileName: sel.FileName}}
	fail := func(status string, err error) fileExtraction {
		f := newFileFailure(sel.FileName, err)
		res.Status = status
		res.Error = &f
		return res
	}

	if err := ValidateFileName(sel.FileName); err != nil {
		slog.WarnContext(ctx, "rejecting selection", "file", sel.FileName, "error", err)
		return fail(db.StatusFailed, err)
	}

	rawPath := filepath.Join(cfg.RawDataDir, filepath.FromSlash(sel.FileName))
	ch, err := waveform.ReadNPZ(rawPath)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			slog.WarnContext(ctx, "raw file not found, skipping", "file", rawPath)
			return fail(db.StatusSkipped, err)
		}
		slog.ErrorContext(ctx, "failed to read raw file", "file", rawPath, "error", err)
		return fail(db.StatusFailed, err)
	}

	r, err := extract.Extract(ch, sel)
	if err != nil {
		slog.ErrorContext(ctx, "failed to extract", "file", rawPath, "error", err)
		return fail(db.StatusFailed, err)
	}

	for _, s := range r.Skipped {
		slog.InfoContext(ctx, "skipping window", "file", sel.FileName, "window", s.Window, "start", s.Start, "end", s.End, "samples", s.Length)
	}
	slog.InfoContext(ctx, "extracted", "file", sel.FileName, "pulses", len(r.Pulses), "windows", len(sel.Windows))

	res.Status = db.StatusOK
	res.Pulses = len(r.Pulses)
	res.Skipped = r.Skipped
	res.pulses = r.Pulses
	return res
}
