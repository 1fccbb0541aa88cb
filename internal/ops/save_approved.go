package ops

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/hpungsan/pulsekit/internal/config"
	"github.com/hpungsan/pulsekit/internal/db"
	"github.com/hpungsan/pulsekit/internal/errors"
	"github.com/hpungsan/pulsekit/internal/pulse"
)

// SaveApprovedInput contains parameters for the SaveApproved operation.
type SaveApprovedInput struct {
	PulsesPaths []string // optional, default: every pulses file in processed_dir
	OutputPath  string   // optional, default: <outputs>/<approved>/approved_pulses_<timestamp>.txt
}

// SaveApprovedOutput contains the result of the SaveApproved operation.
type SaveApprovedOutput struct {
	RunID          string        `json:"run_id,omitempty"`
	OutputPath     string        `json:"output_path"`
	MetadataPath   string        `json:"metadata_path"`
	TotalApproved  int           `json:"total_approved"`
	SelectionsPath []string      `json:"selections_paths"`
	Failures       []FileFailure `json:"failures"`
}

// ApprovedMetadata is written next to the approved pulses file.
type ApprovedMetadata struct {
	SourceFile    string            `json:"source_file"`
	TotalApproved int               `json:"total_approved"`
	Pulses        []ApprovedPulseRef `json:"pulses"`
}

// ApprovedPulseRef locates one saved pulse in the file it came from.
// PulseIndex is 0-based and OriginalIndex 1-based.
type ApprovedPulseRef struct {
	File          string `json:"file"`
	PulseIndex    int    `json:"pulse_index"`
	OriginalIndex int    `json:"original_index"`
}

// SaveApproved collects the approved pulses of several pulses files into one
// pulses file, writes a metadata file naming where each pulse came from, and
// writes each source file's selections.
func SaveApproved(ctx context.Context, database *sql.DB, cfg *config.Config, input SaveApprovedInput) (*SaveApprovedOutput, error) {
	paths := input.PulsesPaths
	if len(paths) == 0 {
		var err error
		paths, err = listFiles(cfg.ProcessedDir, ExtPulses)
		if err != nil {
			return nil, err
		}
	}

	outPath := input.OutputPath
	if outPath == "" {
		outPath = filepath.Join(cfg.ApprovedDir(), fmt.Sprintf("approved_pulses_%s%s", now().Format(timestampLayout), ExtPulses))
	}
	if err := ValidatePath(outPath, PathCheckWrite, ExtPulses); err != nil {
		return nil, err
	}
	metaPath := strings.TrimSuffix(outPath, filepath.Ext(outPath)) + ExtJSON

	out := &SaveApprovedOutput{
		OutputPath:     outPath,
		MetadataPath:   metaPath,
		SelectionsPath: []string{},
		Failures:       []FileFailure{},
	}

	type loadedGroup struct {
		path  string
		group *pulse.Group
	}
	var groups []loadedGroup
	var approved []pulse.Pulse
	meta := ApprovedMetadata{SourceFile: outPath, Pulses: []ApprovedPulseRef{}}

	for _, path := range paths {
		select {
		case <-ctx.Done():
			return nil, errors.NewCancelled("save approved")
		default:
		}

		g, err := LoadGroup(cfg, LoadGroupInput{PulsesPath: path})
		if err != nil {
			slog.WarnContext(ctx, "skipping pulses file", "file", path, "error", err)
			out.Failures = append(out.Failures, newFileFailure(path, err))
			continue
		}
		groups = append(groups, loadedGroup{path: path, group: g.Group})

		for _, it := range g.Group.Items {
			if !it.Approved {
				continue
			}
			approved = append(approved, it.Pulse)
			meta.Pulses = append(meta.Pulses, ApprovedPulseRef{
				File:          path,
				PulseIndex:    it.Index,
				OriginalIndex: it.Index + 1,
			})
		}
	}

	if len(approved) == 0 {
		return nil, errors.NewValidation("no approved pulses to save")
	}
	meta.TotalApproved = len(approved)
	out.TotalApproved = len(approved)

	if err := WritePulses(outPath, approved); err != nil {
		return nil, err
	}
	if err := writeJSONAtomic(metaPath, meta); err != nil {
		return nil, err
	}

	run := &db.Run{
		Kind:       db.KindSaveApproved,
		InputPath:  cfg.ProcessedDir,
		OutputPath: outPath,
		Pulses:     len(approved),
	}
	for _, lg := range groups {
		selPath, err := WriteSelectionsForGroup(cfg, lg.path, lg.group)
		if err != nil {
			// The approved pulses are already saved; report and keep going.
			slog.WarnContext(ctx, "failed to save selections", "file", lg.path, "error", err)
			out.Failures = append(out.Failures, newFileFailure(lg.path, err))
			run.Files = append(run.Files, db.RunFile{FileName: filepath.Base(lg.path), Status: db.StatusFailed, Message: err.Error()})
			continue
		}
		out.SelectionsPath = append(out.SelectionsPath, selPath)
		run.Files = append(run.Files, db.RunFile{FileName: filepath.Base(lg.path), Status: db.StatusOK, Pulses: lg.group.ApprovedCount()})
	}
	for _, f := range out.Failures {
		if !containsRunFile(run.Files, filepath.Base(f.File)) {
			run.Files = append(run.Files, db.RunFile{FileName: filepath.Base(f.File), Status: db.StatusFailed, Message: f.Message})
		}
	}

	slog.InfoContext(ctx, "saved approved pulses", "path", outPath, "pulses", len(approved), "metadata", metaPath)
	out.RunID = recordRun(database, run)

	return out, nil
}

func containsRunFile(files []db.RunFile, name string) bool {
	for _, f := range files {
		if f.FileName == name {
			return true
		}
	}
	return false
}
