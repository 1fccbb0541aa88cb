package ops

import (
	"context"
	"log/slog"

	"github.com/hpungsan/pulsekit/internal/config"
	"github.com/hpungsan/pulsekit/internal/errors"
)

// DiscoverInput contains parameters for the Discover operation.
type DiscoverInput struct {
	Dir          string // optional, default: processed_dir
	KeepRejected bool
}

// DiscoverOutput contains the result of the Discover operation.
type DiscoverOutput struct {
	Dir      string             `json:"dir"`
	Groups   []*LoadGroupOutput `json:"groups"`
	Failures []FileFailure      `json:"failures"`
}

// Discover loads every pulses file in the processed folder, each paired with
// its conventional selections file when one exists. A file that fails to
// load is reported in Failures and does not stop the others.
func Discover(ctx context.Context, cfg *config.Config, input DiscoverInput) (*DiscoverOutput, error) {
	dir := input.Dir
	if dir == "" {
		dir = cfg.ProcessedDir
	}

	files, err := listFiles(dir, ExtPulses)
	if err != nil {
		return nil, err
	}

	out := &DiscoverOutput{Dir: dir, Groups: []*LoadGroupOutput{}, Failures: []FileFailure{}}
	for _, path := range files {
		select {
		case <-ctx.Done():
			return nil, errors.NewCancelled("discover")
		default:
		}

		g, err := LoadGroup(cfg, LoadGroupInput{PulsesPath: path, KeepRejected: input.KeepRejected})
		if err != nil {
			slog.WarnContext(ctx, "skipping pulses file", "file", path, "error", err)
			out.Failures = append(out.Failures, newFileFailure(path, err))
			continue
		}
		slog.DebugContext(ctx, "loaded pulses file", "file", path, "pulses", g.Total, "approved", g.Approved)
		out.Groups = append(out.Groups, g)
	}

	return out, nil
}
