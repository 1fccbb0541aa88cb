package ops

import (
	"io"
	"path/filepath"

	"github.com/hpungsan/pulsekit/internal/codec"
	"github.com/hpungsan/pulsekit/internal/config"
	"github.com/hpungsan/pulsekit/internal/pulse"
)

// SelectionsSuffix is appended to a pulses file stem to name its selections file.
const SelectionsSuffix = "_selections.json"

// ReadPulses decodes the pulses file at path.
func ReadPulses(path string) ([]pulse.Pulse, error) {
	if err := ValidatePath(path, PathCheckRead, ""); err != nil {
		return nil, err
	}
	return codec.ReadFile(path)
}

// WritePulses encodes pulses to path, replacing any existing file atomically.
func WritePulses(path string, pulses []pulse.Pulse) error {
	if err := ValidatePath(path, PathCheckWrite, ExtPulses); err != nil {
		return err
	}
	return writeFileAtomic(path, func(w io.Writer) error {
		return codec.Encode(w, pulses)
	})
}

// DefaultSelectionsPath returns <selections_dir>/<stem>_selections.json for a pulses file.
func DefaultSelectionsPath(cfg *config.Config, pulsesPath string) string {
	return filepath.Join(cfg.SelectionsDir, stem(pulsesPath)+SelectionsSuffix)
}
