package ops

import (
	"os"
	"path/filepath"

	"github.com/hpungsan/pulsekit/internal/config"
	"github.com/hpungsan/pulsekit/internal/pulse"
	"github.com/hpungsan/pulsekit/internal/selection"
)

// LoadGroupInput contains parameters for the LoadGroup operation.
type LoadGroupInput struct {
	PulsesPath     string // required
	SelectionsPath string // optional, default: <selections_dir>/<stem>_selections.json when it exists
	KeepRejected   bool   // keep disapproved pulses flagged false instead of dropping them
}

// LoadGroupOutput contains the result of the LoadGroup operation.
type LoadGroupOutput struct {
	Path           string       `json:"path"`
	FileName       string       `json:"file_name"`
	SelectionsPath string       `json:"selections_path,omitempty"`
	Total          int          `json:"total"`    // pulses in the file
	Loaded         int          `json:"loaded"`   // items held by the group
	Approved       int          `json:"approved"` // approved items
	Mask           []bool       `json:"mask"`
	Group          *pulse.Group `json:"-"`
}

// LoadGroup decodes a pulses file and reconciles it with its selections file.
// Without KeepRejected, pulses the selections disapprove are dropped; every
// surviving item remembers its position in the file, so the group's mask
// still covers every pulse.
func LoadGroup(cfg *config.Config, input LoadGroupInput) (*LoadGroupOutput, error) {
	pulses, err := ReadPulses(input.PulsesPath)
	if err != nil {
		return nil, err
	}

	fileName := filepath.Base(input.PulsesPath)
	group := pulse.NewGroup(fileName, pulses)

	selPath := input.SelectionsPath
	if selPath == "" && cfg != nil {
		candidate := DefaultSelectionsPath(cfg, input.PulsesPath)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			selPath = candidate
		}
	}

	if selPath != "" {
		mask, err := selection.ResolveFile(selPath, len(pulses), fileName)
		if err != nil {
			return nil, err
		}
		if input.KeepRejected {
			for i := range group.Items {
				group.Items[i].Approved = mask[i]
			}
		} else {
			items, err := pulse.ApplyMask(group.Items, mask)
			if err != nil {
				return nil, err
			}
			group.Items = items
		}
	}

	return groupOutput(input.PulsesPath, selPath, group), nil
}

func groupOutput(path, selPath string, g *pulse.Group) *LoadGroupOutput {
	return &LoadGroupOutput{
		Path:           path,
		FileName:       g.FileName,
		SelectionsPath: selPath,
		Total:          g.Total,
		Loaded:         g.Len(),
		Approved:       g.ApprovedCount(),
		Mask:           g.Mask(),
		Group:          g,
	}
}

// WriteSelectionsForGroup writes the group's approvals to the conventional
// selections file of pulsesPath and returns its path. The written mask has
// one entry per pulse in the file, so it resolves against a fresh decode.
func WriteSelectionsForGroup(cfg *config.Config, pulsesPath string, group *pulse.Group) (string, error) {
	path := DefaultSelectionsPath(cfg, pulsesPath)
	if err := ValidatePath(path, PathCheckWrite, ExtJSON); err != nil {
		return "", err
	}

	data, err := selection.EncodeGroup(filepath.Base(pulsesPath), group.Mask())
	if err != nil {
		return "", asPulseError(err)
	}
	if err := writeBytesAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}
