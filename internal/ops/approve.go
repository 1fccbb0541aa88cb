package ops

import (
	"log/slog"

	"github.com/hpungsan/pulsekit/internal/config"
	"github.com/hpungsan/pulsekit/internal/errors"
)

// ApproveInput contains parameters for the Approve operation.
type ApproveInput struct {
	PulsesPath     string // required
	SelectionsPath string // optional source of current approvals
	Indices        []int  // pulse positions in the pulses file, 0-based
	Approved       bool
}

// ApproveOutput contains the result of the Approve operation.
type ApproveOutput struct {
	FileName       string `json:"file_name"`
	SelectionsPath string `json:"selections_path"`
	Total          int    `json:"total"`
	Approved       int    `json:"approved"`
	Changed        []int  `json:"changed"`
}

// Approve sets the approval flag of the given pulses and writes the updated
// approvals to the conventional selections file. Pulses not named keep their
// current approval.
func Approve(cfg *config.Config, input ApproveInput) (*ApproveOutput, error) {
	if len(input.Indices) == 0 {
		return nil, errors.NewInvalidRequest("at least one pulse index is required")
	}

	loaded, err := LoadGroup(cfg, LoadGroupInput{
		PulsesPath:     input.PulsesPath,
		SelectionsPath: input.SelectionsPath,
		KeepRejected:   true,
	})
	if err != nil {
		return nil, err
	}
	group := loaded.Group

	changed := []int{}
	for _, i := range input.Indices {
		if i >= 0 && i < group.Len() && group.Items[i].Approved == input.Approved {
			continue
		}
		if err := group.SetApproved(i, input.Approved); err != nil {
			return nil, err
		}
		changed = append(changed, i)
	}

	path, err := WriteSelectionsForGroup(cfg, input.PulsesPath, group)
	if err != nil {
		return nil, err
	}
	slog.Info("updated approvals", "file", group.FileName, "changed", len(changed), "approved", group.ApprovedCount(), "selections", path)

	return &ApproveOutput{
		FileName:       group.FileName,
		SelectionsPath: path,
		Total:          group.Total,
		Approved:       group.ApprovedCount(),
		Changed:        changed,
	}, nil
}
