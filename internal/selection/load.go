package selection

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/hpungsan/pulsekit/internal/errors"
	"github.com/hpungsan/pulsekit/internal/pulse"
)

// FileName is the conventional name of the extraction selections file.
const FileName = "selections.json"

type rawWindow struct {
	StartIndex *int `json:"start_index"`
	EndIndex   *int `json:"end_index"`
}

type rawSelection struct {
	FileName    *string     `json:"file_name"`
	BatchSize   *int        `json:"batch_size"`
	OverlapSize *int        `json:"overlap_size"`
	Selections  []rawWindow `json:"selections"`
}

// LoadSelections reads the extraction selections file at path. The file holds
// either a list of selection records or a single record.
func LoadSelections(path string) ([]pulse.Selection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound(path)
		}
		return nil, errors.NewInternal(err)
	}
	return ParseSelections(data, path)
}

// ParseSelections decodes selection records from data.
func ParseSelections(data []byte, source string) ([]pulse.Selection, error) {
	trimmed := bytes.TrimSpace(data)
	var records []rawSelection

	switch {
	case len(trimmed) > 0 && trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, errors.NewFormat(source, fmt.Sprintf("invalid selections: %v", err))
		}
	case len(trimmed) > 0 && trimmed[0] == '{':
		var rec rawSelection
		if err := json.Unmarshal(trimmed, &rec); err != nil {
			return nil, errors.NewFormat(source, fmt.Sprintf("invalid selections: %v", err))
		}
		records = []rawSelection{rec}
	default:
		return nil, errors.NewFormat(source, "selections must be a list of records or a single record")
	}

	out := make([]pulse.Selection, 0, len(records))
	for i, rec := range records {
		sel, err := rec.toSelection()
		if err != nil {
			return nil, errors.NewValidation(fmt.Sprintf("%s: record %d: %s", source, i, err))
		}
		out = append(out, sel)
	}
	return out, nil
}

func (r rawSelection) toSelection() (pulse.Selection, error) {
	switch {
	case r.FileName == nil:
		return pulse.Selection{}, fmt.Errorf(`missing "file_name"`)
	case r.BatchSize == nil:
		return pulse.Selection{}, fmt.Errorf(`missing "batch_size"`)
	case r.OverlapSize == nil:
		return pulse.Selection{}, fmt.Errorf(`missing "overlap_size"`)
	}

	sel := pulse.Selection{
		FileName:    *r.FileName,
		BatchSize:   *r.BatchSize,
		OverlapSize: *r.OverlapSize,
		Windows:     make([]pulse.Window, len(r.Selections)),
	}
	for i, w := range r.Selections {
		if w.StartIndex == nil || w.EndIndex == nil {
			return pulse.Selection{}, fmt.Errorf("window %d: start_index and end_index are required", i)
		}
		sel.Windows[i] = pulse.Window{StartIndex: *w.StartIndex, EndIndex: *w.EndIndex}
	}
	if err := sel.Validate(); err != nil {
		return pulse.Selection{}, fmt.Errorf("%s", err.(*errors.PulseError).Message)
	}
	return sel, nil
}
